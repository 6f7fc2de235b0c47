package console

import (
	"log/slog"
	"time"

	"WaybackArchiver/internal/domain"
)

// Reporter prints status, progress, and ETA streams for the operator. It
// sits at the presentation boundary; everything it receives comes through
// the observer callbacks.
type Reporter struct {
	logger *slog.Logger
}

// NewReporter builds a console reporter over the given logger.
func NewReporter(logger *slog.Logger) *Reporter {
	return &Reporter{logger: logger}
}

// Status logs one per-address status change at a level matching severity.
func (r *Reporter) Status(event domain.StatusEvent) {
	if r.logger == nil {
		return
	}

	args := []any{"address", event.Address}
	if event.SnapshotURL != "" {
		args = append(args, "snapshot", event.SnapshotURL)
	}

	switch event.Severity {
	case domain.SeverityError:
		r.logger.Error(event.Message, args...)
	case domain.SeverityWarning:
		r.logger.Warn(event.Message, args...)
	default:
		r.logger.Info(event.Message, args...)
	}
}

// Progress logs the aggregate batch position.
func (r *Reporter) Progress(progress domain.Progress) {
	if r.logger == nil {
		return
	}
	r.logger.Info("progress",
		"percent", progress.Percentage,
		"processed", progress.Processed,
		"total", progress.Total)
}

// Estimate logs the smoothed time remaining.
func (r *Reporter) Estimate(estimate domain.Estimate) {
	if r.logger == nil || estimate.Remaining == 0 {
		return
	}
	r.logger.Info("eta",
		"remaining", estimate.Remaining,
		"eta", estimate.ETA.Round(time.Second).String())
}
