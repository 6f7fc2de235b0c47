package usecase

import (
	"context"
	"log/slog"
	"time"

	"WaybackArchiver/internal/domain"
	"WaybackArchiver/internal/ports"
)

// Resolver determines whether an address is already preserved. It tries the
// primary lookup first and falls back to a recency-biased secondary lookup,
// because the primary endpoint lags for just-created snapshots.
type Resolver struct {
	primary   ports.CaptureSource
	secondary ports.CaptureSource
	webURL    string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewResolver wires the two capture sources. timeout bounds each lookup.
func NewResolver(primary, secondary ports.CaptureSource, webURL string, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Resolver{
		primary:   primary,
		secondary: secondary,
		webURL:    webURL,
		timeout:   timeout,
		logger:    logger,
	}
}

// Resolve reports the archive status of one address. It never returns an
// error: transport failures collapse into the record's Err/TimedOut fields.
func (r *Resolver) Resolve(ctx context.Context, address string) domain.ArchiveRecord {
	record := domain.ArchiveRecord{
		CheckURL: domain.ManualCheckURL(r.webURL, address),
	}

	snapshot, err := r.query(ctx, r.primary, address)
	if err != nil {
		record.Err = err.Error()
		record.TimedOut = domain.IsTimeout(err)
		r.debug("primary lookup failed", "address", address, "error", err)
	}
	if snapshot != nil {
		return r.found(record, snapshot, domain.SourcePrimary)
	}

	if r.secondary == nil {
		return record
	}

	snapshot, err = r.query(ctx, r.secondary, address)
	if err != nil {
		record.Err = err.Error()
		record.TimedOut = record.TimedOut || domain.IsTimeout(err)
		r.debug("secondary lookup failed", "address", address, "error", err)
		return record
	}
	if snapshot != nil {
		return r.found(record, snapshot, domain.SourceSecondary)
	}

	return record
}

func (r *Resolver) query(ctx context.Context, source ports.CaptureSource, address string) (*domain.Snapshot, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return source.Latest(callCtx, address)
}

func (r *Resolver) found(record domain.ArchiveRecord, snapshot *domain.Snapshot, source domain.Source) domain.ArchiveRecord {
	record.Archived = true
	record.SnapshotURL = snapshot.URL
	record.Timestamp = snapshot.Timestamp
	record.FormattedDate = domain.FormatTimestamp(snapshot.Timestamp)
	record.Source = source
	record.Err = ""
	record.TimedOut = false
	return record
}

func (r *Resolver) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
