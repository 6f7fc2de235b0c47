package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"WaybackArchiver/internal/domain"
	"WaybackArchiver/internal/ports"
)

// RunnerDeps wires all driven adapters into the orchestration loop.
type RunnerDeps struct {
	Resolver  *Resolver
	Verifier  *Verifier
	Submitter ports.Submitter
	History   ports.HistorySource
	Tracker   *Tracker
	Logger    *slog.Logger
}

// RunnerConfig carries the timing knobs of one run.
type RunnerConfig struct {
	WebURL           string
	Pacing           time.Duration
	PropagationDelay time.Duration
	VerifyAttempts   int
	VerifyBaseDelay  time.Duration
	HistoryDepth     int
}

// Runner drives the per-address state machine over a batch, strictly in
// input order and one address at a time. The remote service is rate
// limited; there is deliberately no fan-out across addresses.
type Runner struct {
	resolver  *Resolver
	verifier  *Verifier
	submitter ports.Submitter
	history   ports.HistorySource
	tracker   *Tracker
	logger    *slog.Logger
	cfg       RunnerConfig

	stop      atomic.Bool
	statusFns []func(domain.StatusEvent)
	sleep     func(ctx context.Context, d time.Duration)
	now       func() time.Time
}

// NewRunner constructs the orchestration component.
func NewRunner(deps RunnerDeps, cfg RunnerConfig) *Runner {
	if cfg.VerifyAttempts <= 0 {
		cfg.VerifyAttempts = 5
	}
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = 5
	}
	return &Runner{
		resolver:  deps.Resolver,
		verifier:  deps.Verifier,
		submitter: deps.Submitter,
		history:   deps.History,
		tracker:   deps.Tracker,
		logger:    deps.Logger,
		cfg:       cfg,
		sleep:     sleepCtx,
		now:       time.Now,
	}
}

// OnStatus registers a per-address status observer.
func (r *Runner) OnStatus(fn func(domain.StatusEvent)) {
	r.statusFns = append(r.statusFns, fn)
}

// Stop requests a cooperative stop. The address currently being processed
// is allowed to finish; remaining addresses are skipped.
func (r *Runner) Stop() {
	r.stop.Store(true)
}

// Run processes the deduplicated addresses and returns one result per
// address actually processed, in input order. Failures inside one
// address's handling never abort the batch.
func (r *Runner) Run(ctx context.Context, addresses []string) []domain.ProcessingResult {
	r.stop.Store(false)
	r.tracker.Start(len(addresses))

	results := make([]domain.ProcessingResult, 0, len(addresses))
	stopped := false

	for i, address := range addresses {
		if r.stop.Load() || ctx.Err() != nil {
			stopped = true
			break
		}

		result := r.processOne(ctx, address)
		results = append(results, result)
		r.tracker.Record(result)
		r.emitStatus(result)

		if i < len(addresses)-1 && !r.stop.Load() && ctx.Err() == nil {
			r.sleep(ctx, r.cfg.Pacing)
		}
	}

	r.tracker.Finish(stopped)
	return results
}

// processOne walks a single address through the state machine. Any panic
// is downgraded to that address's Error outcome.
func (r *Runner) processOne(ctx context.Context, address string) (result domain.ProcessingResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.warn("recovered from panic", "address", address, "panic", rec)
			result = r.terminal(address, domain.OutcomeError, nil,
				fmt.Sprintf("internal error: %v", rec),
				"manual check: "+domain.ManualCheckURL(r.cfg.WebURL, address))
		}
	}()

	r.debug("checking", "address", address)
	record := r.resolver.Resolve(ctx, address)
	if record.Archived {
		return r.terminal(address, domain.OutcomeAlreadyArchived, &record,
			fmt.Sprintf("already archived on %s (%s)", record.FormattedDate, record.Source))
	}

	details := []string{"no existing snapshot found"}
	if record.Err != "" {
		details = []string{"status check failed: " + record.Err}
	}

	r.debug("submitting", "address", address)
	submission := r.submitter.Submit(ctx, address)
	if !submission.Accepted {
		// Submission is not safe to blindly repeat inside the same run.
		return r.terminal(address, domain.OutcomeError, nil,
			append(details,
				"submission failed: "+submission.Err,
				"retry manually: "+submission.ManualURL)...)
	}
	details = append(details, "archive request dispatched")

	// The service needs time to register the snapshot internally.
	r.sleep(ctx, r.cfg.PropagationDelay)

	r.debug("verifying", "address", address)
	verification := r.verifier.Verify(ctx, address, r.cfg.VerifyAttempts, r.cfg.VerifyBaseDelay)
	details = append(details, verification.Attempts...)
	if verification.Verified {
		return r.terminal(address, domain.OutcomeArchived, verification.Record, details...)
	}

	if record, ok := r.historyFallback(ctx, address); ok {
		details = append(details, "found via capture history ("+record.FormattedDate+")")
		return r.terminal(address, domain.OutcomeArchived, record, details...)
	}

	details = append(details,
		"verification exhausted; the snapshot may still appear later",
		"check manually: "+domain.ManualCheckURL(r.cfg.WebURL, address))
	return r.terminal(address, domain.OutcomeVerificationFailed, nil, details...)
}

// historyFallback consults the columnar index, a source independent of the
// verification loop's own lookups.
func (r *Runner) historyFallback(ctx context.Context, address string) (*domain.ArchiveRecord, bool) {
	if r.history == nil {
		return nil, false
	}

	captures, err := r.history.RecentCaptures(ctx, address, r.cfg.HistoryDepth)
	if err != nil {
		r.debug("history lookup failed", "address", address, "error", err)
		return nil, false
	}
	if len(captures) == 0 {
		return nil, false
	}

	newest := captures[0]
	return &domain.ArchiveRecord{
		Archived:      true,
		SnapshotURL:   domain.SnapshotURL(r.cfg.WebURL, newest.Timestamp, address),
		Timestamp:     newest.Timestamp,
		FormattedDate: domain.FormatTimestamp(newest.Timestamp),
		Source:        domain.SourceHistory,
		CheckURL:      domain.ManualCheckURL(r.cfg.WebURL, address),
	}, true
}

func (r *Runner) terminal(address string, outcome domain.Outcome, record *domain.ArchiveRecord, details ...string) domain.ProcessingResult {
	return domain.ProcessingResult{
		Address:    address,
		Outcome:    outcome,
		Record:     record,
		Details:    details,
		ProducedAt: r.now(),
	}
}

func (r *Runner) emitStatus(result domain.ProcessingResult) {
	event := domain.StatusEvent{
		Address: result.Address,
		Details: result.Details,
	}
	if result.Record != nil {
		event.SnapshotURL = result.Record.SnapshotURL
	}

	switch result.Outcome {
	case domain.OutcomeAlreadyArchived:
		event.Severity = domain.SeverityInfo
		event.Message = "already archived"
	case domain.OutcomeArchived:
		event.Severity = domain.SeveritySuccess
		event.Message = "archived"
	case domain.OutcomeVerificationFailed:
		event.Severity = domain.SeverityWarning
		event.Message = "could not verify archiving"
	default:
		event.Severity = domain.SeverityError
		event.Message = "failed: " + strings.Join(result.Details, "; ")
	}

	for _, fn := range r.statusFns {
		fn(event)
	}
}

func (r *Runner) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Runner) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
