package ports

import (
	"context"

	"WaybackArchiver/internal/domain"
)

// CaptureSource answers "what is the most recent snapshot of this address".
// A nil snapshot with a nil error means the service knows of none.
type CaptureSource interface {
	Latest(ctx context.Context, address string) (*domain.Snapshot, error)
}

// HistorySource lists recent captures from the columnar index, newest first.
type HistorySource interface {
	RecentCaptures(ctx context.Context, address string, limit int) ([]domain.Capture, error)
}

// Submitter dispatches a "preserve this address" request to the remote
// service. Failures are folded into the outcome, never raised.
type Submitter interface {
	Submit(ctx context.Context, address string) domain.SubmissionOutcome
}

// ResultRepository persists finished runs for audit across invocations.
type ResultRepository interface {
	SaveRun(ctx context.Context, run domain.RunRecord, results []domain.ProcessingResult) error
	RecentRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}
