package domain

import (
	"context"
	"errors"
	"net"
	"time"
)

// Snapshot is one preserved copy of an address, identified by a
// 14-digit YYYYMMDDHHMMSS timestamp.
type Snapshot struct {
	URL       string
	Timestamp string
}

// Source names the lookup that produced an archive record.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
	SourceHistory   Source = "history"
)

// ArchiveRecord is the result of one archive status check. When Archived
// is true, SnapshotURL and Timestamp are populated and FormattedDate is
// derived from the timestamp.
type ArchiveRecord struct {
	Archived      bool
	SnapshotURL   string
	Timestamp     string
	FormattedDate string
	Source        Source
	CheckURL      string
	Err           string
	TimedOut      bool
}

// SubmissionOutcome reports a save request. The remote service returns no
// body in this integration mode, so Accepted only means the request was
// dispatched without a transport error.
type SubmissionOutcome struct {
	Accepted  bool
	ManualURL string
	Err       string
	TimedOut  bool
}

// Outcome enumerates terminal states of the per-address state machine.
type Outcome string

const (
	OutcomeAlreadyArchived    Outcome = "already_archived"
	OutcomeArchived           Outcome = "archived"
	OutcomeVerificationFailed Outcome = "verification_failed"
	OutcomeError              Outcome = "error"
)

// ProcessingResult is the single terminal record produced for one unique
// address. Immutable once created.
type ProcessingResult struct {
	Address    string
	Outcome    Outcome
	Record     *ArchiveRecord
	Details    []string
	ProducedAt time.Time
}

// Duplicate records an input address excluded from processing because an
// earlier address shares its normalized key.
type Duplicate struct {
	Address     string
	DuplicateOf string
}

// Capture is one row of the columnar history index, newest first.
type Capture struct {
	Timestamp  string
	Original   string
	StatusCode string
}

// Progress is an aggregate batch snapshot pushed to observers.
type Progress struct {
	Percentage int
	Processed  int
	Total      int
}

// Estimate carries the smoothed time remaining for the batch.
type Estimate struct {
	ETA       time.Duration
	Remaining int
}

// Severity classifies status events for presentation.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// StatusEvent is a per-address status change pushed to observers.
type StatusEvent struct {
	Message     string
	Severity    Severity
	Address     string
	Details     []string
	SnapshotURL string
}

// RunState is the process-wide state of one batch. Created fresh per run,
// mutated only by the tracker, discarded when the run ends.
type RunState struct {
	RunID      string
	Total      int
	Processed  int
	Counts     map[Outcome]int
	StartedAt  time.Time
	FinishedAt time.Time
	Running    bool
	Stopped    bool
	AvgPerItem time.Duration
}

// RunRecord is the persisted summary of a completed run.
type RunRecord struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Processed  int
	Stopped    bool
}

// FormatTimestamp renders a 14-digit snapshot timestamp as
// "YYYY-MM-DD HH:MM:SS". Shorter values yield "Unknown date".
func FormatTimestamp(ts string) string {
	if len(ts) < 14 {
		return "Unknown date"
	}
	return ts[0:4] + "-" + ts[4:6] + "-" + ts[6:8] + " " + ts[8:10] + ":" + ts[10:12] + ":" + ts[12:14]
}

// ManualCheckURL builds the link an operator can open to inspect all
// captures of an address by hand.
func ManualCheckURL(webURL, address string) string {
	return webURL + "/*/" + address
}

// SnapshotURL builds the direct link to one capture.
func SnapshotURL(webURL, timestamp, address string) string {
	return webURL + "/" + timestamp + "/" + address
}

// IsTimeout reports whether err was caused by a deadline or a network
// timeout rather than a hard transport failure.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
