package usecase

import (
	"context"
	"fmt"
	"time"

	"WaybackArchiver/internal/domain"
)

// VerifyResult aggregates one verification run: the record when verified,
// and one human-readable log line per attempt either way.
type VerifyResult struct {
	Verified bool
	Record   *domain.ArchiveRecord
	Attempts []string
}

// Verifier re-checks archive status with bounded retries after a
// submission. Delays go through an injectable sleep so tests never wait.
type Verifier struct {
	resolver *Resolver
	sleep    func(ctx context.Context, d time.Duration)
}

// NewVerifier builds a verifier over the given resolver.
func NewVerifier(resolver *Resolver) *Verifier {
	return &Verifier{resolver: resolver, sleep: sleepCtx}
}

// Verify polls the resolver up to attempts times. Once any attempt records
// a timeout the retry delay escalates by half and stays escalated for the
// rest of this verification run.
func (v *Verifier) Verify(ctx context.Context, address string, attempts int, baseDelay time.Duration) VerifyResult {
	if attempts <= 0 {
		attempts = 5
	}

	result := VerifyResult{}
	escalated := false

	for attempt := 1; attempt <= attempts; attempt++ {
		record := v.resolver.Resolve(ctx, address)

		if record.Archived {
			result.Verified = true
			result.Record = &record
			result.Attempts = append(result.Attempts,
				fmt.Sprintf("attempt %d/%d: snapshot found (%s)", attempt, attempts, record.FormattedDate))
			return result
		}

		line := fmt.Sprintf("attempt %d/%d: not archived yet", attempt, attempts)
		if record.TimedOut {
			escalated = true
			line = fmt.Sprintf("attempt %d/%d: lookup timed out", attempt, attempts)
		} else if record.Err != "" {
			line = fmt.Sprintf("attempt %d/%d: lookup failed: %s", attempt, attempts, record.Err)
		}
		result.Attempts = append(result.Attempts, line)

		if attempt < attempts {
			v.sleep(ctx, retryDelay(baseDelay, escalated))
		}
		if ctx.Err() != nil {
			break
		}
	}

	return result
}

// retryDelay is the whole backoff policy: the base delay, raised by half
// once timeouts were observed. Escalation is sticky within one run and
// threaded explicitly rather than held on the client.
func retryDelay(base time.Duration, escalated bool) time.Duration {
	if escalated {
		return base * 3 / 2
	}
	return base
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
