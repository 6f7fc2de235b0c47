package usecase

import (
	"context"
	"testing"
	"time"

	"WaybackArchiver/internal/domain"
)

type timeoutSource struct {
	fakeSource
	timeoutOn map[int]bool
}

func (s *timeoutSource) Latest(ctx context.Context, address string) (*domain.Snapshot, error) {
	i := s.calls
	if s.timeoutOn[i] {
		s.calls++
		return nil, context.DeadlineExceeded
	}
	return s.fakeSource.Latest(ctx, address)
}

func newTestVerifier(primary *timeoutSource) (*Verifier, *[]time.Duration) {
	resolver := NewResolver(primary, nil, testWebURL, time.Second, nil)
	verifier := NewVerifier(resolver)

	var slept []time.Duration
	verifier.sleep = func(ctx context.Context, d time.Duration) {
		slept = append(slept, d)
	}
	return verifier, &slept
}

func TestVerifySucceedsMidway(t *testing.T) {
	t.Parallel()

	source := &timeoutSource{fakeSource: fakeSource{snapshots: []*domain.Snapshot{
		nil,
		{URL: "https://web.archive.org/web/20250101000000/x", Timestamp: "20250101000000"},
	}}}
	verifier, slept := newTestVerifier(source)

	result := verifier.Verify(context.Background(), "https://example.com", 5, 3*time.Second)

	if !result.Verified {
		t.Fatal("expected verification to succeed")
	}
	if result.Record == nil || result.Record.Timestamp != "20250101000000" {
		t.Fatalf("unexpected record: %+v", result.Record)
	}
	if len(result.Attempts) != 2 {
		t.Fatalf("expected 2 attempt lines, got %d: %v", len(result.Attempts), result.Attempts)
	}
	if len(*slept) != 1 {
		t.Fatalf("expected 1 retry delay, got %d", len(*slept))
	}
}

func TestVerifyExhaustsAttempts(t *testing.T) {
	t.Parallel()

	source := &timeoutSource{}
	verifier, slept := newTestVerifier(source)

	result := verifier.Verify(context.Background(), "https://example.com", 3, 3*time.Second)

	if result.Verified {
		t.Fatal("expected verification to fail")
	}
	if result.Record != nil {
		t.Fatalf("expected no record, got %+v", result.Record)
	}
	if len(result.Attempts) != 3 {
		t.Fatalf("expected 3 attempt lines, got %d: %v", len(result.Attempts), result.Attempts)
	}
	// No retry after the last attempt.
	if len(*slept) != 2 {
		t.Fatalf("expected 2 retry delays, got %d", len(*slept))
	}
	for _, d := range *slept {
		if d != 3*time.Second {
			t.Fatalf("expected base delay without timeouts, got %v", d)
		}
	}
}

func TestVerifyBackoffStaysEscalated(t *testing.T) {
	t.Parallel()

	source := &timeoutSource{timeoutOn: map[int]bool{1: true}}
	verifier, slept := newTestVerifier(source)

	result := verifier.Verify(context.Background(), "https://example.com", 4, 2*time.Second)

	if result.Verified {
		t.Fatal("expected verification to fail")
	}

	want := []time.Duration{2 * time.Second, 3 * time.Second, 3 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("expected %d delays, got %d: %v", len(want), len(*slept), *slept)
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Fatalf("delay %d: expected %v, got %v", i, d, (*slept)[i])
		}
	}
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	if got := retryDelay(3*time.Second, false); got != 3*time.Second {
		t.Fatalf("unexpected base delay: %v", got)
	}
	if got := retryDelay(3*time.Second, true); got != 4500*time.Millisecond {
		t.Fatalf("unexpected escalated delay: %v", got)
	}
}
