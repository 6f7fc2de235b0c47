package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"WaybackArchiver/internal/domain"
)

type scriptedSource struct {
	perAddress map[string][]*domain.Snapshot
	calls      map[string]int
}

func (s *scriptedSource) Latest(ctx context.Context, address string) (*domain.Snapshot, error) {
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	i := s.calls[address]
	s.calls[address]++
	script := s.perAddress[address]
	if i < len(script) {
		return script[i], nil
	}
	return nil, nil
}

type fakeSubmitter struct {
	failFor   map[string]bool
	submitted []string
}

func (f *fakeSubmitter) Submit(ctx context.Context, address string) domain.SubmissionOutcome {
	f.submitted = append(f.submitted, address)
	outcome := domain.SubmissionOutcome{ManualURL: domain.ManualCheckURL(testWebURL, address)}
	if f.failFor[address] {
		outcome.Err = "connection reset"
		return outcome
	}
	outcome.Accepted = true
	return outcome
}

type fakeHistory struct {
	captures map[string][]domain.Capture
	err      error
}

func (f *fakeHistory) RecentCaptures(ctx context.Context, address string, limit int) ([]domain.Capture, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.captures[address], nil
}

type runnerFixture struct {
	runner    *Runner
	submitter *fakeSubmitter
	slept     []time.Duration
}

func snapshotFor(ts string) *domain.Snapshot {
	return &domain.Snapshot{URL: "https://web.archive.org/web/" + ts + "/x", Timestamp: ts}
}

func newRunnerFixture(source *scriptedSource, submitter *fakeSubmitter, history *fakeHistory) *runnerFixture {
	resolver := NewResolver(source, nil, testWebURL, time.Second, nil)
	verifier := NewVerifier(resolver)
	verifier.sleep = func(ctx context.Context, d time.Duration) {}

	runner := NewRunner(RunnerDeps{
		Resolver:  resolver,
		Verifier:  verifier,
		Submitter: submitter,
		History:   history,
		Tracker:   NewTracker(),
	}, RunnerConfig{
		WebURL:           testWebURL,
		Pacing:           time.Second,
		PropagationDelay: 6 * time.Second,
		VerifyAttempts:   3,
		VerifyBaseDelay:  time.Second,
	})

	fixture := &runnerFixture{runner: runner, submitter: submitter}
	runner.sleep = func(ctx context.Context, d time.Duration) {
		fixture.slept = append(fixture.slept, d)
	}
	return fixture
}

func TestRunAlreadyArchived(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{perAddress: map[string][]*domain.Snapshot{
		"https://example.com": {snapshotFor("20230615120000")},
	}}
	fixture := newRunnerFixture(source, &fakeSubmitter{}, &fakeHistory{})

	results := fixture.runner.Run(context.Background(), []string{"https://example.com"})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Outcome != domain.OutcomeAlreadyArchived {
		t.Fatalf("unexpected outcome: %s", results[0].Outcome)
	}
	if results[0].Record == nil || results[0].Record.Timestamp != "20230615120000" {
		t.Fatalf("expected existing snapshot carried in result: %+v", results[0].Record)
	}
	if len(fixture.submitter.submitted) != 0 {
		t.Fatal("already-archived address must not be submitted")
	}
}

func TestRunSubmitAndVerify(t *testing.T) {
	t.Parallel()

	// Not archived at check time, then found on the second verify attempt.
	source := &scriptedSource{perAddress: map[string][]*domain.Snapshot{
		"https://example.com": {nil, nil, snapshotFor("20250101000000")},
	}}
	fixture := newRunnerFixture(source, &fakeSubmitter{}, &fakeHistory{})

	results := fixture.runner.Run(context.Background(), []string{"https://example.com"})

	if results[0].Outcome != domain.OutcomeArchived {
		t.Fatalf("unexpected outcome: %s (%v)", results[0].Outcome, results[0].Details)
	}
	if results[0].Record.Source != domain.SourcePrimary {
		t.Fatalf("unexpected source: %s", results[0].Record.Source)
	}
	// One propagation delay before verification.
	if len(fixture.slept) == 0 || fixture.slept[0] != 6*time.Second {
		t.Fatalf("expected propagation delay first, got %v", fixture.slept)
	}
}

func TestRunSubmissionFailure(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{}
	submitter := &fakeSubmitter{failFor: map[string]bool{"https://example.com": true}}
	fixture := newRunnerFixture(source, submitter, &fakeHistory{})

	results := fixture.runner.Run(context.Background(), []string{"https://example.com"})

	if results[0].Outcome != domain.OutcomeError {
		t.Fatalf("unexpected outcome: %s", results[0].Outcome)
	}
	if results[0].Record != nil {
		t.Fatal("error outcome must carry no archive record")
	}
	if len(submitter.submitted) != 1 {
		t.Fatalf("submission must not be retried, got %d attempts", len(submitter.submitted))
	}
}

func TestRunHistoryFallback(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{}
	history := &fakeHistory{captures: map[string][]domain.Capture{
		"https://example.com": {{Timestamp: "20250201000000", Original: "https://example.com", StatusCode: "200"}},
	}}
	fixture := newRunnerFixture(source, &fakeSubmitter{}, history)

	results := fixture.runner.Run(context.Background(), []string{"https://example.com"})

	if results[0].Outcome != domain.OutcomeArchived {
		t.Fatalf("unexpected outcome: %s (%v)", results[0].Outcome, results[0].Details)
	}
	if results[0].Record.Source != domain.SourceHistory {
		t.Fatalf("unexpected source: %s", results[0].Record.Source)
	}
	if results[0].Record.SnapshotURL != testWebURL+"/20250201000000/https://example.com" {
		t.Fatalf("unexpected snapshot url: %s", results[0].Record.SnapshotURL)
	}
}

func TestRunVerificationFailed(t *testing.T) {
	t.Parallel()

	fixture := newRunnerFixture(&scriptedSource{}, &fakeSubmitter{}, &fakeHistory{})

	results := fixture.runner.Run(context.Background(), []string{"https://example.com"})

	if results[0].Outcome != domain.OutcomeVerificationFailed {
		t.Fatalf("unexpected outcome: %s", results[0].Outcome)
	}
	found := false
	for _, line := range results[0].Details {
		if line == "check manually: "+testWebURL+"/*/https://example.com" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected manual check link in details: %v", results[0].Details)
	}
}

func TestRunHistoryErrorStillFails(t *testing.T) {
	t.Parallel()

	history := &fakeHistory{err: errors.New("cdx unavailable")}
	fixture := newRunnerFixture(&scriptedSource{}, &fakeSubmitter{}, history)

	results := fixture.runner.Run(context.Background(), []string{"https://example.com"})

	if results[0].Outcome != domain.OutcomeVerificationFailed {
		t.Fatalf("unexpected outcome: %s", results[0].Outcome)
	}
}

func TestRunStopAfterTwo(t *testing.T) {
	t.Parallel()

	addresses := []string{
		"https://a.example.com",
		"https://b.example.com",
		"https://c.example.com",
		"https://d.example.com",
		"https://e.example.com",
	}
	source := &scriptedSource{perAddress: map[string][]*domain.Snapshot{}}
	for _, address := range addresses {
		source.perAddress[address] = []*domain.Snapshot{snapshotFor("20230101000000")}
	}
	fixture := newRunnerFixture(source, &fakeSubmitter{}, &fakeHistory{})

	var last domain.Progress
	fixture.runner.tracker.OnProgress(func(p domain.Progress) { last = p })

	processed := 0
	fixture.runner.OnStatus(func(domain.StatusEvent) {
		processed++
		if processed == 2 {
			fixture.runner.Stop()
		}
	})

	results := fixture.runner.Run(context.Background(), addresses)

	if len(results) != 2 {
		t.Fatalf("expected 2 results after stop, got %d", len(results))
	}
	if last.Processed != 2 || last.Total != 5 {
		t.Fatalf("unexpected final progress: %+v", last)
	}
	if last.Percentage == 100 {
		t.Fatal("progress must not be forced to 100% after stop")
	}

	state := fixture.runner.tracker.State()
	if !state.Stopped {
		t.Fatal("expected stopped state")
	}
}

func TestRunResultsPreserveOrder(t *testing.T) {
	t.Parallel()

	addresses := []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"}
	source := &scriptedSource{perAddress: map[string][]*domain.Snapshot{}}
	for _, address := range addresses {
		source.perAddress[address] = []*domain.Snapshot{snapshotFor("20230101000000")}
	}
	fixture := newRunnerFixture(source, &fakeSubmitter{}, &fakeHistory{})

	results := fixture.runner.Run(context.Background(), addresses)

	if len(results) != len(addresses) {
		t.Fatalf("expected %d results, got %d", len(addresses), len(results))
	}
	for i := range addresses {
		if results[i].Address != addresses[i] {
			t.Fatalf("order broken at %d: %s", i, results[i].Address)
		}
	}
}

func TestRunRecoversFromPanic(t *testing.T) {
	t.Parallel()

	fixture := newRunnerFixture(&scriptedSource{}, &fakeSubmitter{}, &fakeHistory{})
	fixture.runner.verifier = nil // forces a nil dereference inside one address

	results := fixture.runner.Run(context.Background(), []string{"https://example.com"})

	if len(results) != 1 {
		t.Fatalf("expected the address to still produce a result, got %d", len(results))
	}
	if results[0].Outcome != domain.OutcomeError {
		t.Fatalf("unexpected outcome: %s", results[0].Outcome)
	}
}
