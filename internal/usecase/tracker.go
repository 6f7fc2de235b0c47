package usecase

import (
	"math"
	"time"

	"github.com/google/uuid"

	"WaybackArchiver/internal/domain"
)

// Tracker owns the RunState of one batch: processed counts, percentage,
// and a smoothed per-address time estimate. Observers are invoked
// synchronously in registration order; the tracker is the single writer of
// its state, so progress stays monotonic by construction.
type Tracker struct {
	state       domain.RunState
	progressFns []func(domain.Progress)
	estimateFns []func(domain.Estimate)
	now         func() time.Time
	lastAt      time.Time
}

// NewTracker returns an empty tracker; Start resets it per run.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// OnProgress registers a progress observer.
func (t *Tracker) OnProgress(fn func(domain.Progress)) {
	t.progressFns = append(t.progressFns, fn)
}

// OnEstimate registers an ETA observer.
func (t *Tracker) OnEstimate(fn func(domain.Estimate)) {
	t.estimateFns = append(t.estimateFns, fn)
}

// Start resets the state for a fresh run and emits 0% immediately.
func (t *Tracker) Start(total int) {
	started := t.now()
	t.state = domain.RunState{
		RunID:     uuid.NewString(),
		Total:     total,
		Counts:    map[domain.Outcome]int{},
		StartedAt: started,
		Running:   true,
	}
	t.lastAt = started
	t.emitProgress()
}

// Record folds one terminal result into the run state and notifies
// observers. Must be called exactly once per processed address.
func (t *Tracker) Record(result domain.ProcessingResult) {
	t.state.Processed++
	t.state.Counts[result.Outcome]++

	now := t.now()
	sample := now.Sub(t.lastAt)
	t.lastAt = now

	if t.state.AvgPerItem == 0 {
		t.state.AvgPerItem = sample
	} else {
		t.state.AvgPerItem = time.Duration(float64(t.state.AvgPerItem)*0.7 + float64(sample)*0.3)
	}

	t.emitProgress()
	t.emitEstimate()
}

// Finish closes the run. Progress reflects the actual processed count; it
// reaches 100% only when every address was really processed.
func (t *Tracker) Finish(stopped bool) {
	t.state.Running = false
	t.state.Stopped = stopped
	t.state.FinishedAt = t.now()
	t.emitProgress()
}

// State returns a copy of the current run state.
func (t *Tracker) State() domain.RunState {
	state := t.state
	state.Counts = make(map[domain.Outcome]int, len(t.state.Counts))
	for outcome, count := range t.state.Counts {
		state.Counts[outcome] = count
	}
	return state
}

// RunID identifies the current run for exports and history rows.
func (t *Tracker) RunID() string {
	return t.state.RunID
}

func (t *Tracker) emitProgress() {
	progress := domain.Progress{
		Percentage: percentage(t.state.Processed, t.state.Total),
		Processed:  t.state.Processed,
		Total:      t.state.Total,
	}
	for _, fn := range t.progressFns {
		fn(progress)
	}
}

func (t *Tracker) emitEstimate() {
	remaining := t.state.Total - t.state.Processed
	estimate := domain.Estimate{
		ETA:       time.Duration(remaining) * t.state.AvgPerItem,
		Remaining: remaining,
	}
	for _, fn := range t.estimateFns {
		fn(estimate)
	}
}

func percentage(processed, total int) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(float64(processed) / float64(total) * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
