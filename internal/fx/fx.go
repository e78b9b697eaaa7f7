// Package fx tracks whether downstream feature extraction is current with
// respect to the review state.
package fx

import (
	"sync"

	"github.com/AllenInstitute/sweep-qc-tool/internal/bus"
	"github.com/AllenInstitute/sweep-qc-tool/internal/qc"
)

// Tracker flips to outdated whenever a new dataset commits or a reviewer
// changes a manual state, and back to fresh when extraction re-runs. It
// never initiates work itself.
type Tracker struct {
	mu       sync.Mutex
	ran      bool
	outdated bool
}

// NewTracker wires a Tracker to the change bus.
func NewTracker(b *bus.Bus) *Tracker {
	t := &Tracker{}
	b.Subscribe(bus.DatasetCommitted, func(interface{}) { t.invalidate() })
	b.Subscribe(bus.ManualStateChanged, func(interface{}) { t.invalidate() })
	return t
}

func (t *Tracker) invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ran {
		t.outdated = true
	}
}

// Outdated reports whether a past extraction run no longer reflects the
// review state. It is false before the first run.
func (t *Tracker) Outdated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outdated
}

// Ran reports whether extraction has run at least once.
func (t *Tracker) Ran() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ran
}

// MarkFresh records a completed extraction run.
func (t *Tracker) MarkFresh() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ran = true
	t.outdated = false
}

// SelectPassing returns the sweep numbers feature extraction would operate
// on: sweeps whose record currently reads as passed.
func SelectPassing(records []qc.SweepRecord) []int {
	out := []int{}
	for _, rec := range records {
		if rec.Passed != nil && *rec.Passed {
			out = append(out, rec.SweepNumber)
		}
	}
	return out
}
