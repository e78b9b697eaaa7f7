package qc

import (
	"fmt"
	"sync"

	"github.com/AllenInstitute/sweep-qc-tool/internal/monitoring"
)

const (
	manuallyPassedReason = "Manually passed"
	manuallyFailedReason = "Manually failed"
)

// UnrecognizedStateError reports a manual state value outside
// default/passed/failed. It is logged and the sweep is left untouched; it is
// never fatal to the rest of the table.
type UnrecognizedStateError struct {
	SweepNumber int
	State       ManualState
}

func (e *UnrecognizedStateError) Error() string {
	return fmt.Sprintf("unrecognized manual QC state %q for sweep %d", string(e.State), e.SweepNumber)
}

// OverrideStore layers per-sweep manual verdicts on top of one reconciled
// generation. A pristine deep copy of the reconciled tables is taken at
// construction and kept immutable for the life of the store, so reverting a
// sweep to "default" restores exactly the post-reconciliation values.
// Safe for concurrent use; readers may overlap an in-flight override.
type OverrideStore struct {
	mu      sync.RWMutex
	records []SweepRecord
	states  []SweepAutoState
	manual  []ManualState

	initialRecords []SweepRecord
	initialStates  []SweepAutoState
}

// NewOverrideStore builds a store over freshly reconciled tables. The inputs
// are deep-copied; callers may discard or reuse them afterwards.
func NewOverrideStore(records []SweepRecord, states []SweepAutoState) *OverrideStore {
	s := &OverrideStore{
		records:        cloneRecords(records),
		states:         cloneStates(states),
		manual:         make([]ManualState, len(records)),
		initialRecords: cloneRecords(records),
		initialStates:  cloneStates(states),
	}
	for i := range s.manual {
		s.manual[i] = ManualDefault
	}
	return s
}

// Len returns the number of sweeps in the generation.
func (s *OverrideStore) Len() int { return len(s.records) }

// Set applies a manual verdict to one sweep and returns the sweep's updated
// record and state.
//
// "default" restores the pristine post-reconciliation values. "passed" and
// "failed" update the state's verdict and append an explanatory reason; the
// record's verdict only follows along for sweeps that actually reached
// extraction, so an override can never fabricate extraction success.
func (s *OverrideStore) Set(sweep int, state ManualState) (SweepRecord, SweepAutoState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sweep < 0 || sweep >= len(s.records) {
		return SweepRecord{}, SweepAutoState{}, fmt.Errorf("sweep %d out of range (0..%d)", sweep, len(s.records)-1)
	}

	switch state {
	case ManualDefault:
		if s.manual[sweep] != ManualDefault {
			s.records[sweep] = s.initialRecords[sweep].Clone()
			s.states[sweep] = s.initialStates[sweep].Clone()
		}
	case ManualPassed:
		s.states[sweep].Passed = boolPtr(true)
		s.states[sweep].Reasons = append(s.states[sweep].Reasons, manuallyPassedReason)
		if s.records[sweep].Passed != nil {
			s.records[sweep].Passed = boolPtr(true)
		}
	case ManualFailed:
		s.states[sweep].Passed = boolPtr(false)
		s.states[sweep].Reasons = append(s.states[sweep].Reasons, manuallyFailedReason)
		if s.records[sweep].Passed != nil {
			s.records[sweep].Passed = boolPtr(false)
		}
	default:
		err := &UnrecognizedStateError{SweepNumber: sweep, State: state}
		monitoring.Logf("ignoring manual QC update: %v", err)
		return s.records[sweep].Clone(), s.states[sweep].Clone(), err
	}

	s.manual[sweep] = state
	return s.records[sweep].Clone(), s.states[sweep].Clone(), nil
}

// Record returns a copy of the current record for one sweep.
func (s *OverrideStore) Record(sweep int) SweepRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[sweep].Clone()
}

// State returns a copy of the current auto state for one sweep.
func (s *OverrideStore) State(sweep int) SweepAutoState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[sweep].Clone()
}

// Manual returns the manual verdict currently applied to one sweep.
func (s *OverrideStore) Manual(sweep int) ManualState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manual[sweep]
}

// Records returns deep copies of all current records, ordered by sweep
// number.
func (s *OverrideStore) Records() []SweepRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.records)
}

// States returns deep copies of all current auto states, ordered by sweep
// number.
func (s *OverrideStore) States() []SweepAutoState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneStates(s.states)
}

// ManualStates returns the manual verdict of every sweep, ordered by sweep
// number.
func (s *OverrideStore) ManualStates() []ManualState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ManualState(nil), s.manual...)
}

// Snapshot returns deep copies of the full current tables, taken under one
// lock so the three views agree with each other.
func (s *OverrideStore) Snapshot() ([]SweepRecord, []SweepAutoState, []ManualState) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.records), cloneStates(s.states), append([]ManualState(nil), s.manual...)
}

// InitialRecord returns a copy of the pristine post-reconciliation record for
// one sweep.
func (s *OverrideStore) InitialRecord(sweep int) SweepRecord {
	return s.initialRecords[sweep].Clone()
}

// InitialState returns a copy of the pristine post-reconciliation state for
// one sweep.
func (s *OverrideStore) InitialState(sweep int) SweepAutoState {
	return s.initialStates[sweep].Clone()
}

func cloneRecords(in []SweepRecord) []SweepRecord {
	out := make([]SweepRecord, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func cloneStates(in []SweepAutoState) []SweepAutoState {
	out := make([]SweepAutoState, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
