// Package qc holds the sweep QC reconciliation core: merging the partial
// outputs of automatic QC into one dense per-sweep table, layering manual
// reviewer overrides on top of it, and classifying sweeps into the named
// categories that drive filtered views.
package qc

// ClampMode identifies the recording configuration of a sweep.
type ClampMode string

const (
	CurrentClamp ClampMode = "CurrentClamp"
	VoltageClamp ClampMode = "VoltageClamp"
)

// ManualState is a reviewer's per-sweep verdict. ManualDefault defers to the
// automatic verdict.
type ManualState string

const (
	ManualDefault ManualState = "default"
	ManualPassed  ManualState = "passed"
	ManualFailed  ManualState = "failed"
)

// Known reports whether m is one of the three recognised manual states.
func (m ManualState) Known() bool {
	switch m {
	case ManualDefault, ManualPassed, ManualFailed:
		return true
	}
	return false
}

// SweepRecord describes one sweep as seen by the extraction stage of
// automatic QC. Passed is nil for sweeps that never entered the evaluation
// stage; downstream display code relies on that to tell "excluded before
// evaluation" apart from "evaluated and failed".
type SweepRecord struct {
	SweepNumber  int       `json:"sweep_number"`
	StimulusCode string    `json:"stimulus_code"`
	StimulusName string    `json:"stimulus_name"`
	ClampMode    ClampMode `json:"clamp_mode"`
	Tags         []string  `json:"tags"`
	Passed       *bool     `json:"passed"`

	// Features carries numeric QC features (bridge balance, leak current,
	// noise RMS, ...) straight through from the extractor. The core never
	// interprets them.
	Features map[string]float64 `json:"features,omitempty"`
}

// SweepAutoState is the evaluation stage's verdict for one sweep. Passed is
// nil only before reconciliation runs; after reconciliation it is false for
// sweeps dropped before evaluation and nil never appears for evaluated
// sweeps.
type SweepAutoState struct {
	SweepNumber int      `json:"sweep_number"`
	Passed      *bool    `json:"passed"`
	Reasons     []string `json:"reasons"`
}

// Clone returns a deep copy of the record.
func (r SweepRecord) Clone() SweepRecord {
	out := r
	out.Tags = append([]string(nil), r.Tags...)
	out.Passed = cloneBool(r.Passed)
	if r.Features != nil {
		out.Features = make(map[string]float64, len(r.Features))
		for k, v := range r.Features {
			out.Features[k] = v
		}
	}
	return out
}

// Clone returns a deep copy of the state.
func (s SweepAutoState) Clone() SweepAutoState {
	out := s
	out.Reasons = append([]string(nil), s.Reasons...)
	out.Passed = cloneBool(s.Passed)
	return out
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// boolPtr is a convenience for building tri-state values.
func boolPtr(v bool) *bool { return &v }
