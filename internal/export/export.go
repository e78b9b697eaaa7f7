// Package export assembles and writes the pipeline input file produced at
// the end of a review session.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AllenInstitute/sweep-qc-tool/internal/qc"
)

// Scope selects which sweeps get a manual-state entry in the export.
type Scope string

const (
	// ScopeAll writes one entry per sweep carrying its current manual
	// state; sweeps the reviewer never touched appear as "default".
	ScopeAll Scope = "all"
	// ScopeOverridden writes entries only for sweeps the reviewer touched.
	ScopeOverridden Scope = "overridden"
)

// Sweep state values written into the export file.
const (
	StateDefault = "default"
	StatePassed  = "passed"
	StateFailed  = "failed"
)

// ManualSweepState is one entry of the manual_sweep_states array.
type ManualSweepState struct {
	SweepNumber int    `json:"sweep_number"`
	SweepState  string `json:"sweep_state"`
}

// Payload is the pipeline input document. Field names follow the downstream
// pipeline's parameter schema.
type Payload struct {
	InputNWBFile         string             `json:"input_nwb_file"`
	StimulusOntologyFile *string            `json:"stimulus_ontology_file,omitempty"`
	QCCriteria           json.RawMessage    `json:"qc_criteria"`
	ManualSweepStates    []ManualSweepState `json:"manual_sweep_states"`
	IpfxVersion          string             `json:"ipfx_version"`
}

// ValidationError reports a payload that must not be written.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("export validation failed: %s: %s", e.Field, e.Detail)
}

// BuildManualStates derives the manual_sweep_states array from the current
// review state. The entries record the reviewer's decisions only, never the
// auto QC verdicts: untouched sweeps export as "default" under ScopeAll and
// are dropped under ScopeOverridden.
func BuildManualStates(manual map[int]qc.ManualState, states []qc.SweepAutoState, scope Scope) []ManualSweepState {
	out := []ManualSweepState{}
	for _, st := range states {
		switch manual[st.SweepNumber] {
		case qc.ManualPassed:
			out = append(out, ManualSweepState{st.SweepNumber, StatePassed})
		case qc.ManualFailed:
			out = append(out, ManualSweepState{st.SweepNumber, StateFailed})
		default:
			if scope == ScopeAll {
				out = append(out, ManualSweepState{st.SweepNumber, StateDefault})
			}
		}
	}
	return out
}

// Validate checks the payload against the recognized field set.
func Validate(p Payload) error {
	if p.InputNWBFile == "" {
		return &ValidationError{Field: "input_nwb_file", Detail: "must not be empty"}
	}
	if len(p.QCCriteria) == 0 {
		return &ValidationError{Field: "qc_criteria", Detail: "must not be empty"}
	}
	if !json.Valid(p.QCCriteria) {
		return &ValidationError{Field: "qc_criteria", Detail: "not valid JSON"}
	}
	if p.IpfxVersion == "" {
		return &ValidationError{Field: "ipfx_version", Detail: "must not be empty"}
	}
	seen := make(map[int]bool, len(p.ManualSweepStates))
	for _, m := range p.ManualSweepStates {
		if m.SweepNumber < 0 {
			return &ValidationError{Field: "manual_sweep_states", Detail: fmt.Sprintf("negative sweep number %d", m.SweepNumber)}
		}
		if seen[m.SweepNumber] {
			return &ValidationError{Field: "manual_sweep_states", Detail: fmt.Sprintf("duplicate sweep number %d", m.SweepNumber)}
		}
		seen[m.SweepNumber] = true
		if m.SweepState != StateDefault && m.SweepState != StatePassed && m.SweepState != StateFailed {
			return &ValidationError{Field: "manual_sweep_states", Detail: fmt.Sprintf("unrecognized sweep state %q", m.SweepState)}
		}
	}
	return nil
}

// Write validates the payload and writes it to path atomically. A failed
// write never leaves a partial file at path.
func Write(path string, p Payload) error {
	if err := Validate(p); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode export payload: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".export-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp export file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close export file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move export file into place: %w", err)
	}
	return nil
}
