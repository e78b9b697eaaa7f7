package qc

import "fmt"

// NoAutoQCReason is recorded for sweeps that were never seen by automatic QC.
const NoAutoQCReason = "No auto QC"

// RawSweep is one row of the recording's sweep table: every recorded sweep
// appears here whether or not automatic QC ever looked at it.
type RawSweep struct {
	SweepNumber  int       `json:"sweep_number"`
	StimulusCode string    `json:"stimulus_code"`
	StimulusName string    `json:"stimulus_name"`
	ClampMode    ClampMode `json:"clamp_mode"`
}

// EvaluatedSweep pairs the extraction-stage record of a sweep with the
// evaluation-stage verdict for the same sweep.
type EvaluatedSweep struct {
	Record SweepRecord
	State  SweepAutoState
}

// MalformedInputError reports a bug in an upstream QC source: a duplicated
// sweep number, a sweep number outside the recording's sweep table, or a
// non-dense sweep table. These are surfaced loudly rather than patched over.
type MalformedInputError struct {
	Source      string
	SweepNumber int
	Detail      string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed %s input for sweep %d: %s", e.Source, e.SweepNumber, e.Detail)
}

// Reconcile merges the recording's complete sweep table with the two partial
// outputs of automatic QC into one dense pair of tables indexed directly by
// sweep number.
//
// Three passes fill the tables; later passes only fill gaps and never
// overwrite an already-filled sweep:
//
//  1. evaluated sweeps are copied in verbatim;
//  2. sweeps that were extracted but dropped before evaluation keep their
//     extracted fields with Passed forced to nil on the record and false on
//     the state;
//  3. every remaining sweep gets its stimulus identity from the sweep table,
//     no tags, and the "No auto QC" reason.
//
// Pass order is what resolves which source wins; each sweep can appear in at
// most one of the three sources, so the result is a conflict-free partition.
func Reconcile(all []RawSweep, extracted []SweepRecord, evaluated []EvaluatedSweep) ([]SweepRecord, []SweepAutoState, error) {
	n := len(all)
	for i, raw := range all {
		if raw.SweepNumber != i {
			return nil, nil, &MalformedInputError{
				Source:      "sweep table",
				SweepNumber: raw.SweepNumber,
				Detail:      fmt.Sprintf("expected sweep number %d at row %d", i, i),
			}
		}
	}

	records := make([]SweepRecord, n)
	states := make([]SweepAutoState, n)
	filled := make([]bool, n)
	for i := range states {
		states[i] = SweepAutoState{SweepNumber: i, Reasons: []string{}}
	}

	for _, ev := range evaluated {
		num := ev.Record.SweepNumber
		if num < 0 || num >= n {
			return nil, nil, &MalformedInputError{
				Source:      "evaluated",
				SweepNumber: num,
				Detail:      fmt.Sprintf("not in the recording's sweep table (0..%d)", n-1),
			}
		}
		if ev.State.SweepNumber != num {
			return nil, nil, &MalformedInputError{
				Source:      "evaluated",
				SweepNumber: num,
				Detail:      fmt.Sprintf("state labelled for sweep %d", ev.State.SweepNumber),
			}
		}
		if filled[num] {
			return nil, nil, &MalformedInputError{
				Source:      "evaluated",
				SweepNumber: num,
				Detail:      "appears more than once",
			}
		}
		records[num] = ev.Record.Clone()
		states[num] = ev.State.Clone()
		filled[num] = true
	}

	seenExtracted := make([]bool, n)
	for _, rec := range extracted {
		num := rec.SweepNumber
		if num < 0 || num >= n {
			return nil, nil, &MalformedInputError{
				Source:      "extracted",
				SweepNumber: num,
				Detail:      fmt.Sprintf("not in the recording's sweep table (0..%d)", n-1),
			}
		}
		if seenExtracted[num] {
			return nil, nil, &MalformedInputError{
				Source:      "extracted",
				SweepNumber: num,
				Detail:      "appears more than once",
			}
		}
		seenExtracted[num] = true
		if filled[num] {
			continue
		}
		r := rec.Clone()
		// Leaving the record's Passed nil here distinguishes sweeps weeded
		// out between extraction and evaluation from evaluated failures.
		r.Passed = nil
		records[num] = r
		states[num].Passed = boolPtr(false)
		filled[num] = true
	}

	for i := range records {
		if filled[i] {
			continue
		}
		records[i] = SweepRecord{
			SweepNumber:  i,
			StimulusCode: all[i].StimulusCode,
			StimulusName: all[i].StimulusName,
			ClampMode:    all[i].ClampMode,
			Tags:         []string{},
		}
		states[i].Reasons = []string{NoAutoQCReason}
	}

	return records, states, nil
}
