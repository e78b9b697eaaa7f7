package autoqc

import (
	"fmt"
	"strings"

	"github.com/AllenInstitute/sweep-qc-tool/internal/dataset"
	"github.com/AllenInstitute/sweep-qc-tool/internal/qc"
	"github.com/AllenInstitute/sweep-qc-tool/internal/stimulus"
)

// CellFeatures are the experiment-level measurements taken from the test
// pulse sweeps. A nil field means the recording had no sweep to measure it
// from.
type CellFeatures struct {
	BlowoutMV    *float64 `json:"blowout_mv"`
	Electrode0PA *float64 `json:"electrode_0_pa"`
	SealGOhm     *float64 `json:"seal_gohm"`
}

// CellState is the experiment-level QC verdict.
type CellState struct {
	Failed   bool     `json:"failed"`
	FailTags []string `json:"fail_tags"`
}

// Extraction is the output of the feature stage: cell measurements plus one
// feature-bearing record per extractable sweep.
type Extraction struct {
	Cell     CellFeatures
	CellTags []string
	Sweeps   []qc.SweepRecord
}

// Evaluation is the output of the threshold stage. Sweeps that carried
// extraction tags are dropped here, so Evaluation.Sweeps is in general a
// subset of Extraction.Sweeps.
type Evaluation struct {
	Cell   CellState
	Sweeps []qc.EvaluatedSweep
}

// Evaluator is the two-stage auto QC collaborator. Extract walks the
// recording once and computes features; Evaluate applies a criteria
// document to the extracted features.
type Evaluator interface {
	Extract(ds dataset.Dataset) (Extraction, error)
	Evaluate(ont *stimulus.Ontology, ex Extraction, crit Criteria) (Evaluation, error)
	Version() string
}

// Threshold is the built-in Evaluator. It reproduces the pipeline's gate
// set: membrane noise, membrane drift, leak current per sweep; blowout,
// bath current and seal resistance per cell.
type Threshold struct{}

func NewThreshold() *Threshold { return &Threshold{} }

// Version is the provenance string written into exports.
func (t *Threshold) Version() string { return "1.0.8" }

// Cell-feature source protocols.
const (
	blowoutPrefix    = "EXTPBLWOUT"
	inBathPrefix     = "EXTPINBATH"
	cellAttachPrefix = "EXTPCllATT"
)

// extractable reports whether a sweep gets per-sweep QC features. Search
// sweeps are operator navigation, test pulses and nucleated-patch sweeps
// have their own handling, and voltage-clamp data sweeps are out of scope
// for the membrane gates.
func extractable(raw qc.RawSweep) bool {
	if raw.ClampMode != qc.CurrentClamp {
		return false
	}
	switch qc.StimulusFamily(raw.StimulusCode) {
	case qc.CatSearch, qc.CatExTP, qc.CatNucVC:
		return false
	}
	return true
}

func (t *Threshold) Extract(ds dataset.Dataset) (Extraction, error) {
	var ex Extraction
	for _, raw := range ds.SweepTable() {
		switch {
		case strings.HasPrefix(raw.StimulusCode, blowoutPrefix):
			trace, err := ds.Sweep(raw.SweepNumber)
			if err != nil {
				return Extraction{}, fmt.Errorf("blowout sweep %d: %w", raw.SweepNumber, err)
			}
			v := blowoutMV(trace)
			ex.Cell.BlowoutMV = &v

		case strings.HasPrefix(raw.StimulusCode, inBathPrefix):
			trace, err := ds.Sweep(raw.SweepNumber)
			if err != nil {
				return Extraction{}, fmt.Errorf("in-bath sweep %d: %w", raw.SweepNumber, err)
			}
			v := electrode0PA(trace)
			ex.Cell.Electrode0PA = &v

		case strings.HasPrefix(raw.StimulusCode, cellAttachPrefix):
			trace, err := ds.Sweep(raw.SweepNumber)
			if err != nil {
				return Extraction{}, fmt.Errorf("cell-attached sweep %d: %w", raw.SweepNumber, err)
			}
			v, err := sealGOhm(trace)
			if err != nil {
				ex.CellTags = append(ex.CellTags, fmt.Sprintf("seal measurement failed: %v", err))
				continue
			}
			ex.Cell.SealGOhm = &v
		}

		if !extractable(raw) {
			continue
		}
		trace, err := ds.Sweep(raw.SweepNumber)
		if err != nil {
			return Extraction{}, fmt.Errorf("sweep %d: %w", raw.SweepNumber, err)
		}
		feats, tags := sweepFeatures(trace)
		if tags == nil {
			tags = []string{}
		}
		ex.Sweeps = append(ex.Sweeps, qc.SweepRecord{
			SweepNumber:  raw.SweepNumber,
			StimulusCode: raw.StimulusCode,
			StimulusName: raw.StimulusName,
			ClampMode:    raw.ClampMode,
			Tags:         tags,
			Features:     feats,
		})
	}
	return ex, nil
}

func (t *Threshold) Evaluate(ont *stimulus.Ontology, ex Extraction, crit Criteria) (Evaluation, error) {
	ev := Evaluation{
		Cell: evaluateCell(ex.Cell, ex.CellTags, crit),
	}
	for _, rec := range ex.Sweeps {
		// Sweeps tagged during extraction never reach the gates; the
		// reconciler reports them as weeded out.
		if len(rec.Tags) > 0 {
			continue
		}
		rec := rec.Clone()
		if rec.StimulusName == "" && ont != nil {
			rec.StimulusName = ont.NameForCode(rec.StimulusCode)
		}
		reasons := sweepReasons(rec.Features, crit)
		passed := len(reasons) == 0
		statePassed := passed
		rec.Passed = &passed
		ev.Sweeps = append(ev.Sweeps, qc.EvaluatedSweep{
			Record: rec,
			State: qc.SweepAutoState{
				SweepNumber: rec.SweepNumber,
				Passed:      &statePassed,
				Reasons:     reasons,
			},
		})
	}
	return ev, nil
}

func sweepReasons(feats map[string]float64, crit Criteria) []string {
	reasons := []string{}
	checkMax(&reasons, feats, FeatPreNoiseRMSMV, "pre noise rms", "mV", crit.PreNoiseRMSMVMax)
	checkMax(&reasons, feats, FeatPostNoiseRMSMV, "post noise rms", "mV", crit.PostNoiseRMSMVMax)
	checkMax(&reasons, feats, FeatSlowNoiseRMSMV, "slow noise rms", "mV", crit.SlowNoiseRMSMVMax)
	checkMax(&reasons, feats, FeatVmDeltaMV, "Vm delta", "mV", crit.VmDeltaMVMax)
	checkRange(&reasons, feats, FeatLeakPA, "leak current", "pA", crit.LeakPAMin, crit.LeakPAMax)
	return reasons
}

func checkMax(reasons *[]string, feats map[string]float64, key, label, unit string, max *float64) {
	if max == nil {
		return
	}
	v, ok := feats[key]
	if !ok {
		*reasons = append(*reasons, fmt.Sprintf("%s is not available", label))
		return
	}
	if v > *max {
		*reasons = append(*reasons, fmt.Sprintf("%s %.3f %s exceeded qc threshold %.3f", label, v, unit, *max))
	}
}

func checkRange(reasons *[]string, feats map[string]float64, key, label, unit string, min, max *float64) {
	if min == nil && max == nil {
		return
	}
	v, ok := feats[key]
	if !ok {
		*reasons = append(*reasons, fmt.Sprintf("%s is not available", label))
		return
	}
	if min != nil && v < *min {
		*reasons = append(*reasons, fmt.Sprintf("%s %.3f %s below qc threshold %.3f", label, v, unit, *min))
	}
	if max != nil && v > *max {
		*reasons = append(*reasons, fmt.Sprintf("%s %.3f %s exceeded qc threshold %.3f", label, v, unit, *max))
	}
}

func evaluateCell(cell CellFeatures, extractTags []string, crit Criteria) CellState {
	tags := append([]string{}, extractTags...)

	if crit.BlowoutMVMin != nil || crit.BlowoutMVMax != nil {
		if cell.BlowoutMV == nil {
			tags = append(tags, "blowout is not available")
		} else {
			v := *cell.BlowoutMV
			if crit.BlowoutMVMin != nil && v < *crit.BlowoutMVMin {
				tags = append(tags, fmt.Sprintf("blowout %.3f mV below qc threshold %.3f", v, *crit.BlowoutMVMin))
			}
			if crit.BlowoutMVMax != nil && v > *crit.BlowoutMVMax {
				tags = append(tags, fmt.Sprintf("blowout %.3f mV exceeded qc threshold %.3f", v, *crit.BlowoutMVMax))
			}
		}
	}

	if crit.Electrode0PAMax != nil {
		if cell.Electrode0PA == nil {
			tags = append(tags, "electrode 0 is not available")
		} else if v := *cell.Electrode0PA; v > *crit.Electrode0PAMax || v < -*crit.Electrode0PAMax {
			tags = append(tags, fmt.Sprintf("electrode 0 %.3f pA exceeded qc threshold %.3f", v, *crit.Electrode0PAMax))
		}
	}

	if crit.SealGOhmMin != nil {
		if cell.SealGOhm == nil {
			tags = append(tags, "seal is not available")
		} else if *cell.SealGOhm < *crit.SealGOhmMin {
			tags = append(tags, fmt.Sprintf("seal %.3f GOhm below qc threshold %.3f", *cell.SealGOhm, *crit.SealGOhmMin))
		}
	}

	return CellState{Failed: len(tags) > 0, FailTags: tags}
}
