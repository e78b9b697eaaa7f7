package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AllenInstitute/sweep-qc-tool/internal/autoqc"
	"github.com/AllenInstitute/sweep-qc-tool/internal/bus"
	"github.com/AllenInstitute/sweep-qc-tool/internal/dataset"
	"github.com/AllenInstitute/sweep-qc-tool/internal/monitoring"
	"github.com/AllenInstitute/sweep-qc-tool/internal/qc"
	"github.com/AllenInstitute/sweep-qc-tool/internal/stimulus"
)

// LoadRecording runs automatic QC over ds, reconciles the results into a
// fresh generation, and commits it. The session lock is not held during the
// QC stages, so the previous generation stays fully queryable while a load
// runs; a second concurrent load is rejected with ErrLoadInFlight.
//
// On any failure the previous generation is left untouched and no event is
// published. On success the replaced generation's dataset is closed and
// bus.DatasetCommitted fires exactly once.
func (s *Session) LoadRecording(ds dataset.Dataset) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return ErrLoadInFlight
	}
	if s.ontology == nil || s.criteria == nil {
		s.mu.Unlock()
		return ErrNotConfigured
	}
	s.loading = true
	ont := s.ontology
	crit := *s.criteria
	s.mu.Unlock()

	gen, err := s.buildGeneration(ds, ont, crit)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.mu.Unlock()
		return err
	}
	old := s.gen
	s.gen = gen
	s.mu.Unlock()

	if old != nil {
		if cerr := old.Dataset.Close(); cerr != nil {
			monitoring.Logf("warning: failed to close replaced recording %s: %v", old.Dataset.Path(), cerr)
		}
	}

	s.bus.Publish(bus.DatasetCommitted, Commit{
		GenerationID:  gen.ID,
		RecordingPath: ds.Path(),
		SweepCount:    gen.Overrides.Len(),
	})
	s.logSummary(gen)
	return nil
}

func (s *Session) buildGeneration(ds dataset.Dataset, ont *stimulus.Ontology, crit autoqc.Criteria) (*Generation, error) {
	ex, err := s.evaluator.Extract(ds)
	if err != nil {
		return nil, fmt.Errorf("feature extraction failed for %s: %w", ds.Path(), err)
	}
	ev, err := s.evaluator.Evaluate(ont, ex, crit)
	if err != nil {
		return nil, fmt.Errorf("qc evaluation failed for %s: %w", ds.Path(), err)
	}
	records, states, err := qc.Reconcile(ds.SweepTable(), ex.Sweeps, ev.Sweeps)
	if err != nil {
		return nil, fmt.Errorf("reconciliation failed for %s: %w", ds.Path(), err)
	}
	return &Generation{
		ID:          uuid.New(),
		Dataset:     ds,
		Overrides:   qc.NewOverrideStore(records, states),
		Catalog:     qc.Classify(records, states),
		Cell:        ex.Cell,
		CellState:   ev.Cell,
		CommittedAt: time.Now().UTC(),
	}, nil
}

// logSummary emits the human-readable QC digest of a committed load.
func (s *Session) logSummary(gen *Generation) {
	pass := len(gen.Catalog.Set(qc.CatAutoPass))
	fail := len(gen.Catalog.Set(qc.CatAutoFail))
	none := len(gen.Catalog.Set(qc.CatNoAutoQC))
	monitoring.Logf("recording %s committed (generation %s): %d sweeps, auto QC %d passed / %d failed / %d not run",
		gen.Dataset.Path(), gen.ID, gen.Overrides.Len(), pass, fail, none)

	for _, cat := range []qc.Category{qc.CatCoreOne, qc.CatCoreTwo, qc.CatExTP, qc.CatNucVC, qc.CatSearch, qc.CatUnknown} {
		set := gen.Catalog.Set(cat)
		if len(set) == 0 {
			continue
		}
		passed := 0
		for n := range set {
			if gen.Catalog.Set(qc.CatAutoPass)[n] {
				passed++
			}
		}
		monitoring.Logf("  %-8s %d sweeps, %d auto-passed", cat, len(set), passed)
	}

	if gen.CellState.Failed {
		monitoring.Logf("  cell QC failed: %v", gen.CellState.FailTags)
	} else {
		monitoring.Logf("  cell QC passed")
	}
}
