// Package session owns the state of one review session: the configured
// ontology and criteria, the currently loaded recording generation, the
// reviewer's manual overrides, and the derived category catalog. All
// mutation goes through it, and every observable change is announced on the
// change bus.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AllenInstitute/sweep-qc-tool/internal/autoqc"
	"github.com/AllenInstitute/sweep-qc-tool/internal/bus"
	"github.com/AllenInstitute/sweep-qc-tool/internal/dataset"
	"github.com/AllenInstitute/sweep-qc-tool/internal/export"
	"github.com/AllenInstitute/sweep-qc-tool/internal/qc"
	"github.com/AllenInstitute/sweep-qc-tool/internal/stimulus"
)

var (
	// ErrNotConfigured means a recording load was attempted before both the
	// stimulus ontology and the QC criteria were set.
	ErrNotConfigured = errors.New("session: ontology and criteria must be set before loading a recording")

	// ErrLoadInFlight rejects a load while another one is still running.
	ErrLoadInFlight = errors.New("session: a recording load is already in progress")

	// ErrNoDataset means the operation needs a committed recording.
	ErrNoDataset = errors.New("session: no recording is loaded")
)

// Generation is one committed recording load: the dataset plus everything
// derived from it. A generation is immutable except through its override
// store; a new load replaces the whole generation atomically.
type Generation struct {
	ID          uuid.UUID
	Dataset     dataset.Dataset
	Overrides   *qc.OverrideStore
	Catalog     *qc.Catalog
	Cell        autoqc.CellFeatures
	CellState   autoqc.CellState
	CommittedAt time.Time
}

// Commit is the payload published on bus.DatasetCommitted.
type Commit struct {
	GenerationID  uuid.UUID
	RecordingPath string
	SweepCount    int
}

// ManualStateChange is the payload published on bus.ManualStateChanged.
type ManualStateChange struct {
	SweepNumber int
	State       qc.ManualState
	Record      qc.SweepRecord
	AutoState   qc.SweepAutoState
}

// Session is the PreFx coordinator. Safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	bus       *bus.Bus
	evaluator autoqc.Evaluator
	scope     export.Scope

	ontology     *stimulus.Ontology
	ontologyPath string
	criteria     *autoqc.Criteria
	criteriaPath string

	loading bool
	gen     *Generation
}

// New creates an unconfigured session.
func New(b *bus.Bus, evaluator autoqc.Evaluator) *Session {
	return &Session{bus: b, evaluator: evaluator, scope: export.ScopeAll}
}

// SetExportScope selects which sweeps the export file covers.
func (s *Session) SetExportScope(scope export.Scope) {
	s.mu.Lock()
	s.scope = scope
	s.mu.Unlock()
}

// SetOntology installs a stimulus ontology. path may be empty when the
// ontology is the embedded default.
func (s *Session) SetOntology(ont *stimulus.Ontology, path string) error {
	if ont == nil {
		return errors.New("session: ontology must not be nil")
	}
	s.mu.Lock()
	s.ontology = ont
	s.ontologyPath = path
	s.mu.Unlock()
	s.bus.Publish(bus.OntologySet, ont)
	return nil
}

// ClearOntology removes the ontology, disabling recording loads.
func (s *Session) ClearOntology() {
	s.mu.Lock()
	s.ontology = nil
	s.ontologyPath = ""
	s.mu.Unlock()
	s.bus.Publish(bus.OntologyUnset, nil)
}

// SetCriteria installs a QC criteria document. path may be empty when the
// criteria are the embedded defaults.
func (s *Session) SetCriteria(crit autoqc.Criteria, path string) {
	s.mu.Lock()
	s.criteria = &crit
	s.criteriaPath = path
	s.mu.Unlock()
	s.bus.Publish(bus.CriteriaSet, crit)
}

// ClearCriteria removes the criteria, disabling recording loads.
func (s *Session) ClearCriteria() {
	s.mu.Lock()
	s.criteria = nil
	s.criteriaPath = ""
	s.mu.Unlock()
	s.bus.Publish(bus.CriteriaUnset, nil)
}

// CanLoad reports whether LoadRecording would be accepted right now.
func (s *Session) CanLoad() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ontology != nil && s.criteria != nil && !s.loading
}

// HasOntology reports whether a stimulus ontology is configured.
func (s *Session) HasOntology() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ontology != nil
}

// HasCriteria reports whether a QC criteria document is configured.
func (s *Session) HasCriteria() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria != nil
}

// HasDataset reports whether a recording generation is committed.
func (s *Session) HasDataset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != nil
}

// Generation returns the current generation, or nil before the first
// successful load. Callers must treat it as read-only apart from the
// override store.
func (s *Session) Generation() *Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// SetManualState applies a reviewer verdict to one sweep and announces the
// change. Unrecognized states and out-of-range sweeps return an error and
// change nothing.
func (s *Session) SetManualState(sweep int, state qc.ManualState) (qc.SweepRecord, qc.SweepAutoState, error) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	if gen == nil {
		return qc.SweepRecord{}, qc.SweepAutoState{}, ErrNoDataset
	}

	rec, st, err := gen.Overrides.Set(sweep, state)
	if err != nil {
		return qc.SweepRecord{}, qc.SweepAutoState{}, err
	}
	s.bus.Publish(bus.ManualStateChanged, ManualStateChange{
		SweepNumber: sweep,
		State:       state,
		Record:      rec,
		AutoState:   st,
	})
	return rec, st, nil
}

// Row is one line of the review table.
type Row struct {
	SweepNumber  int            `json:"sweep_number"`
	StimulusCode string         `json:"stimulus_code"`
	StimulusName string         `json:"stimulus_name"`
	AutoQCState  string         `json:"auto_qc_state"`
	ManualState  qc.ManualState `json:"manual_qc_state"`
	FailTags     string         `json:"fail_tags"`
	Categories   []qc.Category  `json:"categories"`
}

// Auto QC display values.
const (
	AutoPassed = "passed"
	AutoFailed = "failed"
	AutoNotRun = "no auto qc"
)

// Rows builds table rows for the given sweep numbers, or for every sweep
// when none are given.
func (s *Session) Rows(sweeps ...int) ([]Row, error) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	if gen == nil {
		return nil, ErrNoDataset
	}

	if sweeps == nil {
		sweeps = make([]int, gen.Overrides.Len())
		for i := range sweeps {
			sweeps[i] = i
		}
	}

	// One snapshot for the whole table, so an override landing mid-build
	// cannot produce a row mixing old and new values.
	records, states, manual := gen.Overrides.Snapshot()

	rows := make([]Row, 0, len(sweeps))
	for _, n := range sweeps {
		if n < 0 || n >= len(records) {
			return nil, fmt.Errorf("session: sweep %d out of range", n)
		}
		rec := records[n]
		st := states[n]
		rows = append(rows, Row{
			SweepNumber:  n,
			StimulusCode: rec.StimulusCode,
			StimulusName: rec.StimulusName,
			AutoQCState:  autoDisplay(rec, st),
			ManualState:  manual[n],
			FailTags:     joinFailTags(rec.Tags, st.Reasons),
			Categories:   gen.Catalog.Categories(n),
		})
	}
	return rows, nil
}

// autoDisplay renders the tri-state auto verdict. A sweep reads as passed
// only when both the extraction record and the evaluation state agree; a
// nil evaluation verdict means automatic QC never ran for it.
func autoDisplay(rec qc.SweepRecord, st qc.SweepAutoState) string {
	if st.Passed == nil {
		return AutoNotRun
	}
	if *st.Passed && rec.Passed != nil && *rec.Passed {
		return AutoPassed
	}
	return AutoFailed
}

func joinFailTags(tags, reasons []string) string {
	parts := make([]string, 0, len(tags)+len(reasons))
	parts = append(parts, tags...)
	parts = append(parts, reasons...)
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n\n"
		}
		out += p
	}
	return out
}

// ExportPayload assembles the pipeline input document from the current
// generation and configuration.
func (s *Session) ExportPayload() (export.Payload, error) {
	s.mu.Lock()
	gen := s.gen
	crit := s.criteria
	ontologyPath := s.ontologyPath
	scope := s.scope
	s.mu.Unlock()

	if gen == nil {
		return export.Payload{}, ErrNoDataset
	}
	if crit == nil {
		return export.Payload{}, ErrNotConfigured
	}

	_, states, manualStates := gen.Overrides.Snapshot()
	manual := make(map[int]qc.ManualState, len(manualStates))
	for n, m := range manualStates {
		manual[n] = m
	}
	nwb := gen.Dataset.SourceNWB()
	if nwb == "" {
		nwb = gen.Dataset.Path()
	}
	p := export.Payload{
		InputNWBFile:      nwb,
		QCCriteria:        crit.Raw,
		ManualSweepStates: export.BuildManualStates(manual, states, scope),
		IpfxVersion:       s.evaluator.Version(),
	}
	if ontologyPath != "" {
		p.StimulusOntologyFile = &ontologyPath
	}
	return p, nil
}

// Export writes the pipeline input file to path.
func (s *Session) Export(path string) error {
	p, err := s.ExportPayload()
	if err != nil {
		return err
	}
	return export.Write(path, p)
}

// Close releases the current generation's dataset.
func (s *Session) Close() error {
	s.mu.Lock()
	gen := s.gen
	s.gen = nil
	s.mu.Unlock()
	if gen == nil {
		return nil
	}
	return gen.Dataset.Close()
}
