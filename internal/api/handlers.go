package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/AllenInstitute/sweep-qc-tool/internal/dataset"
	"github.com/AllenInstitute/sweep-qc-tool/internal/export"
	"github.com/AllenInstitute/sweep-qc-tool/internal/fx"
	"github.com/AllenInstitute/sweep-qc-tool/internal/qc"
	"github.com/AllenInstitute/sweep-qc-tool/internal/security"
	"github.com/AllenInstitute/sweep-qc-tool/internal/session"
)

var knownCategories = map[qc.Category]bool{
	qc.CatAllSweeps: true,
	qc.CatVClamp:    true,
	qc.CatIClamp:    true,
	qc.CatPipeline:  true,
	qc.CatSearch:    true,
	qc.CatExTP:      true,
	qc.CatNucVC:     true,
	qc.CatCoreOne:   true,
	qc.CatCoreTwo:   true,
	qc.CatUnknown:   true,
	qc.CatAutoPass:  true,
	qc.CatAutoFail:  true,
	qc.CatNoAutoQC:  true,
}

// listSweeps returns the review table, filtered by the checked categories.
// With no checked parameter every sweep except search sweeps is returned;
// search sweeps are excluded under every filter.
func (s *Server) listSweeps(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	gen := s.session.Generation()
	if gen == nil {
		s.writeJSONError(w, http.StatusConflict, "No recording loaded")
		return
	}

	var checked []qc.Category
	if raw := r.URL.Query().Get("checked"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			cat := qc.Category(strings.TrimSpace(name))
			if !knownCategories[cat] {
				s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Unknown category %q", cat))
				return
			}
			checked = append(checked, cat)
		}
	}

	rows, err := s.session.Rows(gen.Catalog.Visible(checked...)...)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to build sweep table: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(rows); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write sweep table")
		return
	}
}

type manualStateRequest struct {
	SweepNumber int    `json:"sweep_number"`
	SweepState  string `json:"sweep_state"`
}

func (s *Server) setManualState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req manualStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	rec, st, err := s.session.SetManualState(req.SweepNumber, qc.ManualState(req.SweepState))
	if err != nil {
		var unrec *qc.UnrecognizedStateError
		switch {
		case errors.Is(err, session.ErrNoDataset):
			s.writeJSONError(w, http.StatusConflict, "No recording loaded")
		case errors.As(err, &unrec):
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	resp := map[string]interface{}{
		"record": rec,
		"state":  st,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write manual state")
		return
	}
}

type loadRequest struct {
	Path string `json:"path"`
}

func (s *Server) loadRecording(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Request must name a recording path")
		return
	}

	ds, err := dataset.OpenSQLite(req.Path)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Failed to open recording: %v", err))
		return
	}

	if err := s.session.LoadRecording(ds); err != nil {
		ds.Close()
		switch {
		case errors.Is(err, session.ErrNotConfigured), errors.Is(err, session.ErrLoadInFlight):
			s.writeJSONError(w, http.StatusConflict, err.Error())
		default:
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Recording load failed: %v", err))
		}
		return
	}

	gen := s.session.Generation()
	s.pointDebugAt(gen)

	resp := map[string]interface{}{
		"generation_id": gen.ID.String(),
		"sweep_count":   gen.Overrides.Len(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write load result")
		return
	}
}

type exportRequest struct {
	Path string `json:"path"`
}

func (s *Server) exportPipelineInput(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Request must name an output path")
		return
	}

	if len(s.exportDirs) > 0 {
		if err := security.ValidateExportPath(req.Path, s.exportDirs...); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := s.session.Export(req.Path); err != nil {
		var verr *export.ValidationError
		switch {
		case errors.Is(err, session.ErrNoDataset):
			s.writeJSONError(w, http.StatusConflict, "No recording loaded")
		case errors.As(err, &verr):
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Export failed: %v", err))
		}
		return
	}

	if err := json.NewEncoder(w).Encode(map[string]string{"path": req.Path}); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write export result")
		return
	}
}

// runFeatureExtraction stands in for the downstream feature-extraction run:
// it selects the currently passing sweeps and clears the stale indicator.
func (s *Server) runFeatureExtraction(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	gen := s.session.Generation()
	if gen == nil {
		s.writeJSONError(w, http.StatusConflict, "No recording loaded")
		return
	}

	passing := fx.SelectPassing(gen.Overrides.Records())
	s.tracker.MarkFresh()

	resp := map[string]interface{}{
		"sweep_numbers": passing,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write extraction result")
		return
	}
}

func (s *Server) showCell(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	gen := s.session.Generation()
	if gen == nil {
		s.writeJSONError(w, http.StatusConflict, "No recording loaded")
		return
	}

	resp := map[string]interface{}{
		"features": gen.Cell,
		"state":    gen.CellState,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write cell features")
		return
	}
}
