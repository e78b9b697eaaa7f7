// Package api is the HTTP review surface: the sweep table with category
// filtering, manual QC updates, recording loads, export, and sweep plots.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"

	"github.com/AllenInstitute/sweep-qc-tool/internal/fx"
	"github.com/AllenInstitute/sweep-qc-tool/internal/monitoring"
	"github.com/AllenInstitute/sweep-qc-tool/internal/session"
	"github.com/AllenInstitute/sweep-qc-tool/internal/sweepplot"
	"github.com/AllenInstitute/sweep-qc-tool/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	session *session.Session
	tracker *fx.Tracker
	plotCfg sweepplot.Config

	// exportDirs restricts export destinations when non-empty.
	exportDirs []string

	// tsql is the debug SQL console, nil until AttachAdminRoutes runs.
	tsql *tailsql.Server
}

// RestrictExportsTo limits export destinations to the given directories.
// With no restriction configured, exports may be written anywhere the
// process can write.
func (s *Server) RestrictExportsTo(dirs ...string) {
	s.exportDirs = dirs
}

func NewServer(sess *session.Session, tracker *fx.Tracker, plotCfg sweepplot.Config) *Server {
	return &Server{
		session: sess,
		tracker: tracker,
		plotCfg: plotCfg,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sweeps", s.listSweeps)
	mux.HandleFunc("/api/manual_state", s.setManualState)
	mux.HandleFunc("/api/load", s.loadRecording)
	mux.HandleFunc("/api/export", s.exportPipelineInput)
	mux.HandleFunc("/api/fx/run", s.runFeatureExtraction)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/cell", s.showCell)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/sweep_plot", s.showSweepPlot)
	mux.HandleFunc("/api/sweep_thumbnail", s.showSweepThumbnail)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	status := map[string]interface{}{
		"tool_version":       version.Version,
		"ontology_set":       s.session.HasOntology(),
		"criteria_set":       s.session.HasCriteria(),
		"can_load_recording": s.session.CanLoad(),
		"dataset_loaded":     s.session.HasDataset(),
		"features_ran":       s.tracker.Ran(),
		"features_outdated":  s.tracker.Outdated(),
	}
	if gen := s.session.Generation(); gen != nil {
		status["generation_id"] = gen.ID.String()
		status["recording_path"] = gen.Dataset.Path()
		status["committed_at"] = gen.CommittedAt
		status["sweep_count"] = gen.Overrides.Len()
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write status")
		return
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	config := map[string]interface{}{
		"plot": s.plotCfg,
	}

	if err := json.NewEncoder(w).Encode(config); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}
