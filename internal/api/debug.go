package api

import (
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/AllenInstitute/sweep-qc-tool/internal/dataset"
	"github.com/AllenInstitute/sweep-qc-tool/internal/monitoring"
	"github.com/AllenInstitute/sweep-qc-tool/internal/session"
)

// AttachAdminRoutes mounts the debug surface: a live SQL console over the
// currently loaded recording database. The console follows recording loads;
// before the first load it has no database attached.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return err
	}
	s.tsql = tsql
	debug.Handle("tailsql/", "SQL console over the loaded recording", tsql.NewMux())

	s.pointDebugAt(s.session.Generation())
	return nil
}

// pointDebugAt repoints the SQL console at a generation's recording file.
// Generations backed by anything other than a sqlite recording are skipped.
func (s *Server) pointDebugAt(gen *session.Generation) {
	if s.tsql == nil || gen == nil {
		return
	}
	sq, ok := gen.Dataset.(*dataset.SQLite)
	if !ok {
		return
	}
	s.tsql.SetDB("sqlite://"+sq.Path(), sq.DB(), &tailsql.DBOptions{
		Label: "Recording DB",
	})
	monitoring.Logf("debug SQL console now serving %s", sq.Path())
}
