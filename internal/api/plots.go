package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/AllenInstitute/sweep-qc-tool/internal/dataset"
	"github.com/AllenInstitute/sweep-qc-tool/internal/qc"
	"github.com/AllenInstitute/sweep-qc-tool/internal/session"
	"github.com/AllenInstitute/sweep-qc-tool/internal/sweepplot"
)

// sweepForPlot resolves the sweep named in the request against the current
// generation.
func (s *Server) sweepForPlot(w http.ResponseWriter, r *http.Request) (*session.Generation, qc.SweepRecord, *dataset.Trace, bool) {
	gen := s.session.Generation()
	if gen == nil {
		s.writeJSONError(w, http.StatusConflict, "No recording loaded")
		return nil, qc.SweepRecord{}, nil, false
	}

	n, err := strconv.Atoi(r.URL.Query().Get("sweep"))
	if err != nil || n < 0 || n >= gen.Overrides.Len() {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'sweep' parameter")
		return nil, qc.SweepRecord{}, nil, false
	}

	trace, err := gen.Dataset.Sweep(n)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read sweep %d: %v", n, err))
		return nil, qc.SweepRecord{}, nil, false
	}
	return gen, gen.Overrides.Record(n), trace, true
}

func epochLine(title string, d sweepplot.Data) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: d.YLabel, NameLocation: "middle", NameGap: 40}),
	)

	xs := make([]string, len(d.Time))
	ys := make([]opts.LineData, len(d.Response))
	for i := range d.Time {
		xs[i] = strconv.FormatFloat(d.Time[i], 'f', 4, 64)
		ys[i] = opts.LineData{Value: d.Response[i]}
	}
	line.SetXAxis(xs).AddSeries("response", ys)

	if d.Baseline != nil {
		base := make([]opts.LineData, len(d.Response))
		for i := range base {
			base[i] = opts.LineData{Value: *d.Baseline}
		}
		line.AddSeries("baseline", base)
	}
	return line
}

// showSweepPlot renders the full-resolution interactive plot page for one
// sweep: the test-pulse epoch and the experiment epoch.
func (s *Server) showSweepPlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	_, rec, trace, ok := s.sweepForPlot(w, r)
	if !ok {
		return
	}

	tp := sweepplot.TestPulse(trace, rec.ClampMode, s.plotCfg)
	exp := sweepplot.Experiment(trace, rec.ClampMode, s.plotCfg)

	title := fmt.Sprintf("Sweep %d — %s", rec.SweepNumber, rec.StimulusCode)
	page := components.NewPage()
	page.SetPageTitle(title)
	page.AddCharts(
		epochLine(fmt.Sprintf("%s: test pulse", title), tp),
		epochLine(fmt.Sprintf("%s: experiment", title), exp),
	)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// showSweepThumbnail renders the small SVG preview of one epoch of a sweep.
func (s *Server) showSweepThumbnail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	_, rec, trace, ok := s.sweepForPlot(w, r)
	if !ok {
		return
	}

	var d sweepplot.Data
	switch epoch := r.URL.Query().Get("epoch"); epoch {
	case "test_pulse":
		d = sweepplot.TestPulse(trace, rec.ClampMode, s.plotCfg)
	case "", "experiment":
		d = sweepplot.Experiment(trace, rec.ClampMode, s.plotCfg)
	default:
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Unknown epoch %q", epoch))
		return
	}

	svg, err := sweepplot.RenderThumbnail(d, s.plotCfg)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to render thumbnail: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(svg)
}
