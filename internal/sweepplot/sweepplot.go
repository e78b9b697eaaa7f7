// Package sweepplot renders per-sweep previews: the test-pulse epoch and the
// experiment epoch, as small SVG thumbnails or as full-resolution series for
// the interactive plot page.
package sweepplot

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/AllenInstitute/sweep-qc-tool/internal/dataset"
	"github.com/AllenInstitute/sweep-qc-tool/internal/qc"
	"github.com/AllenInstitute/sweep-qc-tool/internal/units"
)

// Config controls epoch windows and thumbnail decimation.
type Config struct {
	// TestPulseStart / TestPulseEnd bound the test-pulse window, in seconds
	// from the start of the sweep. The experiment epoch begins at
	// TestPulseEnd.
	TestPulseStart float64 `json:"test_pulse_start"`
	TestPulseEnd   float64 `json:"test_pulse_end"`

	// BaselineSamples is how many leading samples of the experiment epoch
	// feed the baseline estimate drawn across the experiment plot.
	BaselineSamples int `json:"baseline_samples"`

	// ThumbnailStep decimates the series for thumbnails; 1 keeps everything.
	ThumbnailStep int `json:"thumbnail_step"`

	// VoltageUnits and CurrentUnits select the display units for voltage
	// and current responses. A missing or kind-mismatched value falls back
	// to the clamp-mode default (mV / pA).
	VoltageUnits string `json:"voltage_units"`
	CurrentUnits string `json:"current_units"`
}

// DefaultConfig matches the windows the acquisition rigs use.
func DefaultConfig() Config {
	return Config{
		TestPulseStart:  0.04,
		TestPulseEnd:    0.1,
		BaselineSamples: 100,
		ThumbnailStep:   20,
		VoltageUnits:    units.Millivolt,
		CurrentUnits:    units.Picoamp,
	}
}

// responseUnits resolves the display unit for a sweep's response: current
// clamp records voltage, voltage clamp records current.
func (c Config) responseUnits(mode qc.ClampMode) string {
	if mode == qc.VoltageClamp {
		if units.IsCurrent(c.CurrentUnits) {
			return c.CurrentUnits
		}
	} else if units.IsVoltage(c.VoltageUnits) {
		return c.VoltageUnits
	}
	return units.ResponseUnits(mode)
}

// Data is one plottable epoch in display units.
type Data struct {
	Time     []float64
	Response []float64
	// Baseline is drawn as a reference line when non-nil.
	Baseline *float64
	// YLabel is the display-unit axis label.
	YLabel string
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

func epoch(trace *dataset.Trace, mode qc.ClampMode, cfg Config, lo, hi int) Data {
	n := len(trace.Response)
	lo = clampIndex(lo, n)
	hi = clampIndex(hi, n)
	if hi < lo {
		hi = lo
	}
	unit := cfg.responseUnits(mode)
	d := Data{
		Response: units.ConvertAll(trace.Response[lo:hi], unit),
		YLabel:   units.Label(unit),
	}
	times := trace.Times()
	d.Time = append([]float64(nil), times[lo:hi]...)
	return d
}

// TestPulse extracts the test-pulse window of a sweep.
func TestPulse(trace *dataset.Trace, mode qc.ClampMode, cfg Config) Data {
	lo := int(cfg.TestPulseStart * trace.SamplingRate)
	hi := int(cfg.TestPulseEnd * trace.SamplingRate)
	return epoch(trace, mode, cfg, lo, hi)
}

// Experiment extracts everything after the test pulse, with a baseline
// estimated from the epoch's leading samples.
func Experiment(trace *dataset.Trace, mode qc.ClampMode, cfg Config) Data {
	lo := int(cfg.TestPulseEnd * trace.SamplingRate)
	d := epoch(trace, mode, cfg, lo, len(trace.Response))
	if len(d.Response) > 0 {
		n := cfg.BaselineSamples
		if n <= 0 || n > len(d.Response) {
			n = len(d.Response)
		}
		base := stat.Mean(d.Response[:n], nil)
		d.Baseline = &base
	}
	return d
}

// Decimate returns every step-th point, for thumbnail rendering.
func Decimate(d Data, step int) Data {
	if step <= 1 {
		return d
	}
	out := Data{Baseline: d.Baseline, YLabel: d.YLabel}
	for i := 0; i < len(d.Response); i += step {
		out.Time = append(out.Time, d.Time[i])
		out.Response = append(out.Response, d.Response[i])
	}
	return out
}

// Thumbnail dimensions.
const (
	thumbWidth  = 3 * vg.Inch
	thumbHeight = 1 * vg.Inch
)

// RenderThumbnail draws a small SVG of one epoch.
func RenderThumbnail(d Data, cfg Config) ([]byte, error) {
	d = Decimate(d, cfg.ThumbnailStep)

	p := plot.New()
	p.HideX()
	p.Y.Label.Text = d.YLabel

	if len(d.Response) == 0 {
		// An empty epoch still renders, as an empty frame.
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = 0, 1
	} else {
		pts := make(plotter.XYs, len(d.Response))
		for i := range d.Response {
			pts[i] = plotter.XY{X: d.Time[i], Y: d.Response[i]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to build sweep line: %w", err)
		}
		line.Width = vg.Points(1)
		p.Add(line)
	}

	if d.Baseline != nil && len(d.Time) > 1 {
		basePts := plotter.XYs{
			{X: d.Time[0], Y: *d.Baseline},
			{X: d.Time[len(d.Time)-1], Y: *d.Baseline},
		}
		baseLine, err := plotter.NewLine(basePts)
		if err != nil {
			return nil, fmt.Errorf("failed to build baseline: %w", err)
		}
		baseLine.Width = vg.Points(1)
		baseLine.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
		baseLine.Color = color.RGBA{R: 200, A: 255}
		p.Add(baseLine)
	}

	canvas := vgsvg.New(thumbWidth, thumbHeight)
	p.Draw(draw.New(canvas))

	var buf bytes.Buffer
	if _, err := canvas.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write thumbnail svg: %w", err)
	}
	return buf.Bytes(), nil
}
