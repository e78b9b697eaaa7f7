// Package dataset provides read access to converted electrophysiology
// recordings: the per-sweep table and, on demand, the raw stimulus/response
// traces of individual sweeps.
//
// Recordings are converted upstream from their acquisition format (NWB) into
// a single-file SQLite database; this package only ever reads it.
package dataset

import (
	"encoding/binary"
	"math"

	"github.com/AllenInstitute/sweep-qc-tool/internal/qc"
)

// Trace holds the raw samples of one sweep in SI units: current in amps,
// voltage in volts. For current clamp the stimulus is current and the
// response voltage; voltage clamp is the mirror.
type Trace struct {
	SweepNumber  int
	SamplingRate float64 // Hz
	Stimulus     []float64
	Response     []float64
}

// Duration returns the sweep length in seconds.
func (t *Trace) Duration() float64 {
	if t.SamplingRate == 0 {
		return 0
	}
	return float64(len(t.Response)) / t.SamplingRate
}

// Times builds the time vector for the trace, in seconds.
func (t *Trace) Times() []float64 {
	out := make([]float64, len(t.Response))
	if t.SamplingRate == 0 {
		return out
	}
	for i := range out {
		out[i] = float64(i) / t.SamplingRate
	}
	return out
}

// Dataset is the read-only view of one recording.
type Dataset interface {
	// Path is the location of the recording file this dataset was opened
	// from.
	Path() string
	// SourceNWB is the acquisition file the recording was converted from,
	// when the converter recorded it; otherwise empty.
	SourceNWB() string
	// SweepTable lists every recorded sweep, dense in sweep number.
	SweepTable() []qc.RawSweep
	// Sweep loads the raw trace of one sweep.
	Sweep(n int) (*Trace, error)
	Close() error
}

// EncodeSamples packs samples as little-endian float64, the trace blob
// format written by the converter.
func EncodeSamples(samples []float64) []byte {
	out := make([]byte, 8*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
	}
	return out
}

// DecodeSamples unpacks a trace blob.
func DecodeSamples(blob []byte) []float64 {
	out := make([]float64, len(blob)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return out
}

// ParseClampMode validates a clamp mode stored in a recording.
func ParseClampMode(s string) (qc.ClampMode, bool) {
	switch qc.ClampMode(s) {
	case qc.CurrentClamp, qc.VoltageClamp:
		return qc.ClampMode(s), true
	}
	return "", false
}
