package dataset

import (
	"fmt"
	"math"

	"github.com/AllenInstitute/sweep-qc-tool/internal/qc"
)

// Memory is an in-memory Dataset used by tests and by dev mode, where no
// converted recording is available.
type Memory struct {
	path      string
	sourceNWB string
	sweeps    []qc.RawSweep
	traces    map[int]*Trace
}

// NewMemory builds a dataset from prepared sweeps and traces.
func NewMemory(path string, sweeps []qc.RawSweep, traces map[int]*Trace) *Memory {
	return &Memory{path: path, sweeps: sweeps, traces: traces}
}

// SetSourceNWB records the pretend acquisition file for export provenance.
func (m *Memory) SetSourceNWB(path string) { m.sourceNWB = path }

func (m *Memory) Path() string      { return m.path }
func (m *Memory) SourceNWB() string { return m.sourceNWB }

func (m *Memory) SweepTable() []qc.RawSweep {
	return append([]qc.RawSweep(nil), m.sweeps...)
}

func (m *Memory) Sweep(n int) (*Trace, error) {
	trace, ok := m.traces[n]
	if !ok {
		return nil, fmt.Errorf("sweep %d not present in %s", n, m.path)
	}
	return trace, nil
}

func (m *Memory) Close() error { return nil }

// Synthetic generates a plausible dev-mode recording: alternating test and
// long-square sweeps with noiseless baselines and a square stimulus pulse.
func Synthetic(path string, nSweeps int) *Memory {
	const rate = 50000.0
	const samples = 50000 // one second per sweep

	sweeps := make([]qc.RawSweep, nSweeps)
	traces := make(map[int]*Trace, nSweeps)
	for i := 0; i < nSweeps; i++ {
		code := "C1LSCOARSE150216"
		mode := qc.CurrentClamp
		if i%5 == 0 {
			code = "EXTPSMOKET180424"
			mode = qc.VoltageClamp
		}
		sweeps[i] = qc.RawSweep{
			SweepNumber:  i,
			StimulusCode: code,
			StimulusName: "",
			ClampMode:    mode,
		}

		stim := make([]float64, samples)
		resp := make([]float64, samples)
		for j := samples / 4; j < samples/2; j++ {
			stim[j] = 50e-12 // 50 pA
		}
		for j := range resp {
			resp[j] = -70e-3 + 5e-3*math.Sin(float64(j)/rate*2*math.Pi)
			if j >= samples/4 && j < samples/2 {
				resp[j] += 10e-3
			}
		}
		traces[i] = &Trace{SweepNumber: i, SamplingRate: rate, Stimulus: stim, Response: resp}
	}
	return NewMemory(path, sweeps, traces)
}
