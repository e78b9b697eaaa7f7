package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllenInstitute/sweep-qc-tool/internal/dataset"
	"github.com/AllenInstitute/sweep-qc-tool/internal/qc"
	"github.com/AllenInstitute/sweep-qc-tool/internal/testutil"
)

func fixtureSweeps() []testutil.FixtureSweep {
	return []testutil.FixtureSweep{
		{
			Raw: qc.RawSweep{SweepNumber: 0, StimulusCode: "EXTPSMOKET180424", StimulusName: "Test", ClampMode: qc.VoltageClamp},
			Trace: &dataset.Trace{
				SweepNumber:  0,
				SamplingRate: 200,
				Stimulus:     []float64{0, 10, 10, 0},
				Response:     []float64{-70, -60, -60, -70},
			},
		},
		{
			Raw: qc.RawSweep{SweepNumber: 1, StimulusCode: "C1LSCOARSE150216", StimulusName: "Long Square", ClampMode: qc.CurrentClamp},
			Trace: &dataset.Trace{
				SweepNumber:  1,
				SamplingRate: 200,
				Stimulus:     []float64{0, 0, 50, 0},
				Response:     []float64{-70.5, -70.4, -55, -70.2},
			},
		},
	}
}

func TestOpenSQLite(t *testing.T) {
	t.Parallel()

	path := testutil.WriteRecording(t, t.TempDir(), "/data/specimen.nwb", fixtureSweeps())
	ds, err := dataset.OpenSQLite(path)
	require.NoError(t, err)
	defer ds.Close()

	assert.Equal(t, path, ds.Path())
	assert.Equal(t, "/data/specimen.nwb", ds.SourceNWB())

	table := ds.SweepTable()
	require.Len(t, table, 2)
	assert.Equal(t, "EXTPSMOKET180424", table[0].StimulusCode)
	assert.Equal(t, qc.VoltageClamp, table[0].ClampMode)
	assert.Equal(t, "Long Square", table[1].StimulusName)
}

func TestSQLiteSweepRoundTrip(t *testing.T) {
	t.Parallel()

	path := testutil.WriteRecording(t, t.TempDir(), "", fixtureSweeps())
	ds, err := dataset.OpenSQLite(path)
	require.NoError(t, err)
	defer ds.Close()

	trace, err := ds.Sweep(1)
	require.NoError(t, err)
	assert.Equal(t, 200.0, trace.SamplingRate)
	assert.Equal(t, []float64{0, 0, 50, 0}, trace.Stimulus)
	assert.Equal(t, []float64{-70.5, -70.4, -55, -70.2}, trace.Response)

	_, err = ds.Sweep(5)
	assert.Error(t, err)
}

func TestOpenSQLiteRejectsSparseSweepNumbers(t *testing.T) {
	t.Parallel()

	sweeps := fixtureSweeps()
	sweeps[1].Raw.SweepNumber = 7
	sweeps[1].Trace.SweepNumber = 7
	path := testutil.WriteRecording(t, t.TempDir(), "", sweeps)

	_, err := dataset.OpenSQLite(path)
	assert.Error(t, err)
}

func TestOpenSQLiteRejectsUnknownClampMode(t *testing.T) {
	t.Parallel()

	sweeps := fixtureSweeps()
	sweeps[0].Raw.ClampMode = "SidewaysClamp"
	path := testutil.WriteRecording(t, t.TempDir(), "", sweeps)

	_, err := dataset.OpenSQLite(path)
	assert.Error(t, err)
}

func TestTraceHelpers(t *testing.T) {
	t.Parallel()

	trace := &dataset.Trace{SamplingRate: 4, Response: []float64{1, 2, 3, 4}}
	assert.Equal(t, 1.0, trace.Duration())
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75}, trace.Times())

	blob := dataset.EncodeSamples([]float64{-70.5, 0, 12.25})
	assert.Equal(t, []float64{-70.5, 0, 12.25}, dataset.DecodeSamples(blob))
}

func TestMemoryDataset(t *testing.T) {
	t.Parallel()

	m := dataset.Synthetic("dev.fixture", 10)
	table := m.SweepTable()
	require.Len(t, table, 10)

	trace, err := m.Sweep(3)
	require.NoError(t, err)
	assert.NotEmpty(t, trace.Response)

	_, err = m.Sweep(99)
	assert.Error(t, err)
}
