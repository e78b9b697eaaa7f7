package qc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawTable(codes ...string) []RawSweep {
	out := make([]RawSweep, len(codes))
	for i, code := range codes {
		out[i] = RawSweep{
			SweepNumber:  i,
			StimulusCode: code,
			StimulusName: "stim " + code,
			ClampMode:    CurrentClamp,
		}
	}
	return out
}

// The reference recording: six recorded sweeps, four of which reached
// extraction (sweep 3 terminated early), three of which were evaluated
// (sweep 5 failing).
func referenceInputs() ([]RawSweep, []SweepRecord, []EvaluatedSweep) {
	all := rawTable("foo", "fooSearch", "bar", "foobar", "fooSearch", "fooRamp")

	extracted := []SweepRecord{
		{SweepNumber: 0, StimulusCode: "foo", Tags: []string{}},
		{SweepNumber: 2, StimulusCode: "bar", Tags: []string{}},
		{SweepNumber: 3, StimulusCode: "foobar", Tags: []string{"early termination"}},
		{SweepNumber: 5, StimulusCode: "fooRamp", Tags: []string{}},
	}

	evaluated := []EvaluatedSweep{
		{
			Record: SweepRecord{SweepNumber: 0, StimulusCode: "foo", Tags: []string{}, Passed: boolPtr(true)},
			State:  SweepAutoState{SweepNumber: 0, Passed: boolPtr(true), Reasons: []string{}},
		},
		{
			Record: SweepRecord{SweepNumber: 2, StimulusCode: "bar", Tags: []string{}, Passed: boolPtr(true)},
			State:  SweepAutoState{SweepNumber: 2, Passed: boolPtr(true), Reasons: []string{}},
		},
		{
			Record: SweepRecord{SweepNumber: 5, StimulusCode: "fooRamp", Tags: []string{}, Passed: boolPtr(false)},
			State:  SweepAutoState{SweepNumber: 5, Passed: boolPtr(false), Reasons: []string{"baseline failure"}},
		},
	}

	return all, extracted, evaluated
}

func TestReconcileReferenceRecording(t *testing.T) {
	t.Parallel()

	all, extracted, evaluated := referenceInputs()
	records, states, err := Reconcile(all, extracted, evaluated)
	require.NoError(t, err)
	require.Len(t, records, 6)
	require.Len(t, states, 6)

	for i := range records {
		assert.Equal(t, i, records[i].SweepNumber, "record index must equal sweep number")
		assert.Equal(t, i, states[i].SweepNumber, "state index must equal sweep number")
	}

	t.Run("evaluated sweeps are copied verbatim", func(t *testing.T) {
		require.NotNil(t, records[0].Passed)
		assert.True(t, *records[0].Passed)
		require.NotNil(t, states[0].Passed)
		assert.True(t, *states[0].Passed)

		require.NotNil(t, records[2].Passed)
		assert.True(t, *records[2].Passed)

		require.NotNil(t, records[5].Passed)
		assert.False(t, *records[5].Passed)
		require.NotNil(t, states[5].Passed)
		assert.False(t, *states[5].Passed)
		assert.Equal(t, []string{"baseline failure"}, states[5].Reasons)
	})

	t.Run("extracted-only sweep keeps nil record verdict and failed state", func(t *testing.T) {
		assert.Nil(t, records[3].Passed)
		require.NotNil(t, states[3].Passed)
		assert.False(t, *states[3].Passed)
		assert.Equal(t, []string{"early termination"}, records[3].Tags)
		assert.Empty(t, states[3].Reasons)
	})

	t.Run("raw-only sweeps get the no-auto-QC marker", func(t *testing.T) {
		for _, n := range []int{1, 4} {
			assert.Nil(t, records[n].Passed, "sweep %d", n)
			assert.Nil(t, states[n].Passed, "sweep %d", n)
			assert.Equal(t, []string{NoAutoQCReason}, states[n].Reasons, "sweep %d", n)
			assert.Equal(t, []string{}, records[n].Tags, "sweep %d", n)
			assert.Equal(t, all[n].StimulusCode, records[n].StimulusCode, "sweep %d", n)
			assert.Equal(t, all[n].StimulusName, records[n].StimulusName, "sweep %d", n)
			assert.Equal(t, all[n].ClampMode, records[n].ClampMode, "sweep %d", n)
		}
	})
}

func TestReconcileIndexCompleteness(t *testing.T) {
	t.Parallel()

	// Every way of partitioning five sweeps across the three sources must
	// produce dense tables with one entry per sweep number.
	const n = 5
	all := rawTable("a", "b", "c", "d", "e")

	// source assignment per sweep: 0 = raw only, 1 = extracted only, 2 = evaluated
	total := 1
	for i := 0; i < n; i++ {
		total *= 3
	}
	for combo := 0; combo < total; combo++ {
		var extracted []SweepRecord
		var evaluated []EvaluatedSweep
		c := combo
		for sweep := 0; sweep < n; sweep++ {
			switch c % 3 {
			case 1:
				extracted = append(extracted, SweepRecord{SweepNumber: sweep, Tags: []string{}})
			case 2:
				extracted = append(extracted, SweepRecord{SweepNumber: sweep, Tags: []string{}})
				evaluated = append(evaluated, EvaluatedSweep{
					Record: SweepRecord{SweepNumber: sweep, Tags: []string{}, Passed: boolPtr(true)},
					State:  SweepAutoState{SweepNumber: sweep, Passed: boolPtr(true), Reasons: []string{}},
				})
			}
			c /= 3
		}

		records, states, err := Reconcile(all, extracted, evaluated)
		require.NoError(t, err, "combo %d", combo)
		require.Len(t, records, n, "combo %d", combo)
		require.Len(t, states, n, "combo %d", combo)
		for i := 0; i < n; i++ {
			require.Equal(t, i, records[i].SweepNumber, "combo %d", combo)
			require.Equal(t, i, states[i].SweepNumber, "combo %d", combo)
		}
	}
}

func TestReconcileProvenanceAsymmetry(t *testing.T) {
	t.Parallel()

	all := rawTable("a", "b")
	extracted := []SweepRecord{{SweepNumber: 1, StimulusCode: "b", Tags: []string{"early termination"}}}

	records, states, err := Reconcile(all, extracted, nil)
	require.NoError(t, err)

	assert.Nil(t, records[1].Passed, "extracted-only record must stay unevaluated")
	require.NotNil(t, states[1].Passed)
	assert.False(t, *states[1].Passed, "extracted-only state must be failed")
}

func TestReconcileInputsAreCopied(t *testing.T) {
	t.Parallel()

	all := rawTable("a")
	evaluated := []EvaluatedSweep{{
		Record: SweepRecord{SweepNumber: 0, Tags: []string{"x"}, Passed: boolPtr(true)},
		State:  SweepAutoState{SweepNumber: 0, Passed: boolPtr(true), Reasons: []string{"r"}},
	}}

	records, states, err := Reconcile(all, nil, evaluated)
	require.NoError(t, err)

	evaluated[0].Record.Tags[0] = "mutated"
	evaluated[0].State.Reasons[0] = "mutated"
	*evaluated[0].Record.Passed = false

	assert.Equal(t, []string{"x"}, records[0].Tags)
	assert.Equal(t, []string{"r"}, states[0].Reasons)
	assert.True(t, *records[0].Passed)
}

func TestReconcileMalformedInputs(t *testing.T) {
	t.Parallel()

	all := rawTable("a", "b", "c")
	okState := func(n int) SweepAutoState {
		return SweepAutoState{SweepNumber: n, Passed: boolPtr(true), Reasons: []string{}}
	}

	cases := []struct {
		name      string
		all       []RawSweep
		extracted []SweepRecord
		evaluated []EvaluatedSweep
	}{
		{
			name: "duplicate evaluated sweep",
			all:  all,
			evaluated: []EvaluatedSweep{
				{Record: SweepRecord{SweepNumber: 1, Passed: boolPtr(true)}, State: okState(1)},
				{Record: SweepRecord{SweepNumber: 1, Passed: boolPtr(false)}, State: okState(1)},
			},
		},
		{
			name: "duplicate extracted sweep",
			all:  all,
			extracted: []SweepRecord{
				{SweepNumber: 2}, {SweepNumber: 2},
			},
		},
		{
			name:      "evaluated sweep outside the table",
			all:       all,
			evaluated: []EvaluatedSweep{{Record: SweepRecord{SweepNumber: 7, Passed: boolPtr(true)}, State: okState(7)}},
		},
		{
			name:      "extracted sweep outside the table",
			all:       all,
			extracted: []SweepRecord{{SweepNumber: -1}},
		},
		{
			name: "record and state disagree on sweep number",
			all:  all,
			evaluated: []EvaluatedSweep{
				{Record: SweepRecord{SweepNumber: 1, Passed: boolPtr(true)}, State: okState(2)},
			},
		},
		{
			name: "non-dense sweep table",
			all:  []RawSweep{{SweepNumber: 0}, {SweepNumber: 2}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Reconcile(tc.all, tc.extracted, tc.evaluated)
			var malformed *MalformedInputError
			require.ErrorAs(t, err, &malformed)
		})
	}
}

func TestReconcileEmptyRecording(t *testing.T) {
	t.Parallel()

	records, states, err := Reconcile(nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, states)
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	rec := SweepRecord{
		SweepNumber: 3,
		Tags:        []string{"a"},
		Passed:      boolPtr(true),
		Features:    map[string]float64{"leak_pa": 1.5},
	}
	cp := rec.Clone()
	cp.Tags[0] = "b"
	*cp.Passed = false
	cp.Features["leak_pa"] = 9

	assert.Equal(t, "a", rec.Tags[0])
	assert.True(t, *rec.Passed)
	assert.Equal(t, 1.5, rec.Features["leak_pa"])
	assert.Empty(t, cmp.Diff(rec, rec.Clone()))
}
