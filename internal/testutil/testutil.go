// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/AllenInstitute/sweep-qc-tool/internal/dataset"
	"github.com/AllenInstitute/sweep-qc-tool/internal/qc"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// FixtureSweep describes one sweep of a fixture recording.
type FixtureSweep struct {
	Raw   qc.RawSweep
	Trace *dataset.Trace
}

// WriteRecording creates a converted-recording SQLite file under dir and
// returns its path. The schema matches what the NWB converter produces.
func WriteRecording(t *testing.T, dir, sourceNWB string, sweeps []FixtureSweep) string {
	t.Helper()

	path := filepath.Join(dir, "recording.db")
	db, err := sql.Open("sqlite", path)
	AssertNoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE recording_meta (
			key    TEXT PRIMARY KEY,
			value  TEXT
		);
		CREATE TABLE sweeps (
			sweep_number   INTEGER PRIMARY KEY,
			stimulus_code  TEXT NOT NULL,
			stimulus_name  TEXT,
			clamp_mode     TEXT NOT NULL,
			sampling_rate  DOUBLE NOT NULL,
			stimulus       BLOB,
			response       BLOB
		);`)
	AssertNoError(t, err)

	if sourceNWB != "" {
		_, err = db.Exec(`INSERT INTO recording_meta (key, value) VALUES ('source_nwb', ?)`, sourceNWB)
		AssertNoError(t, err)
	}

	for _, s := range sweeps {
		var rate float64
		var stim, resp []byte
		if s.Trace != nil {
			rate = s.Trace.SamplingRate
			stim = dataset.EncodeSamples(s.Trace.Stimulus)
			resp = dataset.EncodeSamples(s.Trace.Response)
		}
		_, err = db.Exec(`
			INSERT INTO sweeps (sweep_number, stimulus_code, stimulus_name, clamp_mode, sampling_rate, stimulus, response)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.Raw.SweepNumber, s.Raw.StimulusCode, s.Raw.StimulusName, string(s.Raw.ClampMode), rate, stim, resp)
		AssertNoError(t, err)
	}

	return path
}
