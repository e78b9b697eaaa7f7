package dataset

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/AllenInstitute/sweep-qc-tool/internal/qc"
)

// SQLite reads a converted recording database. The sweep table is read once
// at open; traces are loaded on demand.
type SQLite struct {
	path      string
	db        *sql.DB
	sourceNWB string
	table     []qc.RawSweep
}

// OpenSQLite opens a converted recording and validates its sweep table.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording %s: %w", path, err)
	}

	d := &SQLite{path: path, db: db}
	if err := d.loadSweepTable(); err != nil {
		db.Close()
		return nil, err
	}
	d.sourceNWB = d.metaValue("source_nwb")
	return d, nil
}

func (d *SQLite) loadSweepTable() error {
	rows, err := d.db.Query(`
		SELECT sweep_number, stimulus_code, stimulus_name, clamp_mode
		FROM sweeps ORDER BY sweep_number`)
	if err != nil {
		return fmt.Errorf("failed to read sweep table from %s: %w", d.path, err)
	}
	defer rows.Close()

	var table []qc.RawSweep
	for rows.Next() {
		var raw qc.RawSweep
		var name sql.NullString
		var mode string
		if err := rows.Scan(&raw.SweepNumber, &raw.StimulusCode, &name, &mode); err != nil {
			return fmt.Errorf("failed to scan sweep row: %w", err)
		}
		raw.StimulusName = name.String
		clamp, ok := ParseClampMode(mode)
		if !ok {
			return fmt.Errorf("sweep %d has unknown clamp mode %q", raw.SweepNumber, mode)
		}
		raw.ClampMode = clamp

		// The converter writes sweeps densely numbered from zero; anything
		// else means the recording file is corrupt.
		if raw.SweepNumber != len(table) {
			return fmt.Errorf("recording %s: expected sweep %d, found %d", d.path, len(table), raw.SweepNumber)
		}
		table = append(table, raw)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read sweep table from %s: %w", d.path, err)
	}

	d.table = table
	return nil
}

func (d *SQLite) metaValue(key string) string {
	var value string
	err := d.db.QueryRow(`SELECT value FROM recording_meta WHERE key = ?`, key).Scan(&value)
	if err != nil {
		// recording_meta is optional; older converter output omits it.
		return ""
	}
	return value
}

// Path returns the recording file path.
func (d *SQLite) Path() string { return d.path }

// SourceNWB returns the acquisition file path recorded by the converter.
func (d *SQLite) SourceNWB() string { return d.sourceNWB }

// DB exposes the underlying handle for the debug SQL console.
func (d *SQLite) DB() *sql.DB { return d.db }

// SweepTable returns a copy of the recording's sweep table.
func (d *SQLite) SweepTable() []qc.RawSweep {
	return append([]qc.RawSweep(nil), d.table...)
}

// Sweep loads the raw trace for one sweep.
func (d *SQLite) Sweep(n int) (*Trace, error) {
	var rate float64
	var stimBlob, respBlob []byte
	err := d.db.QueryRow(`
		SELECT sampling_rate, stimulus, response
		FROM sweeps WHERE sweep_number = ?`, n).Scan(&rate, &stimBlob, &respBlob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sweep %d not present in %s", n, d.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sweep %d: %w", n, err)
	}

	return &Trace{
		SweepNumber:  n,
		SamplingRate: rate,
		Stimulus:     DecodeSamples(stimBlob),
		Response:     DecodeSamples(respBlob),
	}, nil
}

// Close releases the database handle.
func (d *SQLite) Close() error { return d.db.Close() }
