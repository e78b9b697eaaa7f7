package autoqc

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed default_criteria.json
var defaultCriteriaJSON []byte

// Criteria holds the QC gate thresholds. Fields are pointers so a criteria
// file can omit a gate entirely; a nil threshold disables that gate. The raw
// file bytes are retained for export provenance.
type Criteria struct {
	PreNoiseRMSMVMax  *float64 `json:"pre_noise_rms_mv_max"`
	PostNoiseRMSMVMax *float64 `json:"post_noise_rms_mv_max"`
	SlowNoiseRMSMVMax *float64 `json:"slow_noise_rms_mv_max"`
	VmDeltaMVMax      *float64 `json:"vm_delta_mv_max"`
	LeakPAMin         *float64 `json:"leak_pa_min"`
	LeakPAMax         *float64 `json:"leak_pa_max"`
	BlowoutMVMin      *float64 `json:"blowout_mv_min"`
	BlowoutMVMax      *float64 `json:"blowout_mv_max"`
	SealGOhmMin       *float64 `json:"seal_gohm_min"`
	Electrode0PAMax   *float64 `json:"electrode_0_pa_max"`

	Raw json.RawMessage `json:"-"`
}

const maxCriteriaFileSize = 1 << 20 // 1MB

// ParseCriteria decodes a criteria document and keeps the raw bytes.
func ParseCriteria(data []byte) (Criteria, error) {
	var c Criteria
	if err := json.Unmarshal(data, &c); err != nil {
		return Criteria{}, fmt.Errorf("failed to parse QC criteria: %w", err)
	}
	c.Raw = append(json.RawMessage(nil), data...)
	return c, nil
}

// LoadCriteria reads a QC criteria file with the same validation rules the
// ontology loader applies.
func LoadCriteria(path string) (Criteria, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Criteria{}, fmt.Errorf("criteria file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return Criteria{}, fmt.Errorf("failed to stat criteria file: %w", err)
	}
	if info.Size() > maxCriteriaFileSize {
		return Criteria{}, fmt.Errorf("criteria file too large: %d bytes (max %d)", info.Size(), maxCriteriaFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Criteria{}, fmt.Errorf("failed to read criteria file: %w", err)
	}
	return ParseCriteria(data)
}

// DefaultCriteria returns the threshold set bundled with the tool.
func DefaultCriteria() Criteria {
	c, err := ParseCriteria(defaultCriteriaJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded default criteria are invalid: %v", err))
	}
	return c
}
