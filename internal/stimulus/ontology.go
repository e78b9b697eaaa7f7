// Package stimulus resolves the identity of stimuli from their codes. The
// ontology file format matches the upstream analysis library: a JSON array of
// stimuli, each stimulus an array of [tag-kind, tag-value] pairs.
package stimulus

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed default_ontology.json
var defaultOntologyJSON []byte

// maxOntologyFileSize caps ontology files at 4MB; real files are a few KB.
const maxOntologyFileSize = 4 * 1024 * 1024

// Stimulus is one ontology entry: the codes a rig writes into a recording
// and the human-readable names they resolve to.
type Stimulus struct {
	Codes []string
	Names []string
}

// Name returns the primary human-readable name of the stimulus.
func (s *Stimulus) Name() string {
	if len(s.Names) == 0 {
		return ""
	}
	return s.Names[0]
}

// Ontology maps recorded stimulus codes to stimuli.
type Ontology struct {
	stimuli []*Stimulus
	byCode  map[string]*Stimulus
}

// Parse decodes an ontology from its JSON serialization.
func Parse(data []byte) (*Ontology, error) {
	var raw [][][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode stimulus ontology: %w", err)
	}

	ont := &Ontology{byCode: make(map[string]*Stimulus)}
	for i, tags := range raw {
		stim := &Stimulus{}
		for _, tag := range tags {
			if len(tag) < 2 {
				return nil, fmt.Errorf("stimulus %d has a tag with %d elements, want at least 2", i, len(tag))
			}
			switch tag[0] {
			case "code":
				stim.Codes = append(stim.Codes, tag[1])
			case "name":
				stim.Names = append(stim.Names, tag[1])
			}
		}
		if len(stim.Codes) == 0 {
			return nil, fmt.Errorf("stimulus %d has no code tag", i)
		}
		ont.stimuli = append(ont.stimuli, stim)
		for _, code := range stim.Codes {
			ont.byCode[code] = stim
		}
	}
	return ont, nil
}

// Load reads an ontology from a JSON file. The path is validated the same
// way other JSON configuration inputs are: extension and size checked before
// reading.
func Load(path string) (*Ontology, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("ontology file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat ontology file: %w", err)
	}
	if info.Size() > maxOntologyFileSize {
		return nil, fmt.Errorf("ontology file too large: %d bytes (max %d)", info.Size(), maxOntologyFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ontology file: %w", err)
	}
	return Parse(data)
}

// Default returns the ontology bundled with the tool, used when no ontology
// file is supplied.
func Default() *Ontology {
	ont, err := Parse(defaultOntologyJSON)
	if err != nil {
		// The embedded file ships with the binary; failing to parse it is a
		// build defect, not a runtime condition.
		panic(fmt.Sprintf("embedded default ontology is invalid: %v", err))
	}
	return ont
}

// Find resolves a recorded stimulus code. Recorded codes commonly carry
// trailing rig-specific detail ("C1LSCOARSE150216"), so an exact match is
// tried first and a prefix match second.
func (o *Ontology) Find(code string) (*Stimulus, bool) {
	if stim, ok := o.byCode[code]; ok {
		return stim, true
	}
	for known, stim := range o.byCode {
		if known != "" && strings.HasPrefix(code, known) {
			return stim, true
		}
	}
	return nil, false
}

// NameForCode returns the display name for a recorded code, or the code
// itself when the ontology does not know it.
func (o *Ontology) NameForCode(code string) string {
	if stim, ok := o.Find(code); ok && stim.Name() != "" {
		return stim.Name()
	}
	return code
}

// Len returns the number of stimuli in the ontology.
func (o *Ontology) Len() int { return len(o.stimuli) }
