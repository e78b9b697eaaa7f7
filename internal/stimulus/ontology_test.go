package stimulus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	ont, err := Parse([]byte(`[
		[["code", "C1LSCOARSE"], ["code", "C1LSFINEST"], ["name", "Long Square"]],
		[["code", "EXTPSMOKET"], ["name", "Test"], ["other", "ignored"]]
	]`))
	require.NoError(t, err)
	assert.Equal(t, 2, ont.Len())

	stim, ok := ont.Find("C1LSFINEST")
	require.True(t, ok)
	assert.Equal(t, "Long Square", stim.Name())
}

func TestParseRejectsMalformed(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"not": "an array"}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`[[["code"]]]`))
	assert.Error(t, err, "tag with a single element")

	_, err = Parse([]byte(`[[["name", "No Code"]]]`))
	assert.Error(t, err, "stimulus without a code")
}

func TestFindMatchesRecordedCodesByPrefix(t *testing.T) {
	t.Parallel()

	ont := Default()

	// Rigs append dates and parameters to the bare ontology code.
	assert.Equal(t, "Long Square", ont.NameForCode("C1LSCOARSE150216"))
	assert.Equal(t, "Test", ont.NameForCode("EXTPSMOKET180424"))

	// Unknown codes resolve to themselves.
	assert.Equal(t, "ZZNOTREAL", ont.NameForCode("ZZNOTREAL"))
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "ontology.json")
	require.NoError(t, os.WriteFile(path, []byte(`[[["code","ABC"],["name","Alphabet"]]]`), 0o644))

	ont, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Alphabet", ont.NameForCode("ABC"))
}

func TestLoadRejectsBadPaths(t *testing.T) {
	t.Parallel()

	_, err := Load("ontology.yaml")
	assert.Error(t, err, "wrong extension")

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err, "missing file")
}

func TestDefaultOntology(t *testing.T) {
	t.Parallel()

	ont := Default()
	assert.Greater(t, ont.Len(), 10)
	assert.Equal(t, "Blowout", ont.NameForCode("EXTPBLWOUT"))
}
