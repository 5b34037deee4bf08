package alias

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Resolve(t *testing.T) {
	tbl := Default()

	assert.Equal(t, "California", tbl.Resolve("CA"))
	assert.Equal(t, "California", tbl.Resolve("California, U.S.A."))
	assert.Equal(t, "USA", tbl.Resolve("U.S."))
	assert.Equal(t, NoLocation, tbl.Resolve("Tropical Forest"))
	assert.Equal(t, "Oregon", tbl.Resolve("Oregon"))
	assert.Equal(t, "ca", tbl.Resolve("ca"), "lookups are exact")
	assert.Equal(t, BuiltinVersion, tbl.Version())
}

func TestNilTable_PassesThrough(t *testing.T) {
	var tbl *Table
	assert.Equal(t, "CA", tbl.Resolve("CA"))
}

func TestLoad_EmptyPath(t *testing.T) {
	tbl, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Len(), tbl.Len())
}

func TestLoad_MergesOverBuiltins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: "2025-03"
aliases:
  "Bay Area": "San Francisco Bay Area"
  "CA": "California, USA"
`), 0o600))

	tbl, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "San Francisco Bay Area", tbl.Resolve("Bay Area"))
	assert.Equal(t, "California, USA", tbl.Resolve("CA"))
	assert.Equal(t, "USA", tbl.Resolve("U.S."))
	assert.Equal(t, "v1+2025-03", tbl.Version())
}

func TestLoad_MissingVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aliases:\n  a: b\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEntries_Sorted(t *testing.T) {
	tbl := New("test", map[string]string{"b": "2", "a": "1"})
	entries := tbl.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Raw)
	assert.Equal(t, "b", entries[1].Raw)
}
