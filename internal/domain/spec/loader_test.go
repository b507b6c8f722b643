package spec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleSpec = `
name: point-select
tags: [read, fast]
query: "SELECT * FROM hits WHERE id = {id}"
type: loop
substitutions:
  - name: id
    values: ["1", "2"]
stop_conditions:
  iterations: 100
metrics: [min_time]
`

// TestLoadFile tests parsing and the times_to_run default.
func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "point_select.yaml", sampleSpec)

	s, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "point-select", s.Name)
	assert.Equal(t, []string{"read", "fast"}, s.Tags)
	assert.Equal(t, ExecLoop, s.Type)
	assert.Equal(t, 1, s.TimesToRun)
	assert.Equal(t, path, s.SourceFile)
	require.Len(t, s.Substitutions, 1)
	assert.Equal(t, "id", s.Substitutions[0].Name)
	assert.Equal(t, uint64(100), s.StopConditions.Iterations)
	assert.NoError(t, s.Validate(false))
}

// TestLoadQueries_Inline tests the inline query source.
func TestLoadQueries_Inline(t *testing.T) {
	queries, err := LoadQueries(&TestSpec{Query: QueryList{"SELECT 1", "SELECT 2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, queries)
}

// TestLoadQueries_TSV tests that a .tsv query file is one query per line,
// blank lines skipped.
func TestLoadQueries_TSV(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "queries.tsv", "SELECT 1\n\nSELECT 2\r\n")

	queries, err := LoadQueries(&TestSpec{QueryFile: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, queries)
}

// TestLoadQueries_WholeFile tests that a non-tsv file is a single query.
func TestLoadQueries_WholeFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "big.sql", "SELECT *\nFROM hits\n")

	queries, err := LoadQueries(&TestSpec{QueryFile: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT *\nFROM hits"}, queries)
}

// TestLoadQueries_EmptyFile tests rejection of an empty query file.
func TestLoadQueries_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.sql", "  \n")

	_, err := LoadQueries(&TestSpec{QueryFile: path})
	assert.ErrorIs(t, err, ErrMissingQuery)
}

// TestDiscoverFiles tests directory scanning with and without recursion.
func TestDiscoverFiles(t *testing.T) {
	dir := t.TempDir()
	top := writeFile(t, dir, "a.yaml", sampleSpec)
	writeFile(t, dir, "notes.txt", "not a spec")
	nested := writeFile(t, dir, "sub/b.yml", sampleSpec)

	flat, err := DiscoverFiles([]string{dir}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{top}, flat)

	deep, err := DiscoverFiles([]string{dir}, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{top, nested}, deep)
}

// TestDiscoverFiles_ExplicitFile tests that explicit files bypass scanning
// but still must carry a spec extension.
func TestDiscoverFiles_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	spec := writeFile(t, dir, "a.yaml", sampleSpec)
	other := writeFile(t, dir, "notes.txt", "not a spec")

	files, err := DiscoverFiles([]string{spec}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{spec}, files)

	_, err = DiscoverFiles([]string{other}, false)
	assert.ErrorIs(t, err, ErrNotASpecFile)
}

// TestDiscoverFiles_Empty tests that finding nothing is an error.
func TestDiscoverFiles_Empty(t *testing.T) {
	_, err := DiscoverFiles([]string{t.TempDir()}, true)
	assert.ErrorIs(t, err, ErrNoSpecFiles)
}

// TestLoadProfiles tests parsing of a profiles file.
func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "profiles.yaml", `
profiles:
  default:
    max_threads: "1"
  heavy:
    max_threads: "16"
    max_memory_usage: "30000000000"
`)

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)
	assert.Equal(t, "1", profiles["default"]["max_threads"])
	assert.Equal(t, "16", profiles["heavy"]["max_threads"])

	none, err := LoadProfiles("")
	require.NoError(t, err)
	assert.Nil(t, none)
}
