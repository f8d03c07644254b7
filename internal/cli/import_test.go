package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImportFile(t *testing.T, f *fixture, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestImportYAML(t *testing.T) {
	f := newFixture(t)
	path := writeImportFile(t, f, "people.yaml", `
- name: Ada
  age: 36
- name: Linus
  age: 54
- name: Grace
  age: 85
`)

	out, err := f.run(t, "import", "person", path, "--workers", "2")
	require.NoError(t, err)
	assert.Equal(t, "Imported 3 of 3 person record(s)\n", out)

	out, err = f.run(t, "find", "person")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)
}

func TestImportReportsFailuresByIndex(t *testing.T) {
	f := newFixture(t)
	path := writeImportFile(t, f, "people.json", `[
		{"name": "Ada", "age": 36},
		{"age": 200},
		{"name": "Grace", "age": -1}
	]`)

	out, err := f.run(t, "--format", "json", "import", "person", path)
	require.Error(t, err)
	assert.True(t, IsReported(err))
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string       `json:"status"`
		Data   ImportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 3, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Imported)
	assert.Equal(t, 2, resp.Data.Failed)
	require.Len(t, resp.Data.Failures, 2)

	assert.Equal(t, 1, resp.Data.Failures[0].Index)
	assert.Equal(t, ErrCodeValidation, resp.Data.Failures[0].Code)
	assert.Contains(t, resp.Data.Failures[0].Fields, "name")
	assert.Contains(t, resp.Data.Failures[0].Fields, "age")

	assert.Equal(t, 2, resp.Data.Failures[1].Index)
	assert.Contains(t, resp.Data.Failures[1].Fields, "age")
}

func TestImportUpsertBy(t *testing.T) {
	f := newFixture(t)
	seedPeople(t, f)
	path := writeImportFile(t, f, "people.yaml", `
- name: Ada
  age: 37
- name: Barbara
  age: 81
`)

	out, err := f.run(t, "import", "person", path, "--upsert-by", "name")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 of 2")

	out, err = f.run(t, "find-one", "person", "--where", `{"name": "Ada"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"age":37`)

	out, err = f.run(t, "find", "person")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 4)
}

func TestImportUpsertByMissingField(t *testing.T) {
	f := newFixture(t)
	path := writeImportFile(t, f, "people.yaml", "- age: 3\n")

	out, err := f.run(t, "import", "person", path, "--upsert-by", "name")
	require.Error(t, err)
	assert.Contains(t, out, `✗ record 0 [E006]: record 0 has no "name" field`)
	assert.Contains(t, out, "Imported 0 of 1")
}

func TestImportBadFile(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "import", "person", filepath.Join(f.dir, "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]")

	path := writeImportFile(t, f, "scalar.yaml", "name: Ada\n")
	out, err = f.run(t, "import", "person", path)
	require.Error(t, err)
	assert.Contains(t, out, "expected a list of records")
}
