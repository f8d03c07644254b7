package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docket/internal/compiler"
)

func writeSchemas(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0644))
	}
	return dir
}

func TestValidateValidSchemas(t *testing.T) {
	dir := writeSchemas(t, map[string]string{"person.cue": personSchema})

	out, err := execute(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All schemas valid (1 models)")
}

func TestValidateValidSchemasJSON(t *testing.T) {
	dir := writeSchemas(t, map[string]string{"person.cue": personSchema})

	out, err := execute(t, "--format", "json", "validate", dir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"person"}, resp.Data.Models)
}

func TestValidateDefaultsToConfiguredSchemas(t *testing.T) {
	dir := writeSchemas(t, map[string]string{"person.cue": personSchema})

	out, err := execute(t, "--schemas", dir, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "All schemas valid")
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := execute(t, "validate", "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), compiler.ErrCodeNotFound)
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := execute(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), compiler.ErrCodeNoFiles)
	assert.Contains(t, out, "Error [E003]")
}

func TestValidateDeclarationErrors(t *testing.T) {
	dir := writeSchemas(t, map[string]string{
		"bad.cue": `package schemas

model: "bad-name": {
	fields: {
		title: "text"
	}
}

model: task: {
	fields: {
		priority: {type: "number", default: 10, max: 5}
	}
}
`,
	})

	out, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrInvalidModelName)
	assert.Contains(t, out, compiler.ErrDefaultViolates)
	assert.Contains(t, out, "task.priority")
}

func TestValidateCompileErrorsJSON(t *testing.T) {
	dir := writeSchemas(t, map[string]string{
		"bad.cue": `package schemas

model: person: {
	fields: {
		name: {type: "blob"}
	}
}
`,
	})

	out, err := execute(t, "--format", "json", "validate", dir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  CLIError         `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, ErrCodeSchema, resp.Error.Code)
}
