package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personSchema = `package schemas

model: person: {
	fields: {
		name: {type: "text", required: true, unique: true}
		age: {type: "number", min: 0, max: 150}
	}
}
`

// fixture is a schemas directory and database file in a temp dir.
type fixture struct {
	dir     string
	schemas string
	db      string
	env     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:     dir,
		schemas: filepath.Join(dir, "schemas"),
		db:      filepath.Join(dir, "docket.db"),
		env:     "development",
	}
	require.NoError(t, os.MkdirAll(f.schemas, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.schemas, "person.cue"), []byte(personSchema), 0644))
	return f
}

// run executes the root command with the fixture's global flags.
func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	global := []string{"--db", f.db, "--schemas", f.schemas, "--env", f.env}
	return execute(t, append(global, args...)...)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "docket", cmd.Use)
	assert.Contains(t, cmd.Long, "MongoDB-style predicates")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "create", "find", "find-one", "update", "destroy", "destroy-all", "import", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "db", "schemas", "env", "metrics-file"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestRecordCommandFlags(t *testing.T) {
	cmd := NewRootCommand()

	findCmd, _, err := cmd.Find([]string{"find"})
	require.NoError(t, err)
	for _, name := range []string{"where", "id", "limit", "deleted"} {
		assert.NotNil(t, findCmd.Flags().Lookup(name), name)
	}

	updateCmd, _, err := cmd.Find([]string{"update"})
	require.NoError(t, err)
	for _, name := range []string{"data", "where", "id"} {
		assert.NotNil(t, updateCmd.Flags().Lookup(name), name)
	}

	importCmd, _, err := cmd.Find([]string{"import"})
	require.NoError(t, err)
	assert.NotNil(t, importCmd.Flags().Lookup("upsert-by"))
	assert.NotNil(t, importCmd.Flags().Lookup("workers"))
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, err := execute(t, "--format", "invalid", "validate", ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestResolveConfig_FlagsOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docket.yaml")
	require.NoError(t, os.WriteFile(path, []byte("env: production\nschemas: models\ndatabase:\n  path: from-file.db\n"), 0644))

	cfg, err := resolveConfig(&RootOptions{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "models", cfg.Schemas)
	assert.Equal(t, "from-file.db", cfg.Database.Path)

	cfg, err = resolveConfig(&RootOptions{ConfigPath: path, Env: "development", Database: "flag.db", MetricsFile: "m.prom"})
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "flag.db", cfg.Database.Path)
	assert.Equal(t, "m.prom", cfg.Metrics.File)
	assert.True(t, cfg.Development())
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
