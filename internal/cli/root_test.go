package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crid/internal/testutil"
)

// runCLI executes the root command against dbPath with no ambient
// environment and sequential request IDs.
func runCLI(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	return runCLIWith(t, &RootOptions{}, dbPath, args...)
}

func runCLIWith(t *testing.T, opts *RootOptions, dbPath string, args ...string) (string, error) {
	t.Helper()
	if opts.Environ == nil {
		opts.Environ = []string{}
	}
	if opts.RequestIDs == nil {
		opts.RequestIDs = testutil.NewSequentialRequestIDs("req")
	}

	buf := &bytes.Buffer{}
	cmd := newRootCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	if dbPath != "" {
		args = append([]string{"--db", dbPath}, args...)
	}
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "crid.db")
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "crid", cmd.Use)
	assert.Contains(t, cmd.Long, "capacities")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"init"}, {"admin"}, {"enroll"}, {"log"}, {"verify"}, {"test"},
		{"course", "create"}, {"course", "show"}, {"course", "list"}, {"course", "slots"},
		{"enrollment", "show"}, {"enrollment", "list"},
	}

	for _, path := range commands {
		t.Run(filepath.Join(path...), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
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

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "crid.db", dbFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestEnrollCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	enrollCmd, _, err := cmd.Find([]string{"enroll"})
	require.NoError(t, err)

	asFlag := enrollCmd.Flags().Lookup("as")
	require.NotNil(t, asFlag)
	assert.Equal(t, "", asFlag.DefValue)
}

func TestLogCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	logCmd, _, err := cmd.Find([]string{"log"})
	require.NoError(t, err)

	require.NotNil(t, logCmd.Flags().Lookup("after"))
	require.NotNil(t, logCmd.Flags().Lookup("limit"))
	require.NotNil(t, logCmd.Flags().Lookup("request"))
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	require.NotNil(t, testCmd.Flags().Lookup("filter"))
	require.NotNil(t, testCmd.Flags().Lookup("golden-dir"))
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, err := runCLI(t, tempDB(t), "--format", "invalid", "admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfig_EnvironmentSetsDatabaseAndAdmin(t *testing.T) {
	db := tempDB(t)
	opts := &RootOptions{Environ: []string{
		"CRID_DB_PATH=" + db,
		"CRID_ADMIN=registrar",
	}}

	out, err := runCLIWith(t, opts, "", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "administrator: registrar")
	assert.Contains(t, out, db)
}

func TestConfig_FlagOverridesEnvironment(t *testing.T) {
	envDB := tempDB(t)
	flagDB := tempDB(t)
	opts := &RootOptions{Environ: []string{"CRID_DB_PATH=" + envDB}}

	_, err := runCLIWith(t, opts, flagDB, "init", "--admin", "registrar")
	require.NoError(t, err)

	_, err = os.Stat(flagDB)
	assert.NoError(t, err)
	_, err = os.Stat(envDB)
	assert.True(t, os.IsNotExist(err), "environment database should not be created")
}

func TestConfig_CUEFile(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "from-cue.db")
	cfgPath := filepath.Join(dir, "crid.cue")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
db_path: "`+db+`"
admin:   "dean"
format:  "json"
`), 0644))

	out, err := runCLIWith(t, &RootOptions{}, "", "--config", cfgPath, "init")
	require.NoError(t, err)
	assert.Contains(t, out, `"status":"ok"`)
	assert.Contains(t, out, `"admin":"dean"`)
}

func TestConfig_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "from-dotenv.db")
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("CRID_DB_PATH="+db+"\nCRID_ADMIN=bursar\n"), 0644))

	out, err := runCLIWith(t, &RootOptions{EnvFile: envPath}, "", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "administrator: bursar")
}

func TestConfig_InvalidFileIsCommandError(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "crid.cue")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`log_level: "loud"`), 0644))

	_, err := runCLIWith(t, &RootOptions{}, tempDB(t), "--config", cfgPath, "admin")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load configuration")
}
