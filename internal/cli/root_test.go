package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobsince/internal/model"
	"jobsince/internal/window"
)

// setupEnv points config, state and the accounting command at temp dirs.
func setupEnv(t *testing.T, script string) string {
	t.Helper()

	dir := t.TempDir()
	stateDir := filepath.Join(dir, "state")
	cmdPath := filepath.Join(dir, "fake-sacct")
	require.NoError(t, os.WriteFile(cmdPath, []byte("#!/bin/sh\n"+script), 0o755))

	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("JOBSINCE_STATE_DIR", stateDir)
	t.Setenv("JOBSINCE_ACCOUNTING_COMMAND", cmdPath)
	t.Setenv("NO_COLOR", "1")
	return stateDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandEndToEnd(t *testing.T) {
	stateDir := setupEnv(t, "printf '%s\\n' '"+
		"123|run1|alice|COMPLETED|2025-01-01T10:00:00|2025-01-01T10:05:00|0' '"+
		"124|run2|alice|FAILED|2025-01-01T11:00:00|2025-01-01T11:01:00|1'\n")

	out, err := execute(t, "--state", "FAILED", "-u", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Jobs finished since")
	assert.Contains(t, out, "run2")
	assert.NotContains(t, out, "run1")

	_, err = os.Stat(filepath.Join(stateDir, "session.json"))
	require.NoError(t, err)

	out, err = execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "History Status:")
	assert.Regexp(t, `FAILED\s+1`, out)
	assert.Regexp(t, `COMPLETED\s+0`, out)

	out, err = execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "124")
	assert.Contains(t, out, "run2")

	out, err = execute(t, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "user=alice")
	assert.Contains(t, out, "1 jobs")

	out, err = execute(t, "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")
	_, err = os.Stat(filepath.Join(stateDir, "session.json"))
	assert.True(t, os.IsNotExist(err))

	out, err = execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No jobs in history.")
}

func TestRootCommandBackendFailure(t *testing.T) {
	stateDir := setupEnv(t, "echo 'sacct: error: Problem talking to the database' >&2\nexit 1\n")

	_, err := execute(t)
	require.Error(t, err)
	assert.Equal(t, ExitBackendFailed, ExitCode(err))
	assert.Contains(t, err.Error(), "Problem talking to the database")

	_, err = os.Stat(filepath.Join(stateDir, "session.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestRootCommandMissingBackend(t *testing.T) {
	setupEnv(t, "")
	t.Setenv("JOBSINCE_ACCOUNTING_COMMAND", "definitely-not-sacct-on-this-host")

	_, err := execute(t)
	require.Error(t, err)
	assert.Equal(t, ExitBackendUnavailable, ExitCode(err))
}

func TestRootCommandInvalidInput(t *testing.T) {
	setupEnv(t, "exit 0\n")

	_, err := execute(t, "soon")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidInput, ExitCode(err))

	_, err = execute(t, "--since", "2025-13-45")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidInput, ExitCode(err))

	_, err = execute(t, "--since", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, window.ErrInvalidTimestamp)

	_, err = execute(t, "-5")
	require.Error(t, err)
	assert.ErrorIs(t, err, window.ErrInvalidDuration)
	assert.Equal(t, ExitInvalidInput, ExitCode(err))

	_, err = execute(t, "-x")
	require.Error(t, err)
	assert.Equal(t, ExitError, ExitCode(err))

	_, err = execute(t, "--state", "BOGUS")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidInput, ExitCode(err))

	_, err = execute(t, "history", "--state", "BOGUS")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidInput, ExitCode(err))
}

func TestParseStates(t *testing.T) {
	got, err := parseStates([]string{"failed", "TIMEOUT", "FAILED", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, []model.State{model.StateFailed, model.StateTimeout, model.StateUnknown}, got)

	got, err = parseStates(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = parseStates([]string{"RUNNING"})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestWantColor(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, wantColor("always", &buf))
	assert.False(t, wantColor("never", &buf))
	assert.False(t, wantColor("auto", &buf))
}

func TestConfigCommand(t *testing.T) {
	stateDir := setupEnv(t, "exit 0\n")

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "state.dir = "+stateDir)
	assert.Contains(t, out, "accounting.timeout = 30s")

	out, err = execute(t, "config", "get", "window.fallback")
	require.NoError(t, err)
	assert.Equal(t, "24h0m0s\n", out)

	_, err = execute(t, "config", "get", "no.such.key")
	assert.Error(t, err)
}

func TestFilterFlagsMentionCheckpoint(t *testing.T) {
	cmd := NewRootCmd()
	for _, name := range []string{"state", "user"} {
		f := cmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Contains(t, f.Usage, "last-run checkpoint", name)
	}
}
