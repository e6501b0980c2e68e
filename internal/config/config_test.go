package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every directory lookup at a fresh temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("JOBSINCE_CONFIG", "")
	return dir
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		dir := isolate(t)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "sacct", cfg.Accounting.Command)
		assert.Equal(t, 30*time.Second, cfg.Accounting.Timeout)
		assert.Equal(t, 24*time.Hour, cfg.Window.Fallback)
		assert.Equal(t, filepath.Join(dir, "state", "jobsince"), cfg.State.Dir)
		assert.True(t, cfg.History.Enabled)
		assert.Equal(t, filepath.Join(dir, "state", "jobsince", "history.db"), cfg.History.Path)
		assert.Equal(t, "auto", cfg.Output.Color)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		isolate(t)

		overrides := map[string]any{
			"accounting": map[string]any{
				"command": "/opt/slurm/bin/sacct",
			},
			"logging.level": "debug",
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "/opt/slurm/bin/sacct", cfg.Accounting.Command)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, 30*time.Second, cfg.Accounting.Timeout)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		isolate(t)
		t.Setenv("JOBSINCE_ACCOUNTING_TIMEOUT", "45s")
		t.Setenv("JOBSINCE_HISTORY_ENABLED", "false")
		t.Setenv("JOBSINCE_OUTPUT_COLOR", "NEVER")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 45*time.Second, cfg.Accounting.Timeout)
		assert.False(t, cfg.History.Enabled)
		assert.Equal(t, "never", cfg.Output.Color)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		dir := isolate(t)
		cfgDir := filepath.Join(dir, "config", "jobsince")
		require.NoError(t, os.MkdirAll(cfgDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(
			"accounting:\n  command: from-file\n  timeout: 10s\nwindow:\n  fallback: 12h\n"), 0o644))
		t.Setenv("JOBSINCE_ACCOUNTING_TIMEOUT", "20s")

		cfg, err := Load(ctx, map[string]any{"accounting.command": "from-flag"})
		require.NoError(t, err)

		assert.Equal(t, "from-flag", cfg.Accounting.Command)
		assert.Equal(t, 20*time.Second, cfg.Accounting.Timeout)
		assert.Equal(t, 12*time.Hour, cfg.Window.Fallback)
	})

	t.Run("ExplicitConfigFile", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("state:\n  dir: /tmp/custom-state\n"), 0o644))
		t.Setenv("JOBSINCE_CONFIG", path)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "/tmp/custom-state", cfg.State.Dir)
		assert.Equal(t, filepath.Join("/tmp/custom-state", "history.db"), cfg.History.Path)
	})

	t.Run("MissingExplicitConfigFileIsIgnored", func(t *testing.T) {
		dir := isolate(t)
		t.Setenv("JOBSINCE_CONFIG", filepath.Join(dir, "nope.yaml"))

		_, err := Load(ctx)
		require.NoError(t, err)
	})

	t.Run("BrokenConfigFile", func(t *testing.T) {
		dir := isolate(t)
		cfgDir := filepath.Join(dir, "config", "jobsince")
		require.NoError(t, os.MkdirAll(cfgDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte("accounting: [unclosed\n"), 0o644))

		_, err := Load(ctx)
		require.Error(t, err)
	})

	t.Run("InvalidValues", func(t *testing.T) {
		isolate(t)

		_, err := Load(ctx, map[string]any{"output.color": "sometimes"})
		assert.Error(t, err)

		_, err = Load(ctx, map[string]any{"accounting.timeout": "0s"})
		assert.Error(t, err)
	})
}

func TestDefaultStateDir(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/xdg/state")
	assert.Equal(t, "/xdg/state/jobsince", DefaultStateDir())

	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "/home/alice")
	assert.Equal(t, "/home/alice/.local/state/jobsince", DefaultStateDir())
}

func TestGet(t *testing.T) {
	isolate(t)

	cfg, err := Load(context.Background(), map[string]any{"accounting.timeout": "45s"})
	require.NoError(t, err)

	for _, k := range Keys {
		_, ok := cfg.Get(k)
		assert.True(t, ok, k)
	}

	v, ok := cfg.Get("accounting.timeout")
	assert.True(t, ok)
	assert.Equal(t, "45s", v)

	v, _ = cfg.Get("history.enabled")
	assert.Equal(t, "true", v)

	_, ok = cfg.Get("worker.count")
	assert.False(t, ok)
}
