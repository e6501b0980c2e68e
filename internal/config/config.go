// Package config loads jobsince settings from defaults, an optional YAML
// file, JOBSINCE_* environment variables and runtime overrides, in increasing
// order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	appName   = "jobsince"
	envPrefix = "JOBSINCE"
)

type Config struct {
	Accounting AccountingConfig `mapstructure:"accounting"`
	Window     WindowConfig     `mapstructure:"window"`
	State      StateConfig      `mapstructure:"state"`
	History    HistoryConfig    `mapstructure:"history"`
	Output     OutputConfig     `mapstructure:"output"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type AccountingConfig struct {
	Command string        `mapstructure:"command"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WindowConfig struct {
	// Fallback is the lookback used on the first run.
	Fallback time.Duration `mapstructure:"fallback"`
}

type StateConfig struct {
	Dir string `mapstructure:"dir"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type OutputConfig struct {
	// Color is one of auto, always or never.
	Color string `mapstructure:"color"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("accounting.command", "sacct")
	v.SetDefault("accounting.timeout", "30s")

	v.SetDefault("window.fallback", "24h")

	v.SetDefault("state.dir", DefaultStateDir())

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")

	v.SetDefault("output.color", "auto")

	v.SetDefault("logging.level", "warn")
}

// Load builds the effective configuration. Overrides use dotted keys
// ("accounting.timeout") or nested maps and win over everything else.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	for _, o := range overrides {
		for k, val := range flatten("", o) {
			v.Set(k, val)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(v *viper.Viper) error {
	if explicit := os.Getenv(envPrefix + "_CONFIG"); explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, appName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

func (c *Config) normalize() error {
	c.Output.Color = strings.ToLower(strings.TrimSpace(c.Output.Color))
	switch c.Output.Color {
	case "auto", "always", "never":
	case "":
		c.Output.Color = "auto"
	default:
		return fmt.Errorf("invalid output.color %q (want auto, always or never)", c.Output.Color)
	}

	if c.Accounting.Timeout <= 0 {
		return fmt.Errorf("invalid accounting.timeout %s", c.Accounting.Timeout)
	}
	if c.Window.Fallback <= 0 {
		return fmt.Errorf("invalid window.fallback %s", c.Window.Fallback)
	}

	if c.State.Dir == "" {
		c.State.Dir = DefaultStateDir()
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.State.Dir, "history.db")
	}
	return nil
}

// DefaultStateDir follows XDG_STATE_HOME, then ~/.local/state, then the
// user cache dir.
func DefaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", appName)
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(os.TempDir(), appName)
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = v
	}
	return out
}

// Keys lists the settings in display order.
var Keys = []string{
	"accounting.command",
	"accounting.timeout",
	"window.fallback",
	"state.dir",
	"history.enabled",
	"history.path",
	"output.color",
	"logging.level",
}

// Get returns the effective value of a dotted key.
func (c *Config) Get(key string) (string, bool) {
	switch strings.ToLower(key) {
	case "accounting.command":
		return c.Accounting.Command, true
	case "accounting.timeout":
		return c.Accounting.Timeout.String(), true
	case "window.fallback":
		return c.Window.Fallback.String(), true
	case "state.dir":
		return c.State.Dir, true
	case "history.enabled":
		return strconv.FormatBool(c.History.Enabled), true
	case "history.path":
		return c.History.Path, true
	case "output.color":
		return c.Output.Color, true
	case "logging.level":
		return c.Logging.Level, true
	}
	return "", false
}
