package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the file name looked up in XDGConfigDir.
const DefaultConfigFile = "config.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "QUIZSOLVER_"

// LoadOptions selects the files Load reads
type LoadOptions struct {
	// ConfigFile is an explicit YAML path. Missing explicit files are an error;
	// when empty the XDG default is used if it exists.
	ConfigFile string
	// EnvFiles are loaded with godotenv before reading the environment.
	// Missing files are skipped. Empty means ".env".
	EnvFiles []string
}

// Load builds a Config from defaults, the YAML file, .env files and the environment.
// Flags are applied by the caller afterwards.
func Load(opts LoadOptions) (*Config, error) {
	cfg := NewConfig()

	path, explicit := opts.ConfigFile, opts.ConfigFile != ""
	if !explicit {
		path = filepath.Join(XDGConfigDir(), DefaultConfigFile)
	}
	if err := cfg.LoadFile(path); err != nil {
		if !errors.Is(err, ErrConfigNotFound) || explicit {
			return nil, err
		}
	}

	envFiles := opts.EnvFiles
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables that are already set
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the file keep their value.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// LookupFunc matches os.LookupEnv
type LookupFunc func(key string) (string, bool)

type envBinding struct {
	key   string
	apply func(c *Config, value string) error
}

func stringVar(get func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*get(c) = v
		return nil
	}
}

func boolVar(get func(c *Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*get(c) = b
		return nil
	}
}

func intVar(get func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*get(c) = n
		return nil
	}
}

func durationVar(get func(c *Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*get(c) = d
		return nil
	}
}

var envBindings = []envBinding{
	{"LISTEN", stringVar(func(c *Config) *string { return &c.Server.Listen })},
	{"SECRET", stringVar(func(c *Config) *string { return &c.Server.Secret })},
	{"MAX_SESSIONS", intVar(func(c *Config) *int { return &c.Server.MaxSessions })},
	{"RUN_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.RunTimeout })},

	{"BROWSER_ENGINE", stringVar(func(c *Config) *string { return &c.Browser.Engine })},
	{"BROWSER_HEADLESS", boolVar(func(c *Config) *bool { return &c.Browser.Headless })},
	{"NAVIGATION_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Browser.NavigationTimeout })},
	{"USER_AGENT", stringVar(func(c *Config) *string { return &c.Browser.UserAgent })},
	{"INSTALL_DRIVER", boolVar(func(c *Config) *bool { return &c.Browser.InstallDriver })},
	{"SNAPSHOT_DIR", stringVar(func(c *Config) *string { return &c.Browser.SnapshotDir })},

	{"POST_LOAD_DELAY", durationVar(func(c *Config) *time.Duration { return &c.Solver.PostLoadDelay })},
	{"BETWEEN_PAGES_DELAY", durationVar(func(c *Config) *time.Duration { return &c.Solver.BetweenPagesDelay })},
	{"SUBMIT_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Solver.SubmitTimeout })},
	{"MAX_STEPS", intVar(func(c *Config) *int { return &c.Solver.MaxSteps })},
	{"DEFAULT_ANSWER", stringVar(func(c *Config) *string { return &c.Solver.DefaultAnswer })},
	{"FALLBACK_BASE_URL", stringVar(func(c *Config) *string { return &c.Solver.FallbackBaseURL })},
	{"NAVIGATION_RETRIES", intVar(func(c *Config) *int { return &c.Solver.NavigationRetries })},
	{"SUBMIT_RETRIES", intVar(func(c *Config) *int { return &c.Solver.SubmitRetries })},
	{"RETRY_INTERVAL", durationVar(func(c *Config) *time.Duration { return &c.Solver.RetryInterval })},

	{"LOG_LEVEL", stringVar(func(c *Config) *string { return &c.Log.Level })},
	{"LOG_FORMAT", stringVar(func(c *Config) *string { return &c.Log.Format })},
	{"LOG_FILE", stringVar(func(c *Config) *string { return &c.Log.File })},

	{"HISTORY_DIR", stringVar(func(c *Config) *string { return &c.History.Dir })},
	{"HISTORY_DISABLED", boolVar(func(c *Config) *bool { return &c.History.Disabled })},
}

// ApplyEnv overlays QUIZSOLVER_* variables found by lookup onto c.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	for _, b := range envBindings {
		value, ok := lookup(EnvPrefix + b.key)
		if !ok {
			continue
		}
		if err := b.apply(c, value); err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, b.key, err)
		}
	}
	return nil
}
