// Package config holds the settings of the quiz solver service.
//
// Values are layered, lowest precedence first: built-in defaults, the YAML
// file, a .env file, QUIZSOLVER_* environment variables and finally command
// line flags applied by the caller.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"quizsolver/application/extractor"
	"quizsolver/application/solver"
	"quizsolver/infrastructure/browser"
	"quizsolver/infrastructure/submission"

	"github.com/adrg/xdg"
	"github.com/sirupsen/logrus"
)

// AppName is used for the XDG directories.
const AppName = "quizsolver"

// Defaults
const (
	DefaultListenAddress     = ":8000"
	DefaultPostLoadDelay     = 500 * time.Millisecond
	DefaultBetweenPagesDelay = time.Second
	DefaultSubmitTimeout     = 30 * time.Second
	DefaultRunTimeout        = 10 * time.Minute
	DefaultMaxSteps          = 100
	DefaultAnswer            = "42"
	DefaultMaxSessions       = 4
	DefaultRetryInterval     = time.Second
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

// Config is the complete service configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Browser BrowserConfig `yaml:"browser"`
	Solver  SolverConfig  `yaml:"solver"`
	Log     LogConfig     `yaml:"log"`
	History HistoryConfig `yaml:"history"`
}

// ServerConfig configures the HTTP intake and the dispatcher behind it
type ServerConfig struct {
	Listen      string        `yaml:"listen"`
	Secret      string        `yaml:"secret"`
	MaxSessions int           `yaml:"max_sessions"`
	RunTimeout  time.Duration `yaml:"run_timeout"`
}

// BrowserConfig configures render sessions
type BrowserConfig struct {
	Engine            string        `yaml:"engine"`
	Headless          bool          `yaml:"headless"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	UserAgent         string        `yaml:"user_agent"`
	InstallDriver     bool          `yaml:"install_driver"`
	SnapshotDir       string        `yaml:"snapshot_dir"`
}

// SolverConfig configures the loop policy and the submission client
type SolverConfig struct {
	PostLoadDelay     time.Duration `yaml:"post_load_delay"`
	BetweenPagesDelay time.Duration `yaml:"between_pages_delay"`
	SubmitTimeout     time.Duration `yaml:"submit_timeout"`
	MaxSteps          int           `yaml:"max_steps"`
	DefaultAnswer     string        `yaml:"default_answer"`
	FallbackBaseURL   string        `yaml:"fallback_base_url"`
	NavigationRetries int           `yaml:"navigation_retries"`
	SubmitRetries     int           `yaml:"submit_retries"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
}

// LogConfig configures logrus
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// HistoryConfig configures the run history database
type HistoryConfig struct {
	Dir      string `yaml:"dir"`
	Disabled bool   `yaml:"disabled"`
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:      DefaultListenAddress,
			MaxSessions: DefaultMaxSessions,
			RunTimeout:  DefaultRunTimeout,
		},
		Browser: BrowserConfig{
			Engine:            browser.EnginePlaywright,
			Headless:          true,
			NavigationTimeout: browser.DefaultNavigationTimeout,
		},
		Solver: SolverConfig{
			PostLoadDelay:     DefaultPostLoadDelay,
			BetweenPagesDelay: DefaultBetweenPagesDelay,
			SubmitTimeout:     DefaultSubmitTimeout,
			MaxSteps:          DefaultMaxSteps,
			DefaultAnswer:     DefaultAnswer,
			RetryInterval:     DefaultRetryInterval,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		History: HistoryConfig{
			Dir: XDGDataDir(),
		},
	}
}

// XDGDataDir returns the directory holding the run history.
// On Linux: ~/.local/share/quizsolver
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the directory searched for config.yaml.
// On Linux: ~/.config/quizsolver
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the settings shared by every command.
// It returns the first problem found.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Browser.Engine) {
	case browser.EnginePlaywright, browser.EngineRod:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEngine, c.Browser.Engine)
	}

	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("%w: browser.navigation_timeout", ErrInvalidTimeout)
	}
	if c.Solver.SubmitTimeout <= 0 {
		return fmt.Errorf("%w: solver.submit_timeout", ErrInvalidTimeout)
	}
	if c.Server.RunTimeout <= 0 {
		return fmt.Errorf("%w: server.run_timeout", ErrInvalidTimeout)
	}

	if c.Solver.PostLoadDelay < 0 || c.Solver.BetweenPagesDelay < 0 || c.Solver.RetryInterval < 0 {
		return ErrInvalidDelay
	}
	if c.Solver.NavigationRetries < 0 || c.Solver.SubmitRetries < 0 {
		return ErrInvalidRetries
	}
	if c.Solver.MaxSteps < 0 {
		return ErrInvalidMaxSteps
	}

	if c.Solver.FallbackBaseURL != "" {
		u, err := url.Parse(c.Solver.FallbackBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidFallbackURL, c.Solver.FallbackBaseURL)
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// ValidateServer checks everything Validate does plus the HTTP intake settings.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.Secret == "" {
		return ErrMissingSecret
	}
	if c.Server.Listen == "" {
		return ErrMissingListenAddress
	}
	if c.Server.MaxSessions <= 0 {
		return ErrInvalidMaxSessions
	}
	return nil
}

// SolverConfig - loop policy for the solver package
func (c *Config) SolverConfig() solver.Config {
	return solver.Config{
		PostLoadDelay:     c.Solver.PostLoadDelay,
		BetweenPagesDelay: c.Solver.BetweenPagesDelay,
		MaxSteps:          c.Solver.MaxSteps,
		DefaultAnswer:     c.Solver.DefaultAnswer,
		NavigationRetries: c.Solver.NavigationRetries,
		SubmitRetries:     c.Solver.SubmitRetries,
		RetryInterval:     c.Solver.RetryInterval,
	}
}

// BrowserOptions - render session options
func (c *Config) BrowserOptions() browser.Options {
	opts := browser.DefaultOptions()
	opts.Engine = strings.ToLower(c.Browser.Engine)
	opts.Headless = c.Browser.Headless
	opts.NavigationTimeout = c.Browser.NavigationTimeout
	opts.UserAgent = c.Browser.UserAgent
	opts.InstallDriver = c.Browser.InstallDriver
	return opts
}

// SubmissionOptions - submission client options
func (c *Config) SubmissionOptions() submission.Options {
	return submission.Options{
		Timeout:   c.Solver.SubmitTimeout,
		UserAgent: c.Browser.UserAgent,
	}
}

// ExtractorOptions - extraction options
func (c *Config) ExtractorOptions() extractor.Options {
	return extractor.Options{FallbackBaseURL: c.Solver.FallbackBaseURL}
}
