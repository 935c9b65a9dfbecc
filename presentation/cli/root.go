// Package cli provides the quizsolver command line.
package cli

import (
	"fmt"
	"os"

	"quizsolver/infrastructure/config"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quizsolver",
		Short: "Solve chained web quizzes with a headless browser",
		Long: `quizsolver loads a quiz page in a headless browser, finds where answers are
submitted, posts an answer and follows the next URL returned by the quiz
server until the sequence ends.

Runs are started over HTTP (serve) or in the foreground (solve).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "YAML config file (default $XDG_CONFIG_HOME/quizsolver/config.yaml)")
	cmd.PersistentFlags().StringSlice("env-file", nil, "dotenv files to load (default .env)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().String("log-format", "", "log format: text or json")
	cmd.PersistentFlags().String("log-file", "", "also write logs to this rotated file")
	cmd.PersistentFlags().String("history-dir", "", "directory of the run history database")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewSolveCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// addSessionFlags registers the flags shared by commands that run sessions.
func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().String("engine", "", "browser engine: playwright or rod")
	cmd.Flags().Bool("headless", true, "run the browser without a window")
	cmd.Flags().Bool("install-driver", false, "download the playwright driver and browser if missing")
	cmd.Flags().String("snapshot-dir", "", "save every rendered page under this directory")
	cmd.Flags().Int("max-steps", 0, "submissions allowed per run, 0 for unlimited")
	cmd.Flags().String("fallback-base-url", "", "origin for bare /submit mentions when the page URL is unknown")
	cmd.Flags().Duration("run-timeout", 0, "deadline for a whole run")
	cmd.Flags().Int("navigation-retries", 0, "retries after a failed page load")
	cmd.Flags().Int("submit-retries", 0, "retries after a failed submission request")
	cmd.Flags().Bool("no-history", false, "do not record runs")
}

type flagBinding struct {
	name  string
	apply func(cfg *config.Config, fs *pflag.FlagSet) error
}

func stringFlag(name string, get func(*config.Config) *string) flagBinding {
	return flagBinding{name, func(cfg *config.Config, fs *pflag.FlagSet) error {
		v, err := fs.GetString(name)
		*get(cfg) = v
		return err
	}}
}

func boolFlag(name string, get func(*config.Config) *bool) flagBinding {
	return flagBinding{name, func(cfg *config.Config, fs *pflag.FlagSet) error {
		v, err := fs.GetBool(name)
		*get(cfg) = v
		return err
	}}
}

func intFlag(name string, get func(*config.Config) *int) flagBinding {
	return flagBinding{name, func(cfg *config.Config, fs *pflag.FlagSet) error {
		v, err := fs.GetInt(name)
		*get(cfg) = v
		return err
	}}
}

var flagBindings = []flagBinding{
	stringFlag("log-level", func(c *config.Config) *string { return &c.Log.Level }),
	stringFlag("log-format", func(c *config.Config) *string { return &c.Log.Format }),
	stringFlag("log-file", func(c *config.Config) *string { return &c.Log.File }),
	stringFlag("history-dir", func(c *config.Config) *string { return &c.History.Dir }),

	stringFlag("listen", func(c *config.Config) *string { return &c.Server.Listen }),
	stringFlag("secret", func(c *config.Config) *string { return &c.Server.Secret }),
	intFlag("max-sessions", func(c *config.Config) *int { return &c.Server.MaxSessions }),

	stringFlag("engine", func(c *config.Config) *string { return &c.Browser.Engine }),
	boolFlag("headless", func(c *config.Config) *bool { return &c.Browser.Headless }),
	boolFlag("install-driver", func(c *config.Config) *bool { return &c.Browser.InstallDriver }),
	stringFlag("snapshot-dir", func(c *config.Config) *string { return &c.Browser.SnapshotDir }),
	intFlag("max-steps", func(c *config.Config) *int { return &c.Solver.MaxSteps }),
	stringFlag("fallback-base-url", func(c *config.Config) *string { return &c.Solver.FallbackBaseURL }),
	intFlag("navigation-retries", func(c *config.Config) *int { return &c.Solver.NavigationRetries }),
	intFlag("submit-retries", func(c *config.Config) *int { return &c.Solver.SubmitRetries }),
	boolFlag("no-history", func(c *config.Config) *bool { return &c.History.Disabled }),
	{"run-timeout", func(cfg *config.Config, fs *pflag.FlagSet) error {
		v, err := fs.GetDuration("run-timeout")
		cfg.Server.RunTimeout = v
		return err
	}},
}

// loadConfig reads files and environment, then applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	fs := cmd.Flags()

	configFile, err := fs.GetString("config")
	if err != nil {
		return nil, err
	}
	envFiles, err := fs.GetStringSlice("env-file")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(config.LoadOptions{ConfigFile: configFile, EnvFiles: envFiles})
	if err != nil {
		return nil, err
	}

	for _, b := range flagBindings {
		if f := fs.Lookup(b.name); f == nil || !f.Changed {
			continue
		}
		if err := b.apply(cfg, fs); err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", b.name, err)
		}
	}
	return cfg, nil
}
