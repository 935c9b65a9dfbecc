package cli

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"os/signal"
	"syscall"

	"quizsolver/domain/entities"

	"github.com/spf13/cobra"
)

// errRunFailed makes the process exit non-zero after a failed run.
var errRunFailed = errors.New("run failed")

// NewSolveCmd creates the solve command.
func NewSolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Run one quiz sequence in the foreground",
		Long: `Run one quiz sequence starting at --url and submit answers as --email.
The command waits for the run to end, prints its summary and exits non-zero
when the run failed.`,
		Example: `  quizsolver solve --email me@example.com --url https://quiz.example/start
  quizsolver solve --email me@example.com --url https://quiz.example/start --engine rod --headless=false`,
		Args: cobra.NoArgs,
		RunE: runSolve,
	}

	cmd.Flags().String("email", "", "identity submitted with every answer (required)")
	cmd.Flags().String("url", "", "first quiz page (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("url")
	addSessionFlags(cmd)

	return cmd
}

func runSolve(cmd *cobra.Command, _ []string) error {
	email, _ := cmd.Flags().GetString("email")
	startURL, _ := cmd.Flags().GetString("url")

	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return fmt.Errorf("invalid --email %q", email)
	}
	if u, err := url.Parse(startURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid --url %q: must be absolute http or https", startURL)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	app, err := NewApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	record := app.Dispatcher().Run(ctx, entities.RunRequest{Email: email, StartURL: startURL})
	printRecord(cmd.OutOrStdout(), record)

	if record.Outcome != entities.OutcomeFinished {
		return fmt.Errorf("%w: %s", errRunFailed, record.Error)
	}
	return nil
}
