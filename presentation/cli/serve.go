package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"quizsolver/presentation/httpapi"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// sessionDrainTimeout bounds how long shutdown waits for running sessions to release their browsers.
const sessionDrainTimeout = 30 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept run requests over HTTP",
		Long: `Start the HTTP intake. POST / with {"email", "secret", "url"} starts a run in
the background and answers immediately. GET /healthz and GET /metrics are
served on the same address.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("listen", "", "address to listen on (default :8000)")
	cmd.Flags().String("secret", "", "shared secret required from callers")
	cmd.Flags().Int("max-sessions", 0, "sessions allowed to hold a browser at once")
	addSessionFlags(cmd)

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	app, err := NewApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := httpapi.NewServer(cfg.Server.Listen, app.Dispatcher(), app.Logger())

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gCtx)
	})
	g.Go(func() error {
		<-gCtx.Done()
		app.Logger().Info("Shutdown signal received, waiting for running sessions")
		drainCtx, cancel := context.WithTimeout(context.Background(), sessionDrainTimeout)
		defer cancel()
		return app.Dispatcher().Shutdown(drainCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	app.Logger().Info("Shutdown complete")
	return nil
}
