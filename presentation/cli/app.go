package cli

import (
	"errors"
	"fmt"
	"io"

	"quizsolver/application/answer"
	"quizsolver/application/dispatch"
	"quizsolver/application/extractor"
	"quizsolver/application/solver"
	"quizsolver/domain/interfaces"
	"quizsolver/infrastructure/browser"
	"quizsolver/infrastructure/config"
	"quizsolver/infrastructure/security"
	"quizsolver/infrastructure/storage"
	"quizsolver/infrastructure/submission"

	"github.com/sirupsen/logrus"
)

// App wires the solver stack for one command invocation
type App struct {
	cfg        *config.Config
	logger     *logrus.Logger
	logCloser  io.Closer
	history    *storage.RunHistory
	dispatcher *dispatch.Dispatcher
}

// NewApp - builds logger, renderer factory, extractor, answer engine, submission
// client, solver, run history and dispatcher from cfg
func NewApp(cfg *config.Config, stderr io.Writer) (*App, error) {
	logger, logCloser, err := NewLogger(cfg.Log, stderr)
	if err != nil {
		return nil, err
	}

	app := &App{cfg: cfg, logger: logger, logCloser: logCloser}

	renderers, err := browser.NewFactory(cfg.BrowserOptions(), logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}
	renderers = browser.NewSnapshotFactory(renderers, cfg.Browser.SnapshotDir, logger)

	ext, err := extractor.New(cfg.ExtractorOptions())
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}

	engine := answer.NewStubEngine(cfg.Solver.DefaultAnswer, logger)
	submitter := submission.NewClient(cfg.SubmissionOptions(), logger)
	s := solver.New(renderers, ext, engine, submitter, cfg.SolverConfig(), logger)

	var store interfaces.RunStore
	if !cfg.History.Disabled {
		history, err := storage.OpenRunHistory(cfg.History.Dir)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to open run history: %w", err)
		}
		app.history = history
		store = history
	}

	verifier := security.NewSecretVerifier(cfg.Server.Secret)
	opts := dispatch.Options{
		MaxSessions: cfg.Server.MaxSessions,
		RunTimeout:  cfg.Server.RunTimeout,
	}
	app.dispatcher = dispatch.New(s, verifier, store, opts, logger)

	logger.WithFields(logrus.Fields{
		"engine":       cfg.Browser.Engine,
		"max_sessions": cfg.Server.MaxSessions,
		"history":      !cfg.History.Disabled,
	}).Debug("Application initialized")
	return app, nil
}

// Logger returns the configured logger.
func (a *App) Logger() *logrus.Logger {
	return a.logger
}

// Dispatcher returns the session dispatcher.
func (a *App) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}

// Close releases the run history and the log file.
func (a *App) Close() error {
	var errs []error
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close run history: %w", err))
		}
		a.history = nil
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			errs = append(errs, err)
		}
		a.logCloser = nil
	}
	return errors.Join(errs...)
}
