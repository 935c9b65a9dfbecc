// Package browser provides render sessions backed by a real Chromium.
package browser

import (
	"fmt"
	"strings"
	"time"

	"quizsolver/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// Supported engines
const (
	EnginePlaywright = "playwright"
	EngineRod        = "rod"
)

// DefaultNavigationTimeout bounds a navigation including the network idle wait.
const DefaultNavigationTimeout = 30 * time.Second

// Options configures a render session
type Options struct {
	Engine            string
	Headless          bool
	NavigationTimeout time.Duration
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	InstallDriver     bool     // playwright only: download driver and chromium on first use
	ExtraArgs         []string // appended to the chromium command line
}

// DefaultOptions - returns headless playwright defaults
func DefaultOptions() Options {
	return Options{
		Engine:            EnginePlaywright,
		Headless:          true,
		NavigationTimeout: DefaultNavigationTimeout,
		ViewportWidth:     1280,
		ViewportHeight:    720,
	}
}

func (o Options) navigationTimeout() time.Duration {
	if o.NavigationTimeout <= 0 {
		return DefaultNavigationTimeout
	}
	return o.NavigationTimeout
}

func (o Options) chromiumArgs() []string {
	args := []string{
		"--disable-dev-shm-usage",
		"--disable-blink-features=AutomationControlled",
		"--disable-infobars",
		"--disable-notifications",
	}
	return append(args, o.ExtraArgs...)
}

// NewFactory - returns the render session factory for the configured engine
func NewFactory(opts Options, logger *logrus.Logger) (interfaces.RendererFactory, error) {
	switch strings.ToLower(opts.Engine) {
	case "", EnginePlaywright:
		return &PlaywrightFactory{opts: opts, logger: logger}, nil
	case EngineRod:
		return &RodFactory{opts: opts, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", opts.Engine)
	}
}

// isClosedErr - errors raised by targets that are already gone
func isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "closed") || strings.Contains(errStr, "target closed")
}

// foldCloseErr - keeps the first failure and appends later ones
func foldCloseErr(closeErr error, what string, err error) error {
	if err == nil || isClosedErr(err) {
		return closeErr
	}
	if closeErr != nil {
		return fmt.Errorf("%v; failed to close %s: %w", closeErr, what, err)
	}
	return fmt.Errorf("failed to close %s: %w", what, err)
}
