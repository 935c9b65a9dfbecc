package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quizsolver/domain/entities"
	"quizsolver/domain/interfaces"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

// RodFactory opens a launcher-managed chromium per session through the devtools protocol
type RodFactory struct {
	opts   Options
	logger *logrus.Logger
}

// Open - launches chromium, connects and creates a blank page
func (f *RodFactory) Open(ctx context.Context) (interfaces.Renderer, error) {
	l := launcher.New().Context(ctx).Headless(f.opts.Headless)
	for _, rawFlag := range f.opts.chromiumArgs() {
		name, val, hasVal := strings.Cut(strings.TrimLeft(rawFlag, "-"), "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	r := &rodRenderer{launcher: l, timeout: f.opts.navigationTimeout(), logger: f.logger}

	r.browser = rod.New().ControlURL(controlURL)
	if err := r.browser.Connect(); err != nil {
		r.browser = nil
		r.Close()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	r.page, err = r.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if f.opts.ViewportWidth > 0 && f.opts.ViewportHeight > 0 {
		err = r.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  f.opts.ViewportWidth,
			Height: f.opts.ViewportHeight,
		})
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}

	if f.opts.UserAgent != "" {
		if err := r.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: f.opts.UserAgent}); err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	return r, nil
}

type rodRenderer struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	timeout  time.Duration
	logger   *logrus.Logger
}

// networkIdleWindow is how long the page must go without requests to count as settled.
const networkIdleWindow = 500 * time.Millisecond

// Navigate - goes to url and waits for the load event and network idle, bounded by the navigation timeout
func (r *rodRenderer) Navigate(ctx context.Context, url string) error {
	page := r.page.Context(ctx).Timeout(r.timeout)
	defer page.CancelTimeout()

	waitIdle := page.WaitRequestIdle(networkIdleWindow, nil, nil, nil)
	if err := page.Navigate(url); err != nil {
		return &entities.NavigationError{URL: url, Err: err}
	}
	if err := page.WaitLoad(); err != nil {
		return &entities.NavigationError{URL: url, Err: err}
	}
	waitIdle()

	if err := page.GetContext().Err(); err != nil {
		return &entities.NavigationError{URL: url, Err: err}
	}
	return nil
}

// Snapshot - returns the rendered document
func (r *rodRenderer) Snapshot(ctx context.Context) (entities.PageContent, error) {
	page := r.page.Context(ctx).Timeout(r.timeout)
	defer page.CancelTimeout()

	html, err := page.HTML()
	if err != nil {
		return entities.PageContent{}, fmt.Errorf("failed to read page content: %w", err)
	}

	content := entities.PageContent{HTML: html, FetchedAt: time.Now()}
	if info, err := page.Info(); err == nil {
		content.URL = info.URL
		content.Title = info.Title
	}
	return content, nil
}

// Close - closes page and browser then kills the launched process
func (r *rodRenderer) Close() error {
	var closeErr error

	if r.page != nil {
		closeErr = foldCloseErr(closeErr, "page", r.page.Close())
		r.page = nil
	}

	if r.browser != nil {
		closeErr = foldCloseErr(closeErr, "browser", r.browser.Close())
		r.browser = nil
	}

	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher.Cleanup()
		r.launcher = nil
	}

	return closeErr
}
