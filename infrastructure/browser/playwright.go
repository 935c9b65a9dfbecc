package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quizsolver/domain/entities"
	"quizsolver/domain/interfaces"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

var errRendererClosed = errors.New("renderer closed")

// PlaywrightFactory opens one playwright driver, browser, context and page per session
type PlaywrightFactory struct {
	opts   Options
	logger *logrus.Logger
}

// Open - starts playwright and returns a ready page; partial startups are torn down
func (f *PlaywrightFactory) Open(ctx context.Context) (interfaces.Renderer, error) {
	if f.opts.InstallDriver {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	r := &playwrightRenderer{pw: pw, timeout: f.opts.navigationTimeout(), logger: f.logger}

	r.browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(f.opts.Headless),
		Args:     f.opts.chromiumArgs(),
	})
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	r.context, err = r.browser.NewContext(contextOptions(f.opts))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	r.page, err = r.context.NewPage()
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	r.page.OnDialog(func(dialog playwright.Dialog) {
		dialog.Accept()
	})

	if err := ctx.Err(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func contextOptions(opts Options) playwright.BrowserNewContextOptions {
	contextOptions := playwright.BrowserNewContextOptions{
		JavaScriptEnabled: playwright.Bool(true),
		AcceptDownloads:   playwright.Bool(true),
	}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		contextOptions.Viewport = &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		}
	}
	if opts.UserAgent != "" {
		contextOptions.UserAgent = playwright.String(opts.UserAgent)
	}
	return contextOptions
}

type playwrightRenderer struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	timeout time.Duration
	logger  *logrus.Logger
}

// Navigate - goes to url and waits for network idle.
// The driver call is not context aware; on cancellation the caller closes the session which aborts it.
func (r *playwrightRenderer) Navigate(ctx context.Context, url string) error {
	page, timeout, logger := r.page, r.timeout, r.logger
	if page == nil {
		return &entities.NavigationError{URL: url, Err: errRendererClosed}
	}

	done := make(chan error, 1)
	go func() {
		resp, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateNetworkidle,
			Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		})
		if err == nil && resp != nil && resp.Status() >= 400 {
			logger.WithFields(logrus.Fields{"url": url, "status": resp.Status()}).Warn("Page answered with error status")
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return &entities.NavigationError{URL: url, Err: err}
		}
		return nil
	}
}

// Snapshot - returns the rendered document
func (r *playwrightRenderer) Snapshot(ctx context.Context) (entities.PageContent, error) {
	if err := ctx.Err(); err != nil {
		return entities.PageContent{}, err
	}
	if r.page == nil {
		return entities.PageContent{}, errRendererClosed
	}

	html, err := r.page.Content()
	if err != nil {
		return entities.PageContent{}, fmt.Errorf("failed to read page content: %w", err)
	}
	title, _ := r.page.Title()

	return entities.PageContent{
		URL:       r.page.URL(),
		Title:     title,
		HTML:      html,
		FetchedAt: time.Now(),
	}, nil
}

// Close - closes context, browser and driver; later calls are no-ops
func (r *playwrightRenderer) Close() error {
	var closeErr error

	if r.context != nil {
		closeErr = foldCloseErr(closeErr, "context", r.context.Close())
		r.context = nil
	}
	r.page = nil

	if r.browser != nil {
		closeErr = foldCloseErr(closeErr, "browser", r.browser.Close())
		r.browser = nil
	}

	if r.pw != nil {
		closeErr = foldCloseErr(closeErr, "playwright", r.pw.Stop())
		r.pw = nil
	}

	return closeErr
}
