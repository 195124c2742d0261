package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

type playwrightLauncher struct {
	logger *logrus.Logger
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	logger  *logrus.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewPlaywrightLauncher - creates launcher backed by playwright-go Chromium
func NewPlaywrightLauncher(logger *logrus.Logger) interfaces.BrowserLauncher {
	return &playwrightLauncher{logger: logger}
}

// Install - downloads the playwright driver and Chromium
func Install(logger *logrus.Logger) error {
	logger.Info("Installing playwright driver and chromium")
	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	return nil
}

func (l *playwrightLauncher) Name() string {
	return BackendPlaywright
}

// Launch - starts playwright, a Chromium browser, one context and one page
func (l *playwrightLauncher) Launch(ctx context.Context, opts entities.SessionOptions) (interfaces.BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	session := &playwrightSession{pw: pw, logger: l.logger}

	launchOptions := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	}
	if opts.BrowserPath != "" {
		launchOptions.ExecutablePath = playwright.String(opts.BrowserPath)
	}

	browser, err := pw.Chromium.Launch(launchOptions)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to launch browser: %w", err), session.Close())
	}
	session.browser = browser

	contextOptions := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
	}
	if opts.Viewport != nil {
		contextOptions.Viewport = &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		}
	}

	browserContext, err := browser.NewContext(contextOptions)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to create context: %w", err), session.Close())
	}
	session.context = browserContext

	page, err := browserContext.NewPage()
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to create page: %w", err), session.Close())
	}
	session.page = page

	page.OnDialog(func(dialog playwright.Dialog) {
		dialog.Dismiss()
	})

	return session, nil
}

// Navigate - navigates to the specified URL and waits for the load event
func (s *playwrightSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	gotoOptions := playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}
	if timeout > 0 {
		gotoOptions.Timeout = playwright.Float(milliseconds(timeout))
	}

	if _, err := s.page.Goto(url, gotoOptions); err != nil {
		return s.wrap("navigation", timeout, err)
	}
	return nil
}

// WaitForSelector - waits for the first element matching a CSS selector to be visible
func (s *playwrightSession) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.waitVisible(s.page.Locator(selector).First(), "selector "+selector, timeout)
}

// WaitForText - waits for any element containing text to be visible; hidden copies are skipped
func (s *playwrightSession) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.waitVisible(s.page.GetByText(text).Locator("visible=true").First(), fmt.Sprintf("text %q", text), timeout)
}

func (s *playwrightSession) waitVisible(locator playwright.Locator, what string, timeout time.Duration) error {
	waitOptions := playwright.LocatorWaitForOptions{
		State: playwright.WaitForSelectorStateVisible,
	}
	if timeout > 0 {
		waitOptions.Timeout = playwright.Float(milliseconds(timeout))
	}

	if err := locator.WaitFor(waitOptions); err != nil {
		return s.wrap("waiting for "+what, timeout, err)
	}
	return nil
}

// Screenshot - takes a PNG screenshot of the current page
func (s *playwrightSession) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	data, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}

// Close - closes the context, the browser and the playwright driver
func (s *playwrightSession) Close() error {
	s.closeOnce.Do(func() {
		if s.context != nil {
			if err := ignoreClosed(s.context.Close()); err != nil {
				s.closeErr = multierr.Append(s.closeErr, fmt.Errorf("failed to close context: %w", err))
			}
			s.context = nil
		}

		if s.browser != nil {
			if err := ignoreClosed(s.browser.Close()); err != nil {
				s.closeErr = multierr.Append(s.closeErr, fmt.Errorf("failed to close browser: %w", err))
			}
			s.browser = nil
		}

		if s.pw != nil {
			if err := s.pw.Stop(); err != nil {
				s.closeErr = multierr.Append(s.closeErr, fmt.Errorf("failed to stop playwright: %w", err))
			}
			s.pw = nil
		}

		s.page = nil
	})
	return s.closeErr
}

func (s *playwrightSession) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.page == nil {
		return errNilPage
	}
	return nil
}

func (s *playwrightSession) wrap(what string, timeout time.Duration, err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return timeoutError(what, timeout, err)
	}
	s.logger.Debugf("playwright %s failed: %v", what, err)
	return fmt.Errorf("%s failed: %w", what, err)
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
