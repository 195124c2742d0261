package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

type chromedpLauncher struct {
	logger *logrus.Logger
}

type chromedpSession struct {
	ctx           context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	logger        *logrus.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewChromedpLauncher - creates launcher that drives Chrome over CDP
func NewChromedpLauncher(logger *logrus.Logger) interfaces.BrowserLauncher {
	return &chromedpLauncher{logger: logger}
}

func (l *chromedpLauncher) Name() string {
	return BackendChromedp
}

// Launch - starts a Chrome process and attaches to its first tab
func (l *chromedpLauncher) Launch(ctx context.Context, opts entities.SessionOptions) (interfaces.BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
	)
	if opts.Viewport != nil {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.Viewport.Width, opts.Viewport.Height))
	}
	if opts.BrowserPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.BrowserPath))
	}

	// The browser outlives individual calls, so it is not bound to ctx.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(l.logger.Debugf))

	session := &chromedpSession{
		ctx:           browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		logger:        l.logger,
	}

	if err := chromedp.Run(browserCtx); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	if opts.Viewport != nil {
		metrics := emulation.SetDeviceMetricsOverride(int64(opts.Viewport.Width), int64(opts.Viewport.Height), 1, false)
		if err := chromedp.Run(browserCtx, metrics); err != nil {
			session.Close()
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}

	return session, nil
}

// Navigate - navigates to the specified URL and waits for the load event
func (s *chromedpSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return s.run(ctx, "navigation", timeout, chromedp.Navigate(url))
}

// WaitForSelector - waits for a CSS selector to be visible
func (s *chromedpSession) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, "waiting for selector "+selector, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// WaitForText - polls until any element containing text is visible; hidden copies are ignored
func (s *chromedpSession) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	return s.run(ctx, fmt.Sprintf("waiting for text %q", text), timeout, pollVisible(anyVisibleScript(textXPath(text))))
}

// pollVisible re-evaluates script until it returns true or ctx is done
func pollVisible(script string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		var lastErr error
		for {
			var visible bool
			// evaluation fails while the page is still navigating, so keep polling
			if err := chromedp.Evaluate(script, &visible).Do(ctx); err != nil {
				lastErr = err
			} else if visible {
				return nil
			}

			select {
			case <-ctx.Done():
				if lastErr != nil {
					return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
				}
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
}

// Screenshot - captures the viewport or the whole page as PNG
func (s *chromedpSession) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte

	var action chromedp.Action = chromedp.CaptureScreenshot(&buf)
	if fullPage {
		// quality 100 selects PNG encoding
		action = chromedp.FullScreenshot(&buf, 100)
	}

	if err := s.run(ctx, "screenshot", 0, action); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close - closes the tab, then the browser process
func (s *chromedpSession) Close() error {
	s.closeOnce.Do(func() {
		if err := ignoreClosed(chromedp.Cancel(s.ctx)); err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
		s.browserCancel()
		s.allocCancel()
	})
	return s.closeErr
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx
func (s *chromedpSession) run(ctx context.Context, what string, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ctx.Err(); err != nil {
		return errNilPage
	}

	var opCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		opCtx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		opCtx, cancel = context.WithCancel(s.ctx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return timeoutError(what, timeout, err)
	}
	s.logger.Debugf("chromedp %s failed: %v", what, err)
	return fmt.Errorf("%s failed: %w", what, err)
}
