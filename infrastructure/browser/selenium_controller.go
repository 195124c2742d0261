package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"

	"github.com/sirupsen/logrus"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"go.uber.org/multierr"
)

const (
	defaultDriverPort = 9515
	pollInterval      = 250 * time.Millisecond
)

type seleniumLauncher struct {
	logger *logrus.Logger
}

type SeleniumController struct {
	wd      selenium.WebDriver
	service *selenium.Service
	logger  *logrus.Logger

	closeOnce sync.Once
	closeErr  error
}

// findChromeDriver - finds ChromeDriver executable path
func findChromeDriver(configured string) (string, error) {
	candidates := []string{configured, os.Getenv("BROWSER_DRIVER_PATH")}
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	commonPaths := []string{
		"/usr/local/bin/chromedriver",
		"/usr/bin/chromedriver",
		"/opt/homebrew/bin/chromedriver",
		filepath.Join(os.Getenv("HOME"), "bin", "chromedriver"),
	}

	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if path, err := exec.LookPath("chromedriver"); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("chromedriver not found. Please install it or set BROWSER_DRIVER_PATH environment variable")
}

// NewSeleniumLauncher - creates launcher that drives Chrome through chromedriver
func NewSeleniumLauncher(logger *logrus.Logger) interfaces.BrowserLauncher {
	return &seleniumLauncher{logger: logger}
}

func (l *seleniumLauncher) Name() string {
	return BackendSelenium
}

// Launch - starts chromedriver and a Chrome session
func (l *seleniumLauncher) Launch(ctx context.Context, opts entities.SessionOptions) (interfaces.BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	driverPath, err := findChromeDriver(opts.DriverPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find chromedriver: %w", err)
	}
	l.logger.Debugf("Using ChromeDriver at: %s", driverPath)

	port := opts.DriverPort
	if port == 0 {
		port = defaultDriverPort
	}

	service, err := selenium.NewChromeDriverService(driverPath, port)
	if err != nil {
		return nil, fmt.Errorf("failed to start chromedriver: %w", err)
	}

	caps := selenium.Capabilities{
		"browserName": "chrome",
	}

	args := []string{
		"--disable-dev-shm-usage",
		"--no-sandbox",
	}
	if opts.Headless {
		args = append(args, "--headless=new")
	}
	if opts.Viewport != nil {
		args = append(args, fmt.Sprintf("--window-size=%d,%d", opts.Viewport.Width, opts.Viewport.Height))
	}

	chromeCaps := chrome.Capabilities{Args: args}
	if opts.BrowserPath != "" {
		chromeCaps.Path = opts.BrowserPath
	}
	caps.AddChrome(chromeCaps)

	wd, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d/wd/hub", port))
	if err != nil {
		service.Stop()
		if strings.Contains(err.Error(), "cannot find Chrome binary") {
			return nil, fmt.Errorf("failed to create webdriver: Chrome browser not found. Please install Google Chrome or set CHROME_BINARY_PATH environment variable. Error: %w", err)
		}
		return nil, fmt.Errorf("failed to create webdriver: %w", err)
	}

	return &SeleniumController{
		wd:      wd,
		service: service,
		logger:  l.logger,
	}, nil
}

// Navigate - navigates browser to specified URL
func (s *SeleniumController) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if timeout > 0 {
		if err := s.wd.SetPageLoadTimeout(timeout); err != nil {
			s.logger.Warnf("Failed to set page load timeout: %v", err)
		}
	}

	if err := s.wd.Get(url); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "timeout") {
			return timeoutError("navigation", timeout, err)
		}
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// WaitForSelector - polls until a CSS selector matches a displayed element
func (s *SeleniumController) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return s.waitDisplayed(ctx, "selector "+selector, selenium.ByCSSSelector, selector, timeout)
}

// WaitForText - polls until an element containing text is displayed
func (s *SeleniumController) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	return s.waitDisplayed(ctx, fmt.Sprintf("text %q", text), selenium.ByXPATH, textXPath(text), timeout)
}

func (s *SeleniumController) waitDisplayed(ctx context.Context, what, by, value string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	condition := func(wd selenium.WebDriver) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		elements, err := wd.FindElements(by, value)
		if err != nil {
			return false, nil
		}
		for _, el := range elements {
			if shown, err := el.IsDisplayed(); err == nil && shown {
				return true, nil
			}
		}
		return false, nil
	}

	if err := s.wd.WaitWithTimeoutAndInterval(condition, timeout, pollInterval); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return timeoutError("waiting for "+what, timeout, err)
	}
	return nil
}

// Screenshot - takes screenshot of the visible viewport
func (s *SeleniumController) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fullPage {
		s.logger.Debug("selenium captures the viewport only; full page ignored")
	}

	data, err := s.wd.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}

// Close - closes browser and stops ChromeDriver service
func (s *SeleniumController) Close() error {
	s.closeOnce.Do(func() {
		if s.wd != nil {
			if err := ignoreClosed(s.wd.Quit()); err != nil {
				s.closeErr = multierr.Append(s.closeErr, fmt.Errorf("failed to quit webdriver: %w", err))
			}
		}
		if s.service != nil {
			if err := s.service.Stop(); err != nil {
				s.closeErr = multierr.Append(s.closeErr, fmt.Errorf("failed to stop chromedriver: %w", err))
			}
		}
	})
	return s.closeErr
}
