package browser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ui_verification/domain/interfaces"

	"github.com/sirupsen/logrus"
)

const (
	BackendPlaywright = "playwright"
	BackendChromedp   = "chromedp"
	BackendSelenium   = "selenium"
)

// Backends lists the supported backend names
func Backends() []string {
	return []string{BackendPlaywright, BackendChromedp, BackendSelenium}
}

// NewLauncher - returns the launcher for the named backend
func NewLauncher(name string, logger *logrus.Logger) (interfaces.BrowserLauncher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendPlaywright:
		return NewPlaywrightLauncher(logger), nil
	case BackendChromedp:
		return NewChromedpLauncher(logger), nil
	case BackendSelenium:
		return NewSeleniumLauncher(logger), nil
	default:
		return nil, fmt.Errorf("unknown browser backend %q (available: %s)", name, strings.Join(Backends(), ", "))
	}
}

// timeoutError wraps a backend error so callers can match interfaces.ErrTimeout
func timeoutError(what string, timeout time.Duration, err error) error {
	return fmt.Errorf("%s: %w after %s: %v", what, interfaces.ErrTimeout, timeout, err)
}

// closedMessages are the backend messages that mean the browser is already gone
var closedMessages = []string{
	"target closed",
	"has been closed",
	"browser has disconnected",
	"invalid session id",
}

// isClosedErr - reports whether err only says the target is already gone
func isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, msg := range closedMessages {
		if strings.Contains(errStr, msg) {
			return true
		}
	}
	return false
}

// ignoreClosed drops "already closed" errors during teardown
func ignoreClosed(err error) error {
	if isClosedErr(err) {
		return nil
	}
	return err
}

var errNilPage = errors.New("page is not open")
