package interfaces

import (
	"context"
	"errors"
	"time"

	"ui_verification/domain/entities"
)

// ErrTimeout is wrapped by backends when a bounded wait gave up
var ErrTimeout = errors.New("timed out")

// BrowserLauncher starts browser sessions
type BrowserLauncher interface {
	// Name returns the backend name
	Name() string

	// Launch starts the engine and opens a single page
	Launch(ctx context.Context, opts entities.SessionOptions) (BrowserSession, error)
}

// BrowserSession is one browser engine with one page
type BrowserSession interface {
	// Navigate directs the page to url
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// WaitForSelector waits for a CSS selector to become visible
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error

	// WaitForText waits for text to become visible anywhere in the page
	WaitForText(ctx context.Context, text string, timeout time.Duration) error

	// Screenshot returns PNG bytes of the page
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)

	// Close shuts down the page and the engine
	Close() error
}
