package entities

import "fmt"

// SessionError is returned when the browser session could not be started
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string { return fmt.Sprintf("failed to start browser session: %v", e.Err) }
func (e *SessionError) Unwrap() error { return e.Err }

// NavigationError covers a failed goto or a readiness selector that never appeared
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.URL, e.Err)
}
func (e *NavigationError) Unwrap() error { return e.Err }

// ProbeTimeoutError is produced once per fragment that failed to appear
type ProbeTimeoutError struct {
	Fragment string
	Err      error
}

func (e *ProbeTimeoutError) Error() string {
	return fmt.Sprintf("fragment %q not found: %v", e.Fragment, e.Err)
}
func (e *ProbeTimeoutError) Unwrap() error { return e.Err }

// CaptureError is returned when the screenshot could not be taken or written
type CaptureError struct {
	Path string
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("failed to capture screenshot to %s: %v", e.Path, e.Err)
}
func (e *CaptureError) Unwrap() error { return e.Err }
