package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Runner drives bootstrap, navigation, probes, capture and teardown for a target
type Runner struct {
	launcher interfaces.BrowserLauncher
	store    interfaces.ArtifactStore
	logger   *logrus.Logger
	session  entities.SessionOptions
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
	newID    func() string
}

// Option configures a Runner
type Option func(*Runner)

// WithSleeper replaces the delay used for settle and render pauses
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) { r.sleep = sleep }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner - creates new verification runner
func NewRunner(launcher interfaces.BrowserLauncher, store interfaces.ArtifactStore, logger *logrus.Logger, session entities.SessionOptions, opts ...Option) *Runner {
	r := &Runner{
		launcher: launcher,
		store:    store,
		logger:   logger,
		session:  session,
		sleep:    sleepContext,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunSuite - runs targets one after another, stopping early only when ctx is done
func (r *Runner) RunSuite(ctx context.Context, targets []entities.Target) *entities.SuiteReport {
	suite := &entities.SuiteReport{Runs: make([]*entities.RunReport, 0, len(targets))}

	for _, target := range targets {
		if ctx.Err() != nil {
			r.logger.Warnf("Suite interrupted before %q: %v", target.Name, ctx.Err())
			break
		}
		suite.Runs = append(suite.Runs, r.Run(ctx, target))
	}

	failed := suite.Failed()
	r.logger.WithFields(logrus.Fields{
		"runs":   len(suite.Runs),
		"failed": len(failed),
	}).Info("Verification finished")
	for _, run := range failed {
		r.logger.Warnf("Target %q did not pass: %d found, %d missing, %d errors",
			run.Target, run.Count(entities.ProbeFound), run.Count(entities.ProbeMissing), run.Count(entities.ProbeError))
	}

	return suite
}

// Run - verifies one target. Every outcome lands in the report; nothing is returned as an error.
func (r *Runner) Run(ctx context.Context, target entities.Target) *entities.RunReport {
	report := &entities.RunReport{
		ID:        r.newID(),
		Target:    target.Name,
		URL:       target.URL,
		Policy:    target.Policy,
		Probes:    []entities.ProbeResult{},
		StartedAt: r.now(),
	}
	report.Enter(entities.StateIdle)
	defer func() { report.FinishedAt = r.now() }()

	log := r.logger.WithFields(logrus.Fields{"target": target.Name, "run": report.ID})

	opts := r.session
	if target.Viewport != nil {
		opts.Viewport = target.Viewport
	}

	log.Infof("Starting %s browser session", r.launcher.Name())
	session, err := r.launcher.Launch(ctx, opts)
	if err != nil {
		sessionErr := &entities.SessionError{Err: err}
		log.Error(sessionErr.Error())
		report.SessionError = sessionErr.Error()
		return report
	}
	report.Enter(entities.StateSessionStarted)
	defer r.teardown(log, session, report)

	navStart := r.now()
	navErr := r.navigate(ctx, log, session, target)
	report.Navigation = entities.StepOutcome{Attempted: true, OK: navErr == nil, Elapsed: r.now().Sub(navStart)}

	if navErr != nil {
		report.Navigation.Error = navErr.Error()
		report.Enter(entities.StateNavigationFailed)
		log.Errorf("Failed to load page: %v", navErr)

		if target.Policy != entities.PolicyTolerant {
			if target.ErrorScreenshotPath != "" {
				outcome := r.capture(ctx, log, session, target.ErrorScreenshotPath, target.FullPage)
				report.ErrorCapture = &outcome
			}
			log.Info("Skipping probes and screenshot")
			return report
		}
		log.Warn("Continuing after navigation failure")
	} else {
		report.Enter(entities.StateNavigated)
		log.Infof("Loaded %s", target.URL)
	}

	for _, fragment := range target.Fragments {
		report.Probes = append(report.Probes, r.probe(ctx, log, session, target, fragment))
	}
	report.Enter(entities.StateProbesComplete)

	report.Capture = r.capture(ctx, log, session, target.ScreenshotPath, target.FullPage)
	if report.Capture.OK {
		report.ScreenshotPath = target.ScreenshotPath
		report.Enter(entities.StateCaptured)
	} else {
		report.Enter(entities.StateCaptureFailed)
	}

	return report
}

func (r *Runner) navigate(ctx context.Context, log *logrus.Entry, session interfaces.BrowserSession, target entities.Target) error {
	if target.SettleDelay > 0 {
		log.Infof("Waiting %s for the server to settle", target.SettleDelay)
		if err := r.sleep(ctx, target.SettleDelay); err != nil {
			return &entities.NavigationError{URL: target.URL, Err: fmt.Errorf("settle delay interrupted: %w", err)}
		}
	}

	log.Infof("Navigating to %s", target.URL)
	if err := session.Navigate(ctx, target.URL, target.NavigationTimeout); err != nil {
		return &entities.NavigationError{URL: target.URL, Err: err}
	}

	if target.ReadySelector != "" {
		if err := session.WaitForSelector(ctx, target.ReadySelector, target.ReadyTimeout); err != nil {
			return &entities.NavigationError{URL: target.URL, Err: fmt.Errorf("ready selector %q: %w", target.ReadySelector, err)}
		}
	}

	if target.RenderDelay > 0 {
		if err := r.sleep(ctx, target.RenderDelay); err != nil {
			return &entities.NavigationError{URL: target.URL, Err: fmt.Errorf("render delay interrupted: %w", err)}
		}
	}

	return nil
}

func (r *Runner) probe(ctx context.Context, log *logrus.Entry, session interfaces.BrowserSession, target entities.Target, fragment entities.Fragment) entities.ProbeResult {
	timeout := target.TimeoutFor(fragment)
	start := r.now()
	err := session.WaitForText(ctx, fragment.Text, timeout)

	result := entities.ProbeResult{
		Fragment: fragment.Text,
		Status:   entities.ProbeFound,
		Elapsed:  r.now().Sub(start),
	}
	entry := log.WithField("fragment", fragment.Text)

	switch {
	case err == nil:
		entry.Infof("Found %q", fragment.Text)
	case errors.Is(err, interfaces.ErrTimeout):
		probeErr := &entities.ProbeTimeoutError{Fragment: fragment.Text, Err: err}
		result.Status = entities.ProbeMissing
		result.Error = probeErr.Error()
		entry.Warnf("%q missing after %s", fragment.Text, timeout)
	default:
		result.Status = entities.ProbeError
		result.Error = err.Error()
		entry.Errorf("Probe for %q failed: %v", fragment.Text, err)
	}

	return result
}

func (r *Runner) capture(ctx context.Context, log *logrus.Entry, session interfaces.BrowserSession, path string, fullPage bool) entities.StepOutcome {
	start := r.now()
	outcome := entities.StepOutcome{Attempted: true}

	err := r.takeScreenshot(ctx, session, path, fullPage)
	outcome.Elapsed = r.now().Sub(start)
	if err != nil {
		outcome.Error = err.Error()
		log.Error(err.Error())
		return outcome
	}

	outcome.OK = true
	log.Infof("Screenshot saved to %s", path)
	return outcome
}

func (r *Runner) takeScreenshot(ctx context.Context, session interfaces.BrowserSession, path string, fullPage bool) error {
	data, err := session.Screenshot(ctx, fullPage)
	if err != nil {
		return &entities.CaptureError{Path: path, Err: err}
	}
	if err := r.store.SaveScreenshot(path, data); err != nil {
		return &entities.CaptureError{Path: path, Err: err}
	}
	return nil
}

func (r *Runner) teardown(log *logrus.Entry, session interfaces.BrowserSession, report *entities.RunReport) {
	report.Teardowns++
	if err := session.Close(); err != nil {
		report.TeardownError = err.Error()
		log.Warnf("Failed to close browser cleanly: %v", err)
	}
	report.Enter(entities.StateTornDown)
	log.Info("Browser closed")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
