package verifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"
	"ui_verification/infrastructure/storage"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dashboardFragments = []string{"Universal Status", "Health Pulse", "Now Playing", "Social Feed"}

type fakeSession struct {
	navErr        error
	readyErr      error
	present       map[string]bool
	textErrs      map[string]error
	screenshotErr error
	closeErr      error

	navigations int
	probed      []string
	timeouts    []time.Duration
	shots       int
	closes      int
}

func (s *fakeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	s.navigations++
	return s.navErr
}

func (s *fakeSession) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return s.readyErr
}

func (s *fakeSession) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	s.probed = append(s.probed, text)
	s.timeouts = append(s.timeouts, timeout)
	if err, ok := s.textErrs[text]; ok {
		return err
	}
	if s.navErr == nil && s.present[text] {
		return nil
	}
	return fmt.Errorf("waiting for %q: %w", text, interfaces.ErrTimeout)
}

func (s *fakeSession) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	s.shots++
	if s.screenshotErr != nil {
		return nil, s.screenshotErr
	}
	return []byte("\x89PNG fake"), nil
}

func (s *fakeSession) Close() error {
	s.closes++
	return s.closeErr
}

type fakeLauncher struct {
	session   *fakeSession
	launchErr error
	launched  []entities.SessionOptions
}

func (l *fakeLauncher) Name() string { return "fake" }

func (l *fakeLauncher) Launch(ctx context.Context, opts entities.SessionOptions) (interfaces.BrowserSession, error) {
	l.launched = append(l.launched, opts)
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	return l.session, nil
}

type memoryStore struct {
	files   map[string][]byte
	saveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{files: make(map[string][]byte)}
}

func (m *memoryStore) SaveScreenshot(path string, data []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.files[path] = data
	return nil
}

func (m *memoryStore) SaveReport(path string, report *entities.SuiteReport) error {
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func dashboardTarget(policy entities.Policy) entities.Target {
	fragments := make([]entities.Fragment, 0, len(dashboardFragments))
	for _, text := range dashboardFragments {
		fragments = append(fragments, entities.Fragment{Text: text})
	}
	fragments[0].Timeout = 30 * time.Second

	return entities.Target{
		Name:              "dashboard",
		URL:               "http://localhost:5173",
		Fragments:         fragments,
		ScreenshotPath:    "verification/dashboard_verification.png",
		FullPage:          true,
		SettleDelay:       5 * time.Second,
		NavigationTimeout: 60 * time.Second,
		FragmentTimeout:   5 * time.Second,
		Policy:            policy,
	}
}

func allPresent() map[string]bool {
	present := make(map[string]bool)
	for _, text := range dashboardFragments {
		present[text] = true
	}
	return present
}

func newTestRunner(launcher interfaces.BrowserLauncher, store interfaces.ArtifactStore) *Runner {
	return NewRunner(launcher, store, quietLogger(), entities.SessionOptions{Headless: true}, WithSleeper(noSleep))
}

// fragmentEntries returns the log entries tagged with a fragment, in order
func fragmentEntries(hook *test.Hook) []*logrus.Entry {
	var entries []*logrus.Entry
	for _, entry := range hook.AllEntries() {
		if _, ok := entry.Data["fragment"]; ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

func TestRun_AllFragmentsFound(t *testing.T) {
	session := &fakeSession{present: allPresent()}
	store := newMemoryStore()
	runner := newTestRunner(&fakeLauncher{session: session}, store)

	report := runner.Run(context.Background(), dashboardTarget(entities.PolicyStrict))

	assert.True(t, report.Passed())
	assert.Equal(t, 4, report.Count(entities.ProbeFound))
	assert.Contains(t, store.files, "verification/dashboard_verification.png")
	assert.Equal(t, "verification/dashboard_verification.png", report.ScreenshotPath)
	assert.Equal(t, 1, session.closes)
	assert.Equal(t, []entities.RunState{
		entities.StateIdle,
		entities.StateSessionStarted,
		entities.StateNavigated,
		entities.StateProbesComplete,
		entities.StateCaptured,
		entities.StateTornDown,
	}, report.States)
}

func TestRun_NavigationFailureStrict(t *testing.T) {
	session := &fakeSession{navErr: errors.New("net::ERR_CONNECTION_REFUSED")}
	store := newMemoryStore()
	runner := newTestRunner(&fakeLauncher{session: session}, store)

	report := runner.Run(context.Background(), dashboardTarget(entities.PolicyStrict))

	assert.False(t, report.Passed())
	assert.False(t, report.Navigation.OK)
	assert.Contains(t, report.Navigation.Error, "ERR_CONNECTION_REFUSED")
	assert.Empty(t, report.Probes)
	assert.Empty(t, session.probed)
	assert.False(t, report.Capture.Attempted)
	assert.Zero(t, session.shots)
	assert.Empty(t, store.files)
	assert.Nil(t, report.ErrorCapture)
	assert.Equal(t, 1, session.closes)
	assert.Equal(t, []entities.RunState{
		entities.StateIdle,
		entities.StateSessionStarted,
		entities.StateNavigationFailed,
		entities.StateTornDown,
	}, report.States)
}

func TestRun_NavigationFailureStrictWithErrorScreenshot(t *testing.T) {
	session := &fakeSession{navErr: errors.New("net::ERR_CONNECTION_REFUSED")}
	store := newMemoryStore()
	runner := newTestRunner(&fakeLauncher{session: session}, store)

	target := dashboardTarget(entities.PolicyStrict)
	target.ErrorScreenshotPath = "verification/error.png"
	report := runner.Run(context.Background(), target)

	require.NotNil(t, report.ErrorCapture)
	assert.True(t, report.ErrorCapture.OK)
	assert.Contains(t, store.files, "verification/error.png")
	assert.NotContains(t, store.files, target.ScreenshotPath)
	assert.Empty(t, report.Probes)
	assert.Equal(t, 1, session.closes)
}

func TestRun_NavigationFailureTolerant(t *testing.T) {
	session := &fakeSession{navErr: errors.New("net::ERR_CONNECTION_REFUSED"), present: allPresent()}
	store := newMemoryStore()
	runner := newTestRunner(&fakeLauncher{session: session}, store)

	report := runner.Run(context.Background(), dashboardTarget(entities.PolicyTolerant))

	assert.False(t, report.Passed())
	require.Len(t, report.Probes, 4)
	assert.Equal(t, 4, report.Count(entities.ProbeMissing))
	assert.True(t, report.Capture.Attempted)
	assert.Equal(t, 1, session.shots)
	assert.Equal(t, 1, session.closes)
	assert.Equal(t, []entities.RunState{
		entities.StateIdle,
		entities.StateSessionStarted,
		entities.StateNavigationFailed,
		entities.StateProbesComplete,
		entities.StateCaptured,
		entities.StateTornDown,
	}, report.States)
}

func TestRun_OneFragmentMissing(t *testing.T) {
	present := allPresent()
	delete(present, "Social Feed")
	session := &fakeSession{present: present}
	store := newMemoryStore()
	runner := newTestRunner(&fakeLauncher{session: session}, store)

	report := runner.Run(context.Background(), dashboardTarget(entities.PolicyStrict))

	assert.Equal(t, 3, report.Count(entities.ProbeFound))
	assert.Equal(t, 1, report.Count(entities.ProbeMissing))
	assert.Equal(t, "Social Feed", report.Probes[3].Fragment)
	assert.Contains(t, report.Probes[3].Error, "Social Feed")
	assert.True(t, report.Capture.OK)
	assert.Contains(t, store.files, "verification/dashboard_verification.png")
	assert.False(t, report.Passed())
}

func TestRun_TeardownExactlyOnce(t *testing.T) {
	tests := []struct {
		name    string
		session *fakeSession
		store   *memoryStore
		policy  entities.Policy
	}{
		{
			name:    "navigation fails",
			session: &fakeSession{navErr: errors.New("refused")},
			store:   newMemoryStore(),
			policy:  entities.PolicyStrict,
		},
		{
			name:    "every probe fails",
			session: &fakeSession{},
			store:   newMemoryStore(),
			policy:  entities.PolicyStrict,
		},
		{
			name:    "screenshot fails",
			session: &fakeSession{present: allPresent(), screenshotErr: errors.New("target closed")},
			store:   newMemoryStore(),
			policy:  entities.PolicyStrict,
		},
		{
			name:    "write fails",
			session: &fakeSession{present: allPresent()},
			store:   &memoryStore{files: map[string][]byte{}, saveErr: errors.New("read-only file system")},
			policy:  entities.PolicyStrict,
		},
		{
			name:    "everything fails",
			session: &fakeSession{navErr: errors.New("refused"), screenshotErr: errors.New("boom"), closeErr: errors.New("already gone")},
			store:   newMemoryStore(),
			policy:  entities.PolicyTolerant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newTestRunner(&fakeLauncher{session: tt.session}, tt.store)
			report := runner.Run(context.Background(), dashboardTarget(tt.policy))

			assert.Equal(t, 1, tt.session.closes)
			assert.Equal(t, 1, report.Teardowns)
			assert.Equal(t, entities.StateTornDown, report.State())
			assert.False(t, report.Passed())
		})
	}
}

func TestRun_CaptureFailureReported(t *testing.T) {
	session := &fakeSession{present: allPresent(), screenshotErr: errors.New("target closed")}
	runner := newTestRunner(&fakeLauncher{session: session}, newMemoryStore())

	report := runner.Run(context.Background(), dashboardTarget(entities.PolicyStrict))

	assert.True(t, report.Capture.Attempted)
	assert.False(t, report.Capture.OK)
	assert.Contains(t, report.Capture.Error, "target closed")
	assert.Empty(t, report.ScreenshotPath)
	assert.Contains(t, report.States, entities.StateCaptureFailed)
}

func TestRun_NoFragments(t *testing.T) {
	session := &fakeSession{}
	store := newMemoryStore()
	logger, hook := test.NewNullLogger()
	runner := NewRunner(&fakeLauncher{session: session}, store, logger, entities.SessionOptions{Headless: true}, WithSleeper(noSleep))

	target := dashboardTarget(entities.PolicyStrict)
	target.Fragments = nil
	report := runner.Run(context.Background(), target)

	assert.Empty(t, report.Probes)
	assert.Empty(t, session.probed)
	assert.True(t, report.Passed())
	assert.Len(t, store.files, 1)
	assert.Empty(t, fragmentEntries(hook), "no fragment outcomes are logged")
}

func TestRun_ProbesAreIndependent(t *testing.T) {
	session := &fakeSession{
		present: allPresent(),
		textErrs: map[string]error{
			"Health Pulse": errors.New("execution context was destroyed"),
		},
	}
	delete(session.present, "Universal Status")
	logger, hook := test.NewNullLogger()
	runner := NewRunner(&fakeLauncher{session: session}, newMemoryStore(), logger, entities.SessionOptions{Headless: true}, WithSleeper(noSleep))

	report := runner.Run(context.Background(), dashboardTarget(entities.PolicyStrict))

	assert.Equal(t, dashboardFragments, session.probed)
	require.Len(t, report.Probes, 4)
	assert.Equal(t, entities.ProbeMissing, report.Probes[0].Status)
	assert.Equal(t, entities.ProbeError, report.Probes[1].Status)
	assert.Equal(t, entities.ProbeFound, report.Probes[2].Status)
	assert.Equal(t, entities.ProbeFound, report.Probes[3].Status)

	entries := fragmentEntries(hook)
	require.Len(t, entries, 4, "one outcome line per fragment")
	wantLevels := []logrus.Level{logrus.WarnLevel, logrus.ErrorLevel, logrus.InfoLevel, logrus.InfoLevel}
	for i, entry := range entries {
		assert.Equal(t, dashboardFragments[i], entry.Data["fragment"])
		assert.Equal(t, wantLevels[i], entry.Level)
	}
	assert.Contains(t, entries[0].Message, "missing after 30s")
	assert.Contains(t, entries[1].Message, "execution context was destroyed")
}

func TestRun_FragmentTimeouts(t *testing.T) {
	session := &fakeSession{present: allPresent()}
	runner := newTestRunner(&fakeLauncher{session: session}, newMemoryStore())

	runner.Run(context.Background(), dashboardTarget(entities.PolicyStrict))

	assert.Equal(t, []time.Duration{30 * time.Second, 5 * time.Second, 5 * time.Second, 5 * time.Second}, session.timeouts)
}

func TestRun_Idempotent(t *testing.T) {
	dir := t.TempDir()
	present := allPresent()
	delete(present, "Now Playing")
	session := &fakeSession{present: present}
	runner := newTestRunner(&fakeLauncher{session: session}, storage.NewArtifactStore())

	target := dashboardTarget(entities.PolicyStrict)
	target.ScreenshotPath = filepath.Join(dir, "verification", "dashboard_verification.png")

	first := runner.Run(context.Background(), target)
	second := runner.Run(context.Background(), target)

	require.Len(t, second.Probes, len(first.Probes))
	for i := range first.Probes {
		assert.Equal(t, first.Probes[i].Fragment, second.Probes[i].Fragment)
		assert.Equal(t, first.Probes[i].Status, second.Probes[i].Status)
	}
	assert.True(t, second.Capture.OK)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, session.closes)
	assert.FileExists(t, target.ScreenshotPath)
}

func TestRun_CreatesScreenshotDirectory(t *testing.T) {
	dir := t.TempDir()
	session := &fakeSession{present: allPresent()}
	runner := newTestRunner(&fakeLauncher{session: session}, storage.NewArtifactStore())

	target := dashboardTarget(entities.PolicyStrict)
	target.ScreenshotPath = filepath.Join(dir, "does", "not", "exist", "shot.png")
	report := runner.Run(context.Background(), target)

	require.True(t, report.Capture.OK, report.Capture.Error)
	data, err := os.ReadFile(target.ScreenshotPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG fake"), data)
}

func TestRun_LaunchFailure(t *testing.T) {
	launcher := &fakeLauncher{launchErr: errors.New("executable doesn't exist")}
	runner := newTestRunner(launcher, newMemoryStore())

	report := runner.Run(context.Background(), dashboardTarget(entities.PolicyStrict))

	assert.Contains(t, report.SessionError, "executable doesn't exist")
	assert.Zero(t, report.Teardowns)
	assert.Equal(t, []entities.RunState{entities.StateIdle}, report.States)
	assert.False(t, report.Passed())
}

func TestRun_ReadySelectorFailureIsNavigationFailure(t *testing.T) {
	session := &fakeSession{readyErr: fmt.Errorf("#root: %w", interfaces.ErrTimeout), present: allPresent()}
	runner := newTestRunner(&fakeLauncher{session: session}, newMemoryStore())

	target := dashboardTarget(entities.PolicyStrict)
	target.ReadySelector = "#root"
	target.ReadyTimeout = 10 * time.Second
	report := runner.Run(context.Background(), target)

	assert.False(t, report.Navigation.OK)
	assert.Contains(t, report.Navigation.Error, "#root")
	assert.Empty(t, report.Probes)
	assert.Equal(t, 1, session.closes)
}

func TestRun_ViewportFromTarget(t *testing.T) {
	launcher := &fakeLauncher{session: &fakeSession{present: allPresent()}}
	runner := newTestRunner(launcher, newMemoryStore())

	target := dashboardTarget(entities.PolicyStrict)
	target.Viewport = &entities.Viewport{Width: 1280, Height: 1024}
	runner.Run(context.Background(), target)

	require.Len(t, launcher.launched, 1)
	require.NotNil(t, launcher.launched[0].Viewport)
	assert.Equal(t, 1280, launcher.launched[0].Viewport.Width)
	assert.True(t, launcher.launched[0].Headless)
}

func TestRun_CanceledDuringSettleDelay(t *testing.T) {
	session := &fakeSession{present: allPresent()}
	runner := newTestRunner(&fakeLauncher{session: session}, newMemoryStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := runner.Run(ctx, dashboardTarget(entities.PolicyStrict))

	assert.Zero(t, session.navigations)
	assert.Contains(t, report.Navigation.Error, "settle delay interrupted")
	assert.Equal(t, 1, session.closes)
}

func TestRunSuite(t *testing.T) {
	session := &fakeSession{present: allPresent()}
	runner := newTestRunner(&fakeLauncher{session: session}, newMemoryStore())

	second := dashboardTarget(entities.PolicyStrict)
	second.Name = "empty"
	second.Fragments = []entities.Fragment{{Text: "Not There"}}

	suite := runner.RunSuite(context.Background(), []entities.Target{dashboardTarget(entities.PolicyStrict), second})

	require.Len(t, suite.Runs, 2)
	assert.True(t, suite.Runs[0].Passed())
	assert.False(t, suite.Runs[1].Passed())
	assert.False(t, suite.Passed())
	require.Len(t, suite.Failed(), 1)
	assert.Equal(t, "empty", suite.Failed()[0].Target)
	assert.Equal(t, 2, session.closes)
}

func TestRunSuite_StopsWhenCanceled(t *testing.T) {
	session := &fakeSession{present: allPresent()}
	runner := newTestRunner(&fakeLauncher{session: session}, newMemoryStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	suite := runner.RunSuite(ctx, []entities.Target{dashboardTarget(entities.PolicyStrict)})

	assert.Empty(t, suite.Runs)
	assert.Zero(t, session.closes)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
