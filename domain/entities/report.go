package entities

import "time"

// RunState is a step in the lifecycle of a single verification run
type RunState string

const (
	StateIdle             RunState = "idle"
	StateSessionStarted   RunState = "session_started"
	StateNavigated        RunState = "navigated"
	StateNavigationFailed RunState = "navigation_failed"
	StateProbesComplete   RunState = "probes_complete"
	StateCaptured         RunState = "captured"
	StateCaptureFailed    RunState = "capture_failed"
	StateTornDown         RunState = "torn_down"
)

// ProbeStatus is the outcome of one fragment probe
type ProbeStatus string

const (
	ProbeFound   ProbeStatus = "found"
	ProbeMissing ProbeStatus = "missing"
	ProbeError   ProbeStatus = "error"
)

// ProbeResult represents the result of waiting for one fragment
type ProbeResult struct {
	Fragment string        `json:"fragment"`
	Status   ProbeStatus   `json:"status"`
	Error    string        `json:"error,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// StepOutcome represents the result of navigation or capture
type StepOutcome struct {
	Attempted bool          `json:"attempted"`
	OK        bool          `json:"ok"`
	Error     string        `json:"error,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// RunReport collects everything observed during one run
type RunReport struct {
	ID             string        `json:"id"`
	Target         string        `json:"target"`
	URL            string        `json:"url"`
	Policy         Policy        `json:"policy"`
	States         []RunState    `json:"states"`
	SessionError   string        `json:"session_error,omitempty"`
	Navigation     StepOutcome   `json:"navigation"`
	Probes         []ProbeResult `json:"probes"`
	Capture        StepOutcome   `json:"capture"`
	ScreenshotPath string        `json:"screenshot_path,omitempty"`
	ErrorCapture   *StepOutcome  `json:"error_capture,omitempty"`
	Teardowns      int           `json:"teardowns"`
	TeardownError  string        `json:"teardown_error,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
}

// Enter records a state transition
func (r *RunReport) Enter(state RunState) {
	r.States = append(r.States, state)
}

// State returns the latest state
func (r *RunReport) State() RunState {
	if len(r.States) == 0 {
		return StateIdle
	}
	return r.States[len(r.States)-1]
}

// Count returns the number of probes with the given status
func (r *RunReport) Count(status ProbeStatus) int {
	n := 0
	for _, p := range r.Probes {
		if p.Status == status {
			n++
		}
	}
	return n
}

// Passed is true when navigation, every probe and the capture succeeded
func (r *RunReport) Passed() bool {
	if r.SessionError != "" || !r.Navigation.OK || !r.Capture.OK {
		return false
	}
	return r.Count(ProbeFound) == len(r.Probes)
}

// SuiteReport is the ordered list of runs for a suite
type SuiteReport struct {
	Runs []*RunReport `json:"runs"`
}

// Passed is true when every run passed
func (s *SuiteReport) Passed() bool {
	for _, r := range s.Runs {
		if !r.Passed() {
			return false
		}
	}
	return true
}

// Failed returns the runs that did not pass
func (s *SuiteReport) Failed() []*RunReport {
	var failed []*RunReport
	for _, r := range s.Runs {
		if !r.Passed() {
			failed = append(failed, r)
		}
	}
	return failed
}
