package entities

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy decides what happens after a navigation failure
type Policy string

const (
	PolicyStrict   Policy = "strict"
	PolicyTolerant Policy = "tolerant"
)

// Valid reports whether p is a known policy
func (p Policy) Valid() bool {
	return p == PolicyStrict || p == PolicyTolerant
}

// Viewport is the page size in CSS pixels
type Viewport struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Fragment is a piece of text expected somewhere in the rendered page.
// A zero Timeout means the target's FragmentTimeout applies.
type Fragment struct {
	Text    string        `yaml:"text" json:"text"`
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// UnmarshalYAML accepts either a bare string or a {text, timeout} mapping
func (f *Fragment) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		f.Text = value.Value
		f.Timeout = 0
		return nil
	}

	type plain Fragment
	var p plain
	if err := value.Decode(&p); err != nil {
		return fmt.Errorf("invalid fragment at line %d: %w", value.Line, err)
	}
	*f = Fragment(p)
	return nil
}

// Target describes one page to verify
type Target struct {
	Name                string        `yaml:"name" json:"name"`
	URL                 string        `yaml:"url" json:"url"`
	Fragments           []Fragment    `yaml:"fragments" json:"fragments"`
	ScreenshotPath      string        `yaml:"screenshot" json:"screenshot"`
	FullPage            bool          `yaml:"full_page" json:"full_page"`
	Viewport            *Viewport     `yaml:"viewport,omitempty" json:"viewport,omitempty"`
	SettleDelay         time.Duration `yaml:"settle_delay" json:"settle_delay"`
	NavigationTimeout   time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	FragmentTimeout     time.Duration `yaml:"fragment_timeout" json:"fragment_timeout"`
	ReadySelector       string        `yaml:"ready_selector,omitempty" json:"ready_selector,omitempty"`
	ReadyTimeout        time.Duration `yaml:"ready_timeout,omitempty" json:"ready_timeout,omitempty"`
	RenderDelay         time.Duration `yaml:"render_delay,omitempty" json:"render_delay,omitempty"`
	Policy              Policy        `yaml:"policy" json:"policy"`
	ErrorScreenshotPath string        `yaml:"error_screenshot,omitempty" json:"error_screenshot,omitempty"`
}

// TimeoutFor returns the wait budget for a single fragment
func (t Target) TimeoutFor(f Fragment) time.Duration {
	if f.Timeout > 0 {
		return f.Timeout
	}
	return t.FragmentTimeout
}

// SessionOptions are backend-neutral browser launch settings
type SessionOptions struct {
	Headless    bool
	Viewport    *Viewport
	BrowserPath string
	DriverPath  string
	DriverPort  int
}
