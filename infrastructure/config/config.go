package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"ui_verification/domain/entities"
	"ui_verification/infrastructure/browser"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const envPrefix = "UIVERIFY_"

// Config represents the configuration for a verification suite
type Config struct {
	// Browser backend: playwright, chromedp or selenium
	Browser  string `yaml:"browser" json:"browser"`
	Headless bool   `yaml:"headless" json:"headless"`

	// Logging verbosity, any logrus level name
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Allow targets outside the loopback range
	AllowRemote bool `yaml:"allow_remote" json:"allow_remote"`

	// Engine locations, empty means auto-detect
	BrowserPath string `yaml:"browser_path" json:"browser_path"`
	DriverPath  string `yaml:"driver_path" json:"driver_path"`
	DriverPort  int    `yaml:"driver_port" json:"driver_port"`

	// JSON report output, empty disables it
	ReportPath string `yaml:"report" json:"report"`

	// Exit non-zero when any run fails
	Gate bool `yaml:"gate" json:"gate"`

	// Defaults are inherited by every target
	Defaults entities.Target `yaml:"defaults" json:"defaults"`

	Targets []entities.Target `yaml:"-" json:"targets"`
}

// Overrides are per-target values coming from the environment or flags
type Overrides struct {
	URL         string
	Policy      string
	Screenshot  string
	SettleDelay *time.Duration
}

// DefaultTarget reproduces the dashboard verification script
func DefaultTarget() entities.Target {
	return entities.Target{
		Name: "dashboard",
		URL:  "http://localhost:5173",
		Fragments: []entities.Fragment{
			{Text: "Universal Status", Timeout: 30 * time.Second},
			{Text: "Health Pulse"},
			{Text: "Now Playing"},
			{Text: "Social Feed"},
		},
		ScreenshotPath:    "verification/dashboard_verification.png",
		FullPage:          true,
		Viewport:          &entities.Viewport{Width: 1280, Height: 1024},
		SettleDelay:       5 * time.Second,
		NavigationTimeout: 60 * time.Second,
		FragmentTimeout:   5 * time.Second,
		Policy:            entities.PolicyStrict,
	}
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Browser:  browser.BackendPlaywright,
		Headless: true,
		LogLevel: "info",
		Defaults: DefaultTarget(),
	}
}

// Load reads an optional YAML suite file on top of the built-in defaults
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		cfg.Targets = []entities.Target{cloneTarget(cfg.Defaults)}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cfg.parse(data); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) parse(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return err
	}

	var raw struct {
		Targets []yaml.Node `yaml:"targets"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	if len(raw.Targets) == 0 {
		c.Targets = []entities.Target{cloneTarget(c.Defaults)}
		return nil
	}

	c.Targets = make([]entities.Target, 0, len(raw.Targets))
	for i := range raw.Targets {
		target := cloneTarget(c.Defaults)
		target.Name = ""
		if err := raw.Targets[i].Decode(&target); err != nil {
			return fmt.Errorf("target %d: %w", i+1, err)
		}
		if target.Name == "" {
			target.Name = fmt.Sprintf("target-%d", i+1)
		}
		c.Targets = append(c.Targets, target)
	}
	return nil
}

// ApplyEnv overlays UIVERIFY_* and the driver location variables
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error
	var o Overrides

	if v := getenv(envPrefix + "BROWSER"); v != "" {
		c.Browser = v
	}
	if v := getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv(envPrefix + "REPORT"); v != "" {
		c.ReportPath = v
	}
	if v := getenv("CHROME_BINARY_PATH"); v != "" {
		c.BrowserPath = v
	}
	if v := getenv("BROWSER_DRIVER_PATH"); v != "" {
		c.DriverPath = v
	}

	parseBool := func(key string, dst *bool) {
		v := getenv(envPrefix + key)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
			return
		}
		*dst = b
	}
	parseBool("HEADLESS", &c.Headless)
	parseBool("ALLOW_REMOTE", &c.AllowRemote)
	parseBool("GATE", &c.Gate)

	o.URL = getenv(envPrefix + "URL")
	o.Policy = getenv(envPrefix + "POLICY")
	o.Screenshot = getenv(envPrefix + "SCREENSHOT")
	if v := getenv(envPrefix + "SETTLE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSETTLE_DELAY: %w", envPrefix, err))
		} else {
			o.SettleDelay = &d
		}
	}

	c.Apply(o)
	return errors.Join(errs...)
}

// Apply sets non-empty overrides on every target
func (c *Config) Apply(o Overrides) {
	for i := range c.Targets {
		t := &c.Targets[i]
		if o.URL != "" {
			t.URL = o.URL
		}
		if o.Policy != "" {
			t.Policy = entities.Policy(strings.ToLower(o.Policy))
		}
		if o.Screenshot != "" {
			t.ScreenshotPath = o.Screenshot
		}
		if o.SettleDelay != nil {
			t.SettleDelay = *o.SettleDelay
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if !slices.Contains(browser.Backends(), strings.ToLower(c.Browser)) {
		return fmt.Errorf("invalid browser: %s (must be one of %s)", c.Browser, strings.Join(browser.Backends(), ", "))
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}

	if c.DriverPort < 0 {
		return fmt.Errorf("driver_port cannot be negative")
	}

	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}

	screenshots := make(map[string]string)
	for _, t := range c.Targets {
		if err := validateTarget(t); err != nil {
			return fmt.Errorf("target %q: %w", t.Name, err)
		}
		if other, ok := screenshots[t.ScreenshotPath]; ok {
			return fmt.Errorf("targets %q and %q write the same screenshot %s", other, t.Name, t.ScreenshotPath)
		}
		screenshots[t.ScreenshotPath] = t.Name
	}

	return nil
}

func validateTarget(t entities.Target) error {
	if t.URL == "" {
		return fmt.Errorf("url is required")
	}
	if t.ScreenshotPath == "" {
		return fmt.Errorf("screenshot is required")
	}
	if !t.Policy.Valid() {
		return fmt.Errorf("invalid policy: %s (must be 'strict' or 'tolerant')", t.Policy)
	}

	durations := map[string]time.Duration{
		"settle_delay":       t.SettleDelay,
		"navigation_timeout": t.NavigationTimeout,
		"fragment_timeout":   t.FragmentTimeout,
		"ready_timeout":      t.ReadyTimeout,
		"render_delay":       t.RenderDelay,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}

	if t.Viewport != nil && (t.Viewport.Width <= 0 || t.Viewport.Height <= 0) {
		return fmt.Errorf("viewport must be positive, got %dx%d", t.Viewport.Width, t.Viewport.Height)
	}

	for i, f := range t.Fragments {
		if strings.TrimSpace(f.Text) == "" {
			return fmt.Errorf("fragment %d is empty", i+1)
		}
		if f.Timeout < 0 {
			return fmt.Errorf("fragment %q timeout cannot be negative", f.Text)
		}
	}

	return nil
}

// SessionOptions returns the launch settings shared by all targets
func (c *Config) SessionOptions() entities.SessionOptions {
	return entities.SessionOptions{
		Headless:    c.Headless,
		BrowserPath: c.BrowserPath,
		DriverPath:  c.DriverPath,
		DriverPort:  c.DriverPort,
	}
}

func cloneTarget(t entities.Target) entities.Target {
	if t.Viewport != nil {
		v := *t.Viewport
		t.Viewport = &v
	}
	t.Fragments = slices.Clone(t.Fragments)
	return t
}
