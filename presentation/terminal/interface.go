package terminal

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"ui_verification/application/verifier"
	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"
	"ui_verification/infrastructure/browser"
	"ui_verification/infrastructure/config"
	"ui_verification/infrastructure/security"
	"ui_verification/infrastructure/storage"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const version = "0.2.0"

const (
	ExitOK     = 0
	ExitFailed = 1
	ExitConfig = 2
)

// cliOptions holds command-line configuration
type cliOptions struct {
	configFile  string
	envFile     string
	url         string
	policy      string
	browser     string
	screenshot  string
	report      string
	logLevel    string
	settleDelay time.Duration
	gate        bool
	allowRemote bool
	headful     bool
	install     bool
	showVersion bool
}

type TerminalInterface struct {
	runner *verifier.Runner
	store  interfaces.ArtifactStore
	config *config.Config
	logger *logrus.Logger
	opts   *cliOptions
	out    io.Writer
}

func NewTerminalInterface(args []string) (*TerminalInterface, error) {
	return newTerminalInterface(args, os.Stdout, os.Stderr, os.Getenv)
}

func newTerminalInterface(args []string, stdout, stderr io.Writer, getenv func(string) string) (*TerminalInterface, error) {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return nil, err
	}

	if opts.showVersion || opts.install {
		return &TerminalInterface{
			logger: newLogger("info", stdout),
			opts:   opts,
			out:    stdout,
		}, nil
	}

	// Load environment variables; .env is optional
	envErr := godotenv.Load(opts.envFile)

	cfg, err := buildConfig(opts, getenv)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.LogLevel, stdout)
	if envErr != nil {
		logger.Warnf("No %s file loaded, using environment variables", opts.envFile)
	}

	guard := security.NewTargetGuard(logger, cfg.AllowRemote)
	for _, target := range cfg.Targets {
		if err := guard.Check(target); err != nil {
			return nil, err
		}
		logger.WithField("risk", guard.RiskLevel(target)).Debugf("Target %q accepted", target.Name)
	}

	launcher, err := browser.NewLauncher(cfg.Browser, logger)
	if err != nil {
		return nil, err
	}

	store := storage.NewArtifactStore()

	return &TerminalInterface{
		runner: verifier.NewRunner(launcher, store, logger, cfg.SessionOptions()),
		store:  store,
		config: cfg,
		logger: logger,
		opts:   opts,
		out:    stdout,
	}, nil
}

// Run executes the suite and returns the process exit code
func (t *TerminalInterface) Run(ctx context.Context) int {
	if t.opts.showVersion {
		fmt.Fprintf(t.out, "ui-verify v%s\n", version)
		return ExitOK
	}

	if t.opts.install {
		if err := browser.Install(t.logger); err != nil {
			t.logger.Error(err.Error())
			return ExitFailed
		}
		t.logger.Info("Playwright installed")
		return ExitOK
	}

	suite := t.runner.RunSuite(ctx, t.config.Targets)

	if t.config.ReportPath != "" {
		if err := t.store.SaveReport(t.config.ReportPath, suite); err != nil {
			t.logger.Errorf("Failed to write report: %v", err)
		} else {
			t.logger.Infof("Report saved to %s", t.config.ReportPath)
		}
	}

	return exitCode(suite, t.config.Gate)
}

// exitCode is always ExitOK unless gating is enabled
func exitCode(suite *entities.SuiteReport, gate bool) int {
	if gate && !suite.Passed() {
		return ExitFailed
	}
	return ExitOK
}

func parseFlags(args []string, stderr io.Writer) (*cliOptions, error) {
	opts := &cliOptions{}
	fs := flag.NewFlagSet("ui-verify", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configFile, "config", "", "Path to suite file (YAML)")
	fs.StringVar(&opts.envFile, "env-file", ".env", "Path to .env file")
	fs.StringVar(&opts.url, "url", "", "Target URL (overrides every target)")
	fs.StringVar(&opts.policy, "policy", "", "Navigation failure policy: strict or tolerant")
	fs.StringVar(&opts.browser, "browser", "", "Browser backend: playwright, chromedp or selenium")
	fs.StringVar(&opts.screenshot, "screenshot", "", "Screenshot output path")
	fs.StringVar(&opts.report, "report", "", "Write a JSON report to this path")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.DurationVar(&opts.settleDelay, "settle-delay", -1, "Pause before navigating")
	fs.BoolVar(&opts.gate, "gate", false, "Exit 1 if any fragment is missing or any step fails")
	fs.BoolVar(&opts.allowRemote, "allow-remote", false, "Allow non-loopback targets")
	fs.BoolVar(&opts.headful, "headful", false, "Show the browser window")
	fs.BoolVar(&opts.install, "install", false, "Install the playwright driver and chromium, then exit")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "ui-verify - screenshot a local web app and check for expected text\n\n")
		fmt.Fprintf(stderr, "Usage: ui-verify [options]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  ui-verify\n")
		fmt.Fprintf(stderr, "  ui-verify -config verification/suite.yaml -gate\n")
		fmt.Fprintf(stderr, "  ui-verify -url http://localhost:3000 -policy tolerant\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

// buildConfig layers built-in defaults, the suite file, the environment and flags
func buildConfig(opts *cliOptions, getenv func(string) string) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	overrides := config.Overrides{
		URL:        opts.url,
		Policy:     opts.policy,
		Screenshot: opts.screenshot,
	}
	if opts.settleDelay >= 0 {
		overrides.SettleDelay = &opts.settleDelay
	}
	cfg.Apply(overrides)

	if opts.browser != "" {
		cfg.Browser = opts.browser
	}
	if opts.report != "" {
		cfg.ReportPath = opts.report
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.gate {
		cfg.Gate = true
	}
	if opts.allowRemote {
		cfg.AllowRemote = true
	}
	if opts.headful {
		cfg.Headless = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(level string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
