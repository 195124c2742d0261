package security

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"

	"github.com/sirupsen/logrus"
)

type TargetGuard struct {
	logger      *logrus.Logger
	allowRemote bool
}

func NewTargetGuard(logger *logrus.Logger, allowRemote bool) *TargetGuard {
	return &TargetGuard{
		logger:      logger,
		allowRemote: allowRemote,
	}
}

func (g *TargetGuard) Check(target entities.Target) error {
	if target.ScreenshotPath == "" {
		return fmt.Errorf("target %q: screenshot path is required", target.Name)
	}

	u, err := url.Parse(target.URL)
	if err != nil {
		return fmt.Errorf("target %q: invalid url: %w", target.Name, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target %q: unsupported scheme %q (must be http or https)", target.Name, u.Scheme)
	}

	if u.Hostname() == "" {
		return fmt.Errorf("target %q: url has no host", target.Name)
	}

	if !isLoopback(u.Hostname()) {
		if !g.allowRemote {
			return fmt.Errorf("target %q: %s is not a local address (use -allow-remote to override)", target.Name, u.Hostname())
		}
		g.logger.Warnf("Target %q points at remote host %s", target.Name, u.Hostname())
	}

	return nil
}

func (g *TargetGuard) RiskLevel(target entities.Target) string {
	u, err := url.Parse(target.URL)
	if err != nil || !isLoopback(u.Hostname()) {
		return "high"
	}
	return "low"
}

func isLoopback(host string) bool {
	lowerHost := strings.ToLower(host)
	if lowerHost == "localhost" || strings.HasSuffix(lowerHost, ".localhost") {
		return true
	}

	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Ensure TargetGuard implements TargetGuard interface
var _ interfaces.TargetGuard = (*TargetGuard)(nil)
