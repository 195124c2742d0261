package interfaces

import "ui_verification/domain/entities"

// TargetGuard decides whether a target may be verified
type TargetGuard interface {
	// Check returns an error if the target must not be run
	Check(target entities.Target) error

	// RiskLevel returns "low" or "high" for logging
	RiskLevel(target entities.Target) string
}
