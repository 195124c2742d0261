package interfaces

import "ui_verification/domain/entities"

// ArtifactStore writes run evidence to disk
type ArtifactStore interface {
	// SaveScreenshot writes PNG bytes, creating parent directories
	SaveScreenshot(path string, data []byte) error

	// SaveReport writes a suite report as JSON
	SaveReport(path string, report *entities.SuiteReport) error
}
