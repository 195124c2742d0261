package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"
)

const (
	dirPerm  = 0755
	filePerm = 0644
)

type artifactStore struct{}

// NewArtifactStore - creates new filesystem artifact store
func NewArtifactStore() interfaces.ArtifactStore {
	return &artifactStore{}
}

// SaveScreenshot - writes screenshot bytes, overwriting any existing file
func (s *artifactStore) SaveScreenshot(path string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty screenshot")
	}
	return writeFile(path, data)
}

// SaveReport - writes suite report as indented JSON
func (s *artifactStore) SaveReport(path string, report *entities.SuiteReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

func writeFile(path string, data []byte) error {
	if path == "" {
		return fmt.Errorf("output path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
