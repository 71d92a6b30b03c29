// Package persistence provides gob-encoded snapshots on disk, used by
// schemacache to persist a FieldMap across process restarts.
package persistence

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gcbaptista/nlq-query-builder/internal/applog"
)

// SaveGob encodes object with gob and writes it to filePath, creating
// parent directories as needed.
func SaveGob(filePath string, object interface{}) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.Create(filePath) // #nosec G304 -- filePath is controlled by application, not user input
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", filePath, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			applog.Warn("failed to close snapshot file", "path", filePath, "error", closeErr)
		}
	}()

	if err := gob.NewEncoder(file).Encode(object); err != nil {
		return fmt.Errorf("failed to gob encode to file %s: %w", filePath, err)
	}
	return nil
}

// LoadGob decodes a gob-encoded file from filePath into objectPointer,
// which must point to the type that was originally encoded. A missing
// file returns os.ErrNotExist so callers can treat it as a cold start.
func LoadGob(filePath string, objectPointer interface{}) error {
	file, err := os.Open(filePath) // #nosec G304 -- filePath is controlled by application, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return os.ErrNotExist
		}
		return fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			applog.Warn("failed to close snapshot file", "path", filePath, "error", closeErr)
		}
	}()

	if err := gob.NewDecoder(file).Decode(objectPointer); err != nil {
		return fmt.Errorf("failed to gob decode from file %s: %w", filePath, err)
	}
	return nil
}
