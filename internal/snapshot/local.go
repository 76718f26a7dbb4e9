// Package snapshot stores raw page bodies captured during checks, keyed by
// product and fetch time, so classifier verdicts can be audited later.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const keyTimeLayout = "20060102T150405.000Z"

// objectKey builds the storage key for one snapshot.
func objectKey(productID string, fetchedAt time.Time) string {
	return fmt.Sprintf("%s/%s.html", productID, fetchedAt.UTC().Format(keyTimeLayout))
}

// LocalConfig captures the parameters for the filesystem snapshot store.
type LocalConfig struct {
	// BaseDir is the root directory where snapshots will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// LocalStore writes snapshots to the local filesystem.
type LocalStore struct {
	baseDir string
}

// NewLocalStore creates a filesystem-backed snapshot store.
func NewLocalStore(cfg LocalConfig) (*LocalStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	return &LocalStore{baseDir: cfg.BaseDir}, nil
}

// PutSnapshot writes the body to a file and returns a file:// URI.
func (s *LocalStore) PutSnapshot(_ context.Context, productID string, fetchedAt time.Time, body []byte) (string, error) {
	if strings.TrimSpace(productID) == "" {
		return "", fmt.Errorf("product id is required")
	}

	fullPath := filepath.Join(s.baseDir, objectKey(productID, fetchedAt))

	// Reject keys that would escape the base directory.
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}
	if err := os.WriteFile(fullPath, body, 0o600); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}
