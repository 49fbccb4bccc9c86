package config

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Validation errors for configuration fields.
var (
	// ErrInvalidPath indicates a path value is malformed.
	ErrInvalidPath = errors.New("invalid path")
)

// Validate checks a Config for validity.
// It returns the first problem found, or nil if the config is valid.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if cfg.Version != SupportedVersion {
		return errors.Newf("unsupported config version: %d", cfg.Version)
	}

	if cfg.DestinationRoot == "" {
		return errors.New("destination_root must not be empty")
	}
	if err := validatePath(cfg.DestinationRoot); err != nil {
		return errors.Wrap(err, "destination_root")
	}

	return nil
}

// validatePath checks if a path string is well-formed.
// It does not check if the path exists, only that it's syntactically valid.
func validatePath(path string) error {
	// Check for null bytes which are never valid in paths
	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}

	// Clean the path and check it's not empty after cleaning
	cleaned := filepath.Clean(path)
	if cleaned == "" || cleaned == "." {
		return ErrInvalidPath
	}

	return nil
}
