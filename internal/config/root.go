// Package config loads qsol.toml, the project manifest that supplies
// target-selection entrypoint defaults, default runtime options, and
// named scenario entries a caller can select by name instead of pointing
// the pipeline at a raw scenario JSON file directly. Grounded on the
// teacher's internal/project package: FindSurgeToml/FindProjectRoot's
// upward directory walk becomes FindManifest/FindProjectRoot for
// qsol.toml, and modules.go's toml.DecodeFile + meta.IsDefined pattern
// becomes LoadManifest below.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ManifestFileName is the project manifest's fixed file name, spec.md
// §6's config counterpart to a `.qsol` source file.
const ManifestFileName = "qsol.toml"

// FindManifest walks up from startDir looking for qsol.toml, exactly as
// FindSurgeToml walks up looking for surge.toml.
func FindManifest(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// FindProjectRoot returns the directory containing qsol.toml, if any.
func FindProjectRoot(startDir string) (root string, ok bool, err error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return "", ok, err
	}
	return filepath.Dir(manifestPath), true, nil
}
