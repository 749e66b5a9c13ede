package main

import (
	"fmt"
	"path/filepath"

	"qsol/internal/config"
)

// resolveRoot mirrors build.go's manifest-vs-path branching: a qsol.toml
// found by walking up from the working directory always wins (project
// mode), and the positional path argument is only consulted when no
// manifest exists, in which case it must name a `.qsol` file directly.
func resolveRoot(pathArg string) (rootPath string, manifest *config.Manifest, manifestPath string, err error) {
	manifestPath, found, err := config.FindManifest(".")
	if err != nil {
		return "", nil, "", err
	}
	if found {
		m, err := config.LoadManifest(manifestPath)
		if err != nil {
			return "", nil, "", err
		}
		return m.SourceRoot(manifestPath), m, manifestPath, nil
	}
	if pathArg == "" {
		return "", nil, "", fmt.Errorf("no %s found in the working directory or its parents; pass a path to a .qsol file", config.ManifestFileName)
	}
	return pathArg, nil, "", nil
}

// scenarioLabel derives a directory-safe name for a scenario argument,
// used both as the scenario's name in printed results and as the
// artifact subdirectory name under --out.
func scenarioLabel(raw string) string {
	base := filepath.Base(raw)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
