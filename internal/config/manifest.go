package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"qsol/internal/target"
)

// Sentinel structural-validation errors, grounded on
// internal/project/modules.go's ErrPackageSectionMissing /
// ErrPackageRootMissing pair: a caller can errors.Is against these
// without depending on LoadManifest's message wording.
var (
	ErrPackageSectionMissing = errors.New("missing [package]")
	ErrPackageRootMissing    = errors.New("missing [package].root")
)

// PackageConfig is qsol.toml's [package] section.
type PackageConfig struct {
	Name string `toml:"name"`
	Root string `toml:"root"`
}

// EntrypointConfig is qsol.toml's [entrypoint] section: the config-level
// tier of spec.md §4.11's selection precedence (CLI > scenario execution
// > config entrypoint > default).
type EntrypointConfig struct {
	Runtime string `toml:"runtime"`
	Backend string `toml:"backend"`
}

// PluginsConfig is qsol.toml's [plugins] section. Go has no
// importlib-style dynamic plugin loading (see internal/target/registry.go's
// doc comment), so `Bundles` doesn't load anything by dotted path; it
// names plugin ids the manifest author expects a statically-registered
// internal/target.Registry to already contain, checked by
// RequireRegisteredPlugins so a typo or a plugin the binary wasn't built
// with fails with QSOL4009 instead of silently resolving to nothing.
type PluginsConfig struct {
	Bundles []string `toml:"bundles"`
}

// ScenarioEntry is one named entry under qsol.toml's [scenarios.<name>]
// table: a path to a scenario payload file plus optional per-scenario
// selection and runtime-option overrides, so a caller can run `qsol run
// --scenario <name>` instead of pointing at a raw JSON scenario file
// directly.
type ScenarioEntry struct {
	Path    string         `toml:"path"`
	Runtime string         `toml:"runtime"`
	Backend string         `toml:"backend"`
	Options map[string]any `toml:"options"`
}

// Manifest is qsol.toml, decoded.
type Manifest struct {
	Package    PackageConfig            `toml:"package"`
	Entrypoint EntrypointConfig         `toml:"entrypoint"`
	Plugins    PluginsConfig            `toml:"plugins"`
	Runtime    struct {
		Defaults map[string]any `toml:"defaults"`
	} `toml:"runtime"`
	Scenarios map[string]ScenarioEntry `toml:"scenarios"`
}

// LoadManifest parses qsol.toml, mirroring modules.go's
// toml.DecodeFile + meta.IsDefined validation pattern: a [package] table
// with a non-empty `root` is mandatory, everything else is optional.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("package") {
		return nil, fmt.Errorf("%s: %w", path, ErrPackageSectionMissing)
	}
	root := strings.TrimSpace(m.Package.Root)
	if !meta.IsDefined("package", "root") || root == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrPackageRootMissing)
	}
	m.Package.Root = root
	m.Package.Name = strings.TrimSpace(m.Package.Name)
	return &m, nil
}

// SourceRoot resolves [package].root relative to the manifest's own
// directory, the directory containing modules the loader will search
// under `use a.b.c` module paths.
func (m *Manifest) SourceRoot(manifestPath string) string {
	return filepath.Join(filepath.Dir(manifestPath), filepath.FromSlash(m.Package.Root))
}

// EntrypointSelection returns the manifest's config-tier defaults as an
// internal/target.ExecutionConfig, or nil if the manifest sets neither
// field (so ResolveSelection's precedence chain falls through to
// target.DefaultBackendID for the backend and stays unresolved for the
// runtime).
func (m *Manifest) EntrypointSelection() *target.ExecutionConfig {
	runtime := strings.TrimSpace(m.Entrypoint.Runtime)
	backend := strings.TrimSpace(m.Entrypoint.Backend)
	if runtime == "" && backend == "" {
		return nil
	}
	return &target.ExecutionConfig{Runtime: runtime, Backend: backend}
}

// RuntimeOptionDefaults returns the manifest's [runtime.defaults] table,
// the lowest-precedence tier of spec.md §4.12's runtime options chain
// (CLI --runtime-option > --runtime-options-file > config scenario solve
// > config defaults).
func (m *Manifest) RuntimeOptionDefaults() map[string]any {
	if m.Runtime.Defaults == nil {
		return map[string]any{}
	}
	return m.Runtime.Defaults
}

// ScenarioOptions merges a named scenario entry's own `options` table
// over the manifest-wide runtime defaults, giving "config scenario
// solve" priority over "config defaults" per spec.md §4.12.
func (m *Manifest) ScenarioOptions(name string) (map[string]any, error) {
	entry, ok := m.Scenarios[name]
	if !ok {
		return nil, fmt.Errorf("no scenario named %q in [scenarios]", name)
	}
	merged := make(map[string]any, len(m.Runtime.Defaults)+len(entry.Options))
	for k, v := range m.Runtime.Defaults {
		merged[k] = v
	}
	for k, v := range entry.Options {
		merged[k] = v
	}
	return merged, nil
}

// ScenarioExecution returns a named scenario entry's own runtime/backend
// override, or nil if it sets neither.
func (m *Manifest) ScenarioExecution(name string) (*target.ExecutionConfig, error) {
	entry, ok := m.Scenarios[name]
	if !ok {
		return nil, fmt.Errorf("no scenario named %q in [scenarios]", name)
	}
	runtime := strings.TrimSpace(entry.Runtime)
	backend := strings.TrimSpace(entry.Backend)
	if runtime == "" && backend == "" {
		return nil, nil
	}
	return &target.ExecutionConfig{Runtime: runtime, Backend: backend}, nil
}

// RequireRegisteredPlugins checks that every plugin id named in
// [plugins].bundles is present in reg, matching spec.md §4.10's
// "duplicate plugin ids fail with QSOL4009" sibling rule for config bundles
// naming a plugin the binary was never built with.
func RequireRegisteredPlugins(reg *target.Registry, m *Manifest) error {
	for _, id := range m.Plugins.Bundles {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		_, isBackend := reg.Backend(id)
		_, isRuntime := reg.Runtime(id)
		if !isBackend && !isRuntime {
			return fmt.Errorf("qsol.toml [plugins].bundles names %q, which is not a registered backend or runtime plugin", id)
		}
	}
	return nil
}
