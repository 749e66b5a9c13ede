package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"qsol/internal/config"
	"qsol/internal/runtime"
	"qsol/internal/runtime/local"
	"qsol/internal/target"
)

func writeManifest(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, config.ManifestFileName)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	return path
}

func TestFindManifest_WalksUpFromNestedDir(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[package]\nroot = \"src\"\n")

	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	path, ok, err := config.FindManifest(nested)
	if err != nil {
		t.Fatalf("FindManifest: %v", err)
	}
	if !ok {
		t.Fatal("expected to find qsol.toml by walking up")
	}
	want, _ := filepath.Abs(filepath.Join(root, config.ManifestFileName))
	if path != want {
		t.Fatalf("got %q, want %q", path, want)
	}
}

func TestFindManifest_NoneFound(t *testing.T) {
	_, ok, err := config.FindManifest(t.TempDir())
	if err != nil {
		t.Fatalf("FindManifest: %v", err)
	}
	if ok {
		t.Fatal("expected no manifest to be found in an empty directory")
	}
}

func TestLoadManifest_MissingPackageSection(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "[entrypoint]\nruntime = \"local-sampler\"\n")

	_, err := config.LoadManifest(path)
	if !errors.Is(err, config.ErrPackageSectionMissing) {
		t.Fatalf("got %v, want ErrPackageSectionMissing", err)
	}
}

func TestLoadManifest_MissingPackageRoot(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "[package]\nname = \"demo\"\n")

	_, err := config.LoadManifest(path)
	if !errors.Is(err, config.ErrPackageRootMissing) {
		t.Fatalf("got %v, want ErrPackageRootMissing", err)
	}
}

func TestLoadManifest_FullRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[package]
name = "demo"
root = "src"

[entrypoint]
runtime = "local-sampler"

[runtime.defaults]
num_reads = 100

[scenarios.small]
path = "scenarios/small.json"

[scenarios.small.options]
num_reads = 250
`)

	m, err := config.LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Package.Name != "demo" || m.Package.Root != "src" {
		t.Fatalf("unexpected package config: %+v", m.Package)
	}
	if got := m.SourceRoot(path); got != filepath.Join(dir, "src") {
		t.Fatalf("SourceRoot: got %q, want %q", got, filepath.Join(dir, "src"))
	}

	entrypoint := m.EntrypointSelection()
	if entrypoint == nil || entrypoint.Runtime != "local-sampler" {
		t.Fatalf("unexpected entrypoint selection: %+v", entrypoint)
	}

	opts, err := m.ScenarioOptions("small")
	if err != nil {
		t.Fatalf("ScenarioOptions: %v", err)
	}
	if opts["num_reads"] != int64(250) {
		t.Fatalf("expected scenario option to override manifest default, got %+v", opts)
	}

	if _, err := m.ScenarioOptions("missing"); err == nil {
		t.Fatal("expected an error for an unknown scenario name")
	}
}

func TestManifest_EntrypointSelection_NilWhenUnset(t *testing.T) {
	m := &config.Manifest{}
	if sel := m.EntrypointSelection(); sel != nil {
		t.Fatalf("expected nil selection for an empty [entrypoint], got %+v", sel)
	}
}

func TestRequireRegisteredPlugins(t *testing.T) {
	reg := target.NewRegistry()
	if err := reg.RegisterBundle(target.Bundle{
		Backends: []target.BackendPlugin{runtime.NewCQMBackend()},
		Runtimes: []target.RuntimePlugin{local.NewSampler()},
	}); err != nil {
		t.Fatalf("RegisterBundle: %v", err)
	}

	backendID := runtime.NewCQMBackend().PluginID()
	runtimeID := local.NewSampler().PluginID()

	ok := &config.Manifest{Plugins: config.PluginsConfig{Bundles: []string{backendID, runtimeID}}}
	if err := config.RequireRegisteredPlugins(reg, ok); err != nil {
		t.Fatalf("expected registered plugin ids to pass, got %v", err)
	}

	bad := &config.Manifest{Plugins: config.PluginsConfig{Bundles: []string{"nonexistent-plugin"}}}
	if err := config.RequireRegisteredPlugins(reg, bad); err == nil {
		t.Fatal("expected an error for an unregistered plugin id")
	}
}
