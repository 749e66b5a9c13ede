package main

import (
	"fmt"

	"qsol/internal/config"
	"qsol/internal/diag"
	"qsol/internal/runtime"
	"qsol/internal/runtime/local"
	"qsol/internal/runtime/qaoasim"
	"qsol/internal/target"
)

// builtinRegistry registers every plugin qsol ships with, then checks
// qsol.toml's [plugins].bundles (if m is non-nil) names only plugins
// this registry actually has, grounded on
// original_source/targeting/registry.py's "built-ins first, config-named
// bundles checked last" ordering (see internal/target/registry.go's own
// doc comment on why Go has no importlib-style dynamic discovery step).
//
// Both failure modes are QSOL4009 (spec.md §4.11: duplicate plugin ids,
// and a config bundle naming a plugin the binary wasn't built with), so
// they're reported into bag the same way every other pipeline stage
// reports its errors, rather than as a bare Go error the caller has to
// improvise a diagnostic for.
func builtinRegistry(m *config.Manifest, bag *diag.Bag) *target.Registry {
	reg := target.NewRegistry()
	err := reg.RegisterBundle(target.Bundle{
		Backends: []target.BackendPlugin{runtime.NewCQMBackend()},
		Runtimes: []target.RuntimePlugin{local.NewSampler(), qaoasim.NewSampler()},
	})
	if err != nil {
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError, Code: diag.CodePluginLoad,
			Message: fmt.Sprintf("registering builtin plugins: %s", err),
		})
		return reg
	}
	if m != nil {
		if err := config.RequireRegisteredPlugins(reg, m); err != nil {
			bag.Add(diag.Diagnostic{
				Severity: diag.SevError, Code: diag.CodePluginLoad,
				Message: err.Error(),
			})
		}
	}
	return reg
}
