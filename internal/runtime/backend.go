// Package runtime hosts QSOL's builtin backend and runtime plugins:
// internal/runtime.CQMBackend compiles a grounded problem via
// internal/codegen, and internal/runtime/local, internal/runtime/qaoasim
// sample the resulting BQM. Grounded on
// original_source/targeting/plugins.py's DimodCQMBackendPlugin /
// LocalDimodRuntimePlugin / QiskitRuntimePlugin, reimplemented without
// dimod or qiskit — see DESIGN.md for why (no QUBO/quantum SDK exists in
// the retrieved pack).
package runtime

import (
	"qsol/internal/codegen"
	"qsol/internal/diag"
	"qsol/internal/ground"
	"qsol/internal/target"
)

// CQMBackend is QSOL's sole backend plugin: it emits a CQM/BQM pair via
// internal/codegen, grounded on DimodCQMBackendPlugin.
type CQMBackend struct{}

func NewCQMBackend() *CQMBackend { return &CQMBackend{} }

func (*CQMBackend) PluginID() string   { return "dimod-cqm-v1" }
func (*CQMBackend) DisplayName() string { return "QSOL CQM backend (v1)" }

// CapabilityCatalog mirrors DimodCQMBackendPlugin.capability_catalog:
// what internal/codegen actually supports, expanded with the `!=`
// comparison and `Or` connective it supports beyond the Python v1
// backend (see internal/codegen's DESIGN.md entry).
func (*CQMBackend) CapabilityCatalog() map[string]target.CapabilityStatus {
	return map[string]target.CapabilityStatus{
		"unknown.subset.v1":                target.CapFull,
		"unknown.mapping.v1":               target.CapFull,
		"unknown.custom.v1":                target.CapNone,
		"constraint.compare.eq.v1":         target.CapFull,
		"constraint.compare.ne.v1":         target.CapFull,
		"constraint.compare.lt.v1":         target.CapFull,
		"constraint.compare.le.v1":         target.CapFull,
		"constraint.compare.gt.v1":         target.CapFull,
		"constraint.compare.ge.v1":         target.CapFull,
		"constraint.quantifier.forall.v1":  target.CapFull,
		"constraint.quantifier.exists.v1":  target.CapFull,
		"objective.if_then_else.v1":        target.CapPartial,
		"objective.sum.v1":                 target.CapFull,
		"expression.bool.and.v1":           target.CapFull,
		"expression.bool.or.v1":            target.CapFull,
		"expression.bool.implies.v1":       target.CapFull,
		"expression.bool.not.v1":           target.CapFull,
	}
}

func (b *CQMBackend) CheckSupport(gp *ground.Problem, required []string) []target.Issue {
	catalog := b.CapabilityCatalog()
	var issues []target.Issue
	for _, capID := range required {
		if catalog[capID] == target.CapNone || catalog[capID] == "" {
			issues = append(issues, target.Issue{
				Code:         diag.CodeUnsupportedCap,
				Message:      "backend `" + b.PluginID() + "` does not support required capability `" + capID + "`",
				Stage:        target.StageBackend,
				CapabilityID: capID,
			})
		}
	}
	return issues
}

func (b *CQMBackend) CompileModel(gp *ground.Problem) *target.CompiledModel {
	bag := diag.NewBag()
	result := codegen.Emit(gp, bag)
	stats := map[string]any{
		"num_variables":    result.Stats.NumVariables,
		"num_constraints":  result.Stats.NumConstraints,
		"num_interactions": result.Stats.NumInteractions,
	}
	return &target.CompiledModel{
		Kind:        "cqm",
		BackendID:   b.PluginID(),
		CQM:         result.CQM,
		BQM:         result.BQM,
		VarMap:      result.VarMap,
		Diagnostics: bag.Items(),
		Stats:       stats,
	}
}
