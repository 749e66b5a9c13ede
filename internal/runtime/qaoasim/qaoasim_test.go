package qaoasim_test

import (
	"testing"

	"qsol/internal/codegen"
	"qsol/internal/runtime/qaoasim"
	"qsol/internal/target"
)

// minEnergyModel builds a 2-variable unconstrained BQM/CQM whose unique
// minimum-energy assignment is x=1, y=0 (energy -3), so a correct
// sampler must find it regardless of restart randomness.
func minEnergyModel() *target.CompiledModel {
	bqm := &codegen.BQM{
		VarOrder: []string{"x", "y"},
		Linear:   map[string]float64{"x": -3, "y": 5},
	}
	cqm := &codegen.CQM{VarOrder: []string{"x", "y"}}
	return &target.CompiledModel{
		Kind:      "cqm",
		BackendID: "dimod-cqm-v1",
		CQM:       cqm,
		BQM:       bqm,
		VarMap:    map[string]string{"x": "x", "y": "y"},
	}
}

func TestSampler_RunModel_FindsMinimumEnergyAssignment(t *testing.T) {
	s := qaoasim.NewSampler()
	sel := target.Selection{RuntimeID: "qaoa-sim-v1", BackendID: "dimod-cqm-v1"}
	opts := target.RunOptions{Params: map[string]any{
		"seed":     1,
		"restarts": 32,
		"shots":    64,
		"p":        3,
	}}

	result, err := s.RunModel(minEnergyModel(), sel, opts)
	if err != nil {
		t.Fatalf("RunModel: %v", err)
	}
	if result.Status != "ok" {
		t.Fatalf("expected status ok, got %q", result.Status)
	}
	if result.BestSample["x"] != 1 || result.BestSample["y"] != 0 {
		t.Fatalf("expected best sample x=1,y=0, got %+v", result.BestSample)
	}
	if result.Energy != -3 {
		t.Fatalf("expected best energy -3, got %v", result.Energy)
	}
}

func TestSampler_CheckSupport_RejectsOversizedModel(t *testing.T) {
	s := qaoasim.NewSampler()
	varOrder := make([]string, 25)
	linear := make(map[string]float64, 25)
	for i := range varOrder {
		varOrder[i] = string(rune('a' + i))
		linear[varOrder[i]] = 1
	}
	model := &target.CompiledModel{
		CQM: &codegen.CQM{VarOrder: varOrder},
		BQM: &codegen.BQM{VarOrder: varOrder, Linear: linear},
	}
	issues := s.CheckSupport(model, target.Selection{})
	if len(issues) == 0 {
		t.Fatal("expected an issue for a model above the simulated qubit limit")
	}
}

func TestSampler_CheckSupport_AcceptsSmallModel(t *testing.T) {
	s := qaoasim.NewSampler()
	issues := s.CheckSupport(minEnergyModel(), target.Selection{})
	if len(issues) != 0 {
		t.Fatalf("expected no issues for a small model, got %+v", issues)
	}
}

func TestSampler_RunModel_RespectsEnergyThreshold(t *testing.T) {
	s := qaoasim.NewSampler()
	sel := target.Selection{RuntimeID: "qaoa-sim-v1", BackendID: "dimod-cqm-v1"}
	opts := target.RunOptions{Params: map[string]any{
		"seed":       1,
		"restarts":   16,
		"shots":      32,
		"energy_min": 0.0,
	}}

	result, err := s.RunModel(minEnergyModel(), sel, opts)
	if err != nil {
		t.Fatalf("RunModel: %v", err)
	}
	if result.Status != "threshold_failed" {
		t.Fatalf("expected threshold_failed since the true minimum (-3) is below energy_min=0, got %q", result.Status)
	}
}
