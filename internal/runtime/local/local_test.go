package local_test

import (
	"strings"
	"testing"

	"qsol/internal/codegen"
	"qsol/internal/runtime/local"
	"qsol/internal/target"
)

// minEnergyModel is a 3-variable unconstrained BQM small enough for
// sampleExact (well under exactThreshold), whose unique minimum-energy
// assignment is x=1, y=0, z=1.
func minEnergyModel() *target.CompiledModel {
	bqm := &codegen.BQM{
		VarOrder: []string{"x", "y", "z"},
		Linear:   map[string]float64{"x": -5, "y": 5, "z": -3},
	}
	cqm := &codegen.CQM{VarOrder: []string{"x", "y", "z"}}
	return &target.CompiledModel{
		Kind:      "cqm",
		BackendID: "dimod-cqm-v1",
		CQM:       cqm,
		BQM:       bqm,
		VarMap:    map[string]string{"x": "S.has(a)", "y": "S.has(b)", "z": "S.has(c)"},
	}
}

func TestSampler_RunModel_ExactSolverFindsMinimum(t *testing.T) {
	s := local.NewSampler()
	sel := target.Selection{RuntimeID: "local-sampler-v1", BackendID: "dimod-cqm-v1"}
	opts := target.RunOptions{Params: map[string]any{"sampler": "exact"}}

	result, err := s.RunModel(minEnergyModel(), sel, opts)
	if err != nil {
		t.Fatalf("RunModel: %v", err)
	}
	if result.Status != "ok" {
		t.Fatalf("expected status ok, got %q", result.Status)
	}
	if result.BestSample["x"] != 1 || result.BestSample["y"] != 0 || result.BestSample["z"] != 1 {
		t.Fatalf("expected best sample x=1,y=0,z=1, got %+v", result.BestSample)
	}
	if result.Energy != -8 {
		t.Fatalf("expected best energy -8, got %v", result.Energy)
	}
	if len(result.Selected) != 2 {
		t.Fatalf("expected 2 selected assignments (x and z), got %+v", result.Selected)
	}
}

func TestSampler_RunModel_FiltersInfeasibleSamples(t *testing.T) {
	s := local.NewSampler()
	bqm := &codegen.BQM{
		VarOrder: []string{"x"},
		Linear:   map[string]float64{"x": -1}, // minimum is x=1
	}
	cqm := &codegen.CQM{
		VarOrder: []string{"x"},
		Constraints: []codegen.CQMConstraint{
			{Label: "force_zero", Poly: codegen.Poly{Linear: map[string]float64{"x": 1}}, Sense: codegen.Eq, RHS: 0},
		},
	}
	model := &target.CompiledModel{CQM: cqm, BQM: bqm, VarMap: map[string]string{}}
	sel := target.Selection{RuntimeID: "local-sampler-v1", BackendID: "dimod-cqm-v1"}

	result, err := s.RunModel(model, sel, target.RunOptions{Params: map[string]any{"sampler": "exact"}})
	if err != nil {
		t.Fatalf("RunModel: %v", err)
	}
	if result.BestSample["x"] != 0 {
		t.Fatalf("expected the feasibility filter to force x=0 despite it being the worse energy, got %+v", result.BestSample)
	}
}

func TestSampler_RunModel_NoFeasibleSampleIsAnError(t *testing.T) {
	s := local.NewSampler()
	bqm := &codegen.BQM{VarOrder: []string{"x"}, Linear: map[string]float64{"x": 1}}
	cqm := &codegen.CQM{
		VarOrder: []string{"x"},
		Constraints: []codegen.CQMConstraint{
			{Label: "eq0", Poly: codegen.Poly{Linear: map[string]float64{"x": 1}}, Sense: codegen.Eq, RHS: 0},
			{Label: "eq1", Poly: codegen.Poly{Linear: map[string]float64{"x": 1}}, Sense: codegen.Eq, RHS: 1},
		},
	}
	model := &target.CompiledModel{CQM: cqm, BQM: bqm, VarMap: map[string]string{}}
	sel := target.Selection{RuntimeID: "local-sampler-v1", BackendID: "dimod-cqm-v1"}

	if _, err := s.RunModel(model, sel, target.RunOptions{Params: map[string]any{"sampler": "exact"}}); err == nil {
		t.Fatal("expected an error when no sample satisfies every hard constraint")
	}
}

func TestSampler_RunModel_ExactSolverRejectedAboveThreshold(t *testing.T) {
	s := local.NewSampler()
	n := 21 // above exactThreshold=20
	varOrder := make([]string, n)
	linear := make(map[string]float64, n)
	for i := range varOrder {
		varOrder[i] = string(rune('a' + i))
		linear[varOrder[i]] = 1
	}
	model := &target.CompiledModel{
		CQM: &codegen.CQM{VarOrder: varOrder},
		BQM: &codegen.BQM{VarOrder: varOrder, Linear: linear},
	}
	sel := target.Selection{RuntimeID: "local-sampler-v1", BackendID: "dimod-cqm-v1"}

	_, err := s.RunModel(model, sel, target.RunOptions{Params: map[string]any{"sampler": "exact", "num_reads": 4}})
	if err == nil {
		t.Fatal("expected sampler=exact to be rejected above exactThreshold")
	}
	if !strings.Contains(err.Error(), "exact") {
		t.Fatalf("expected the exactThreshold rejection message, got: %v", err)
	}
}

func TestSampler_RunModel_RespectsEnergyThreshold(t *testing.T) {
	s := local.NewSampler()
	sel := target.Selection{RuntimeID: "local-sampler-v1", BackendID: "dimod-cqm-v1"}
	opts := target.RunOptions{Params: map[string]any{
		"sampler":    "exact",
		"energy_max": -100.0, // true minimum (-8) is above this, so it always fails
	}}

	result, err := s.RunModel(minEnergyModel(), sel, opts)
	if err != nil {
		t.Fatalf("RunModel: %v", err)
	}
	if result.Status != "threshold_failed" {
		t.Fatalf("expected threshold_failed, got %q", result.Status)
	}
}

func TestSampler_RunModel_InvalidEnergyRangeIsRejected(t *testing.T) {
	s := local.NewSampler()
	sel := target.Selection{RuntimeID: "local-sampler-v1", BackendID: "dimod-cqm-v1"}
	opts := target.RunOptions{Params: map[string]any{
		"sampler":    "exact",
		"energy_min": 10.0,
		"energy_max": -10.0,
	}}
	if _, err := s.RunModel(minEnergyModel(), sel, opts); err == nil {
		t.Fatal("expected an error when energy_min > energy_max")
	}
}

func TestSampler_CheckSupport_RequiresCompiledModel(t *testing.T) {
	s := local.NewSampler()
	if issues := s.CheckSupport(nil, target.Selection{}); len(issues) == 0 {
		t.Fatal("expected an issue for a nil compiled model")
	}
	if issues := s.CheckSupport(&target.CompiledModel{}, target.Selection{}); len(issues) == 0 {
		t.Fatal("expected an issue for a compiled model with no BQM")
	}
	if issues := s.CheckSupport(minEnergyModel(), target.Selection{}); len(issues) != 0 {
		t.Fatalf("expected no issues for a valid compiled model, got %+v", issues)
	}
}
