package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"qsol/internal/kernel"
	"qsol/internal/pipeline"
	"qsol/internal/runtime"
	"qsol/internal/runtime/local"
	"qsol/internal/scenario"
	"qsol/internal/source"
	"qsol/internal/target"
)

// forceAllIR builds a one-problem program requiring every element of set
// S to be selected into find F: `must forall a in S: F.has(a)`. With
// |S|=2 the only feasible assignment sets both F.has[...] variables to 1.
func forceAllIR() *kernel.IR {
	var sp source.Span
	body := kernel.NewMethodCall(sp, kernel.NewName(sp, "F"), "has", []kernel.KExpr{kernel.NewName(sp, "a")})
	forall := kernel.NewQuantifier(sp, "forall", "a", "S", body)
	problem := kernel.Problem{
		Name:  "P",
		Sets:  []kernel.SetDecl{{Name: "S"}},
		Finds: []kernel.FindDecl{{Name: "F", Kind: "Subset", TypeArgs: []string{"S"}}},
		Constraints: []kernel.Constraint{
			{Kind: kernel.Must, Expr: forall},
		},
	}
	return &kernel.IR{Problems: []kernel.Problem{problem}}
}

func newRegistry(t *testing.T) *target.Registry {
	t.Helper()
	reg := target.NewRegistry()
	err := reg.RegisterBundle(target.Bundle{
		Backends: []target.BackendPlugin{runtime.NewCQMBackend()},
		Runtimes: []target.RuntimePlugin{local.NewSampler()},
	})
	if err != nil {
		t.Fatalf("RegisterBundle: %v", err)
	}
	return reg
}

func TestRunScenario_EndToEnd_ForcesAllVariablesTrue(t *testing.T) {
	payload, err := scenario.Decode([]byte(`{"problem": "P", "sets": {"S": ["a", "b"]}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	spec := pipeline.ScenarioSpec{
		Name:           "default",
		Payload:        payload,
		CLIRuntime:     "local-sampler-v1",
		CLIBackend:     "dimod-cqm-v1",
		RuntimeOptions: map[string]any{"sampler": "exact"},
		OutDir:         t.TempDir(),
	}

	res := pipeline.RunScenario(context.Background(), forceAllIR(), newRegistry(t), spec)
	if res.Err != nil {
		t.Fatalf("RunScenario: %v", res.Err)
	}
	if len(res.Problems) != 1 {
		t.Fatalf("expected exactly one problem result, got %d", len(res.Problems))
	}

	pr := res.Problems[0]
	if pr.Problem != "P" {
		t.Fatalf("unexpected problem name: %q", pr.Problem)
	}
	if !pr.Report.Supported {
		t.Fatalf("expected the pair to be reported as supported, got issues: %+v", pr.Report.Issues)
	}
	if pr.Run == nil || pr.Run.Status != "ok" {
		t.Fatalf("expected status ok, got %+v", pr.Run)
	}
	for label, v := range pr.Run.BestSample {
		if v != 1 {
			t.Fatalf("expected every variable to be forced to 1, but %s=%d", label, v)
		}
	}
	if len(pr.Run.BestSample) != 2 {
		t.Fatalf("expected 2 decision variables (F.has[a], F.has[b]), got %+v", pr.Run.BestSample)
	}
}

func TestRunScenario_UnknownRuntimeIDFails(t *testing.T) {
	payload, err := scenario.Decode([]byte(`{"problem": "P", "sets": {"S": ["a"]}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	spec := pipeline.ScenarioSpec{
		Name:       "default",
		Payload:    payload,
		CLIRuntime: "nonexistent-runtime",
		CLIBackend: "dimod-cqm-v1",
		OutDir:     t.TempDir(),
	}
	res := pipeline.RunScenario(context.Background(), forceAllIR(), newRegistry(t), spec)
	if res.Err == nil {
		t.Fatal("expected an error for an unregistered runtime id")
	}
}

func TestRunScenario_MissingScenarioSetIsScenarioFailure(t *testing.T) {
	payload, err := scenario.Decode([]byte(`{"problem": "P", "sets": {}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	outDir := t.TempDir()
	spec := pipeline.ScenarioSpec{
		Name:       "default",
		Payload:    payload,
		CLIRuntime: "local-sampler-v1",
		CLIBackend: "dimod-cqm-v1",
		OutDir:     outDir,
	}
	res := pipeline.RunScenario(context.Background(), forceAllIR(), newRegistry(t), spec)
	if res.Err == nil {
		t.Fatal("expected a scenario-wide failure when the scenario omits set `S`")
	}
	if len(res.Problems) != 1 || res.Problems[0].Run.Status != "scenario_failed" {
		t.Fatalf("expected a single scenario_failed problem result, got %+v", res.Problems)
	}
}

func TestFinishScenario_WritesExplainAndLog(t *testing.T) {
	payload, err := scenario.Decode([]byte(`{"problem": "P", "sets": {"S": ["a", "b"]}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	outDir := t.TempDir()
	spec := pipeline.ScenarioSpec{
		Name:           "default",
		Payload:        payload,
		CLIRuntime:     "local-sampler-v1",
		CLIBackend:     "dimod-cqm-v1",
		RuntimeOptions: map[string]any{"sampler": "exact"},
		OutDir:         outDir,
	}
	res := pipeline.RunScenario(context.Background(), forceAllIR(), newRegistry(t), spec)
	if res.Err != nil {
		t.Fatalf("RunScenario: %v", res.Err)
	}
	if err := pipeline.FinishScenario(outDir, res, source.NewFileSet()); err != nil {
		t.Fatalf("FinishScenario: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "explain.json")); err != nil {
		t.Fatalf("expected explain.json to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "qsol.log")); err != nil {
		t.Fatalf("expected qsol.log to exist: %v", err)
	}
}
