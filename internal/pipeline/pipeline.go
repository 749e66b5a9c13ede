// Package pipeline wires every already-built stage package into the two
// halves of spec.md §4-§6's compilation-and-run flow: Compile (§4.1's
// Module Loader through §4.9's Lowerer, scenario-independent) and
// RunScenario (§4.10's Grounder through §4.12's runtime dispatch and
// result ranking, one scenario at a time), plus RunScenarios for §5's
// multi-scenario parallel execution with intersection/union merge.
// Grounded on original_source/compiler/pipeline.py's CompilationUnit
// sequence and internal/driver/parallel.go's errgroup fan-out pattern.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"qsol/internal/artifacts"
	"qsol/internal/codegen"
	"qsol/internal/diag"
	"qsol/internal/ground"
	"qsol/internal/kernel"
	"qsol/internal/scenario"
	"qsol/internal/source"
	"qsol/internal/target"
)

// ScenarioSpec is everything RunScenario needs to ground, target, and
// run one scenario payload: the raw payload plus every selection and
// runtime-option input spec.md §4.11/§4.12's precedence chains draw
// from. Callers (cmd/qsol) are responsible for resolving CLI flags and
// qsol.toml into these fields; RunScenario only applies
// target.ResolveSelection's precedence, not flag parsing.
type ScenarioSpec struct {
	Name           string
	Payload        *scenario.Payload
	CLIRuntime     string
	CLIBackend     string
	Entrypoint     *target.ExecutionConfig
	RuntimeOptions map[string]any
	OutDir         string
}

// ProblemResult is one grounded problem's targeting/run outcome within a
// scenario: a scenario payload naming no `problem` grounds every problem
// declared in the program, so a ScenarioResult can carry more than one.
type ProblemResult struct {
	Problem string
	OutDir  string
	Report  target.Report
	Run     *target.StandardRunResult
}

// ScenarioResult is one scenario's full outcome.
type ScenarioResult struct {
	Name      string
	Problems  []ProblemResult
	Bag       *diag.Bag
	Err       error // set for a scenario-wide failure before any problem could be targeted, or for ctx cancellation between problems
}

// RunScenario grounds spec's payload against ir, resolves a runtime/
// backend pair, checks compatibility, dispatches to the runtime, and
// writes the capability report, model and run.json artifacts under
// spec.OutDir/<problem>/ (explain.json and qsol.log are written by
// FinishScenario). It checks ctx for cancellation before grounding and
// before each problem is targeted; a problem already being targeted or
// run is not interrupted.
func RunScenario(ctx context.Context, ir *kernel.IR, reg *target.Registry, spec ScenarioSpec) *ScenarioResult {
	bag := diag.NewBag()
	res := &ScenarioResult{Name: spec.Name, Bag: bag}

	groundScenario, err := spec.Payload.Ground()
	if err != nil {
		bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.CodeScenarioShape, Message: err.Error()})
		return scenarioFailed(res, spec, target.Selection{}, err)
	}
	if cancelled(ctx, bag) {
		return scenarioFailed(res, spec, target.Selection{}, ctx.Err())
	}

	groundIR := ground.Program(ir, groundScenario, bag)
	if len(groundIR.Problems) == 0 {
		err := fmt.Errorf("scenario %q grounds no problem", spec.Name)
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.CodeScenarioShape,
			Message:  fmt.Sprintf("scenario %q grounds no problem (check `problem` field and set/param completeness)", spec.Name),
		})
		return scenarioFailed(res, spec, target.Selection{}, err)
	}

	sel, issues := target.ResolveSelection(spec.Payload.Execution(), spec.Entrypoint, spec.CLIRuntime, spec.CLIBackend)
	if len(issues) > 0 {
		for _, iss := range issues {
			bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: iss.Code, Message: iss.Message})
		}
		return scenarioFailed(res, spec, sel, fmt.Errorf("scenario %q: target selection unresolved", spec.Name))
	}

	backend, err := reg.RequireBackend(sel.BackendID)
	if err != nil {
		bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.CodeUnknownTargetID, Message: err.Error()})
		return scenarioFailed(res, spec, sel, err)
	}
	runtimePlugin, err := reg.RequireRuntime(sel.RuntimeID)
	if err != nil {
		bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.CodeUnknownTargetID, Message: err.Error()})
		return scenarioFailed(res, spec, sel, err)
	}

	for _, gp := range groundIR.Problems {
		if cancelled(ctx, bag) {
			res.Err = ctx.Err()
			return res
		}
		pr := runProblem(gp, sel, backend, runtimePlugin, spec, bag)
		res.Problems = append(res.Problems, pr)
	}
	return res
}

// scenarioFailed records a whole-scenario failure (grounding or
// selection could not even produce a problem to target) as a
// `status: "scenario_failed"` StandardRunResult written directly under
// spec.OutDir, since no per-problem directory exists yet at this point.
// This is distinct from runProblem's `"failed"` status, which covers a
// specific grounded problem failing compatibility or its runtime call.
func scenarioFailed(res *ScenarioResult, spec ScenarioSpec, sel target.Selection, cause error) *ScenarioResult {
	res.Err = cause
	run := &target.StandardRunResult{
		SchemaVersion: "1",
		Runtime:       sel.RuntimeID,
		Backend:       sel.BackendID,
		Status:        "scenario_failed",
		Extensions:    map[string]any{"error": cause.Error()},
	}
	if err := artifacts.EnsureDir(spec.OutDir); err == nil {
		_ = artifacts.WriteRunResult(spec.OutDir, run, "")
	}
	res.Problems = append(res.Problems, ProblemResult{Problem: spec.Payload.Problem, OutDir: spec.OutDir, Run: run})
	return res
}

func runProblem(gp ground.Problem, sel target.Selection, backend target.BackendPlugin, runtimePlugin target.RuntimePlugin, spec ScenarioSpec, bag *diag.Bag) ProblemResult {
	problemDir := filepath.Join(spec.OutDir, gp.Name)
	pr := ProblemResult{Problem: gp.Name, OutDir: problemDir}

	compat := target.CheckPairSupport(&gp, sel, backend, runtimePlugin)
	pr.Report = compat.Report

	if err := artifacts.EnsureDir(problemDir); err != nil {
		bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.CodeFileRead, Message: err.Error()})
		return pr
	}
	if err := artifacts.WriteCapabilityReport(problemDir, compat.Report); err != nil {
		bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.CodeFileRead, Message: err.Error()})
	}

	if !compat.Report.Supported {
		pr.Run = &target.StandardRunResult{
			SchemaVersion: "1",
			Runtime:       sel.RuntimeID,
			Backend:       sel.BackendID,
			Status:        "failed",
			Extensions:    map[string]any{"issues": compat.Report.Issues},
		}
		_ = artifacts.WriteRunResult(problemDir, pr.Run, "capability_report.json")
		return pr
	}

	writeModelArtifacts(problemDir, compat.CompiledModel, bag)

	opts := target.RunOptions{Params: spec.RuntimeOptions, OutDir: problemDir}
	result, err := runtimePlugin.RunModel(compat.CompiledModel, sel, opts)
	if err != nil {
		bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.CodeRuntimeExecution, Message: err.Error()})
		pr.Run = &target.StandardRunResult{
			SchemaVersion: "1",
			Runtime:       sel.RuntimeID,
			Backend:       sel.BackendID,
			Status:        "failed",
			Extensions:    map[string]any{"error": err.Error()},
		}
		_ = artifacts.WriteRunResult(problemDir, pr.Run, "capability_report.json")
		return pr
	}
	if result.Extensions == nil {
		result.Extensions = map[string]any{}
	}
	result.Extensions["runtime_options"] = spec.RuntimeOptions
	pr.Run = result
	if err := artifacts.WriteRunResult(problemDir, result, "capability_report.json"); err != nil {
		bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.CodeFileRead, Message: err.Error()})
	}
	return pr
}

func writeModelArtifacts(dir string, model *target.CompiledModel, bag *diag.Bag) {
	if model == nil {
		return
	}
	if cqm, ok := model.CQM.(*codegen.CQM); ok {
		if err := artifacts.WriteModelCQM(dir, cqm); err != nil {
			bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.CodeFileRead, Message: err.Error()})
		}
	}
	bqm, ok := model.BQM.(*codegen.BQM)
	if !ok {
		return
	}
	if err := artifacts.WriteModelBQM(dir, bqm); err != nil {
		bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.CodeFileRead, Message: err.Error()})
	}
	if err := artifacts.WriteQUBO(dir, bqm); err != nil {
		bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.CodeFileRead, Message: err.Error()})
	}
	if err := artifacts.WriteIsing(dir, bqm); err != nil {
		bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.CodeFileRead, Message: err.Error()})
	}
	if err := artifacts.WriteVarMap(dir, model.VarMap); err != nil {
		bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.CodeFileRead, Message: err.Error()})
	}
}

// FinishScenario writes explain.json and qsol.log for a scenario's
// accumulated diagnostics, exposed separately from RunScenario so a
// caller can decide the destination directory (a scenario-wide failure
// has no per-problem directory yet).
func FinishScenario(dir string, res *ScenarioResult, files *source.FileSet) error {
	if err := artifacts.EnsureDir(dir); err != nil {
		return err
	}
	if err := artifacts.WriteExplain(dir, res.Bag, files); err != nil {
		return err
	}
	return artifacts.WriteLog(dir, res.Bag, files)
}

func cancelled(ctx context.Context, bag *diag.Bag) bool {
	select {
	case <-ctx.Done():
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.CodeRuntimeExecution,
			Message:  "pipeline aborted: " + ctx.Err().Error(),
		})
		return true
	default:
		return false
	}
}
