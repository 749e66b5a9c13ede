package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"qsol/internal/diag"
	"qsol/internal/pipeline"
	"qsol/internal/scenario"
)

// compile writes src to a temp .qsol file and runs it through the real
// loader/elaborator/resolver/typechecker/validator/desugarer/lowerer
// chain, exactly as cmd/qsol does. Every test in this file exercises
// that full frontend rather than a hand-built kernel.IR.
func compile(t *testing.T, src string) *pipeline.Frontend {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "main.qsol")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return pipeline.Compile(context.Background(), path)
}

func hasCode(diags []diag.Diagnostic, code diag.Code) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

func run(t *testing.T, src, scenarioJSON string) *pipeline.ScenarioResult {
	t.Helper()
	fe := compile(t, src)
	if fe.Bag.HasErrors() {
		t.Fatalf("unexpected compile errors: %+v", fe.Bag.Items())
	}
	if fe.IR == nil {
		t.Fatalf("expected a lowered IR")
	}
	payload, err := scenario.Decode([]byte(scenarioJSON))
	if err != nil {
		t.Fatalf("scenario.Decode: %v", err)
	}
	spec := pipeline.ScenarioSpec{
		Name:           "default",
		Payload:        payload,
		CLIRuntime:     "local-sampler-v1",
		CLIBackend:     "dimod-cqm-v1",
		RuntimeOptions: map[string]any{"sampler": "exact"},
		OutDir:         t.TempDir(),
	}
	return pipeline.RunScenario(context.Background(), fe.IR, newRegistry(t), spec)
}

func onlyProblem(t *testing.T, res *pipeline.ScenarioResult) pipeline.ProblemResult {
	t.Helper()
	if res.Err != nil {
		t.Fatalf("RunScenario: %v (bag: %+v)", res.Err, res.Bag.Items())
	}
	if len(res.Problems) != 1 {
		t.Fatalf("expected exactly one problem result, got %d", len(res.Problems))
	}
	pr := res.Problems[0]
	if !pr.Report.Supported {
		t.Fatalf("expected the pair to be reported as supported, got issues: %+v", pr.Report.Issues)
	}
	if pr.Run == nil || pr.Run.Status != "ok" {
		t.Fatalf("expected status ok, got %+v", pr.Run)
	}
	return pr
}

// --- Positive seed tests (spec.md §8) ---

func TestSeed_ExactKSubset(t *testing.T) {
	src := `problem P {
  set Items;
  find Pick : Subset(Items);
  must sum(if Pick.has(i) then 1 else 0 for i in Items) = 2;
  minimize sum(if Pick.has(i) then 1 else 0 for i in Items);
}
`
	res := run(t, src, `{"problem": "P", "sets": {"Items": ["i1","i2","i3","i4"]}}`)
	pr := onlyProblem(t, res)
	if pr.Run.Energy != 2 {
		t.Fatalf("expected best energy 2, got %v", pr.Run.Energy)
	}
	if len(pr.Run.Selected) != 2 {
		t.Fatalf("expected exactly 2 selected assignments, got %+v", pr.Run.Selected)
	}
}

func TestSeed_Triangle3Coloring(t *testing.T) {
	src := `problem P {
  set V; set C; set E;
  param U[E] : Elem(V);
  param W[E] : Elem(V);
  find ColorOf : Mapping(V,C);
  must forall e in E: forall c in C: (if ColorOf.is(U[e],c) then 1 else 0) * (if ColorOf.is(W[e],c) then 1 else 0) = 0;
}
`
	sc := `{"problem": "P", "sets": {"V": ["N1","N2","N3"], "C": ["Red","Green","Blue"], "E": ["e1","e2","e3"]},
"params": {"U": {"e1":"N1","e2":"N2","e3":"N1"}, "W": {"e1":"N2","e2":"N3","e3":"N3"}}}`
	res := run(t, src, sc)
	pr := onlyProblem(t, res)
	if pr.Run.Energy != 0 {
		t.Fatalf("expected best energy 0, got %v", pr.Run.Energy)
	}
	if len(pr.Run.Selected) != 3 {
		t.Fatalf("expected exactly one color per vertex (3 selected), got %+v", pr.Run.Selected)
	}
}

func TestSeed_MaxCutTriangle(t *testing.T) {
	src := `function cutVal(a: Bool, b: Bool) = (if a then 1 else 0) + (if b then 1 else 0) - 2*(if a then 1 else 0)*(if b then 1 else 0);
problem P {
  set V; set E;
  param U[E] : Elem(V);
  param W[E] : Elem(V);
  find S : Subset(V);
  maximize sum(cutVal(S.has(U[e]), S.has(W[e])) for e in E);
}
`
	sc := `{"problem": "P", "sets": {"V": ["N1","N2","N3"], "E": ["e1","e2","e3"]},
"params": {"U": {"e1":"N1","e2":"N2","e3":"N1"}, "W": {"e1":"N2","e2":"N3","e3":"N3"}}}`
	res := run(t, src, sc)
	pr := onlyProblem(t, res)
	if pr.Run.Energy != -2 {
		t.Fatalf("expected best energy -2 (max cut 2), got %v", pr.Run.Energy)
	}
	n := len(pr.Run.Selected)
	if n != 1 && n != 2 {
		t.Fatalf("expected a 1- or 2-vertex side achieving the max cut, got %d selected", n)
	}
}

func TestSeed_Knapsack(t *testing.T) {
	src := `problem P {
  set I;
  param Value[I] : Real;
  param Weight[I] : Real;
  param Capacity : Real;
  find Pick : Subset(I);
  must sum(Weight[i] * (if Pick.has(i) then 1 else 0) for i in I) <= Capacity;
  maximize sum(Value[i] * (if Pick.has(i) then 1 else 0) for i in I);
}
`
	sc := `{"problem": "P", "sets": {"I": ["i1","i2","i3"]},
"params": {"Value": {"i1":3,"i2":5,"i3":4}, "Weight": {"i1":2,"i2":3,"i3":4}, "Capacity": 5}}`
	res := run(t, src, sc)
	pr := onlyProblem(t, res)
	if pr.Run.Energy != -8 {
		t.Fatalf("expected best energy -8 (max value 8), got %v", pr.Run.Energy)
	}
	want := map[string]bool{"i1": true, "i2": true}
	if len(pr.Run.Selected) != len(want) {
		t.Fatalf("expected 2 selected items, got %+v", pr.Run.Selected)
	}
}

func TestSeed_MinBisectionCycle(t *testing.T) {
	src := `function cutVal(a: Bool, b: Bool) = (if a then 1 else 0) + (if b then 1 else 0) - 2*(if a then 1 else 0)*(if b then 1 else 0);
problem P {
  set V; set E;
  param U[E] : Elem(V);
  param W[E] : Elem(V);
  find Side : Subset(V);
  must count(v in V where Side.has(v)) * 2 = size(V);
  minimize sum(cutVal(Side.has(U[e]), Side.has(W[e])) for e in E);
}
`
	sc := `{"problem": "P", "sets": {"V": ["v1","v2","v3","v4"], "E": ["e1","e2","e3","e4"]},
"params": {"U": {"e1":"v1","e2":"v2","e3":"v3","e4":"v4"}, "W": {"e1":"v2","e2":"v3","e3":"v4","e4":"v1"}}}`
	res := run(t, src, sc)
	pr := onlyProblem(t, res)
	if pr.Run.Energy != 2 {
		t.Fatalf("expected minimum crossing 2, got %v", pr.Run.Energy)
	}
	if len(pr.Run.Selected) != 2 {
		t.Fatalf("expected an even 2/2 bisection, got %+v", pr.Run.Selected)
	}
}

func TestSeed_ExactlyOneViaStdlibMacro(t *testing.T) {
	src := `use stdlib.collections;
problem P { set Items;
  find Pick : Subset(Items);
  must exactly(2, Pick.has(i) for i in Items);
}
`
	res := run(t, src, `{"problem": "P", "sets": {"Items": ["i1","i2","i3"]}}`)
	pr := onlyProblem(t, res)
	if len(pr.Run.Selected) != 2 {
		t.Fatalf("expected exactly 2 selected assignments, got %+v", pr.Run.Selected)
	}
}

// --- Negative seed tests (spec.md §8) ---

func TestSeed_MissingSemicolonIsParseError(t *testing.T) {
	src := `problem P { set Items;
  find Pick : Subset(Items)
  must forall i in Items: Pick.has(i);
}
`
	fe := compile(t, src)
	if !fe.Bag.HasErrors() {
		t.Fatal("expected a parse error for the missing `;`")
	}
	if !hasCode(fe.Bag.Items(), diag.CodeParse) {
		t.Fatalf("expected a %s diagnostic, got %+v", diag.CodeParse, fe.Bag.Items())
	}
	if fe.IR != nil {
		t.Fatal("expected no lowered IR after a parse error")
	}
}

func TestSeed_IndexedParamCalledWithParensIsShapeError(t *testing.T) {
	src := `problem P {
  set I;
  param Cost[I,I] : Real = 0;
  find Pick : Subset(I);
  must forall i in I: forall j in I: Cost(i,j) >= 0;
}
`
	fe := compile(t, src)
	if !fe.Bag.HasErrors() {
		t.Fatal("expected a shape error for calling an indexed param with `()`")
	}
	if !hasCode(fe.Bag.Items(), diag.CodeShape) {
		t.Fatalf("expected a %s diagnostic, got %+v", diag.CodeShape, fe.Bag.Items())
	}
	if fe.IR != nil {
		t.Fatal("expected no lowered IR after a shape error")
	}
}

func TestSeed_HasCalledWithTwoArgsIsArityError(t *testing.T) {
	src := `problem P {
  set Items;
  find Pick : Subset(Items);
  must forall x in Items: forall y in Items: Pick.has(x,y);
}
`
	fe := compile(t, src)
	if !fe.Bag.HasErrors() {
		t.Fatal("expected an arity error for `Subset.has` called with two arguments")
	}
	if !hasCode(fe.Bag.Items(), diag.CodeShape) {
		t.Fatalf("expected a %s diagnostic, got %+v", diag.CodeShape, fe.Bag.Items())
	}
	if fe.IR != nil {
		t.Fatal("expected no lowered IR after a shape error")
	}
}

func TestSeed_MissingScenarioSetIsScenarioShapeFailure(t *testing.T) {
	src := `problem P { set Items;
  find Pick : Subset(Items);
  must forall i in Items: Pick.has(i);
}
`
	fe := compile(t, src)
	if fe.Bag.HasErrors() || fe.IR == nil {
		t.Fatalf("expected a clean compile, got %+v", fe.Bag.Items())
	}
	payload, err := scenario.Decode([]byte(`{"problem": "P", "sets": {}}`))
	if err != nil {
		t.Fatalf("scenario.Decode: %v", err)
	}
	spec := pipeline.ScenarioSpec{
		Name:       "default",
		Payload:    payload,
		CLIRuntime: "local-sampler-v1",
		CLIBackend: "dimod-cqm-v1",
		OutDir:     t.TempDir(),
	}
	res := pipeline.RunScenario(context.Background(), fe.IR, newRegistry(t), spec)
	if res.Err == nil {
		t.Fatal("expected a scenario-wide failure for the missing set `Items`")
	}
	if !hasCode(res.Bag.Items(), diag.CodeScenarioShape) {
		t.Fatalf("expected a %s diagnostic, got %+v", diag.CodeScenarioShape, res.Bag.Items())
	}
	if len(res.Problems) != 1 || res.Problems[0].Run.Status != "scenario_failed" {
		t.Fatalf("expected a single scenario_failed problem result, got %+v", res.Problems)
	}
}

func TestSeed_CyclicCustomUnknownIsShapeError(t *testing.T) {
	src := `unknown A(S) {
  rep {
    find x : B(S);
  }
}
unknown B(S) {
  rep {
    find y : A(S);
  }
}
problem P {
  set Items;
  find X : A(Items);
  must true;
}
`
	fe := compile(t, src)
	if !fe.Bag.HasErrors() {
		t.Fatal("expected a cycle error for mutually recursive `unknown` definitions")
	}
	if !hasCode(fe.Bag.Items(), diag.CodeShape) {
		t.Fatalf("expected a %s diagnostic, got %+v", diag.CodeShape, fe.Bag.Items())
	}
	if fe.IR != nil {
		t.Fatal("expected no lowered IR after a cycle error")
	}
}

func TestSeed_StrictCubicObjectiveTermIsUnsupported(t *testing.T) {
	src := `problem P { set S;
  find Pick : Subset(S);
  minimize sum((if Pick.has(x) then 1 else 0) * (if Pick.has(x) then 1 else 0) * (if Pick.has(x) then 1 else 0) for x in S);
}
`
	fe := compile(t, src)
	if fe.Bag.HasErrors() || fe.IR == nil {
		t.Fatalf("expected the cubic term to pass the frontend and fail only at backend codegen, got %+v", fe.Bag.Items())
	}
	payload, err := scenario.Decode([]byte(`{"problem": "P", "sets": {"S": ["s1"]}}`))
	if err != nil {
		t.Fatalf("scenario.Decode: %v", err)
	}
	spec := pipeline.ScenarioSpec{
		Name:       "default",
		Payload:    payload,
		CLIRuntime: "local-sampler-v1",
		CLIBackend: "dimod-cqm-v1",
		OutDir:     t.TempDir(),
	}
	res := pipeline.RunScenario(context.Background(), fe.IR, newRegistry(t), spec)
	if res.Err != nil {
		t.Fatalf("RunScenario: %v", res.Err)
	}
	if len(res.Problems) != 1 {
		t.Fatalf("expected exactly one problem result, got %d", len(res.Problems))
	}
	pr := res.Problems[0]
	if pr.Report.Supported {
		t.Fatal("expected the cubic objective term to be reported as unsupported")
	}
	found := false
	for _, iss := range pr.Report.Issues {
		if iss.Detail != nil && iss.Detail["diagnostic_code"] == string(diag.CodeUnsupportedBackend) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an issue wrapping %s, got %+v", diag.CodeUnsupportedBackend, pr.Report.Issues)
	}
}
