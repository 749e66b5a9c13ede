package codegen_test

import (
	"testing"

	"qsol/internal/codegen"
	"qsol/internal/diag"
	"qsol/internal/ground"
	"qsol/internal/kernel"
)

func TestEmit_HardVarConstraint_IsFeasibleOnlyWhenTrue(t *testing.T) {
	gp := &ground.Problem{
		Name: "P",
		Vars: []ground.FindVar{
			{Label: "x", Find: "S", Kind: "Subset", A: "a"},
		},
		Constraints: []ground.Constraint{
			{Kind: kernel.Must, Expr: &ground.Var{Label: "x"}},
		},
	}

	bag := diag.NewBag()
	res := codegen.Emit(gp, bag)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	if len(res.CQM.Constraints) != 1 {
		t.Fatalf("expected exactly one CQM constraint, got %d", len(res.CQM.Constraints))
	}
	if !res.CQM.Feasible(map[string]int{"x": 1}) {
		t.Fatal("expected x=1 to satisfy `must x`")
	}
	if res.CQM.Feasible(map[string]int{"x": 0}) {
		t.Fatal("expected x=0 to violate `must x`")
	}
	if res.Stats.NumVariables != len(res.BQM.VarOrder) {
		t.Fatalf("Stats.NumVariables (%d) disagrees with len(BQM.VarOrder) (%d)", res.Stats.NumVariables, len(res.BQM.VarOrder))
	}
}

func TestEmit_MappingOneHotLaw(t *testing.T) {
	gp := &ground.Problem{
		Name: "P",
		Vars: []ground.FindVar{
			{Label: "f_a_b1", Find: "F", Kind: "Mapping", A: "a", B: "b1"},
			{Label: "f_a_b2", Find: "F", Kind: "Mapping", A: "a", B: "b2"},
		},
	}

	bag := diag.NewBag()
	res := codegen.Emit(gp, bag)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	if len(res.CQM.Constraints) != 1 {
		t.Fatalf("expected exactly one one-hot constraint, got %d", len(res.CQM.Constraints))
	}

	c := res.CQM.Constraints[0]
	if !c.Satisfies(map[string]int{"f_a_b1": 1, "f_a_b2": 0}) {
		t.Fatal("expected exactly-one-true assignment to satisfy the one-hot law")
	}
	if c.Satisfies(map[string]int{"f_a_b1": 1, "f_a_b2": 1}) {
		t.Fatal("expected both-true assignment to violate the one-hot law")
	}
	if c.Satisfies(map[string]int{"f_a_b1": 0, "f_a_b2": 0}) {
		t.Fatal("expected both-false assignment to violate the one-hot law")
	}
}

func TestEmit_VarMapUsesSpecDisplayForms(t *testing.T) {
	gp := &ground.Problem{
		Name: "P",
		Vars: []ground.FindVar{
			{Label: "s_a", Find: "S", Kind: "Subset", A: "a"},
			{Label: "f_a_b", Find: "F", Kind: "Mapping", A: "a", B: "b"},
		},
	}
	res := codegen.Emit(gp, diag.NewBag())
	if res.VarMap["s_a"] != "S.has(a)" {
		t.Fatalf("got %q, want S.has(a)", res.VarMap["s_a"])
	}
	if res.VarMap["f_a_b"] != "F.is(a,b)" {
		t.Fatalf("got %q, want F.is(a,b)", res.VarMap["f_a_b"])
	}
}

func TestEmit_ImpliesConstraint(t *testing.T) {
	// must x => y : violated only when x=1,y=0.
	gp := &ground.Problem{
		Name: "P",
		Vars: []ground.FindVar{
			{Label: "x", Find: "S", Kind: "Subset", A: "a"},
			{Label: "y", Find: "S", Kind: "Subset", A: "b"},
		},
		Constraints: []ground.Constraint{
			{Kind: kernel.Must, Expr: &ground.Implies{
				Left:  &ground.Var{Label: "x"},
				Right: &ground.Var{Label: "y"},
			}},
		},
	}
	res := codegen.Emit(gp, diag.NewBag())
	feasible := res.CQM.Feasible
	if !feasible(map[string]int{"x": 0, "y": 0}) {
		t.Fatal("x=0,y=0 should satisfy x=>y")
	}
	if !feasible(map[string]int{"x": 1, "y": 1}) {
		t.Fatal("x=1,y=1 should satisfy x=>y")
	}
	if feasible(map[string]int{"x": 1, "y": 0}) {
		t.Fatal("x=1,y=0 should violate x=>y")
	}
}

func TestEmit_SoftConstraintAddsQuadraticPenaltyToObjective(t *testing.T) {
	gp := &ground.Problem{
		Name: "P",
		Vars: []ground.FindVar{
			{Label: "x", Find: "S", Kind: "Subset", A: "a"},
		},
		Constraints: []ground.Constraint{
			{Kind: kernel.Should, Expr: &ground.Var{Label: "x"}},
		},
	}
	res := codegen.Emit(gp, diag.NewBag())
	if len(res.CQM.Constraints) != 0 {
		t.Fatalf("a should-constraint must not become a hard CQM constraint, got %d", len(res.CQM.Constraints))
	}
	// residual = 1-x, squared and weighted by shouldWeight=10: energy at
	// x=0 (10) must exceed energy at x=1 (0).
	e0 := res.CQM.Objective.Eval(map[string]int{"x": 0})
	e1 := res.CQM.Objective.Eval(map[string]int{"x": 1})
	if !(e0 > e1) {
		t.Fatalf("expected the should-constraint's penalty to favor x=1: e0=%v e1=%v", e0, e1)
	}
}

func TestBQM_ToIsing_MatchesSpinSubstitution(t *testing.T) {
	bqm := &codegen.BQM{
		VarOrder: []string{"x", "y"},
		Linear:   map[string]float64{"x": 2, "y": 0},
		Quadratic: map[codegen.QuadKey]float64{
			{U: "x", V: "y"}: 4,
		},
		Offset: 1,
	}
	offset, h, j := bqm.ToIsing()

	// x = (s+1)/2 substitution: linear c*x -> c/2*s + c/2 offset;
	// quadratic c*x*y -> c/4*s*t + c/4*(h_x+h_y) + c/4 offset.
	wantHX := 2.0/2 + 4.0/4
	wantHY := 0.0/2 + 4.0/4
	wantJ := 4.0 / 4
	wantOffset := 1.0 + 2.0/2 + 0.0/2 + 4.0/4

	if h["x"] != wantHX {
		t.Errorf("h[x] = %v, want %v", h["x"], wantHX)
	}
	if h["y"] != wantHY {
		t.Errorf("h[y] = %v, want %v", h["y"], wantHY)
	}
	if got := j[codegen.QuadKey{U: "x", V: "y"}]; got != wantJ {
		t.Errorf("j[x,y] = %v, want %v", got, wantJ)
	}
	if offset != wantOffset {
		t.Errorf("offset = %v, want %v", offset, wantOffset)
	}
}

func TestPoly_Eval(t *testing.T) {
	// (2*x + 3*x*y + 5) at x=1,y=1 -> 2+3+5=10; at x=1,y=0 -> 2+0+5=7.
	p := codegen.Poly{
		Const:  5,
		Linear: map[string]float64{"x": 2},
		Quad:   map[codegen.QuadKey]float64{{U: "x", V: "y"}: 3},
	}
	if got := p.Eval(map[string]int{"x": 1, "y": 1}); got != 10 {
		t.Fatalf("got %v, want 10", got)
	}
	if got := p.Eval(map[string]int{"x": 1, "y": 0}); got != 7 {
		t.Fatalf("got %v, want 7", got)
	}
}
