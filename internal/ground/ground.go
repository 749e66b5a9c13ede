// Package ground fully expands a lowered Kernel IR against a scenario
// payload into Ground IR: every quantifier and aggregate replaced by its
// finite expansion over concrete set elements, every remaining
// expression a tree over binary decision variables and constants.
//
// Grounded on spec.md §4.9's Grounder contract. This is a deliberate
// departure from original_source/backend/instance.py, which defers
// quantifier expansion into codegen via a threaded env map — spec.md
// names an explicit, fully-expanding Grounder stage producing an
// iterator-free Ground IR as its own pipeline stage, and spec.md
// governs architecture over original_source (see DESIGN.md's Open
// Question decisions). instance.py's set/param binding, shape
// validation, and indexed-default broadcasting are kept, adapted into
// this stage's binding step.
package ground

import (
	"fmt"
	"sort"

	"qsol/internal/diag"
	"qsol/internal/kernel"
)

// GExpr is a fully-expanded Ground IR expression: a finite tree over
// binary variable references and constants.
type GExpr interface{ gExprNode() }

type BoolLit struct{ Value bool }
type NumLit struct{ Value float64 }

// ElemLit is a grounded reference to a concrete set-element id, used
// only transiently while expanding quantifier/comprehension binders —
// it never survives into a Constraint/Objective's final tree, since
// every context that can hold an element (index args, method-call args,
// element equality) resolves it before returning.
type ElemLit struct{ Value string }

func (*ElemLit) gExprNode() {}

// Var references one decision binary by its stable label
// (`Name.has[s]` or `Name.is[a,b]`).
type Var struct{ Label string }

type Not struct{ Expr GExpr }
type And struct{ Terms []GExpr }
type Or struct{ Terms []GExpr }
type Implies struct{ Left, Right GExpr }
type Compare struct {
	Op          string
	Left, Right GExpr
}
type Add struct{ Terms []GExpr }
type Sub struct{ Left, Right GExpr }
type Mul struct{ Left, Right GExpr }
type Div struct{ Left, Right GExpr }
type Neg struct{ Expr GExpr }
type IfThenElse struct{ Cond, Then, Else GExpr }

func (*BoolLit) gExprNode()    {}
func (*NumLit) gExprNode()     {}
func (*Var) gExprNode()        {}
func (*Not) gExprNode()        {}
func (*And) gExprNode()        {}
func (*Or) gExprNode()         {}
func (*Implies) gExprNode()    {}
func (*Compare) gExprNode()    {}
func (*Add) gExprNode()        {}
func (*Sub) gExprNode()        {}
func (*Mul) gExprNode()        {}
func (*Div) gExprNode()        {}
func (*Neg) gExprNode()        {}
func (*IfThenElse) gExprNode() {}

// FindVar is one expanded decision variable.
type FindVar struct {
	Label string
	Find  string // owning find name
	Kind  string // "Subset" | "Mapping"
	A, B  string // Subset: A is the element, B unused. Mapping: A domain elem, B codomain elem.
}

type Constraint struct {
	Kind kernel.ConstraintKind
	Expr GExpr
}

type Objective struct {
	Kind kernel.ObjectiveKind
	Expr GExpr
}

// Problem is one grounded problem: concrete variables, constraints, and
// objectives, with no remaining iterators.
type Problem struct {
	Name        string
	Vars        []FindVar // stable declaration order
	Constraints []Constraint
	Objectives  []Objective
}

// IR is the whole grounded compilation unit.
type IR struct {
	Problems []Problem
}

// paramVal is a scalar-or-indexed param value tree bound to a scenario.
type paramVal struct {
	isMap bool
	num   float64
	elem  string
	m     map[string]*paramVal
}

// Scenario is the caller-supplied grounding payload (spec.md §6).
type Scenario struct {
	Problem string
	Sets    map[string][]string
	Params  map[string]any // scalar (float64/bool/string) or nested map[string]any
}

type binding struct {
	sets   map[string][]string
	params map[string]*paramVal
}

// Program grounds every problem in ir matching scenario.Problem (or all,
// if unset) against scenario, reporting QSOL2201 diagnostics for missing
// or malformed set/param data into bag.
func Program(ir *kernel.IR, scenario Scenario, bag *diag.Bag) *IR {
	out := &IR{}
	for _, kp := range ir.Problems {
		if scenario.Problem != "" && kp.Name != scenario.Problem {
			continue
		}
		gp, ok := groundProblem(kp, scenario, bag)
		if ok {
			out.Problems = append(out.Problems, gp)
		}
	}
	return out
}

func groundProblem(kp kernel.Problem, scenario Scenario, bag *diag.Bag) (Problem, bool) {
	b := binding{sets: map[string][]string{}, params: map[string]*paramVal{}}
	before := bag.Len()

	for _, s := range kp.Sets {
		vals, ok := scenario.Sets[s.Name]
		if !ok {
			bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.CodeScenarioShape,
				Message: fmt.Sprintf("missing set values for `%s`", s.Name), Primary: s.Span})
			continue
		}
		b.sets[s.Name] = vals
	}

	for _, pd := range kp.Params {
		raw, provided := scenario.Params[pd.Name]
		if !provided {
			if !pd.HasDefault {
				bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.CodeScenarioShape,
					Message: fmt.Sprintf("missing value for param `%s`", pd.Name), Primary: pd.Span})
				continue
			}
			raw = defaultScalar(pd)
			if len(pd.Indices) > 0 {
				raw = broadcastDefault(defaultScalar(pd), pd.Indices, b.sets)
			}
		}
		pv, ok := bindParam(raw, pd.Indices, b.sets)
		if !ok {
			bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.CodeScenarioShape,
				Message: fmt.Sprintf("param `%s` shape does not match index sets", pd.Name), Primary: pd.Span})
			continue
		}
		b.params[pd.Name] = pv
	}

	var vars []FindVar
	for _, fd := range kp.Finds {
		vars = append(vars, expandFind(fd, b.sets)...)
	}

	if bag.Len() > before {
		return Problem{}, false
	}

	gp := Problem{Name: kp.Name, Vars: vars}
	for _, c := range kp.Constraints {
		expr := expand(c.Expr, b, map[string]string{}, bag)
		if bag.Len() > before {
			return Problem{}, false
		}
		gp.Constraints = append(gp.Constraints, Constraint{Kind: c.Kind, Expr: expr})
	}
	for _, o := range kp.Objectives {
		expr := expand(o.Expr, b, map[string]string{}, bag)
		if bag.Len() > before {
			return Problem{}, false
		}
		gp.Objectives = append(gp.Objectives, Objective{Kind: o.Kind, Expr: expr})
	}
	return gp, true
}

func defaultScalar(pd kernel.ParamDecl) any {
	switch pd.ScalarKind {
	case "Bool":
		return pd.DefaultBool
	case "Int":
		return float64(pd.DefaultInt)
	case "Elem":
		return "" // set-valued params never carry defaults (rejected in typecheck)
	default:
		return pd.DefaultReal
	}
}

func broadcastDefault(leaf any, dims []string, sets map[string][]string) any {
	if len(dims) == 0 {
		return leaf
	}
	out := map[string]any{}
	for _, e := range sets[dims[0]] {
		out[e] = broadcastDefault(leaf, dims[1:], sets)
	}
	return out
}

func bindParam(raw any, dims []string, sets map[string][]string) (*paramVal, bool) {
	if len(dims) == 0 {
		switch v := raw.(type) {
		case float64:
			return &paramVal{num: v}, true
		case bool:
			n := 0.0
			if v {
				n = 1.0
			}
			return &paramVal{num: n}, true
		case string:
			return &paramVal{elem: v}, true
		default:
			return nil, false
		}
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	expected := append([]string(nil), sets[dims[0]]...)
	sort.Strings(expected)
	got := make([]string, 0, len(m))
	for k := range m {
		got = append(got, k)
	}
	sort.Strings(got)
	if len(expected) > 0 && !equalStrings(expected, got) {
		return nil, false
	}
	out := &paramVal{isMap: true, m: map[string]*paramVal{}}
	for k, v := range m {
		child, ok := bindParam(v, dims[1:], sets)
		if !ok {
			return nil, false
		}
		out.m[k] = child
	}
	return out, true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func expandFind(fd kernel.FindDecl, sets map[string][]string) []FindVar {
	var out []FindVar
	switch fd.Kind {
	case "Subset":
		if len(fd.TypeArgs) == 0 {
			return nil
		}
		for _, s := range sets[fd.TypeArgs[0]] {
			out = append(out, FindVar{Label: fmt.Sprintf("%s.has[%s]", fd.Name, s), Find: fd.Name, Kind: "Subset", A: s})
		}
	case "Mapping":
		if len(fd.TypeArgs) < 2 {
			return nil
		}
		for _, a := range sets[fd.TypeArgs[0]] {
			for _, b := range sets[fd.TypeArgs[1]] {
				out = append(out, FindVar{Label: fmt.Sprintf("%s.is[%s,%s]", fd.Name, a, b), Find: fd.Name, Kind: "Mapping", A: a, B: b})
			}
		}
	}
	return out
}

// expand walks a Kernel IR expression, substituting quantifier/aggregate
// binders through env (var name -> bound element id) and fully
// expanding every Quantifier/Sum into its finite form.
func expand(expr kernel.KExpr, b binding, env map[string]string, bag *diag.Bag) GExpr {
	switch ex := expr.(type) {
	case *kernel.BoolLit:
		return &BoolLit{Value: ex.Value}
	case *kernel.NumLit:
		return &NumLit{Value: ex.Value}
	case *kernel.Name:
		if elem, ok := env[ex.Name]; ok {
			return &ElemLit{Value: elem}
		}
		if pv, ok := b.params[ex.Name]; ok && !pv.isMap {
			if pv.elem != "" {
				return &ElemLit{Value: pv.elem}
			}
			return &NumLit{Value: pv.num}
		}
		bag.Errorf(diag.CodeScenarioShape, ex.Span(), "%q is not bound by any quantifier and has no matching scenario parameter", ex.Name)
		return &BoolLit{Value: false}
	case *kernel.Not:
		return &Not{Expr: expand(ex.Expr, b, env, bag)}
	case *kernel.And:
		return &And{Terms: []GExpr{expand(ex.Left, b, env, bag), expand(ex.Right, b, env, bag)}}
	case *kernel.Or:
		return &Or{Terms: []GExpr{expand(ex.Left, b, env, bag), expand(ex.Right, b, env, bag)}}
	case *kernel.Implies:
		return &Implies{Left: expand(ex.Left, b, env, bag), Right: expand(ex.Right, b, env, bag)}
	case *kernel.Compare:
		return foldCompare(ex.Op, expand(ex.Left, b, env, bag), expand(ex.Right, b, env, bag))
	case *kernel.Add:
		return foldAdd(expand(ex.Left, b, env, bag), expand(ex.Right, b, env, bag))
	case *kernel.Sub:
		return &Sub{Left: expand(ex.Left, b, env, bag), Right: expand(ex.Right, b, env, bag)}
	case *kernel.Mul:
		return foldMul(expand(ex.Left, b, env, bag), expand(ex.Right, b, env, bag))
	case *kernel.Div:
		return &Div{Left: expand(ex.Left, b, env, bag), Right: expand(ex.Right, b, env, bag)}
	case *kernel.Neg:
		return &Neg{Expr: expand(ex.Expr, b, env, bag)}
	case *kernel.IfThenElse:
		return &IfThenElse{Cond: expand(ex.Cond, b, env, bag), Then: expand(ex.Then, b, env, bag), Else: expand(ex.Else, b, env, bag)}
	case *kernel.FuncCall:
		if ex.Name == "size" {
			if n, ok := ex.Args[0].(*kernel.Name); ok {
				return &NumLit{Value: float64(len(b.sets[n.Name]))}
			}
		}
		return evalParamCall(ex, b, env, bag)
	case *kernel.MethodCall:
		return evalMethodCall(ex, b, env, bag)
	case *kernel.Quantifier:
		var terms []GExpr
		for _, elem := range b.sets[ex.DomainSet] {
			inner := cloneEnv(env)
			inner[ex.Var] = elem
			terms = append(terms, expand(ex.Expr, b, inner, bag))
		}
		if ex.Kind == "exists" {
			return &Or{Terms: terms}
		}
		return &And{Terms: terms}
	case *kernel.Sum:
		var terms []GExpr
		for _, elem := range b.sets[ex.Comp.DomainSet] {
			inner := cloneEnv(env)
			inner[ex.Comp.Var] = elem
			terms = append(terms, expand(ex.Comp.Term, b, inner, bag))
		}
		return &Add{Terms: terms}
	}
	return &BoolLit{Value: false}
}

// evalElem resolves e to a bound element id, either a quantifier/aggregate
// binder (a bare Name present in env) or an Elem(Set)-typed indexed
// param lookup like `U[e]` (a FuncCall whose fully-indexed value holds
// an element rather than a number). This lets `.has(U[e])`/`.is(U[e],c)`
// reference a scenario-supplied incidence param, matching spec.md's
// graph-shaped examples (`ColorOf.is(U[e],c)`, `S.has(U[e])`).
func evalElem(e kernel.KExpr, b binding, env map[string]string, bag *diag.Bag) (string, bool) {
	switch ex := e.(type) {
	case *kernel.Name:
		if v, ok := env[ex.Name]; ok {
			return v, true
		}
		return "", false
	case *kernel.FuncCall:
		pv, ok := b.params[ex.Name]
		if !ok {
			bag.Errorf(diag.CodeScenarioShape, ex.Span(), "scenario has no parameter %q", ex.Name)
			return "", false
		}
		cur := pv
		for _, a := range ex.Args {
			elem, ok := evalElem(a, b, env, bag)
			if !ok || !cur.isMap {
				bag.Errorf(diag.CodeScenarioShape, ex.Span(), "parameter %q is not a map indexable by that many arguments", ex.Name)
				return "", false
			}
			next, ok := cur.m[elem]
			if !ok {
				bag.Errorf(diag.CodeScenarioShape, ex.Span(), "parameter %q has no entry for %q", ex.Name, elem)
				return "", false
			}
			cur = next
		}
		if cur.isMap || cur.elem == "" {
			bag.Errorf(diag.CodeScenarioShape, ex.Span(), "parameter %q does not hold an element value", ex.Name)
			return "", false
		}
		return cur.elem, true
	}
	return "", false
}

func evalParamCall(fc *kernel.FuncCall, b binding, env map[string]string, bag *diag.Bag) GExpr {
	pv, ok := b.params[fc.Name]
	if !ok {
		bag.Errorf(diag.CodeScenarioShape, fc.Span(), "scenario has no parameter %q", fc.Name)
		return &BoolLit{Value: false}
	}
	cur := pv
	for _, a := range fc.Args {
		elem, ok := evalElem(a, b, env, bag)
		if !ok || !cur.isMap {
			bag.Errorf(diag.CodeScenarioShape, fc.Span(), "parameter %q is not a map indexable by that many arguments", fc.Name)
			return &BoolLit{Value: false}
		}
		next, ok := cur.m[elem]
		if !ok {
			bag.Errorf(diag.CodeScenarioShape, fc.Span(), "parameter %q has no entry for %q", fc.Name, elem)
			return &BoolLit{Value: false}
		}
		cur = next
	}
	if cur.isMap {
		bag.Errorf(diag.CodeScenarioShape, fc.Span(), "parameter %q needs more index arguments than were given", fc.Name)
		return &BoolLit{Value: false}
	}
	if cur.elem != "" {
		bag.Errorf(diag.CodeScenarioShape, fc.Span(), "parameter %q holds an element value where a number was expected", fc.Name)
		return &BoolLit{Value: false}
	}
	return &NumLit{Value: cur.num}
}

func evalMethodCall(mc *kernel.MethodCall, b binding, env map[string]string, bag *diag.Bag) GExpr {
	target, ok := mc.Target.(*kernel.Name)
	if !ok {
		bag.Errorf(diag.CodeScenarioShape, mc.Span(), "method call target must be a find variable name")
		return &BoolLit{Value: false}
	}
	switch mc.Name {
	case "has":
		elem, ok := evalElem(mc.Args[0], b, env, bag)
		if !ok {
			bag.Errorf(diag.CodeScenarioShape, mc.Span(), "%s.has(...) argument is not a bound element", target.Name)
			return &BoolLit{Value: false}
		}
		return &Var{Label: fmt.Sprintf("%s.has[%s]", target.Name, elem)}
	case "is":
		a, aok := evalElem(mc.Args[0], b, env, bag)
		bb, bok := evalElem(mc.Args[1], b, env, bag)
		if !aok || !bok {
			bag.Errorf(diag.CodeScenarioShape, mc.Span(), "%s.is(...) arguments are not both bound elements", target.Name)
			return &BoolLit{Value: false}
		}
		return &Var{Label: fmt.Sprintf("%s.is[%s,%s]", target.Name, a, bb)}
	}
	bag.Errorf(diag.CodeScenarioShape, mc.Span(), "%s has no method %q", target.Name, mc.Name)
	return &BoolLit{Value: false}
}

func cloneEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env)+1)
	for k, v := range env {
		out[k] = v
	}
	return out
}

func foldAdd(l, r GExpr) GExpr {
	if ln, ok := l.(*NumLit); ok {
		if rn, ok := r.(*NumLit); ok {
			return &NumLit{Value: ln.Value + rn.Value}
		}
	}
	return &Add{Terms: []GExpr{l, r}}
}

func foldMul(l, r GExpr) GExpr {
	if ln, ok := l.(*NumLit); ok {
		if rn, ok := r.(*NumLit); ok {
			return &NumLit{Value: ln.Value * rn.Value}
		}
	}
	return &Mul{Left: l, Right: r}
}

func foldCompare(op string, l, r GExpr) GExpr {
	if le, ok := l.(*ElemLit); ok {
		if re, ok := r.(*ElemLit); ok {
			eq := le.Value == re.Value
			if op == "!=" {
				eq = !eq
			}
			return &BoolLit{Value: eq}
		}
	}
	if ln, ok := l.(*NumLit); ok {
		if rn, ok := r.(*NumLit); ok {
			return &BoolLit{Value: compareConst(op, ln.Value, rn.Value)}
		}
	}
	return &Compare{Op: op, Left: l, Right: r}
}

const epsilon = 1e-6

func compareConst(op string, l, r float64) bool {
	d := l - r
	switch op {
	case "<":
		return d <= -epsilon
	case "<=":
		return d <= epsilon
	case ">":
		return d >= epsilon
	case ">=":
		return d >= -epsilon
	case "=":
		return d >= -epsilon && d <= epsilon
	case "!=":
		return !(d >= -epsilon && d <= epsilon)
	}
	return false
}
