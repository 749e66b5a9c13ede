// Package codegen turns a ground.IR problem into a CQM (constrained
// quadratic model) and, from that, a BQM (binary quadratic model) —
// spec.md §4.10's backend contract.
//
// Grounded on original_source/backend/dimod_codegen.py's DimodCodegen,
// but considerably simpler: internal/ground has already fully expanded
// every quantifier, aggregate, and env-bound name, so this package never
// threads a binder environment — it only ever sees BoolLit/NumLit/
// Var/And/Or/Not/Implies/Compare/Add/Sub/Mul/Div/Neg/IfThenElse. Where
// dimod_codegen.py leans on the dimod library's ConstrainedQuadraticModel
// and cqm_to_bqm, this package reimplements both: a small Poly type
// (internal/codegen/poly.go) stands in for dimod's BinaryQuadraticModel
// arithmetic, and CQM->BQM conversion uses the penalty-coefficient scheme
// recorded as an Open Question decision in DESIGN.md, since no example
// repo in the pack imports an actual QUBO/CQM solver library.
package codegen

import (
	"fmt"
	"sort"

	"qsol/internal/diag"
	"qsol/internal/ground"
	"qsol/internal/kernel"
)

// Sense is a CQM constraint's comparison direction. CQM constraints are
// always non-strict: a top-level strict `<`/`>` becomes Le/Ge with an
// epsilon-shifted right-hand side (emitCompareTop), while `!=` and
// comparisons nested in boolean connectives go through the big-M
// boolean encoding (toAtom's Compare case).
type Sense uint8

const (
	Eq Sense = iota
	Le
	Ge
)

// CQMConstraint is one constraint of the constrained quadratic model.
type CQMConstraint struct {
	Label string
	Poly  Poly
	Sense Sense
	RHS   float64
}

// CQM is the constrained quadratic model for one grounded problem.
type CQM struct {
	VarOrder    []string
	Objective   Poly
	Constraints []CQMConstraint
}

// BQM is the binary quadratic model produced by flattening a CQM's hard
// constraints into penalty terms on top of its objective.
type BQM struct {
	VarOrder  []string
	Linear    map[string]float64
	Quadratic map[QuadKey]float64
	Offset    float64
}

// Stats mirrors spec.md §6's reported model statistics.
type Stats struct {
	NumVariables   int
	NumConstraints int
	NumInteractions int
}

// Result is everything codegen produces for one grounded problem.
type Result struct {
	Problem string
	CQM     *CQM
	BQM     *BQM
	VarMap  map[string]string // internal label -> spec.md §6 display name
	Stats   Stats
}

// soft constraint penalty weights, spec.md §4.10.
const (
	shouldWeight = 10.0
	niceWeight   = 1.0
)

type builder struct {
	problem  string
	vars     map[string]bool
	varOrder []string
	cqm      []CQMConstraint
	obj      Poly
	auxN     int
	slackN   int
	bag      *diag.Bag
}

// Emit compiles one grounded problem into a CQM and its BQM flattening.
func Emit(gp *ground.Problem, bag *diag.Bag) *Result {
	b := &builder{problem: gp.Name, vars: map[string]bool{}, bag: bag}
	for _, v := range gp.Vars {
		b.declareVar(v.Label)
	}
	b.emitMappingOneHotLaws(gp.Vars)

	for i, c := range gp.Constraints {
		label := fmt.Sprintf("constraint_%d", i)
		switch c.Kind {
		case kernel.Must:
			if err := b.emitHardTop(c.Expr, label); err != nil {
				b.unsupported(err)
			}
		case kernel.Should:
			b.emitSoft(c.Expr, shouldWeight, label)
		case kernel.Nice:
			b.emitSoft(c.Expr, niceWeight, label)
		}
	}

	for _, o := range gp.Objectives {
		p, err := b.evalNum(o.Expr)
		if err != nil {
			b.unsupported(err)
			continue
		}
		// lower.go already canonicalized maximize into minimize(-E).
		addInto(&b.obj, p, 1)
	}

	sort.Strings(b.varOrder)
	cqm := &CQM{VarOrder: b.varOrder, Objective: b.obj, Constraints: b.cqm}
	bqm := toBQM(cqm)

	return &Result{
		Problem: gp.Name,
		CQM:     cqm,
		BQM:     bqm,
		VarMap:  varMap(gp.Vars),
		Stats: Stats{
			NumVariables:    len(bqm.VarOrder),
			NumConstraints:  len(cqm.Constraints),
			NumInteractions: len(bqm.Quadratic),
		},
	}
}

func (b *builder) unsupported(err error) {
	b.bag.Add(diag.Diagnostic{
		Severity: diag.SevError,
		Code:     diag.CodeUnsupportedBackend,
		Message:  err.Error(),
	})
}

func (b *builder) declareVar(label string) {
	if !b.vars[label] {
		b.vars[label] = true
		b.varOrder = append(b.varOrder, label)
	}
}

func (b *builder) freshAux() string {
	b.auxN++
	label := fmt.Sprintf("aux:%d", b.auxN)
	b.declareVar(label)
	return label
}

func (b *builder) freshSlackBit(i int) string {
	label := fmt.Sprintf("slack_%d_%d", b.slackN, i)
	b.declareVar(label)
	return label
}

func (b *builder) addConstraint(label string, p Poly, sense Sense, rhs float64) {
	b.cqm = append(b.cqm, CQMConstraint{Label: label, Poly: p, Sense: sense, RHS: rhs})
}

// varMap builds spec.md §6's display varmap, mapping internal labels to
// the surface `Name.has(s)` / `Name.is(a,b)` form and excluding
// aux:/slack_ working variables.
func varMap(vars []ground.FindVar) map[string]string {
	out := make(map[string]string, len(vars))
	for _, v := range vars {
		switch v.Kind {
		case "Subset":
			out[v.Label] = fmt.Sprintf("%s.has(%s)", v.Find, v.A)
		case "Mapping":
			out[v.Label] = fmt.Sprintf("%s.is(%s,%s)", v.Find, v.A, v.B)
		}
	}
	return out
}

// emitMappingOneHotLaws adds, for every Mapping find, the structural law
// spec.md §4.10 requires of a total function: for each domain element a,
// exactly one F.is[a,b] is true across all codomain elements b.
func (b *builder) emitMappingOneHotLaws(vars []ground.FindVar) {
	type key struct{ find, a string }
	groups := map[key][]string{}
	var order []key
	for _, v := range vars {
		if v.Kind != "Mapping" {
			continue
		}
		k := key{v.Find, v.A}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], v.Label)
	}
	for _, k := range order {
		p := Poly{}
		for _, label := range groups[k] {
			addLinear(&p, label, 1)
		}
		b.addConstraint(fmt.Sprintf("one_hot:%s:%s", k.find, k.a), p, Eq, 1)
	}
}

// emitSoft folds a should/nice constraint into the objective directly,
// per spec.md §4.10: "the squared-violation penalty produced by the same
// encoding used for hard constraints, but attached to the objective
// rather than asserted." The violation residual is 1-atom (atom is the
// same 0/1 truth-value encoding toAtom builds for a hard constraint's
// fallback path), squared and scaled by the soft weight.
func (b *builder) emitSoft(expr ground.GExpr, weight float64, label string) {
	atom, err := b.toAtom(expr)
	if err != nil {
		b.unsupported(fmt.Errorf("%s: %w", label, err))
		return
	}
	residual := subPoly(constPoly(1), atom)
	sq, ok := mulPoly(residual, residual)
	if !ok {
		b.unsupported(fmt.Errorf("%s: soft-constraint penalty exceeds supported quadratic degree", label))
		return
	}
	addInto(&b.obj, sq, weight)
}
