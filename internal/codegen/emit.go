package codegen

import (
	"fmt"

	"qsol/internal/ground"
)

// epsilon mirrors internal/ground's tolerance constant: comparisons
// between variables (not constants, already folded away by ground) still
// need it when they cross into a boolean-context encoding.
const epsilon = 1e-6

// emitHardTop decomposes a `must` constraint into one or more CQM
// constraints. It mirrors dimod_codegen.py's _emit_constraint: And and
// Implies get direct constraint forms where possible, everything else
// falls back to asserting its boolean-atom encoding equals 1. Unlike
// dimod_codegen.py, Or is supported directly (via the OR gadget) rather
// than treated as an unsupported shape, since spec.md gives a general
// gadget for it.
func (b *builder) emitHardTop(expr ground.GExpr, label string) error {
	switch ex := expr.(type) {
	case *ground.And:
		for i, term := range ex.Terms {
			if err := b.emitHardTop(term, fmt.Sprintf("%s.%d", label, i)); err != nil {
				return err
			}
		}
		return nil
	case *ground.Not:
		if v, ok := ex.Expr.(*ground.Var); ok {
			b.addConstraint(label, varPoly(v.Label), Eq, 0)
			return nil
		}
		atom, err := b.toAtom(ex.Expr)
		if err != nil {
			return err
		}
		b.addConstraint(label, atom, Eq, 0)
		return nil
	case *ground.Implies:
		l, err := b.toAtom(ex.Left)
		if err != nil {
			return err
		}
		r, err := b.toAtom(ex.Right)
		if err != nil {
			return err
		}
		// x => y  <=>  x - y <= 0
		b.addConstraint(label, subPoly(l, r), Le, 0)
		return nil
	case *ground.Compare:
		return b.emitCompareTop(ex, label)
	case *ground.BoolLit:
		if ex.Value {
			return nil
		}
		b.addConstraint(label, constPoly(0), Eq, 1)
		return nil
	default:
		atom, err := b.toAtom(expr)
		if err != nil {
			return err
		}
		b.addConstraint(label, atom, Eq, 1)
		return nil
	}
}

// emitCompareTop emits a numeric comparison directly as a CQM
// constraint when its sense is native to CQM (=, <=, >=), shifting by
// epsilon for the strict senses exactly as original_source's codegen
// shifts by its own tolerance constant. `!=` has no native CQM sense (it
// excludes a band rather than bounding one side of it) so it always
// goes through the general boolean-atom encoding.
func (b *builder) emitCompareTop(cmp *ground.Compare, label string) error {
	l, err := b.evalNum(cmp.Left)
	if err != nil {
		return err
	}
	r, err := b.evalNum(cmp.Right)
	if err != nil {
		return err
	}
	d := subPoly(l, r)
	switch cmp.Op {
	case "=":
		b.addConstraint(label, d, Eq, 0)
		return nil
	case "<=":
		b.addConstraint(label, d, Le, 0)
		return nil
	case ">=":
		b.addConstraint(label, d, Ge, 0)
		return nil
	case "<":
		b.addConstraint(label, d, Le, -epsilon)
		return nil
	case ">":
		b.addConstraint(label, d, Ge, epsilon)
		return nil
	case "!=":
		atom, err := b.toAtom(cmp)
		if err != nil {
			return err
		}
		b.addConstraint(label, atom, Eq, 1)
		return nil
	}
	return fmt.Errorf("%s: unsupported comparison operator %q", label, cmp.Op)
}

// toAtom evaluates a boolean-typed Ground IR expression to a degree<=1
// Poly whose value is always exactly 0 or 1 on the binary hypercube —
// either a literal constant, a single Var reference, or a freshly
// declared aux: binary defined by the gadget constraints spec.md §4.10
// lists for AND/OR/NOT/IMPLIES/comparisons.
func (b *builder) toAtom(expr ground.GExpr) (Poly, error) {
	switch ex := expr.(type) {
	case *ground.BoolLit:
		if ex.Value {
			return constPoly(1), nil
		}
		return constPoly(0), nil
	case *ground.Var:
		return varPoly(ex.Label), nil
	case *ground.Not:
		x, err := b.toAtom(ex.Expr)
		if err != nil {
			return Poly{}, err
		}
		return subPoly(constPoly(1), x), nil
	case *ground.And:
		return b.foldAtoms(ex.Terms, b.andGadget)
	case *ground.Or:
		return b.foldAtoms(ex.Terms, b.orGadget)
	case *ground.Implies:
		l, err := b.toAtom(ex.Left)
		if err != nil {
			return Poly{}, err
		}
		r, err := b.toAtom(ex.Right)
		if err != nil {
			return Poly{}, err
		}
		return b.orGadget(subPoly(constPoly(1), l), r), nil
	case *ground.Compare:
		return b.compareAtom(ex)
	default:
		return Poly{}, fmt.Errorf("expression is not boolean-typed for backend purposes: %T", expr)
	}
}

func (b *builder) foldAtoms(terms []ground.GExpr, gadget func(l, r Poly) Poly) (Poly, error) {
	if len(terms) == 0 {
		return Poly{}, fmt.Errorf("empty boolean connective")
	}
	acc, err := b.toAtom(terms[0])
	if err != nil {
		return Poly{}, err
	}
	for _, t := range terms[1:] {
		next, err := b.toAtom(t)
		if err != nil {
			return Poly{}, err
		}
		acc = gadget(acc, next)
	}
	return acc, nil
}

// andGadget: z=AND(x,y) via z<=x, z<=y, z>=x+y-1.
func (b *builder) andGadget(x, y Poly) Poly {
	z := b.freshAux()
	zp := varPoly(z)
	b.addConstraint(fmt.Sprintf("%s.le.x", z), subPoly(zp, x), Le, 0)
	b.addConstraint(fmt.Sprintf("%s.le.y", z), subPoly(zp, y), Le, 0)
	b.addConstraint(fmt.Sprintf("%s.ge", z), subPoly(zp, addPoly(x, y)), Ge, -1)
	return zp
}

// orGadget: z=OR(x,y) via z>=x, z>=y, z<=x+y.
func (b *builder) orGadget(x, y Poly) Poly {
	z := b.freshAux()
	zp := varPoly(z)
	b.addConstraint(fmt.Sprintf("%s.ge.x", z), subPoly(zp, x), Ge, 0)
	b.addConstraint(fmt.Sprintf("%s.ge.y", z), subPoly(zp, y), Ge, 0)
	b.addConstraint(fmt.Sprintf("%s.le", z), subPoly(zp, addPoly(x, y)), Le, 0)
	return zp
}

// compareAtom encodes a comparison as a truth-valued binary via a
// big-M indicator. d = l-r is shifted by epsilon per the tolerance
// policy before it reaches atomLEZero: `<` holds when d <= -epsilon,
// `<=` when d <= epsilon, `>` when d >= epsilon, `>=` when d >= -epsilon,
// and `=` when d lies within [-epsilon, epsilon].
func (b *builder) compareAtom(cmp *ground.Compare) (Poly, error) {
	l, err := b.evalNum(cmp.Left)
	if err != nil {
		return Poly{}, err
	}
	r, err := b.evalNum(cmp.Right)
	if err != nil {
		return Poly{}, err
	}
	d := subPoly(l, r)
	switch cmp.Op {
	case "<":
		return b.atomLEZero(shiftPoly(d, -epsilon)), nil
	case "<=":
		return b.atomLEZero(shiftPoly(d, epsilon)), nil
	case ">":
		return b.atomLEZero(shiftPoly(scalePoly(d, -1), -epsilon)), nil
	case ">=":
		return b.atomLEZero(shiftPoly(scalePoly(d, -1), epsilon)), nil
	case "=":
		lo := b.atomLEZero(shiftPoly(d, epsilon))
		hi := b.atomLEZero(shiftPoly(scalePoly(d, -1), epsilon))
		return b.andGadget(lo, hi), nil
	case "!=":
		lo := b.atomLEZero(shiftPoly(d, epsilon))
		hi := b.atomLEZero(shiftPoly(scalePoly(d, -1), epsilon))
		eq := b.andGadget(lo, hi)
		return subPoly(constPoly(1), eq), nil
	}
	return Poly{}, fmt.Errorf("unsupported comparison operator %q", cmp.Op)
}

func shiftPoly(p Poly, c float64) Poly {
	out := p.clone()
	out.Const -= c
	return out
}

// atomLEZero returns a fresh aux binary y forced to 1 when d<0 and to 0
// when d>0 (at d==0 both values satisfy the two constraints), using a
// big-M bound on d over the binary hypercube:
//
//	d <= M*(1-y)   =>   d + M*y <= M
//	d >= -M*y
func (b *builder) atomLEZero(d Poly) Poly {
	m := bigM(d)
	y := b.freshAux()
	yp := varPoly(y)
	shifted := addPoly(d, scalePoly(yp, m)) // d + M*y
	b.addConstraint(fmt.Sprintf("%s.bigm.upper", y), shifted, Le, m)
	b.addConstraint(fmt.Sprintf("%s.bigm.lower", y), shifted, Ge, 0)
	return yp
}

// evalNum evaluates a numeric-typed Ground IR expression to a Poly,
// reporting an error (surfaced as QSOL3001) if a product or if/then/else
// linearization would need degree > 2.
func (b *builder) evalNum(expr ground.GExpr) (Poly, error) {
	switch ex := expr.(type) {
	case *ground.NumLit:
		return constPoly(ex.Value), nil
	case *ground.BoolLit:
		if ex.Value {
			return constPoly(1), nil
		}
		return constPoly(0), nil
	case *ground.Var:
		return varPoly(ex.Label), nil
	case *ground.Add:
		acc := Poly{}
		for _, t := range ex.Terms {
			p, err := b.evalNum(t)
			if err != nil {
				return Poly{}, err
			}
			addInto(&acc, p, 1)
		}
		return acc, nil
	case *ground.Sub:
		l, err := b.evalNum(ex.Left)
		if err != nil {
			return Poly{}, err
		}
		r, err := b.evalNum(ex.Right)
		if err != nil {
			return Poly{}, err
		}
		return subPoly(l, r), nil
	case *ground.Mul:
		l, err := b.evalNum(ex.Left)
		if err != nil {
			return Poly{}, err
		}
		r, err := b.evalNum(ex.Right)
		if err != nil {
			return Poly{}, err
		}
		p, ok := mulPoly(l, r)
		if !ok {
			return Poly{}, fmt.Errorf("product exceeds supported quadratic degree")
		}
		return p, nil
	case *ground.Div:
		l, err := b.evalNum(ex.Left)
		if err != nil {
			return Poly{}, err
		}
		rc, ok := asConst(ex.Right)
		if !ok {
			return Poly{}, fmt.Errorf("division by a non-constant expression is unsupported")
		}
		if rc == 0 {
			return Poly{}, fmt.Errorf("division by zero")
		}
		return scalePoly(l, 1/rc), nil
	case *ground.Neg:
		x, err := b.evalNum(ex.Expr)
		if err != nil {
			return Poly{}, err
		}
		return scalePoly(x, -1), nil
	case *ground.IfThenElse:
		cond, err := b.toAtom(ex.Cond)
		if err != nil {
			return Poly{}, err
		}
		then, err := b.evalNum(ex.Then)
		if err != nil {
			return Poly{}, err
		}
		els, err := b.evalNum(ex.Else)
		if err != nil {
			return Poly{}, err
		}
		// c*then + (1-c)*els
		thenTerm, ok := mulPoly(cond, then)
		if !ok {
			return Poly{}, fmt.Errorf("if/then/else branch exceeds supported quadratic degree")
		}
		elsTerm, ok := mulPoly(subPoly(constPoly(1), cond), els)
		if !ok {
			return Poly{}, fmt.Errorf("if/then/else branch exceeds supported quadratic degree")
		}
		return addPoly(thenTerm, elsTerm), nil
	default:
		// A boolean-shaped node (And/Or/Not/Implies/Compare) used in
		// numeric position evaluates to its 0/1 truth atom.
		return b.toAtom(expr)
	}
}

func asConst(expr ground.GExpr) (float64, bool) {
	if n, ok := expr.(*ground.NumLit); ok {
		return n.Value, true
	}
	return 0, false
}
