package codegen

import (
	"math"
	"sort"
	"strconv"
)

// toBQM flattens a CQM's hard constraints into penalty terms on top of
// its objective, producing a plain BQM. This is DESIGN.md's Open
// Question decision #1: every constraint gets the same dominating
// penalty coefficient M, computed once from the model's own coefficient
// magnitudes so it is always large enough to make any violation strictly
// worse than any feasible objective value.
//
// Inequality constraints are converted to equalities first by adding a
// binary-expansion slack term (`slack_i_j`, weight 2^j) sized to the
// constraint's own big-M bound, matching how a real CQM->BQM conversion
// introduces slack variables for range constraints.
func toBQM(cqm *CQM) *BQM {
	bqm := &BQM{Linear: map[string]float64{}, Quadratic: map[QuadKey]float64{}}
	varSet := map[string]bool{}
	for _, v := range cqm.VarOrder {
		varSet[v] = true
	}
	addInto2(bqm, cqm.Objective, 1)

	m := penaltyCoefficient(cqm)
	for i, c := range cqm.Constraints {
		residual := equalityResidual(c, i)
		addQuadraticPenalty(bqm, residual, m)
		for v := range residual.Linear {
			varSet[v] = true
		}
		for k := range residual.Quad {
			varSet[k.U] = true
			varSet[k.V] = true
		}
	}

	bqm.VarOrder = make([]string, 0, len(varSet))
	for v := range varSet {
		bqm.VarOrder = append(bqm.VarOrder, v)
	}
	sort.Strings(bqm.VarOrder)
	return bqm
}

// penaltyCoefficient computes decision #1's M: one global value shared by
// every constraint, ten times the sum of the absolute coefficients and
// constants of the objective and of every constraint, plus one.
func penaltyCoefficient(cqm *CQM) float64 {
	total := sumAbs(cqm.Objective)
	for _, c := range cqm.Constraints {
		total += sumAbs(c.Poly)
	}
	return 10*total + 1
}

func sumAbs(p Poly) float64 {
	s := math.Abs(p.Const)
	for _, v := range p.Linear {
		s += math.Abs(v)
	}
	for _, v := range p.Quad {
		s += math.Abs(v)
	}
	return s
}

// equalityResidual returns poly-rhs, extended with slack binaries for
// Le/Ge constraints so that residual==0 exactly when the constraint
// holds: Le becomes poly + slack - rhs == 0 with slack in [0, M]; Ge
// becomes poly - slack - rhs == 0 the same way.
func equalityResidual(c CQMConstraint, idx int) Poly {
	d := c.Poly.clone()
	d.Const -= c.RHS
	switch c.Sense {
	case Eq:
		return d
	case Le:
		return addSlack(d, idx, 1)
	case Ge:
		return addSlack(d, idx, -1)
	}
	return d
}

// addSlack adds a binary-expansion slack term bounded to cover d's own
// magnitude, so the slack can always absorb any feasible gap between the
// constraint's two sides.
func addSlack(d Poly, idx int, sign float64) Poly {
	bound := bigM(d)
	bits := 1
	for (1 << uint(bits)) <= int(math.Ceil(bound)) {
		bits++
	}
	out := d.clone()
	for j := 0; j < bits; j++ {
		label := slackLabel(idx, j)
		addLinear(&out, label, sign*float64(uint(1)<<uint(j)))
	}
	return out
}

func slackLabel(constraintIdx, bit int) string {
	return "slack_" + strconv.Itoa(constraintIdx) + "_" + strconv.Itoa(bit)
}

// addQuadraticPenalty adds coeff * residual^2 into bqm.
func addQuadraticPenalty(bqm *BQM, residual Poly, coeff float64) {
	sq, ok := mulPoly(residual, residual)
	if !ok {
		// residual already degree <=1, so its square is always degree
		// <=2 and this path is unreachable in practice; fall back to a
		// linear penalty rather than dropping the constraint.
		addInto2(bqm, residual, coeff)
		return
	}
	addInto2(bqm, sq, coeff)
}

func addInto2(bqm *BQM, p Poly, scale float64) {
	bqm.Offset += p.Const * scale
	for k, v := range p.Linear {
		bqm.Linear[k] += v * scale
	}
	for k, v := range p.Quad {
		bqm.Quadratic[k] += v * scale
	}
}

