package codegen

// Satisfies reports whether a single constraint holds at sample, within
// the same epsilon tolerance emit.go uses. CQM constraints are always
// non-strict (Eq/Le/Ge) by the time they reach here: emit.go has already
// turned strict comparisons into epsilon-shifted Le/Ge constraints or
// big-M indicator constraints, so a plain epsilon-widened comparison is
// enough to re-check a decoded sample.
func (c CQMConstraint) Satisfies(sample map[string]int) bool {
	v := c.Poly.Eval(sample)
	switch c.Sense {
	case Eq:
		return abs(v-c.RHS) <= epsilon
	case Le:
		return v <= c.RHS+epsilon
	case Ge:
		return v >= c.RHS-epsilon
	default:
		return false
	}
}

// Feasible reports whether sample satisfies every hard constraint of the
// CQM, including the structural laws lowered into CQMConstraint alongside
// user-declared ones. Used by runtime plugins to implement spec.md §4.12's
// post-processing step 1 ("Filter to samples satisfying all CQM hard
// constraints") before ranking BQM-energy samples: a sample can reach a
// low penalty energy through imperfect annealing convergence without
// actually satisfying every hard constraint.
func (cqm *CQM) Feasible(sample map[string]int) bool {
	for _, c := range cqm.Constraints {
		if !c.Satisfies(sample) {
			return false
		}
	}
	return true
}
