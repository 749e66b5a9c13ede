package target

import (
	"fmt"
	"sort"

	"qsol/internal/diag"
	"qsol/internal/ground"
)

// ExtractRequiredCapabilities scans a grounded problem for the
// capability ids its shape requires, grounded on
// compatibility.py's extract_required_capabilities /
// _collect_expr_capabilities. Ground IR has already expanded away
// Quantifier/Sum/Name/FuncCall/MethodCall nodes (see internal/ground's
// doc comment), so this walk is over a much smaller node set than the
// Python original's.
func ExtractRequiredCapabilities(gp *ground.Problem) []string {
	caps := map[string]bool{}
	for _, v := range gp.Vars {
		switch v.Kind {
		case "Subset":
			caps["unknown.subset.v1"] = true
		case "Mapping":
			caps["unknown.mapping.v1"] = true
		default:
			caps["unknown.custom.v1"] = true
		}
	}
	for _, c := range gp.Constraints {
		collectExprCapabilities(c.Expr, caps)
	}
	for _, o := range gp.Objectives {
		collectExprCapabilities(o.Expr, caps)
	}
	out := make([]string, 0, len(caps))
	for c := range caps {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

var compareCapabilities = map[string]string{
	"=":  "constraint.compare.eq.v1",
	"!=": "constraint.compare.ne.v1",
	"<":  "constraint.compare.lt.v1",
	"<=": "constraint.compare.le.v1",
	">":  "constraint.compare.gt.v1",
	">=": "constraint.compare.ge.v1",
}

func collectExprCapabilities(expr ground.GExpr, caps map[string]bool) {
	switch ex := expr.(type) {
	case *ground.Compare:
		if cap, ok := compareCapabilities[ex.Op]; ok {
			caps[cap] = true
		}
		collectExprCapabilities(ex.Left, caps)
		collectExprCapabilities(ex.Right, caps)
	case *ground.IfThenElse:
		caps["objective.if_then_else.v1"] = true
		collectExprCapabilities(ex.Cond, caps)
		collectExprCapabilities(ex.Then, caps)
		collectExprCapabilities(ex.Else, caps)
	case *ground.And:
		caps["expression.bool.and.v1"] = true
		for _, t := range ex.Terms {
			collectExprCapabilities(t, caps)
		}
	case *ground.Or:
		caps["expression.bool.or.v1"] = true
		for _, t := range ex.Terms {
			collectExprCapabilities(t, caps)
		}
	case *ground.Implies:
		caps["expression.bool.implies.v1"] = true
		collectExprCapabilities(ex.Left, caps)
		collectExprCapabilities(ex.Right, caps)
	case *ground.Not:
		caps["expression.bool.not.v1"] = true
		collectExprCapabilities(ex.Expr, caps)
	case *ground.Add:
		caps["objective.sum.v1"] = true
		for _, t := range ex.Terms {
			collectExprCapabilities(t, caps)
		}
	case *ground.Sub:
		collectExprCapabilities(ex.Left, caps)
		collectExprCapabilities(ex.Right, caps)
	case *ground.Mul:
		collectExprCapabilities(ex.Left, caps)
		collectExprCapabilities(ex.Right, caps)
	case *ground.Div:
		collectExprCapabilities(ex.Left, caps)
		collectExprCapabilities(ex.Right, caps)
	case *ground.Neg:
		collectExprCapabilities(ex.Expr, caps)
	}
}

// CheckPairSupport runs the full resolution -> backend -> runtime
// compatibility chain for one selection, grounded on
// compatibility.py's check_pair_support.
func CheckPairSupport(gp *ground.Problem, sel Selection, backend BackendPlugin, runtime RuntimePlugin) CompatibilityResult {
	required := ExtractRequiredCapabilities(gp)
	backendCatalog := backend.CapabilityCatalog()
	runtimeCatalog := runtime.CapabilityCatalog()

	var issues []Issue

	allowed := runtime.CompatibleBackendIDs()
	if !contains(allowed, sel.BackendID) {
		issues = append(issues, Issue{
			Code:  diag.CodeIncompatiblePair,
			Message: fmt.Sprintf("runtime `%s` is not compatible with backend `%s`", sel.RuntimeID, sel.BackendID),
			Stage: StagePair,
			Detail: map[string]any{"allowed_backends": allowed},
		})
	}

	issues = append(issues, backend.CheckSupport(gp, required)...)

	var compiled *CompiledModel
	if len(issues) == 0 {
		compiled = backend.CompileModel(gp)
		for _, d := range compiled.Diagnostics {
			if d.Severity != diag.SevError {
				continue
			}
			issues = append(issues, Issue{
				Code:    diag.CodeUnsupportedCap,
				Message: d.Message,
				Stage:   StageBackend,
				Detail: map[string]any{
					"diagnostic_code": string(d.Code),
					"span":            d.Primary.String(),
				},
			})
		}
	}

	if compiled != nil && len(issues) == 0 {
		issues = append(issues, runtime.CheckSupport(compiled, sel)...)
	}

	summary := map[string]any{"kind": "cqm", "stats": map[string]any{}}
	if compiled != nil {
		summary["kind"] = compiled.Kind
		summary["stats"] = compiled.Stats
	}

	report := Report{
		Selection:            sel,
		Supported:            len(issues) == 0,
		Issues:               issues,
		RequiredCapabilities: required,
		BackendCapabilities:  backendCatalog,
		RuntimeCapabilities:  runtimeCatalog,
		ModelSummary:         summary,
	}
	return CompatibilityResult{Report: report, CompiledModel: compiled}
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
