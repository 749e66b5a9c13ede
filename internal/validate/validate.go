// Package validate runs the small set of whole-program shape checks that
// don't fit typecheck's per-expression inference: structural warnings and
// errors about how declarations are put together rather than what type
// an expression has.
//
// Grounded directly on original_source/sema/validate.py's
// validate_program, a flat loop over top-level items.
package validate

import (
	"fmt"

	"qsol/internal/ast"
	"qsol/internal/diag"
	"qsol/internal/resolve"
)

// Program reports structural diagnostics for prog into bag. table gives
// access to every param's full ParamType (index arity), which typecheck's
// per-expression inference deliberately doesn't carry.
func Program(prog *ast.Program, table *resolve.Table, bag *diag.Bag) {
	for _, item := range prog.Items {
		switch it := item.(type) {
		case *ast.UnknownDef:
			validateUnknownDef(it, bag)
		case *ast.ProblemDef:
			validateProblem(it, table, bag)
		}
	}
}

func validateUnknownDef(def *ast.UnknownDef, bag *diag.Bag) {
	if len(def.Rep) == 0 {
		bag.Add(diag.Diagnostic{
			Severity: diag.SevWarning,
			Code:     diag.CodeUnsupportedBackend,
			Message:  fmt.Sprintf("unknown `%s` has empty rep block", def.Name),
			Primary:  def.Span,
			Help: []string{
				"Add at least one representative declaration in `rep { ... }`.",
				"Empty representations are accepted but usually indicate incomplete modeling.",
			},
		})
	}
	for _, law := range def.Laws {
		if law.Kind != ast.Must {
			bag.Add(diag.Diagnostic{
				Severity: diag.SevError,
				Code:     diag.CodeShape,
				Message:  "laws block accepts only `must` constraints",
				Primary:  law.Span,
				Help:     []string{"Replace `should`/`nice` with `must` inside `laws { ... }` blocks."},
			})
		}
	}
}

// validateProblem walks every constraint/guard/objective expression
// looking for `ScalarParam[]`, `ScalarParam()`, and `IndexedParam()` shape
// violations (spec.md §4.6): a param resolved via call syntax is always
// wrong (params are never callable), and a param resolved via bracket
// syntax must supply exactly as many index arguments as it declares.
func validateProblem(p *ast.ProblemDef, table *resolve.Table, bag *diag.Bag) {
	scope, ok := table.ProblemScopes[p.Name]
	if !ok {
		return
	}
	v := &paramShapeChecker{scope: scope, bag: bag}
	for _, cons := range p.Constraints {
		v.walk(cons.Expr)
		v.walk(cons.Guard)
	}
	if p.Objective != nil {
		v.walk(p.Objective.Expr)
	}
}

type paramShapeChecker struct {
	scope *resolve.Scope
	bag   *diag.Bag
}

func (v *paramShapeChecker) shapeErr(sp ast.Expr, msg string) {
	v.bag.Add(diag.Diagnostic{
		Severity: diag.SevError,
		Code:     diag.CodeShape,
		Message:  msg,
		Primary:  sp.SpanOf(),
	})
}

func (v *paramShapeChecker) walk(expr ast.Expr) {
	if expr == nil {
		return
	}
	switch ex := expr.(type) {
	case *ast.IntLit, *ast.RealLit, *ast.BoolLit, *ast.NameRef, *ast.SizeOf:
		return
	case *ast.IndexRead:
		if sym, ok := v.scope.Lookup(ex.Param); ok && sym.Kind == resolve.SymParam {
			if sym.Param.Arity() == 0 {
				v.shapeErr(ex, fmt.Sprintf("`%s` is a scalar param and cannot be indexed with `[]`", ex.Param))
			} else if len(ex.Args) != sym.Param.Arity() {
				v.shapeErr(ex, fmt.Sprintf("`%s` expects %d index argument(s), got %d", ex.Param, sym.Param.Arity(), len(ex.Args)))
			}
		}
		for _, a := range ex.Args {
			v.walk(a)
		}
	case *ast.MethodCall:
		v.walk(ex.Target)
		for _, a := range ex.Args {
			v.walk(a)
		}
	case *ast.MacroCall:
		if sym, ok := v.scope.Lookup(ex.Name); ok && sym.Kind == resolve.SymParam {
			v.shapeErr(ex, fmt.Sprintf("`%s` is a param and cannot be called with `()`; use `%s[...]` or bare `%s`", ex.Name, ex.Name, ex.Name))
		}
		for _, a := range ex.Args {
			v.walk(a)
		}
	case *ast.Unary:
		v.walk(ex.Expr)
	case *ast.Binary:
		v.walk(ex.Left)
		v.walk(ex.Right)
	case *ast.Compare:
		v.walk(ex.Left)
		v.walk(ex.Right)
	case *ast.IfThenElse:
		v.walk(ex.Cond)
		v.walk(ex.Then)
		v.walk(ex.Else)
	case *ast.Quantifier:
		v.walk(ex.Body)
	case *ast.Comprehension:
		v.walk(ex.Term)
		v.walk(ex.Where)
		v.walk(ex.Else)
	case *ast.Aggregate:
		if ex.Comp != nil {
			v.walk(ex.Comp.Term)
			v.walk(ex.Comp.Where)
			v.walk(ex.Comp.Else)
		}
	}
}
