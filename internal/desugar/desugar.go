// Package desugar rewrites elaborated, type-checked ASTs into a smaller
// core: guarded constraints fold into implications, count folds into
// sum, filtered sums fold their where/else into an if/then/else term,
// and any/all fold into exists/forall.
//
// Grounded on original_source/lower/desugar.py. The Python original
// splits its rewrite into _desugar_bool/_desugar_num/_desugar_expr
// because its AST statically distinguishes BoolExpr from NumExpr; our
// ast.Expr is a single interface (spec.md's declared reason: an
// unresolved macro call could be either), so one recursive Expr function
// covers every case the Python original spreads across three.
package desugar

import "qsol/internal/ast"

// Program rewrites every constraint, objective, law, and view body in
// prog in place, returning the same *ast.Program for chaining.
func Program(prog *ast.Program) *ast.Program {
	for _, item := range prog.Items {
		switch it := item.(type) {
		case *ast.ProblemDef:
			for i := range it.Constraints {
				c := &it.Constraints[i]
				expr := Expr(c.Expr)
				if c.Guard != nil {
					guard := Expr(c.Guard)
					expr = ast.NewBinary(c.Span, "=>", guard, expr)
				}
				c.Expr = expr
				c.Guard = nil
			}
			if it.Objective != nil {
				it.Objective.Expr = Expr(it.Objective.Expr)
			}
		case *ast.UnknownDef:
			for i := range it.Laws {
				law := &it.Laws[i]
				expr := Expr(law.Expr)
				if law.Guard != nil {
					expr = ast.NewBinary(law.Span, "=>", Expr(law.Guard), expr)
				}
				law.Expr = expr
				law.Guard = nil
			}
			for i := range it.View {
				it.View[i].Body = Expr(it.View[i].Body)
			}
		}
	}
	return prog
}

// Expr recursively desugars one expression node.
func Expr(expr ast.Expr) ast.Expr {
	switch ex := expr.(type) {
	case *ast.IntLit, *ast.RealLit, *ast.BoolLit, *ast.NameRef, *ast.SizeOf:
		return ex
	case *ast.IndexRead:
		return ast.NewIndexRead(ex.Span, ex.Param, desugarAll(ex.Args))
	case *ast.Unary:
		return ast.NewUnary(ex.Span, ex.Op, Expr(ex.Expr))
	case *ast.Binary:
		return ast.NewBinary(ex.Span, ex.Op, Expr(ex.Left), Expr(ex.Right))
	case *ast.Compare:
		return ast.NewCompare(ex.Span, ex.Op, Expr(ex.Left), Expr(ex.Right))
	case *ast.IfThenElse:
		return ast.NewIfThenElse(ex.Span, Expr(ex.Cond), Expr(ex.Then), Expr(ex.Else))
	case *ast.Quantifier:
		return ast.NewQuantifier(ex.Span, ex.Kind, ex.Var, ex.DomainSet, Expr(ex.Body))
	case *ast.MacroCall:
		return ast.NewMacroCall(ex.Span, ex.Name, desugarAll(ex.Args))
	case *ast.MethodCall:
		return ast.NewMethodCall(ex.Span, Expr(ex.Target), ex.Name, desugarAll(ex.Args))
	case *ast.Comprehension:
		return desugarComprehension(ex)
	case *ast.Aggregate:
		return desugarAggregate(ex)
	}
	return expr
}

func desugarAll(args []ast.Expr) []ast.Expr {
	out := make([]ast.Expr, len(args))
	for i, a := range args {
		out[i] = Expr(a)
	}
	return out
}

func desugarComprehension(c *ast.Comprehension) *ast.Comprehension {
	var where, els ast.Expr
	if c.Where != nil {
		where = Expr(c.Where)
	}
	if c.Else != nil {
		els = Expr(c.Else)
	}
	return ast.NewComprehension(c.Span, Expr(c.Term), c.Var, c.DomainSet, where, els)
}

func desugarAggregate(ag *ast.Aggregate) ast.Expr {
	switch ag.Kind {
	case "any", "all":
		return desugarBoolAggregate(ag)
	case "count":
		// `count(x for x in X where c)` and its `count(x in X where c)`
		// sugar both discard the loop-variable term unconditionally: only
		// Where names the condition being counted. The one exception is
		// a Comp(Bool) comprehension spliced in from a macro argument
		// (`count(b)` inside a predicate/function body, e.g. inlined to
		// `Pick.has(i) for i in Items`): there Term itself is the
		// condition, since the caller never wrote a `where` clause.
		cond := ag.Comp.Where
		if ag.FromCompArg {
			cond = ag.Comp.Term
			if ag.Comp.Where != nil {
				cond = ast.NewBinary(ag.Comp.Span, "and", cond, ag.Comp.Where)
			}
		}
		one := ast.NewIntLit(ag.Comp.Span, 1)
		countComp := ast.NewComprehension(ag.Comp.Span, one, ag.Comp.Var, ag.Comp.DomainSet, cond, ag.Comp.Else)
		return desugarSum(ast.NewAggregate(ag.Span, "sum", countComp))
	case "sum":
		return desugarSum(ag)
	}
	return ag
}

func desugarBoolAggregate(ag *ast.Aggregate) ast.Expr {
	comp := ag.Comp
	span := ag.Span
	term := Expr(comp.Term)
	var where, els ast.Expr
	if comp.Where != nil {
		where = Expr(comp.Where)
	}
	if comp.Else != nil {
		els = Expr(comp.Else)
	}

	var body ast.Expr
	if ag.Kind == "any" {
		switch {
		case where == nil && els == nil:
			body = term
		case where != nil && els == nil:
			body = ast.NewBinary(span, "and", where, term)
		case where != nil && els != nil:
			body = ast.NewBinary(span, "or",
				ast.NewBinary(span, "and", where, term),
				ast.NewBinary(span, "and", ast.NewUnary(span, "not", where), els))
		default: // where == nil, els != nil
			body = els
		}
		return ast.NewQuantifier(span, "exists", comp.Var, comp.DomainSet, body)
	}

	switch {
	case where == nil && els == nil:
		body = term
	case where != nil && els == nil:
		body = ast.NewBinary(span, "=>", where, term)
	case where != nil && els != nil:
		body = ast.NewBinary(span, "and",
			ast.NewBinary(span, "=>", where, term),
			ast.NewBinary(span, "=>", ast.NewUnary(span, "not", where), els))
	default: // where == nil, els != nil
		body = els
	}
	return ast.NewQuantifier(span, "forall", comp.Var, comp.DomainSet, body)
}

func desugarSum(ag *ast.Aggregate) ast.Expr {
	comp := ag.Comp
	term := Expr(comp.Term)
	var where, els ast.Expr
	if comp.Where != nil {
		where = Expr(comp.Where)
	}
	if comp.Else != nil {
		els = Expr(comp.Else)
	}
	if where != nil {
		fallback := els
		if fallback == nil {
			fallback = ast.NewIntLit(comp.Span, 0)
		}
		term = ast.NewIfThenElse(comp.Span, where, term, fallback)
		where, els = nil, nil
	}
	newComp := ast.NewComprehension(comp.Span, term, comp.Var, comp.DomainSet, where, els)
	return ast.NewAggregate(ag.Span, "sum", newComp)
}
