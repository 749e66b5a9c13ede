// Package lower turns a desugared, elaborated ast.Program into
// kernel.IR: original_source/lower/lower.py's lower_symbolic, with the
// same three-function split it drives (_lower_expr/_lower_bool/
// _lower_num) collapsed into one Expr function for the reason
// internal/desugar's doc comment gives.
package lower

import (
	"fmt"

	"qsol/internal/ast"
	"qsol/internal/kernel"
)

// Program lowers every problem in prog to Kernel IR.
func Program(prog *ast.Program) *kernel.IR {
	var problems []kernel.Problem
	for _, item := range prog.Items {
		p, ok := item.(*ast.ProblemDef)
		if !ok {
			continue
		}
		problems = append(problems, lowerProblem(p))
	}
	return &kernel.IR{Span: prog.Span, Problems: problems}
}

func lowerProblem(p *ast.ProblemDef) kernel.Problem {
	kp := kernel.Problem{Span: p.Span, Name: p.Name}
	for _, s := range p.Sets {
		kp.Sets = append(kp.Sets, kernel.SetDecl{Span: s.Span, Name: s.Name})
	}
	for _, pd := range p.Params {
		kp.Params = append(kp.Params, lowerParam(pd))
	}
	for _, fd := range p.Finds {
		kp.Finds = append(kp.Finds, kernel.FindDecl{
			Span: fd.Span, Name: fd.Name, Kind: fd.Type.Kind, TypeArgs: fd.Type.Args,
		})
	}
	for _, c := range p.Constraints {
		kp.Constraints = append(kp.Constraints, kernel.Constraint{
			Span: c.Span, Kind: kernel.ConstraintKind(c.Kind), Expr: Expr(c.Expr),
		})
	}
	if p.Objective != nil {
		// original_source/lower/lower.py folds `maximize E` into
		// `minimize -E` here so every later stage only ever sees Minimize.
		kind := kernel.ObjectiveKind(p.Objective.Kind)
		expr := Expr(p.Objective.Expr)
		if kind == kernel.Maximize {
			expr = kernel.NewNeg(p.Objective.Span, expr)
			kind = kernel.Minimize
		}
		kp.Objectives = append(kp.Objectives, kernel.Objective{
			Span: p.Objective.Span, Kind: kind, Expr: expr,
		})
	}
	return kp
}

func lowerParam(pd ast.ParamDecl) kernel.ParamDecl {
	kpd := kernel.ParamDecl{Span: pd.Span, Name: pd.Name, Indices: pd.Indices, ScalarKind: "Real"}
	switch t := pd.Value.(type) {
	case *ast.ScalarTypeRef:
		kpd.ScalarKind = t.Kind
	case *ast.IntRangeTypeRef:
		kpd.ScalarKind = "Int"
	case *ast.ElemTypeRef:
		kpd.ScalarKind = "Elem"
		kpd.ElemSet = t.SetName
	}
	if pd.Default != nil {
		kpd.HasDefault = true
		switch pd.Default.Kind {
		case "int":
			kpd.DefaultInt = pd.Default.Int
		case "real":
			kpd.DefaultReal = pd.Default.Real
		case "bool":
			kpd.DefaultBool = pd.Default.Bool
		}
	}
	return kpd
}

// Expr lowers one syntax-tree expression node to its Kernel IR form.
// Panics on a node shape that should never reach lowering (desugar's
// job is to remove count/any/all before this runs), matching the
// TypeError original_source raises for the same unreachable cases.
func Expr(expr ast.Expr) kernel.KExpr {
	switch ex := expr.(type) {
	case *ast.BoolLit:
		return kernel.NewBoolLit(ex.Span, ex.Value)
	case *ast.IntLit:
		return kernel.NewNumLit(ex.Span, float64(ex.Value))
	case *ast.RealLit:
		return kernel.NewNumLit(ex.Span, ex.Value)
	case *ast.NameRef:
		return kernel.NewName(ex.Span, ex.Name)
	case *ast.IndexRead:
		return kernel.NewFuncCall(ex.Span, ex.Param, lowerAll(ex.Args))
	case *ast.SizeOf:
		return kernel.NewFuncCall(ex.Span, "size", []kernel.KExpr{kernel.NewName(ex.Span, ex.SetName)})
	case *ast.Unary:
		if ex.Op == "not" {
			return kernel.NewNot(ex.Span, Expr(ex.Expr))
		}
		return kernel.NewNeg(ex.Span, Expr(ex.Expr))
	case *ast.Binary:
		l, r := Expr(ex.Left), Expr(ex.Right)
		switch ex.Op {
		case "and":
			return kernel.NewAnd(ex.Span, l, r)
		case "or":
			return kernel.NewOr(ex.Span, l, r)
		case "=>":
			return kernel.NewImplies(ex.Span, l, r)
		case "+":
			return kernel.NewAdd(ex.Span, l, r)
		case "-":
			return kernel.NewSub(ex.Span, l, r)
		case "*":
			return kernel.NewMul(ex.Span, l, r)
		case "/":
			return kernel.NewDiv(ex.Span, l, r)
		}
		panic(fmt.Sprintf("unsupported binary operator in lowering: %s", ex.Op))
	case *ast.Compare:
		return kernel.NewCompare(ex.Span, ex.Op, Expr(ex.Left), Expr(ex.Right))
	case *ast.MethodCall:
		return kernel.NewMethodCall(ex.Span, Expr(ex.Target), ex.Name, lowerAll(ex.Args))
	case *ast.MacroCall:
		return kernel.NewFuncCall(ex.Span, ex.Name, lowerAll(ex.Args))
	case *ast.IfThenElse:
		return kernel.NewIfThenElse(ex.Span, Expr(ex.Cond), Expr(ex.Then), Expr(ex.Else))
	case *ast.Quantifier:
		return kernel.NewQuantifier(ex.Span, ex.Kind, ex.Var, ex.DomainSet, Expr(ex.Body))
	case *ast.Aggregate:
		if ex.Kind != "sum" {
			panic(fmt.Sprintf("aggregate kind %q should be desugared before lowering", ex.Kind))
		}
		if ex.Comp.Where != nil || ex.Comp.Else != nil {
			panic("filtered sum should be desugared before lowering")
		}
		comp := kernel.NewComprehension(ex.Comp.Span, Expr(ex.Comp.Term), ex.Comp.Var, ex.Comp.DomainSet)
		return kernel.NewSum(ex.Span, comp)
	}
	panic(fmt.Sprintf("unsupported AST expression in lowering: %T", expr))
}

func lowerAll(args []ast.Expr) []kernel.KExpr {
	out := make([]kernel.KExpr, len(args))
	for i, a := range args {
		out[i] = Expr(a)
	}
	return out
}
