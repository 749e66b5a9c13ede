// Package elaborate expands user-defined unknowns (`unknown Name(...) {
// rep{} laws{} view{} }`) into primitive Subset/Mapping finds plus
// generated `must` constraints, and inlines predicate/function macro
// calls (both global and unknown `view` members) into their bodies.
//
// Grounded tightly on original_source/sema/unknown_elaboration.py's
// UnknownElaborator: two-pass collection (unknown-defs and global
// predicates/functions first, redefinition checked via QSOL2101), then
// per-problem custom-find expansion (recursively, since a rep member
// may itself be a custom unknown), then a substitution-carrying
// expression rewrite that inlines macro/view calls and detects
// recursive expansion via a call-stack of (scope, member) keys.
package elaborate

import (
	"fmt"

	"qsol/internal/ast"
	"qsol/internal/diag"
	"qsol/internal/source"
)

type instanceContext struct {
	alias         string
	unknownDef    *ast.UnknownDef
	typeArgMap    map[string]string
	memberAliases map[string]string
}

type expansion struct {
	finds []ast.FindDecl
	laws  []ast.Constraint
}

type callKey struct{ scope, member string }

type elaborator struct {
	bag              *diag.Bag
	unknownDefs      map[string]*ast.UnknownDef
	globalPredicates map[string]*ast.PredicateDef
	globalFunctions  map[string]*ast.FunctionDef
	customInstances  map[string]*instanceContext
	usedFindNames    map[string]bool
}

// Elaborate rewrites prog in place (returning it) and reports
// diagnostics into bag.
func Elaborate(prog *ast.Program, bag *diag.Bag) *ast.Program {
	e := &elaborator{
		bag:              bag,
		unknownDefs:      map[string]*ast.UnknownDef{},
		globalPredicates: map[string]*ast.PredicateDef{},
		globalFunctions:  map[string]*ast.FunctionDef{},
	}

	for _, item := range prog.Items {
		switch it := item.(type) {
		case *ast.UnknownDef:
			if _, exists := e.unknownDefs[it.Name]; !exists {
				e.unknownDefs[it.Name] = it
			}
		case *ast.PredicateDef:
			if e.macroTaken(it.Name) {
				e.redefErr(it.Span, it.Name)
				continue
			}
			e.globalPredicates[it.Name] = it
		case *ast.FunctionDef:
			if e.macroTaken(it.Name) {
				e.redefErr(it.Span, it.Name)
				continue
			}
			e.globalFunctions[it.Name] = it
		}
	}

	for i, item := range prog.Items {
		if p, ok := item.(*ast.ProblemDef); ok {
			prog.Items[i] = e.elaborateProblem(p)
		}
	}
	return prog
}

func (e *elaborator) macroTaken(name string) bool {
	_, isP := e.globalPredicates[name]
	_, isF := e.globalFunctions[name]
	return isP || isF
}

func (e *elaborator) redefErr(sp source.Span, name string) {
	e.bag.Add(diag.Diagnostic{
		Severity: diag.SevError, Code: diag.CodeShape,
		Message: fmt.Sprintf("redefinition of macro `%s`", name),
		Primary: sp,
		Help:    []string{"Use unique names across top-level predicate and function declarations."},
	})
}

func (e *elaborator) elaborateProblem(problem *ast.ProblemDef) *ast.ProblemDef {
	e.customInstances = map[string]*instanceContext{}
	e.usedFindNames = map[string]bool{}
	for _, fd := range problem.Finds {
		e.usedFindNames[fd.Name] = true
	}

	var newFinds []ast.FindDecl
	var extraLaws []ast.Constraint
	for _, fd := range problem.Finds {
		if fd.Type.Kind == "Subset" || fd.Type.Kind == "Mapping" {
			newFinds = append(newFinds, fd)
			continue
		}
		def, ok := e.unknownDefs[fd.Type.Kind]
		if !ok {
			// Unresolved custom find; resolver reports unknown unknown-type.
			newFinds = append(newFinds, fd)
			continue
		}
		exp := e.expandCustomFind(fd.Name, def, fd.Type, []string{fd.Name}, nil, fd.Span)
		if exp == nil {
			newFinds = append(newFinds, fd)
			continue
		}
		newFinds = append(newFinds, exp.finds...)
		extraLaws = append(extraLaws, exp.laws...)
	}
	problem.Finds = newFinds
	problem.Constraints = append(problem.Constraints, extraLaws...)

	for i, c := range problem.Constraints {
		problem.Constraints[i].Expr = e.rewrite(c.Expr, nil, nil, nil, nil)
		if c.Guard != nil {
			problem.Constraints[i].Guard = e.rewrite(c.Guard, nil, nil, nil, nil)
		}
	}
	if problem.Objective != nil {
		problem.Objective.Expr = e.rewrite(problem.Objective.Expr, nil, nil, nil, nil)
	}
	return problem
}

func (e *elaborator) expandCustomFind(alias string, def *ast.UnknownDef, ref ast.UnknownTypeRef, path []string, chain []string, declSpan source.Span) *expansion {
	if len(ref.Args) != len(def.Formals) {
		e.bag.Add(diag.Diagnostic{
			Severity: diag.SevError, Code: diag.CodeShape,
			Message: fmt.Sprintf("unknown `%s` expects %d argument(s), got %d", def.Name, len(def.Formals), len(ref.Args)),
			Primary: def.Span,
		})
		return nil
	}
	for _, seen := range chain {
		if seen == def.Name {
			e.bag.Add(diag.Diagnostic{
				Severity: diag.SevError, Code: diag.CodeShape,
				Message: fmt.Sprintf("cyclic `unknown` definition: `%s` recursively contains itself", def.Name),
				Primary: declSpan,
				Help:    []string{"Break the cycle by expressing one of the unknowns in terms of Subset/Mapping directly."},
			})
			return nil
		}
	}
	chain = append(append([]string{}, chain...), def.Name)
	ctx := &instanceContext{
		alias: alias, unknownDef: def,
		typeArgMap:    map[string]string{},
		memberAliases: map[string]string{},
	}
	for i, formal := range def.Formals {
		ctx.typeArgMap[formal] = ref.Args[i]
	}
	e.customInstances[alias] = ctx

	out := &expansion{}
	for _, rep := range def.Rep {
		instType := e.instantiateType(rep.Type, ctx.typeArgMap)
		memberAlias := e.allocAlias(append(append([]string{}, path...), rep.Name))
		ctx.memberAliases[rep.Name] = memberAlias

		if instType.Kind == "Subset" || instType.Kind == "Mapping" {
			out.finds = append(out.finds, ast.FindDecl{Span: rep.Span, Name: memberAlias, Type: instType})
			continue
		}
		child, ok := e.unknownDefs[instType.Kind]
		if !ok {
			out.finds = append(out.finds, ast.FindDecl{Span: rep.Span, Name: memberAlias, Type: instType})
			continue
		}
		childExp := e.expandCustomFind(memberAlias, child, instType, append(append([]string{}, path...), rep.Name), chain, rep.Span)
		if childExp == nil {
			out.finds = append(out.finds, ast.FindDecl{Span: rep.Span, Name: memberAlias, Type: instType})
			continue
		}
		out.finds = append(out.finds, childExp.finds...)
		out.laws = append(out.laws, childExp.laws...)
	}

	for _, law := range def.Laws {
		newLaw := law
		newLaw.Expr = e.rewrite(law.Expr, ctx, nil, ctx.typeArgMap, nil)
		if law.Guard != nil {
			newLaw.Guard = e.rewrite(law.Guard, ctx, nil, ctx.typeArgMap, nil)
		}
		out.laws = append(out.laws, newLaw)
	}
	return out
}

func (e *elaborator) instantiateType(ref ast.UnknownTypeRef, subst map[string]string) ast.UnknownTypeRef {
	args := make([]string, len(ref.Args))
	for i, a := range ref.Args {
		if v, ok := subst[a]; ok {
			args[i] = v
		} else {
			args[i] = a
		}
	}
	return ast.UnknownTypeRef{Span: ref.Span, Kind: ref.Kind, Args: args}
}

func (e *elaborator) allocAlias(path []string) string {
	base := "__qsol_u__"
	for i, p := range path {
		if i > 0 {
			base += "__"
		}
		base += p
	}
	candidate := base
	idx := 1
	for e.usedFindNames[candidate] {
		idx++
		candidate = fmt.Sprintf("%s__%d", base, idx)
	}
	e.usedFindNames[candidate] = true
	return candidate
}

// rewrite walks expr substituting bound formal values (valueSubst),
// unknown-view member aliases (through curInst), set-name substitutions
// (setSubst), and inlining macro/method calls, refusing to recurse
// through a call already on stack (QSOL2101).
func (e *elaborator) rewrite(expr ast.Expr, curInst *instanceContext, valueSubst map[string]ast.Expr, setSubst map[string]string, stack []callKey) ast.Expr {
	if expr == nil {
		return nil
	}
	switch ex := expr.(type) {
	case *ast.NameRef:
		if v, ok := valueSubst[ex.Name]; ok {
			return v
		}
		if curInst != nil {
			if alias, ok := curInst.memberAliases[ex.Name]; ok {
				return ast.NewNameRef(ex.Span, alias)
			}
		}
		if v, ok := setSubst[ex.Name]; ok {
			return ast.NewNameRef(ex.Span, v)
		}
		return ex
	case *ast.IntLit, *ast.RealLit, *ast.BoolLit:
		return ex
	case *ast.SizeOf:
		if v, ok := setSubst[ex.SetName]; ok {
			return ast.NewSizeOf(ex.Span, v)
		}
		return ex
	case *ast.IndexRead:
		args := e.rewriteAll(ex.Args, curInst, valueSubst, setSubst, stack)
		return ast.NewIndexRead(ex.Span, ex.Param, args)
	case *ast.Unary:
		return ast.NewUnary(ex.Span, ex.Op, e.rewrite(ex.Expr, curInst, valueSubst, setSubst, stack))
	case *ast.Binary:
		return ast.NewBinary(ex.Span, ex.Op,
			e.rewrite(ex.Left, curInst, valueSubst, setSubst, stack),
			e.rewrite(ex.Right, curInst, valueSubst, setSubst, stack))
	case *ast.Compare:
		return ast.NewCompare(ex.Span, ex.Op,
			e.rewrite(ex.Left, curInst, valueSubst, setSubst, stack),
			e.rewrite(ex.Right, curInst, valueSubst, setSubst, stack))
	case *ast.IfThenElse:
		return ast.NewIfThenElse(ex.Span,
			e.rewrite(ex.Cond, curInst, valueSubst, setSubst, stack),
			e.rewrite(ex.Then, curInst, valueSubst, setSubst, stack),
			e.rewrite(ex.Else, curInst, valueSubst, setSubst, stack))
	case *ast.Quantifier:
		domain := ex.DomainSet
		if v, ok := setSubst[domain]; ok {
			domain = v
		}
		return ast.NewQuantifier(ex.Span, ex.Kind, ex.Var, domain, e.rewrite(ex.Body, curInst, valueSubst, setSubst, stack))
	case *ast.Comprehension:
		return e.rewriteComprehension(ex, curInst, valueSubst, setSubst, stack)
	case *ast.Aggregate:
		if ex.Comp.Var == "" && ex.Comp.DomainSet == "" {
			resolved := e.rewrite(ex.Comp.Term, curInst, valueSubst, setSubst, stack)
			rc, ok := resolved.(*ast.Comprehension)
			if !ok {
				e.bag.Add(diag.Diagnostic{
					Severity: diag.SevError, Code: diag.CodeShape,
					Message: fmt.Sprintf("`%s(...)` expects a comprehension-shaped argument", ex.Kind),
					Primary: ex.Span,
				})
				return ast.NewBoolLit(ex.Span, false)
			}
			comp := e.rewriteComprehension(rc, curInst, valueSubst, setSubst, stack)
			agg := ast.NewAggregate(ex.Span, ex.Kind, comp)
			agg.FromCompArg = true
			return agg
		}
		comp := e.rewriteComprehension(ex.Comp, curInst, valueSubst, setSubst, stack)
		return ast.NewAggregate(ex.Span, ex.Kind, comp)
	case *ast.MacroCall:
		args := e.rewriteAll(ex.Args, curInst, valueSubst, setSubst, stack)
		if p, ok := e.globalPredicates[ex.Name]; ok {
			return e.inlineMacro(p.Formals, p.Body, "global", "predicate:"+p.Name, ex.Span, args, nil, setSubst, stack, ex.Name)
		}
		if f, ok := e.globalFunctions[ex.Name]; ok {
			return e.inlineMacro(f.Formals, f.Body, "global", "function:"+f.Name, ex.Span, args, nil, setSubst, stack, ex.Name)
		}
		return ast.NewMacroCall(ex.Span, ex.Name, args)
	case *ast.MethodCall:
		target := e.rewrite(ex.Target, curInst, valueSubst, setSubst, stack)
		args := e.rewriteAll(ex.Args, curInst, valueSubst, setSubst, stack)
		if nr, ok := target.(*ast.NameRef); ok {
			if inst, ok := e.customInstances[nr.Name]; ok {
				member := e.viewMember(inst.unknownDef, ex.Name)
				if member == nil {
					e.bag.Add(diag.Diagnostic{
						Severity: diag.SevError, Code: diag.CodeShape,
						Message: fmt.Sprintf("unknown method `%s` for unknown `%s`", ex.Name, inst.unknownDef.Name),
						Primary: ex.Span,
					})
					return ast.NewBoolLit(ex.Span, false)
				}
				return e.inlineMacro(member.Formals, member.Body, inst.alias, member.kindTag()+":"+member.Name, ex.Span, args, inst, inst.typeArgMap, stack, ex.Name)
			}
		}
		return ast.NewMethodCall(ex.Span, target, ex.Name, args)
	}
	return expr
}

func (e *elaborator) rewriteComprehension(c *ast.Comprehension, curInst *instanceContext, valueSubst map[string]ast.Expr, setSubst map[string]string, stack []callKey) *ast.Comprehension {
	domain := c.DomainSet
	if v, ok := setSubst[domain]; ok {
		domain = v
	}
	term := e.rewrite(c.Term, curInst, valueSubst, setSubst, stack)
	var where, els ast.Expr
	if c.Where != nil {
		where = e.rewrite(c.Where, curInst, valueSubst, setSubst, stack)
	}
	if c.Else != nil {
		els = e.rewrite(c.Else, curInst, valueSubst, setSubst, stack)
	}
	return ast.NewComprehension(c.Span, term, c.Var, domain, where, els)
}

func (e *elaborator) rewriteAll(args []ast.Expr, curInst *instanceContext, valueSubst map[string]ast.Expr, setSubst map[string]string, stack []callKey) []ast.Expr {
	out := make([]ast.Expr, len(args))
	for i, a := range args {
		out[i] = e.rewrite(a, curInst, valueSubst, setSubst, stack)
	}
	return out
}

// macroMember is the small subset of PredicateDef/FunctionDef shared by
// unknown view members.
type macroMember struct {
	Name    string
	Formals []ast.MacroFormal
	Body    ast.Expr
	isBool  bool
}

func (m *macroMember) kindTag() string {
	if m.isBool {
		return "predicate"
	}
	return "function"
}

func (e *elaborator) viewMember(def *ast.UnknownDef, name string) *macroMember {
	for _, v := range def.View {
		if v.Name == name {
			return &macroMember{Name: v.Name, Formals: v.Formals, Body: v.Body, isBool: v.IsBool}
		}
	}
	return nil
}


func (e *elaborator) inlineMacro(formals []ast.MacroFormal, body ast.Expr, scopeKey, memberKey string, callSpan source.Span, args []ast.Expr, curInst *instanceContext, setSubst map[string]string, stack []callKey, descriptor string) ast.Expr {
	if len(args) != len(formals) {
		e.bag.Add(diag.Diagnostic{
			Severity: diag.SevError, Code: diag.CodeShape,
			Message: fmt.Sprintf("`%s` expects %d argument(s), got %d", descriptor, len(formals), len(args)),
			Primary: callSpan,
		})
		return ast.NewBoolLit(callSpan, false)
	}
	key := callKey{scopeKey, memberKey}
	for _, k := range stack {
		if k == key {
			e.bag.Add(diag.Diagnostic{
				Severity: diag.SevError, Code: diag.CodeShape,
				Message: fmt.Sprintf("recursive macro expansion detected for `%s`", descriptor),
				Primary: callSpan,
			})
			return ast.NewBoolLit(callSpan, false)
		}
	}
	valueSubst := map[string]ast.Expr{}
	for i, f := range formals {
		valueSubst[f.Name] = args[i]
	}
	newStack := append(append([]callKey{}, stack...), key)
	return e.rewrite(body, curInst, valueSubst, setSubst, newStack)
}
