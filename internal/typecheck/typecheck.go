// Package typecheck infers a types.Type for every expression node and
// reports type errors (QSOL2101) and unresolved identifiers (QSOL2001).
//
// Grounded directly on original_source/sema/typecheck.py's TypeChecker:
// a single recursive _expr_type function threading a `binders` map for
// quantifier/comprehension-bound names, populating a span->type map
// used later by validation and lowering.
package typecheck

import (
	"fmt"
	"sort"
	"strings"

	"qsol/internal/ast"
	"qsol/internal/diag"
	"qsol/internal/resolve"
	"qsol/internal/source"
	"qsol/internal/types"
)

// Types maps every checked expression node to its inferred type.
type Types map[ast.Expr]types.Type

type checker struct {
	table *resolve.Table
	bag   *diag.Bag
	tmap  Types
}

// Check type-checks every problem in prog against its resolved symbol
// table, returning the inferred type of each expression node.
func Check(prog *ast.Program, table *resolve.Table, bag *diag.Bag) Types {
	c := &checker{table: table, bag: bag, tmap: Types{}}
	for _, item := range prog.Items {
		p, ok := item.(*ast.ProblemDef)
		if !ok {
			continue
		}
		scope, ok := table.ProblemScopes[p.Name]
		if !ok {
			continue
		}
		for _, cons := range p.Constraints {
			ty := c.exprType(cons.Expr, scope, nil)
			if ty.Kind != types.Bool {
				c.typeErrH(cons.Expr.SpanOf(), "constraint expression must be Bool", nil)
			}
			if cons.Guard != nil {
				gty := c.exprType(cons.Guard, scope, nil)
				if gty.Kind != types.Bool {
					c.typeErrH(cons.Guard.SpanOf(), "guard expression must be Bool", nil)
				}
			}
		}
		if p.Objective != nil {
			oty := c.exprType(p.Objective.Expr, scope, nil)
			if !oty.IsNumeric() {
				c.typeErrH(p.Objective.Expr.SpanOf(), "objective expression must be numeric", nil)
			}
		}
		for _, pd := range p.Params {
			if pd.Default == nil {
				continue
			}
			if _, isElem := pd.Value.(*ast.ElemTypeRef); isElem {
				c.typeErrH(pd.Span, "set-valued params do not support defaults", []string{"Remove the default; set-valued params must be supplied by every scenario."})
				continue
			}
			declTy := paramDeclType(pd.Value)
			defTy := literalType(pd.Default)
			if !compatible(declTy, defTy) {
				c.typeErrH(pd.Span, "param default type mismatch", nil)
			}
		}
	}
	return c.tmap
}

// typeErrH reports a QSOL2101 type-shape error with optional help lines.
func (c *checker) typeErrH(sp source.Span, msg string, help []string) {
	c.bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.CodeShape, Message: msg, Primary: sp, Help: help})
}

func (c *checker) exprType(expr ast.Expr, scope *resolve.Scope, binders map[string]types.Type) types.Type {
	out := types.UnkType
	switch ex := expr.(type) {
	case *ast.BoolLit:
		out = types.BoolType
	case *ast.IntLit, *ast.RealLit:
		out = types.RealType
	case *ast.NameRef:
		if t, ok := binders[ex.Name]; ok {
			out = t
		} else if sym, ok := scope.Lookup(ex.Name); ok {
			out = c.symbolType(sym)
		} else {
			candidates := c.candidateNames(scope, binders)
			help := []string{"Declare the identifier in the problem scope or bind it in a quantifier/comprehension."}
			if s := didYouMean(ex.Name, candidates); s != "" {
				help = append(help, fmt.Sprintf("Did you mean `%s`?", s))
			}
			c.err(ex.Span, diag.CodeUnknownIdent, fmt.Sprintf("unknown identifier `%s`", ex.Name), help)
			out = types.UnkType
		}
	case *ast.Unary:
		sub := c.exprType(ex.Expr, scope, binders)
		if ex.Op == "not" {
			if sub.Kind != types.Bool {
				c.typeErrH(ex.Span, "`not` requires Bool", nil)
			}
			out = types.BoolType
		} else {
			if !sub.IsNumeric() {
				c.typeErrH(ex.Span, "unary minus requires numeric operand", []string{"Ensure all operands are numeric (`Real`/`Int`) before arithmetic."})
			}
			out = sub
		}
	case *ast.Binary:
		left := c.exprType(ex.Left, scope, binders)
		right := c.exprType(ex.Right, scope, binders)
		switch ex.Op {
		case "and", "or", "=>":
			if left.Kind != types.Bool || right.Kind != types.Bool {
				c.typeErrH(ex.Span, "boolean operator requires Bool operands", []string{"Convert both operands to Bool expressions before using boolean operators."})
			}
			out = types.BoolType
		default: // + - * /
			promoted, ok := types.PromoteNumeric(left, right)
			if !ok {
				c.typeErrH(ex.Span, "arithmetic requires numeric operands", []string{"Ensure all operands are numeric (`Real`/`Int`) before arithmetic."})
				out = types.UnkType
			} else {
				out = promoted
			}
		}
	case *ast.Compare:
		left := c.exprType(ex.Left, scope, binders)
		right := c.exprType(ex.Right, scope, binders)
		switch ex.Op {
		case "<", "<=", ">", ">=":
			if !left.IsNumeric() || !right.IsNumeric() {
				c.typeErrH(ex.Span, "comparison requires numeric operands", []string{"Use numeric operands on both sides of `<`, `<=`, `>`, and `>=`."})
			}
		default: // = !=
			ok := (left.IsNumeric() && right.IsNumeric()) || (left.Kind == types.Bool && right.Kind == types.Bool)
			sameElem := left.Kind == types.ElemOf && right.Kind == types.ElemOf && left.SetName == right.SetName
			if !ok && !sameElem {
				c.typeErrH(ex.Span, "equality requires matching Bool, numeric, or same-set element operands", nil)
			}
		}
		out = types.BoolType
	case *ast.SizeOf:
		if sym, ok := scope.Lookup(ex.SetName); !ok || sym.Kind != resolve.SymSet {
			c.typeErrH(ex.Span, fmt.Sprintf("size() expects a declared set identifier, got `%s`", ex.SetName), []string{"Pass a declared set name, for example `size(V)`."})
			out = types.UnkType
		} else {
			out = types.IntRangeType(0, 1<<31-1)
		}
	case *ast.IndexRead:
		out = c.paramCallType(ex, scope, binders)
	case *ast.MacroCall:
		for _, a := range ex.Args {
			c.exprType(a, scope, binders)
		}
		if sym, ok := scope.Lookup(ex.Name); ok && sym.Kind == resolve.SymParam {
			// any param called with `()` is a shape error reported by
			// validate, which has the full ParamType; still infer its
			// element type here so callers don't cascade into UnkType.
			out = sym.Type
		} else {
			out = types.BoolType
		}
	case *ast.MethodCall:
		targetTy := c.exprType(ex.Target, scope, binders)
		out = c.methodType(ex, targetTy, scope, binders)
	case *ast.IfThenElse:
		condTy := c.exprType(ex.Cond, scope, binders)
		thenTy := c.exprType(ex.Then, scope, binders)
		elseTy := c.exprType(ex.Else, scope, binders)
		if condTy.Kind != types.Bool {
			c.typeErrH(ex.Cond.SpanOf(), "if condition must be Bool", nil)
		}
		promoted, ok := types.PromoteNumeric(thenTy, elseTy)
		if !ok {
			c.typeErrH(ex.Span, "if branches must be numeric", nil)
			out = types.UnkType
		} else {
			out = promoted
		}
	case *ast.Quantifier:
		inner := cloneBinders(binders)
		inner[ex.Var] = types.ElemType(ex.DomainSet)
		bodyTy := c.exprType(ex.Body, scope, inner)
		if bodyTy.Kind != types.Bool {
			c.typeErrH(ex.Body.SpanOf(), "quantifier body must be Bool", nil)
		}
		if sym, ok := scope.Lookup(ex.DomainSet); !ok || sym.Kind != resolve.SymSet {
			help := []string{fmt.Sprintf("Declare set `%s` before using it in quantifiers.", ex.DomainSet)}
			if s := didYouMean(ex.DomainSet, c.setNames(scope)); s != "" {
				help = append(help, fmt.Sprintf("Did you mean `%s`?", s))
			}
			c.err(ex.Span, diag.CodeUnknownIdent, fmt.Sprintf("unknown set `%s` in quantifier", ex.DomainSet), help)
		}
		out = types.BoolType
	case *ast.Comprehension:
		out = c.checkComprehension(ex, "sum", scope, binders)
	case *ast.Aggregate:
		out = c.aggregateType(ex, scope, binders)
	default:
		out = types.UnkType
	}
	c.tmap[expr] = out
	return out
}

func (c *checker) checkComprehension(comp *ast.Comprehension, kind string, scope *resolve.Scope, binders map[string]types.Type) types.Type {
	inner := cloneBinders(binders)
	inner[comp.Var] = types.ElemType(comp.DomainSet)
	wantBool := kind == "any" || kind == "all"
	termTy := c.exprType(comp.Term, scope, inner)
	if wantBool {
		if termTy.Kind != types.Bool {
			c.typeErrH(comp.Term.SpanOf(), "boolean aggregate term must be Bool", nil)
		}
	} else if !termTy.IsNumeric() && kind != "count" {
		c.typeErrH(comp.Term.SpanOf(), "sum term must be numeric", nil)
	}
	if comp.Where != nil {
		whereTy := c.exprType(comp.Where, scope, inner)
		label := "where clause must be Bool"
		if kind == "count" {
			label = "count where clause must be Bool"
		}
		if whereTy.Kind != types.Bool {
			c.typeErrH(comp.Where.SpanOf(), label, nil)
		}
	}
	if comp.Else != nil {
		elseTy := c.exprType(comp.Else, scope, inner)
		if wantBool {
			if elseTy.Kind != types.Bool {
				c.typeErrH(comp.Else.SpanOf(), "else term must be Bool", nil)
			}
		} else if !elseTy.IsNumeric() {
			c.typeErrH(comp.Else.SpanOf(), "else term must be numeric", nil)
		}
	}
	if wantBool {
		return types.BoolType
	}
	return types.RealType
}

func (c *checker) aggregateType(ag *ast.Aggregate, scope *resolve.Scope, binders map[string]types.Type) types.Type {
	switch ag.Kind {
	case "sum":
		c.checkComprehension(ag.Comp, "sum", scope, binders)
		return types.RealType
	case "count":
		c.checkComprehension(ag.Comp, "count", scope, binders)
		return types.IntRangeType(0, 1<<31-1)
	case "any", "all":
		c.checkComprehension(ag.Comp, ag.Kind, scope, binders)
		return types.BoolType
	}
	return types.UnkType
}

func (c *checker) methodType(mc *ast.MethodCall, targetTy types.Type, scope *resolve.Scope, binders map[string]types.Type) types.Type {
	_ = targetTy // the find's shape (Subset/Mapping/custom) drives dispatch below, not its Kind
	nr, ok := mc.Target.(*ast.NameRef)
	if !ok {
		for _, a := range mc.Args {
			c.exprType(a, scope, binders)
		}
		c.typeErrH(mc.Span, "method call target is not an unknown instance", nil)
		return types.UnkType
	}
	sym, ok := scope.Lookup(nr.Name)
	if !ok || sym.Kind != resolve.SymFind {
		for _, a := range mc.Args {
			c.exprType(a, scope, binders)
		}
		c.typeErrH(mc.Span, "method call target is not an unknown instance", nil)
		return types.UnkType
	}

	shape := sym.Unk
	switch {
	case shape.Name == "Subset" && mc.Name == "has":
		if len(mc.Args) != 1 {
			c.typeErrH(mc.Span, "Subset.has expects one argument", nil)
			return types.BoolType
		}
		argTy := c.exprType(mc.Args[0], scope, binders)
		expected := ""
		if len(shape.Args) > 0 {
			expected = shape.Args[0]
		}
		if argTy.Kind != types.ElemOf || argTy.SetName != expected {
			c.typeErrH(mc.Args[0].SpanOf(), fmt.Sprintf("expected element of set `%s`", expected), []string{"Use a value that belongs to the expected set domain."})
		}
		return types.BoolType
	case shape.Name == "Mapping" && mc.Name == "is":
		if len(mc.Args) != 2 {
			c.typeErrH(mc.Span, "Mapping.is expects two arguments", nil)
			return types.BoolType
		}
		dom, cod := "", ""
		if len(shape.Args) > 0 {
			dom = shape.Args[0]
		}
		if len(shape.Args) > 1 {
			cod = shape.Args[1]
		}
		lhs := c.exprType(mc.Args[0], scope, binders)
		rhs := c.exprType(mc.Args[1], scope, binders)
		if lhs.Kind != types.ElemOf || lhs.SetName != dom {
			c.typeErrH(mc.Args[0].SpanOf(), fmt.Sprintf("expected element of `%s`", dom), nil)
		}
		if rhs.Kind != types.ElemOf || rhs.SetName != cod {
			c.typeErrH(mc.Args[1].SpanOf(), fmt.Sprintf("expected element of `%s`", cod), nil)
		}
		return types.BoolType
	}
	for _, a := range mc.Args {
		c.exprType(a, scope, binders)
	}
	return types.BoolType
}

func (c *checker) paramCallType(idx *ast.IndexRead, scope *resolve.Scope, binders map[string]types.Type) types.Type {
	sym, ok := scope.Lookup(idx.Param)
	if !ok || sym.Kind != resolve.SymParam {
		for _, a := range idx.Args {
			c.exprType(a, scope, binders)
		}
		c.err(idx.Span, diag.CodeUnknownIdent, fmt.Sprintf("unknown parameter `%s`", idx.Param), nil)
		return types.UnkType
	}
	// Index-set checking against the declared param's index sets happens
	// in validate, which has access to the full ParamType (with index
	// names); typecheck only infers the element type here.
	for _, a := range idx.Args {
		c.exprType(a, scope, binders)
	}
	return sym.Type
}

func (c *checker) symbolType(sym resolve.Symbol) types.Type {
	return sym.Type
}

func (c *checker) err(sp source.Span, code diag.Code, msg string, help []string) {
	c.bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: code, Message: msg, Primary: sp, Help: help})
}

func cloneBinders(b map[string]types.Type) map[string]types.Type {
	out := make(map[string]types.Type, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	return out
}

func literalType(lit *ast.Literal) types.Type {
	switch lit.Kind {
	case "bool":
		return types.BoolType
	case "int", "real":
		return types.RealType
	}
	return types.UnkType
}

func paramDeclType(ty ast.TypeRef) types.Type {
	switch t := ty.(type) {
	case *ast.ScalarTypeRef:
		if t.Kind == "Bool" {
			return types.BoolType
		}
		return types.RealType
	case *ast.IntRangeTypeRef:
		return types.IntRangeType(t.Lo, t.Hi)
	}
	return types.RealType
}

func compatible(left, right types.Type) bool {
	if left.Kind == types.IntRange && right.Kind == types.IntRange {
		return true
	}
	if left.Kind == types.Bool && right.Kind == types.Bool {
		return true
	}
	return left.IsNumeric() && right.IsNumeric()
}

func (c *checker) setNames(scope *resolve.Scope) []string {
	names := scope.SetNames()
	sort.Strings(names)
	return names
}

func (c *checker) candidateNames(scope *resolve.Scope, binders map[string]types.Type) []string {
	seen := map[string]bool{}
	for k := range binders {
		seen[k] = true
	}
	for _, name := range scope.Names() {
		seen[name] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// didYouMean returns the closest candidate to name by normalized edit
// distance, if any candidate is close enough (original_source uses
// difflib's cutoff=0.75 ratio; a length-normalized Levenshtein distance
// of at most 25% serves the same "close enough" purpose without a fuzzy-match
// dependency, since none of the example repos import one).
func didYouMean(name string, candidates []string) string {
	best, bestScore := "", 0.0
	for _, cand := range candidates {
		if cand == name {
			continue
		}
		dist := levenshtein(name, cand)
		maxLen := len(name)
		if len(cand) > maxLen {
			maxLen = len(cand)
		}
		if maxLen == 0 {
			continue
		}
		score := 1.0 - float64(dist)/float64(maxLen)
		if score >= 0.75 && score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best
}

func levenshtein(a, b string) int {
	ra, rb := []rune(strings.ToLower(a)), []rune(strings.ToLower(b))
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
