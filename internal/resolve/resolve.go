// Package resolve builds QSOL's symbol table: a global scope holding
// unknown-defs and problems, plus one child scope per problem holding
// its sets/params/finds.
//
// Grounded directly on original_source/sema/{symbols,resolver}.py,
// loosely inspired by the teacher's Scopes/Symbols arena-pair idiom
// (internal/symbols, now deleted) but simplified to plain maps and
// pointers: QSOL's scope nesting is exactly two levels deep (global,
// then one scope per problem), so an arena of scope IDs would add
// indirection without buying anything the teacher's larger, deeply
// nested language needed it for.
package resolve

import (
	"fmt"

	"qsol/internal/ast"
	"qsol/internal/diag"
	"qsol/internal/source"
	"qsol/internal/types"
)

// SymbolKind classifies one resolved name.
type SymbolKind uint8

const (
	SymUnknownDef SymbolKind = iota
	SymProblem
	SymSet
	SymParam
	SymFind
)

func (k SymbolKind) String() string {
	switch k {
	case SymUnknownDef:
		return "unknown_def"
	case SymProblem:
		return "problem"
	case SymSet:
		return "set"
	case SymParam:
		return "param"
	case SymFind:
		return "find"
	}
	return "?"
}

// Symbol is one resolved declaration.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Type  types.Type        // valid for Set/Param scalar shape
	Param types.ParamType   // valid for Param: full index arity/shape
	Unk   types.UnknownShape // valid for Find/UnknownDef
	Span  source.Span
}

// Scope holds one level of names, chained to its parent.
type Scope struct {
	Name    string
	Parent  *Scope
	symbols map[string]Symbol
}

func newScope(name string, parent *Scope) *Scope {
	return &Scope{Name: name, Parent: parent, symbols: map[string]Symbol{}}
}

// Define adds sym, returning false if the name is already bound in this
// scope (shadowing a parent's name is allowed; redefining in the same
// scope is not, per spec.md §7's QSOL2002).
func (s *Scope) Define(sym Symbol) bool {
	if _, exists := s.symbols[sym.Name]; exists {
		return false
	}
	s.symbols[sym.Name] = sym
	return true
}

// Lookup searches s and its ancestors.
func (s *Scope) Lookup(name string) (Symbol, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if sym, ok := cur.symbols[name]; ok {
			return sym, true
		}
	}
	return Symbol{}, false
}

// Names returns every name visible from s, including ancestors, for
// building "did you mean" candidate lists.
func (s *Scope) Names() []string {
	seen := map[string]bool{}
	for cur := s; cur != nil; cur = cur.Parent {
		for name := range cur.symbols {
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	return out
}

// SetNames returns every SymSet name visible from s.
func (s *Scope) SetNames() []string {
	var out []string
	for cur := s; cur != nil; cur = cur.Parent {
		for name, sym := range cur.symbols {
			if sym.Kind == SymSet {
				out = append(out, name)
			}
		}
	}
	return out
}

// Table is the resolved symbol table for one program.
type Table struct {
	Global        *Scope
	ProblemScopes map[string]*Scope
}

// Resolve walks a parsed Program and builds its Table, reporting
// QSOL2001 (unknown identifier) and QSOL2002 (duplicate declaration)
// diagnostics into bag. Grounded on original_source/sema/resolver.py's
// two-pass Resolver.resolve (globals first, then each problem body).
func Resolve(prog *ast.Program, bag *diag.Bag) *Table {
	global := newScope("global", nil)
	table := &Table{Global: global, ProblemScopes: map[string]*Scope{}}

	for _, item := range prog.Items {
		switch it := item.(type) {
		case *ast.UnknownDef:
			sym := Symbol{Name: it.Name, Kind: SymUnknownDef, Unk: types.UnknownShape{Name: it.Name, Args: it.Formals}, Span: it.Span}
			if !global.Define(sym) {
				dup(bag, it.Span, it.Name)
			}
		case *ast.ProblemDef:
			sym := Symbol{Name: it.Name, Kind: SymProblem, Type: types.RealType, Span: it.Span}
			if !global.Define(sym) {
				dup(bag, it.Span, it.Name)
			}
		}
	}

	for _, item := range prog.Items {
		if p, ok := item.(*ast.ProblemDef); ok {
			scope := newScope("problem:"+p.Name, global)
			table.ProblemScopes[p.Name] = scope
			collectProblem(scope, p, global, bag)
		}
	}
	return table
}

func collectProblem(scope *Scope, p *ast.ProblemDef, global *Scope, bag *diag.Bag) {
	for _, s := range p.Sets {
		sym := Symbol{Name: s.Name, Kind: SymSet, Type: types.SetDomain(s.Name), Span: s.Span}
		if !scope.Define(sym) {
			dup(bag, s.Span, s.Name)
		}
	}

	for _, pd := range p.Params {
		var indices []string
		for _, idxName := range pd.Indices {
			if sym, ok := scope.Lookup(idxName); !ok || sym.Kind != SymSet {
				bag.Add(diag.Diagnostic{
					Severity: diag.SevError, Code: diag.CodeUnknownIdent,
					Message: fmt.Sprintf("unknown set `%s` in param indexing", idxName),
					Primary: pd.Span,
				})
			} else {
				indices = append(indices, idxName)
			}
		}
		elem := paramValueType(scope, pd.Value, pd.Span, bag)
		pt := types.ParamType{Indices: indices, Elem: elem}
		sym := Symbol{Name: pd.Name, Kind: SymParam, Type: elem, Param: pt, Span: pd.Span}
		if !scope.Define(sym) {
			dup(bag, pd.Span, pd.Name)
		}
	}

	for _, fd := range p.Finds {
		ref := fd.Type
		switch {
		case ref.Kind == "Subset":
			checkSetArg(scope, ref.Args[0], "Subset", fd.Span, bag)
		case ref.Kind == "Mapping":
			for _, a := range ref.Args {
				checkSetArg(scope, a, "Mapping", fd.Span, bag)
			}
		default:
			if _, ok := global.Lookup(ref.Kind); !ok {
				bag.Add(diag.Diagnostic{
					Severity: diag.SevError, Code: diag.CodeUnknownIdent,
					Message: fmt.Sprintf("unknown unknown-type `%s`", ref.Kind),
					Primary: fd.Span,
				})
			}
		}
		sym := Symbol{Name: fd.Name, Kind: SymFind, Unk: types.UnknownShape{Name: ref.Kind, Args: ref.Args}, Span: fd.Span}
		if !scope.Define(sym) {
			dup(bag, fd.Span, fd.Name)
		}
	}
}

func checkSetArg(scope *Scope, name, shape string, sp source.Span, bag *diag.Bag) {
	if sym, ok := scope.Lookup(name); !ok || sym.Kind != SymSet {
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError, Code: diag.CodeUnknownIdent,
			Message: fmt.Sprintf("unknown set `%s` for %s", name, shape),
			Primary: sp,
		})
	}
}

func paramValueType(scope *Scope, ty ast.TypeRef, sp source.Span, bag *diag.Bag) types.Type {
	switch t := ty.(type) {
	case *ast.ScalarTypeRef:
		if t.Kind == "Bool" {
			return types.BoolType
		}
		return types.RealType
	case *ast.IntRangeTypeRef:
		return types.IntRangeType(t.Lo, t.Hi)
	case *ast.ElemTypeRef:
		if sym, ok := scope.Lookup(t.SetName); !ok || sym.Kind != SymSet {
			bag.Add(diag.Diagnostic{
				Severity: diag.SevError, Code: diag.CodeUnknownIdent,
				Message: fmt.Sprintf("unknown set `%s` in param value type", t.SetName),
				Primary: sp,
			})
		}
		return types.ElemType(t.SetName)
	}
	return types.RealType
}

func dup(bag *diag.Bag, sp source.Span, name string) {
	bag.Add(diag.Diagnostic{
		Severity: diag.SevError, Code: diag.CodeDuplicateDecl,
		Message: fmt.Sprintf("redefinition of `%s` in same scope", name),
		Primary: sp,
	})
}
