// Package kernel is QSOL's Kernel IR: a symbolic, per-problem tree with
// sets/params/finds/constraints/objectives pulled out of the syntax
// tree's grab-bag statement list into typed slices, and every remaining
// expression flattened into a small closed IR node set.
//
// Grounded on original_source/lower/{ir,lower}.py. The Python IR keeps
// separate KBoolExpr/KNumExpr base classes and Lower dispatches through
// three mutually recursive functions (_lower_expr/_lower_bool/_lower_num)
// to satisfy that split; internal/ast never made the split (see
// internal/desugar's doc comment), so KExpr is a single interface and
// Expr is a single recursive function, mirroring internal/desugar's
// same collapse.
package kernel

import "qsol/internal/source"

// KExpr is one Kernel IR expression node.
type KExpr interface {
	kExprNode()
	Span() source.Span
}

type kbase struct{ span source.Span }

func (b kbase) Span() source.Span { return b.span }

// New* constructors set kbase.span so callers (internal/lower) never
// need a keyed literal against the unexported embedded field, the same
// pattern internal/ast uses for the same reason.

func NewBoolLit(sp source.Span, v bool) *BoolLit     { return &BoolLit{kbase{sp}, v} }
func NewNumLit(sp source.Span, v float64) *NumLit    { return &NumLit{kbase{sp}, v} }
func NewName(sp source.Span, name string) *Name      { return &Name{kbase{sp}, name} }
func NewNot(sp source.Span, e KExpr) *Not            { return &Not{kbase{sp}, e} }
func NewAnd(sp source.Span, l, r KExpr) *And         { return &And{kbase{sp}, l, r} }
func NewOr(sp source.Span, l, r KExpr) *Or           { return &Or{kbase{sp}, l, r} }
func NewImplies(sp source.Span, l, r KExpr) *Implies { return &Implies{kbase{sp}, l, r} }
func NewCompare(sp source.Span, op string, l, r KExpr) *Compare {
	return &Compare{kbase{sp}, op, l, r}
}
func NewFuncCall(sp source.Span, name string, args []KExpr) *FuncCall {
	return &FuncCall{kbase{sp}, name, args}
}
func NewMethodCall(sp source.Span, target KExpr, name string, args []KExpr) *MethodCall {
	return &MethodCall{kbase{sp}, target, name, args}
}
func NewAdd(sp source.Span, l, r KExpr) *Add { return &Add{kbase{sp}, l, r} }
func NewSub(sp source.Span, l, r KExpr) *Sub { return &Sub{kbase{sp}, l, r} }
func NewMul(sp source.Span, l, r KExpr) *Mul { return &Mul{kbase{sp}, l, r} }
func NewDiv(sp source.Span, l, r KExpr) *Div { return &Div{kbase{sp}, l, r} }
func NewNeg(sp source.Span, e KExpr) *Neg    { return &Neg{kbase{sp}, e} }
func NewIfThenElse(sp source.Span, cond, then, els KExpr) *IfThenElse {
	return &IfThenElse{kbase{sp}, cond, then, els}
}
func NewQuantifier(sp source.Span, kind, v, domain string, body KExpr) *Quantifier {
	return &Quantifier{kbase{sp}, kind, v, domain, body}
}
func NewComprehension(sp source.Span, term KExpr, v, domain string) *Comprehension {
	return &Comprehension{kbase{sp}, term, v, domain}
}
func NewSum(sp source.Span, comp *Comprehension) *Sum { return &Sum{kbase{sp}, comp} }

type BoolLit struct {
	kbase
	Value bool
}
type NumLit struct {
	kbase
	Value float64
}
type Name struct {
	kbase
	Name string
}
type Not struct {
	kbase
	Expr KExpr
}
type And struct {
	kbase
	Left, Right KExpr
}
type Or struct {
	kbase
	Left, Right KExpr
}
type Implies struct {
	kbase
	Left, Right KExpr
}
type Compare struct {
	kbase
	Op          string
	Left, Right KExpr
}
type FuncCall struct {
	kbase
	Name string
	Args []KExpr
}
type MethodCall struct {
	kbase
	Target KExpr
	Name   string
	Args   []KExpr
}
type Add struct {
	kbase
	Left, Right KExpr
}
type Sub struct {
	kbase
	Left, Right KExpr
}
type Mul struct {
	kbase
	Left, Right KExpr
}
type Div struct {
	kbase
	Left, Right KExpr
}
type Neg struct {
	kbase
	Expr KExpr
}
type IfThenElse struct {
	kbase
	Cond, Then, Else KExpr
}
type Quantifier struct {
	kbase
	Kind      string // "forall" | "exists"
	Var       string
	DomainSet string
	Expr      KExpr
}

// Comprehension is the desugared, filter-free `term for var in domain`
// body of a Sum — desugar has already folded where/else into Term via
// IfThenElse, so this carries only term/var/domain (ir.py's
// KNumComprehension, with the where/else fields it never populates
// after desugar dropped).
type Comprehension struct {
	kbase
	Term      KExpr
	Var       string
	DomainSet string
}
type Sum struct {
	kbase
	Comp *Comprehension
}

func (*BoolLit) kExprNode()       {}
func (*NumLit) kExprNode()        {}
func (*Name) kExprNode()          {}
func (*Not) kExprNode()           {}
func (*And) kExprNode()           {}
func (*Or) kExprNode()            {}
func (*Implies) kExprNode()       {}
func (*Compare) kExprNode()       {}
func (*FuncCall) kExprNode()      {}
func (*MethodCall) kExprNode()    {}
func (*Add) kExprNode()           {}
func (*Sub) kExprNode()           {}
func (*Mul) kExprNode()           {}
func (*Div) kExprNode()           {}
func (*Neg) kExprNode()           {}
func (*IfThenElse) kExprNode()    {}
func (*Quantifier) kExprNode()    {}
func (*Sum) kExprNode()           {}

// SetDecl, ParamDecl, and FindDecl carry a problem's structural
// declarations, pulled out of the syntax tree's item list.
type SetDecl struct {
	Span source.Span
	Name string
}
type ParamDecl struct {
	Span       source.Span
	Name       string
	Indices    []string
	ScalarKind string // "Real" | "Bool" | "Int" | "Elem"
	ElemSet    string // populated when ScalarKind == "Elem"
	HasDefault bool
	DefaultInt int64
	DefaultReal float64
	DefaultBool bool
}
type FindDecl struct {
	Span     source.Span
	Name     string
	Kind     string // "Subset" | "Mapping" | user-defined unknown name
	TypeArgs []string
}

// ConstraintKind mirrors ast.ConstraintKind at the IR level.
type ConstraintKind uint8

const (
	Must ConstraintKind = iota
	Should
	Nice
)

type Constraint struct {
	Span source.Span
	Kind ConstraintKind
	Expr KExpr
}

// ObjectiveKind mirrors ast.ObjectiveKind at the IR level.
type ObjectiveKind uint8

const (
	Minimize ObjectiveKind = iota
	Maximize
)

type Objective struct {
	Span source.Span
	Kind ObjectiveKind
	Expr KExpr
}

// Problem is one lowered `problem` block.
type Problem struct {
	Span        source.Span
	Name        string
	Sets        []SetDecl
	Params      []ParamDecl
	Finds       []FindDecl
	Constraints []Constraint
	Objectives  []Objective
}

// IR is the whole lowered program.
type IR struct {
	Span     source.Span
	Problems []Problem
}
