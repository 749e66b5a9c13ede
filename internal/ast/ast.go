// Package ast defines QSOL's abstract syntax tree. Node shapes are
// grounded directly on original_source/src/qsol/parse/ast.py's dataclass
// hierarchy; every node carries a Span so diagnostics never need to
// reference anything but a Span (spec.md §3).
package ast

import "qsol/internal/source"

// Program is an ordered list of top-level items, imports first after
// module loading (spec.md §4.1).
type Program struct {
	Span  source.Span
	Items []Item
}

// Item is any top-level declaration.
type Item interface{ itemNode() }

// UseImport is `use a.b.c;`.
type UseImport struct {
	Span source.Span
	Path []string
}

// UnknownDef is `unknown Name(params...) { rep {...} laws {...} view {...} }`.
type UnknownDef struct {
	Span    source.Span
	Name    string
	Formals []string // type-parameter names, each a set name at use sites
	Rep     []FindDecl
	Laws    []Constraint
	View    []MacroDef // predicate/function members reachable as Name.member(...)
}

// MacroFormalKind is the kind of a predicate/function formal parameter.
type MacroFormalKind uint8

const (
	FormalBool MacroFormalKind = iota
	FormalReal
	FormalElem
	FormalCompBool
	FormalCompReal
)

// MacroFormal is one formal parameter of a predicate/function/unknown-view member.
type MacroFormal struct {
	Name    string
	Kind    MacroFormalKind
	SetName string // populated when Kind == FormalElem
}

// MacroDef is a predicate (Bool-returning) or function (Real-returning) definition.
type MacroDef struct {
	Span    source.Span
	Name    string
	IsBool  bool // true: predicate, false: function
	Formals []MacroFormal
	Body    Expr
}

// PredicateDef is a top-level `predicate` item.
type PredicateDef struct {
	Span    source.Span
	Name    string
	Formals []MacroFormal
	Body    Expr
}

// FunctionDef is a top-level `function` item.
type FunctionDef struct {
	Span    source.Span
	Name    string
	Formals []MacroFormal
	Body    Expr
}

// ProblemDef is the top-level `problem` block.
type ProblemDef struct {
	Span        source.Span
	Name        string
	Sets        []SetDecl
	Params      []ParamDecl
	Finds       []FindDecl
	Constraints []Constraint
	Objective   *Objective
}

func (*UseImport) itemNode()    {}
func (*UnknownDef) itemNode()   {}
func (*PredicateDef) itemNode() {}
func (*FunctionDef) itemNode()  {}
func (*ProblemDef) itemNode()   {}

// SetDecl is `set Name;`.
type SetDecl struct {
	Span source.Span
	Name string
}

// TypeRef is a parameter's value type: Real, Bool, Int[lo..hi], or Elem(Set).
type TypeRef interface{ typeRefNode() }

type ScalarTypeRef struct {
	Span source.Span
	Kind string // "Real" | "Bool"
}
type IntRangeTypeRef struct {
	Span   source.Span
	Lo, Hi int64
}
type ElemTypeRef struct {
	Span    source.Span
	SetName string
}

func (*ScalarTypeRef) typeRefNode()   {}
func (*IntRangeTypeRef) typeRefNode() {}
func (*ElemTypeRef) typeRefNode()     {}

// ParamDecl is `param Name[Idx1,...] : Type = default;`.
type ParamDecl struct {
	Span    source.Span
	Name    string
	Indices []string // index set names, empty for scalar params
	Value   TypeRef
	Default *Literal // nil if no default
}

// UnknownTypeRef describes the `find X : <this>` right-hand side.
type UnknownTypeRef struct {
	Span      source.Span
	Kind      string   // "Subset" | "Mapping" | user-defined unknown name
	Args      []string // set-name arguments
}

// FindDecl is `find Name : UnknownType;`.
type FindDecl struct {
	Span source.Span
	Name string
	Type UnknownTypeRef
}

// ConstraintKind is must/should/nice.
type ConstraintKind uint8

const (
	Must ConstraintKind = iota
	Should
	Nice
)

func (k ConstraintKind) String() string {
	switch k {
	case Must:
		return "must"
	case Should:
		return "should"
	case Nice:
		return "nice"
	}
	return "?"
}

// Constraint is `{must|should|nice} expr (if guard)?;`.
type Constraint struct {
	Span  source.Span
	Kind  ConstraintKind
	Expr  Expr
	Guard Expr // nil if no guard
}

// ObjectiveKind is minimize/maximize.
type ObjectiveKind uint8

const (
	Minimize ObjectiveKind = iota
	Maximize
)

// Objective is `{minimize|maximize} expr;`.
type Objective struct {
	Span source.Span
	Kind ObjectiveKind
	Expr Expr
}

// Expr is the algebraic expression type, matching original_source's
// Expr/BoolExpr/NumExpr hierarchy but not distinguishing bool/numeric at
// the syntax level — that distinction is a typechecker property, not a
// parse-time one (an unresolved macro call could be either).
type Expr interface {
	exprNode()
	SpanOf() source.Span
}

type base struct{ Span source.Span }

func (b base) SpanOf() source.Span { return b.Span }

type IntLit struct {
	base
	Value int64
}
type RealLit struct {
	base
	Value float64
}
type BoolLit struct {
	base
	Value bool
}
type NameRef struct {
	base
	Name string
}
type IndexRead struct {
	base
	Param string
	Args  []Expr
}
type SizeOf struct {
	base
	SetName string
}
type MethodCall struct {
	base
	Target Expr // NameRef of a find, or a view-member owner
	Name   string
	Args   []Expr
}
type MacroCall struct {
	base
	Name string
	Args []Expr // may contain *Comprehension nodes
}
type Unary struct {
	base
	Op   string // "-" | "not"
	Expr Expr
}
type Binary struct {
	base
	Op          string // "+","-","*","/","and","or","=>"
	Left, Right Expr
}
type Compare struct {
	base
	Op          string // "=","!=","<","<=",">",">="
	Left, Right Expr
}
type IfThenElse struct {
	base
	Cond, Then, Else Expr
}
type Quantifier struct {
	base
	Kind      string // "forall" | "exists"
	Var       string
	DomainSet string
	Body      Expr
}

// Comprehension is the `expr for x in S [where c] [else e]` shape shared
// by sum/count/any/all aggregates.
type Comprehension struct {
	base
	Term      Expr
	Var       string
	DomainSet string
	Where     Expr // nil if absent
	Else      Expr // nil if absent (numeric aggregates only)
}

// Aggregate is sum/count/any/all wrapping a Comprehension. FromCompArg
// is set only when Comp was spliced in from a Comp(Bool)/Comp(Real)
// macro-formal substitution (`count(b)` inside a predicate/function
// body): there, unlike the literal `count(x for x in X where c)` and
// `count(x in X where c)` forms, Comp.Term itself is the boolean to
// count rather than a discardable loop variable.
type Aggregate struct {
	base
	Kind        string // "sum" | "count" | "any" | "all"
	Comp        *Comprehension
	FromCompArg bool
}

func (*IntLit) exprNode()        {}
func (*RealLit) exprNode()       {}
func (*BoolLit) exprNode()       {}
func (*NameRef) exprNode()       {}
func (*IndexRead) exprNode()     {}
func (*SizeOf) exprNode()        {}
func (*MethodCall) exprNode()    {}
func (*MacroCall) exprNode()     {}
func (*Unary) exprNode()         {}
func (*Binary) exprNode()        {}
func (*Compare) exprNode()       {}
func (*IfThenElse) exprNode()    {}
func (*Quantifier) exprNode()    {}
func (*Comprehension) exprNode() {}
func (*Aggregate) exprNode()     {}

// Literal is a constant used for parameter defaults.
type Literal struct {
	Span  source.Span
	Kind  string // "int" | "real" | "bool" | "elem"
	Int   int64
	Real  float64
	Bool  bool
	Elem  string
}

// New* constructors set the base.Span so callers don't repeat it.

func NewIntLit(sp source.Span, v int64) *IntLit       { return &IntLit{base{sp}, v} }
func NewRealLit(sp source.Span, v float64) *RealLit   { return &RealLit{base{sp}, v} }
func NewBoolLit(sp source.Span, v bool) *BoolLit      { return &BoolLit{base{sp}, v} }
func NewNameRef(sp source.Span, name string) *NameRef { return &NameRef{base{sp}, name} }

func NewIndexRead(sp source.Span, param string, args []Expr) *IndexRead {
	return &IndexRead{base{sp}, param, args}
}
func NewSizeOf(sp source.Span, setName string) *SizeOf { return &SizeOf{base{sp}, setName} }
func NewMethodCall(sp source.Span, target Expr, name string, args []Expr) *MethodCall {
	return &MethodCall{base{sp}, target, name, args}
}
func NewMacroCall(sp source.Span, name string, args []Expr) *MacroCall {
	return &MacroCall{base{sp}, name, args}
}
func NewUnary(sp source.Span, op string, e Expr) *Unary { return &Unary{base{sp}, op, e} }
func NewBinary(sp source.Span, op string, l, r Expr) *Binary {
	return &Binary{base{sp}, op, l, r}
}
func NewCompare(sp source.Span, op string, l, r Expr) *Compare {
	return &Compare{base{sp}, op, l, r}
}
func NewIfThenElse(sp source.Span, cond, then, els Expr) *IfThenElse {
	return &IfThenElse{base{sp}, cond, then, els}
}
func NewQuantifier(sp source.Span, kind, v, domain string, body Expr) *Quantifier {
	return &Quantifier{base{sp}, kind, v, domain, body}
}
func NewComprehension(sp source.Span, term Expr, v, domain string, where, els Expr) *Comprehension {
	return &Comprehension{base{sp}, term, v, domain, where, els}
}
func NewAggregate(sp source.Span, kind string, comp *Comprehension) *Aggregate {
	return &Aggregate{base{sp}, kind, comp, false}
}
