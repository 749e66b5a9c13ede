// Package types defines QSOL's small value type system: Bool, Real,
// IntRange, element-of-a-set, parameterized collections, and unknown
// (Subset/Mapping/user-defined) shapes.
//
// Grounded on original_source/sema/types.py's dataclass hierarchy, but
// expressed as a Kind-discriminant struct matching the teacher's
// internal/types.Type (Kind enum + payload fields) idiom rather than a
// Python-style frozen dataclass tree — QSOL has few enough type shapes
// that one struct with optional fields reads more like the teacher's
// compact descriptor than a parallel interface hierarchy would.
package types

import "fmt"

// Kind enumerates every value-type shape QSOL supports.
type Kind uint8

const (
	Invalid Kind = iota
	Bool
	Real
	IntRange
	ElemOf   // an element of a given set
	SetKind  // the set itself, as a first-class domain
	Unknown  // type not yet resolved (pre-typecheck placeholder)
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "Bool"
	case Real:
		return "Real"
	case IntRange:
		return "Int"
	case ElemOf:
		return "Elem"
	case SetKind:
		return "Set"
	case Unknown:
		return "Unknown"
	default:
		return "invalid"
	}
}

// Type is QSOL's compact value-type descriptor.
type Type struct {
	Kind    Kind
	Lo, Hi  int64  // IntRange bounds
	SetName string // ElemOf / SetKind set name
}

var (
	BoolType = Type{Kind: Bool}
	RealType = Type{Kind: Real}
	UnkType  = Type{Kind: Unknown}
)

func IntRangeType(lo, hi int64) Type { return Type{Kind: IntRange, Lo: lo, Hi: hi} }
func ElemType(setName string) Type  { return Type{Kind: ElemOf, SetName: setName} }
func SetDomain(setName string) Type { return Type{Kind: SetKind, SetName: setName} }

func (t Type) IsNumeric() bool { return t.Kind == Real || t.Kind == IntRange }

func (t Type) String() string {
	switch t.Kind {
	case IntRange:
		return fmt.Sprintf("Int[%d..%d]", t.Lo, t.Hi)
	case ElemOf, SetKind:
		return fmt.Sprintf("%s(%s)", t.Kind, t.SetName)
	default:
		return t.Kind.String()
	}
}

func (t Type) Equal(o Type) bool { return t == o }

// PromoteNumeric widens two numeric types to their common type, mirroring
// original_source/sema/types.py's promote_numeric: Real dominates
// IntRange, and two IntRanges widen to the union of their bounds.
func PromoteNumeric(a, b Type) (Type, bool) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return Type{}, false
	}
	if a.Kind == Real || b.Kind == Real {
		return RealType, true
	}
	lo, hi := a.Lo, a.Hi
	if b.Lo < lo {
		lo = b.Lo
	}
	if b.Hi > hi {
		hi = b.Hi
	}
	return IntRangeType(lo, hi), true
}

// UnknownShape is the declared shape of a `find` target: a built-in
// Subset/Mapping, or a user-defined unknown name, each parameterized by
// set-name arguments (original_source/sema/types.py's UnknownTypeRef).
type UnknownShape struct {
	Name string // "Subset" | "Mapping" | user-defined unknown name
	Args []string
}

func (s UnknownShape) IsSubset() bool { return s.Name == "Subset" }
func (s UnknownShape) IsMapping() bool { return s.Name == "Mapping" }
func (s UnknownShape) IsBuiltin() bool { return s.IsSubset() || s.IsMapping() }

func (s UnknownShape) String() string {
	return fmt.Sprintf("%s(%v)", s.Name, s.Args)
}

// ParamType is the type of a `param` declaration: zero or more index
// sets followed by a scalar element type (original_source's ParamType).
type ParamType struct {
	Indices []string // index set names, outer-to-inner
	Elem    Type
}

func (p ParamType) Arity() int { return len(p.Indices) }
