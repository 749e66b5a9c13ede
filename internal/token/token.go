// Package token defines QSOL's lexical token kinds and keyword table.
package token

import "qsol/internal/source"

// Kind identifies the lexical category of a token.
type Kind uint8

const (
	Invalid Kind = iota
	EOF

	Ident
	IntLit
	RealLit

	// Keywords
	KwProblem
	KwSet
	KwParam
	KwFind
	KwMust
	KwShould
	KwNice
	KwIf
	KwThen
	KwElse
	KwMinimize
	KwMaximize
	KwForall
	KwExists
	KwSum
	KwCount
	KwAny
	KwAll
	KwFor
	KwIn
	KwWhere
	KwUse
	KwUnknown
	KwRep
	KwLaws
	KwView
	KwPredicate
	KwFunction
	KwTrue
	KwFalse
	KwNot
	KwAnd
	KwOr
	KwSize
	KwReal
	KwBool
	KwInt

	// Punctuation & operators
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Comma
	Colon
	Semi
	Dot
	DotDot

	Plus
	Minus
	Star
	Slash

	Eq    // =
	Ne    // !=
	Lt    // <
	Le    // <=
	Gt    // >
	Ge    // >=
	Arrow // =>
	MapsTo // ->  (used in Mapping(A -> B))
)

var keywords = map[string]Kind{
	"problem":   KwProblem,
	"set":       KwSet,
	"param":     KwParam,
	"find":      KwFind,
	"must":      KwMust,
	"should":    KwShould,
	"nice":      KwNice,
	"if":        KwIf,
	"then":      KwThen,
	"else":      KwElse,
	"minimize":  KwMinimize,
	"maximize":  KwMaximize,
	"forall":    KwForall,
	"exists":    KwExists,
	"sum":       KwSum,
	"count":     KwCount,
	"any":       KwAny,
	"all":       KwAll,
	"for":       KwFor,
	"in":        KwIn,
	"where":     KwWhere,
	"use":       KwUse,
	"unknown":   KwUnknown,
	"rep":       KwRep,
	"laws":      KwLaws,
	"view":      KwView,
	"predicate": KwPredicate,
	"function":  KwFunction,
	"true":      KwTrue,
	"false":     KwFalse,
	"not":       KwNot,
	"and":       KwAnd,
	"or":        KwOr,
	"size":      KwSize,
	"Real":      KwReal,
	"Bool":      KwBool,
	"Int":       KwInt,
}

// Lookup returns the keyword Kind for ident, or (Ident, false) if it is a
// plain identifier.
func Lookup(ident string) (Kind, bool) {
	k, ok := keywords[ident]
	if !ok {
		return Ident, false
	}
	return k, true
}

// Token is one lexical token with its source span.
type Token struct {
	Kind Kind
	Text string
	Span source.Span
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "?"
}

var kindNames = map[Kind]string{
	Invalid: "invalid", EOF: "eof", Ident: "identifier",
	IntLit: "int literal", RealLit: "real literal",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}",
	LBracket: "[", RBracket: "]", Comma: ",", Colon: ":", Semi: ";",
	Dot: ".", DotDot: "..",
	Plus: "+", Minus: "-", Star: "*", Slash: "/",
	Eq: "=", Ne: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">=",
	Arrow: "=>", MapsTo: "->",
}
