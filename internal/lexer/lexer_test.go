package lexer_test

import (
	"testing"

	"qsol/internal/diag"
	"qsol/internal/lexer"
	"qsol/internal/source"
	"qsol/internal/token"
)

func tokenize(t *testing.T, src string) ([]token.Token, *diag.Bag) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("test.qsol", []byte(src))
	bag := diag.NewBag()
	toks := lexer.New(fs.Get(id), diag.BagReporter{Bag: bag}).Tokenize()
	return toks, bag
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, tk := range toks {
		out[i] = tk.Kind
	}
	return out
}

func assertKinds(t *testing.T, got []token.Kind, want ...token.Kind) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestTokenize_KeywordsAndIdentifiers(t *testing.T) {
	toks, bag := tokenize(t, "problem Foo find bar")
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	assertKinds(t, kinds(toks), token.KwProblem, token.Ident, token.KwFind, token.Ident, token.EOF)
	if toks[1].Text != "Foo" {
		t.Fatalf("got %q, want Foo", toks[1].Text)
	}
}

func TestTokenize_NumberLiterals(t *testing.T) {
	toks, bag := tokenize(t, "42 3.14 1e3 2.5e-2")
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	assertKinds(t, kinds(toks), token.IntLit, token.RealLit, token.RealLit, token.RealLit, token.EOF)
	if toks[0].Text != "42" {
		t.Fatalf("got %q, want 42", toks[0].Text)
	}
}

func TestTokenize_TwoCharOperators(t *testing.T) {
	toks, bag := tokenize(t, "<= >= != => -> .. = < >")
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	assertKinds(t, kinds(toks),
		token.Le, token.Ge, token.Ne, token.Arrow, token.MapsTo, token.DotDot,
		token.Eq, token.Lt, token.Gt, token.EOF)
}

func TestTokenize_SkipsLineAndBlockComments(t *testing.T) {
	toks, bag := tokenize(t, "problem // a comment\n/* block\ncomment */ find")
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	assertKinds(t, kinds(toks), token.KwProblem, token.KwFind, token.EOF)
}

func TestTokenize_UnterminatedBlockCommentReportsError(t *testing.T) {
	_, bag := tokenize(t, "problem /* never closed")
	if !bag.HasErrors() {
		t.Fatal("expected a diagnostic for an unterminated block comment")
	}
}

func TestTokenize_BareBangIsInvalid(t *testing.T) {
	toks, bag := tokenize(t, "!")
	if !bag.HasErrors() {
		t.Fatal("expected a diagnostic for a bare '!'")
	}
	assertKinds(t, kinds(toks), token.Invalid, token.EOF)
}

func TestTokenize_UnexpectedCharacterReportsErrorButContinues(t *testing.T) {
	toks, bag := tokenize(t, "find @ set")
	if !bag.HasErrors() {
		t.Fatal("expected a diagnostic for the unexpected '@'")
	}
	assertKinds(t, kinds(toks), token.KwFind, token.Invalid, token.KwSet, token.EOF)
}

func TestTokenize_EmptyInputIsJustEOF(t *testing.T) {
	toks, bag := tokenize(t, "")
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	assertKinds(t, kinds(toks), token.EOF)
}
