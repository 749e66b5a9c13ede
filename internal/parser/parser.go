// Package parser implements a recursive-descent parser for QSOL,
// producing an internal/ast.Program with a span on every node.
//
// Structurally grounded on the teacher's expression-precedence-climbing
// style (internal/parser/expression*.go), but fails fast on the first
// syntax error rather than recovering — original_source's parser
// (parse/parser.go's ParseFailure) does the same, and spec.md never asks
// the parser itself to accumulate multiple diagnostics in one pass; that
// job belongs to the later sema stages, which do accumulate.
package parser

import (
	"fmt"
	"strconv"

	"qsol/internal/ast"
	"qsol/internal/diag"
	"qsol/internal/lexer"
	"qsol/internal/source"
	"qsol/internal/token"
)

// ParseFailure is returned when parsing cannot continue; it always wraps
// exactly one diag.Diagnostic with code QSOL1001.
type ParseFailure struct {
	Diagnostic diag.Diagnostic
}

func (f *ParseFailure) Error() string { return f.Diagnostic.Message }

// Parse tokenizes and parses one file into a Program.
func Parse(file *source.File) (*ast.Program, error) {
	toks := lexer.New(file, nil).Tokenize()
	p := &parser{file: file, toks: toks}
	return p.parseProgram()
}

type parser struct {
	file *source.File
	toks []token.Token
	pos  int
}

func (p *parser) cur() token.Token  { return p.toks[p.pos] }
func (p *parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) fail(sp source.Span, format string, args ...any) error {
	return &ParseFailure{Diagnostic: diag.Diagnostic{
		Severity: diag.SevError,
		Code:     diag.CodeParse,
		Message:  fmt.Sprintf(format, args...),
		Primary:  sp,
	}}
}

func (p *parser) expect(k token.Kind) (token.Token, error) {
	if p.cur().Kind != k {
		return token.Token{}, p.fail(p.cur().Span, "expected %s, found %s", k, p.cur().Kind)
	}
	return p.advance(), nil
}

func (p *parser) expectIdent() (token.Token, error) {
	if p.cur().Kind != token.Ident {
		return token.Token{}, p.fail(p.cur().Span, "expected identifier, found %s", p.cur().Kind)
	}
	return p.advance(), nil
}

func (p *parser) span(start source.Span) source.Span {
	end := p.toks[p.pos].Span
	if p.pos > 0 {
		end = p.toks[p.pos-1].Span
	}
	return start.Cover(end)
}

// ---- top level ----

func (p *parser) parseProgram() (*ast.Program, error) {
	start := p.cur().Span
	prog := &ast.Program{}
	for !p.at(token.EOF) {
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		prog.Items = append(prog.Items, item)
	}
	prog.Span = p.span(start)
	return prog, nil
}

func (p *parser) parseItem() (ast.Item, error) {
	switch p.cur().Kind {
	case token.KwUse:
		return p.parseUse()
	case token.KwUnknown:
		return p.parseUnknownDef()
	case token.KwPredicate:
		def, err := p.parseMacroDef(true)
		if err != nil {
			return nil, err
		}
		return &ast.PredicateDef{Span: def.Span, Name: def.Name, Formals: def.Formals, Body: def.Body}, nil
	case token.KwFunction:
		def, err := p.parseMacroDef(false)
		if err != nil {
			return nil, err
		}
		return &ast.FunctionDef{Span: def.Span, Name: def.Name, Formals: def.Formals, Body: def.Body}, nil
	case token.KwProblem:
		return p.parseProblem()
	default:
		return nil, p.fail(p.cur().Span, "expected top-level declaration, found %s", p.cur().Kind)
	}
}

func (p *parser) parseUse() (*ast.UseImport, error) {
	start := p.cur().Span
	p.advance() // use
	first, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	path := []string{first.Text}
	for p.at(token.Dot) {
		p.advance()
		seg, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		path = append(path, seg.Text)
	}
	if _, err := p.expect(token.Semi); err != nil {
		return nil, err
	}
	return &ast.UseImport{Span: p.span(start), Path: path}, nil
}

func (p *parser) parseFormalKind() (ast.MacroFormalKind, string, error) {
	switch p.cur().Kind {
	case token.KwBool:
		p.advance()
		return ast.FormalBool, "", nil
	case token.KwReal:
		p.advance()
		return ast.FormalReal, "", nil
	case token.Ident:
		switch p.cur().Text {
		case "Elem":
			p.advance()
			if _, err := p.expect(token.LParen); err != nil {
				return 0, "", err
			}
			setName, err := p.expectIdent()
			if err != nil {
				return 0, "", err
			}
			if _, err := p.expect(token.RParen); err != nil {
				return 0, "", err
			}
			return ast.FormalElem, setName.Text, nil
		case "Comp":
			p.advance()
			if _, err := p.expect(token.LParen); err != nil {
				return 0, "", err
			}
			var kind ast.MacroFormalKind
			switch p.cur().Kind {
			case token.KwBool:
				kind = ast.FormalCompBool
			case token.KwReal:
				kind = ast.FormalCompReal
			default:
				return 0, "", p.fail(p.cur().Span, "expected Bool or Real inside Comp(...)")
			}
			p.advance()
			if _, err := p.expect(token.RParen); err != nil {
				return 0, "", err
			}
			return kind, "", nil
		}
	}
	return 0, "", p.fail(p.cur().Span, "expected formal parameter kind")
}

func (p *parser) parseFormalList() ([]ast.MacroFormal, error) {
	var formals []ast.MacroFormal
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	for !p.at(token.RParen) {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Colon); err != nil {
			return nil, err
		}
		kind, setName, err := p.parseFormalKind()
		if err != nil {
			return nil, err
		}
		formals = append(formals, ast.MacroFormal{Name: name.Text, Kind: kind, SetName: setName})
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return formals, nil
}

func (p *parser) parseMacroDef(isBool bool) (*ast.MacroDef, error) {
	start := p.cur().Span
	p.advance() // predicate | function
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	formals, err := p.parseFormalList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Eq); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semi); err != nil {
		return nil, err
	}
	return &ast.MacroDef{Span: p.span(start), Name: name.Text, IsBool: isBool, Formals: formals, Body: body}, nil
}

func (p *parser) parseUnknownDef() (*ast.UnknownDef, error) {
	start := p.cur().Span
	p.advance() // unknown
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var formals []string
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	for !p.at(token.RParen) {
		f, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		formals = append(formals, f.Text)
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}

	def := &ast.UnknownDef{Name: name.Text, Formals: formals}
	for !p.at(token.RBrace) {
		switch p.cur().Kind {
		case token.KwRep:
			p.advance()
			if _, err := p.expect(token.LBrace); err != nil {
				return nil, err
			}
			for !p.at(token.RBrace) {
				fd, err := p.parseFindDecl()
				if err != nil {
					return nil, err
				}
				def.Rep = append(def.Rep, *fd)
			}
			p.advance()
		case token.KwLaws:
			p.advance()
			if _, err := p.expect(token.LBrace); err != nil {
				return nil, err
			}
			for !p.at(token.RBrace) {
				c, err := p.parseConstraint()
				if err != nil {
					return nil, err
				}
				def.Laws = append(def.Laws, *c)
			}
			p.advance()
		case token.KwView:
			p.advance()
			if _, err := p.expect(token.LBrace); err != nil {
				return nil, err
			}
			for !p.at(token.RBrace) {
				isBool := p.at(token.KwPredicate)
				if !isBool && !p.at(token.KwFunction) {
					return nil, p.fail(p.cur().Span, "expected predicate or function in view block")
				}
				m, err := p.parseMacroDef(isBool)
				if err != nil {
					return nil, err
				}
				def.View = append(def.View, *m)
			}
			p.advance()
		default:
			return nil, p.fail(p.cur().Span, "expected rep/laws/view block in unknown %s", name.Text)
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	def.Span = p.span(start)
	return def, nil
}

func (p *parser) parseUnknownTypeRef() (ast.UnknownTypeRef, error) {
	start := p.cur().Span
	name, err := p.expectIdent()
	if err != nil {
		return ast.UnknownTypeRef{}, err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return ast.UnknownTypeRef{}, err
	}
	var args []string
	first, err := p.expectIdent()
	if err != nil {
		return ast.UnknownTypeRef{}, err
	}
	args = append(args, first.Text)
	if p.at(token.MapsTo) {
		p.advance()
		second, err := p.expectIdent()
		if err != nil {
			return ast.UnknownTypeRef{}, err
		}
		args = append(args, second.Text)
	} else {
		for p.at(token.Comma) {
			p.advance()
			a, err := p.expectIdent()
			if err != nil {
				return ast.UnknownTypeRef{}, err
			}
			args = append(args, a.Text)
		}
	}
	if _, err := p.expect(token.RParen); err != nil {
		return ast.UnknownTypeRef{}, err
	}
	return ast.UnknownTypeRef{Span: p.span(start), Kind: name.Text, Args: args}, nil
}

func (p *parser) parseFindDecl() (*ast.FindDecl, error) {
	start := p.cur().Span
	if _, err := p.expect(token.KwFind); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Colon); err != nil {
		return nil, err
	}
	ty, err := p.parseUnknownTypeRef()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semi); err != nil {
		return nil, err
	}
	return &ast.FindDecl{Span: p.span(start), Name: name.Text, Type: ty}, nil
}

func (p *parser) parseConstraint() (*ast.Constraint, error) {
	start := p.cur().Span
	var kind ast.ConstraintKind
	switch p.cur().Kind {
	case token.KwMust:
		kind = ast.Must
	case token.KwShould:
		kind = ast.Should
	case token.KwNice:
		kind = ast.Nice
	default:
		return nil, p.fail(p.cur().Span, "expected must/should/nice")
	}
	p.advance()
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	c := &ast.Constraint{Kind: kind, Expr: expr}
	if p.at(token.KwIf) {
		p.advance()
		guard, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Guard = guard
	}
	if _, err := p.expect(token.Semi); err != nil {
		return nil, err
	}
	c.Span = p.span(start)
	return c, nil
}

func (p *parser) parseObjective() (*ast.Objective, error) {
	start := p.cur().Span
	var kind ast.ObjectiveKind
	if p.at(token.KwMinimize) {
		kind = ast.Minimize
	} else {
		kind = ast.Maximize
	}
	p.advance()
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semi); err != nil {
		return nil, err
	}
	return &ast.Objective{Span: p.span(start), Kind: kind, Expr: expr}, nil
}

func (p *parser) parseValueType() (ast.TypeRef, error) {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.KwReal:
		p.advance()
		return &ast.ScalarTypeRef{Span: p.span(start), Kind: "Real"}, nil
	case token.KwBool:
		p.advance()
		return &ast.ScalarTypeRef{Span: p.span(start), Kind: "Bool"}, nil
	case token.KwInt:
		p.advance()
		if _, err := p.expect(token.LBracket); err != nil {
			return nil, err
		}
		lo, err := p.expectIdent2IntLit()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.DotDot); err != nil {
			return nil, err
		}
		hi, err := p.expectIdent2IntLit()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBracket); err != nil {
			return nil, err
		}
		return &ast.IntRangeTypeRef{Span: p.span(start), Lo: lo, Hi: hi}, nil
	case token.Ident:
		if p.cur().Text == "Elem" {
			p.advance()
			if _, err := p.expect(token.LParen); err != nil {
				return nil, err
			}
			set, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RParen); err != nil {
				return nil, err
			}
			return &ast.ElemTypeRef{Span: p.span(start), SetName: set.Text}, nil
		}
	}
	return nil, p.fail(p.cur().Span, "expected value type (Real, Bool, Int[..], Elem(Set))")
}

func parseInt(s string) (int64, error)   { return strconv.ParseInt(s, 10, 64) }
func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

func (p *parser) expectIdent2IntLit() (int64, error) {
	if p.cur().Kind != token.IntLit {
		return 0, p.fail(p.cur().Span, "expected integer literal")
	}
	t := p.advance()
	v, err := strconv.ParseInt(t.Text, 10, 64)
	if err != nil {
		return 0, p.fail(t.Span, "invalid integer literal %q", t.Text)
	}
	return v, nil
}

func (p *parser) parseLiteral() (*ast.Literal, error) {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.IntLit:
		t := p.advance()
		v, err := strconv.ParseInt(t.Text, 10, 64)
		if err != nil {
			return nil, p.fail(t.Span, "invalid integer literal %q", t.Text)
		}
		return &ast.Literal{Span: p.span(start), Kind: "int", Int: v}, nil
	case token.RealLit:
		t := p.advance()
		v, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, p.fail(t.Span, "invalid real literal %q", t.Text)
		}
		return &ast.Literal{Span: p.span(start), Kind: "real", Real: v}, nil
	case token.KwTrue:
		p.advance()
		return &ast.Literal{Span: p.span(start), Kind: "bool", Bool: true}, nil
	case token.KwFalse:
		p.advance()
		return &ast.Literal{Span: p.span(start), Kind: "bool", Bool: false}, nil
	case token.Ident:
		t := p.advance()
		return &ast.Literal{Span: p.span(start), Kind: "elem", Elem: t.Text}, nil
	}
	return nil, p.fail(p.cur().Span, "expected a literal default value")
}

func (p *parser) parseParamDecl() (*ast.ParamDecl, error) {
	start := p.cur().Span
	if _, err := p.expect(token.KwParam); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	pd := &ast.ParamDecl{Name: name.Text}
	if p.at(token.LBracket) {
		p.advance()
		for {
			s, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			pd.Indices = append(pd.Indices, s.Text)
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(token.RBracket); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.Colon); err != nil {
		return nil, err
	}
	ty, err := p.parseValueType()
	if err != nil {
		return nil, err
	}
	pd.Value = ty
	if p.at(token.Eq) {
		p.advance()
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		pd.Default = lit
	}
	if _, err := p.expect(token.Semi); err != nil {
		return nil, err
	}
	pd.Span = p.span(start)
	return pd, nil
}

func (p *parser) parseProblem() (*ast.ProblemDef, error) {
	start := p.cur().Span
	p.advance() // problem
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	pd := &ast.ProblemDef{Name: name.Text}
	for !p.at(token.RBrace) {
		switch p.cur().Kind {
		case token.KwSet:
			ssp := p.cur().Span
			p.advance()
			sname, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Semi); err != nil {
				return nil, err
			}
			pd.Sets = append(pd.Sets, ast.SetDecl{Span: p.span(ssp), Name: sname.Text})
		case token.KwParam:
			decl, err := p.parseParamDecl()
			if err != nil {
				return nil, err
			}
			pd.Params = append(pd.Params, *decl)
		case token.KwFind:
			decl, err := p.parseFindDecl()
			if err != nil {
				return nil, err
			}
			pd.Finds = append(pd.Finds, *decl)
		case token.KwMust, token.KwShould, token.KwNice:
			c, err := p.parseConstraint()
			if err != nil {
				return nil, err
			}
			pd.Constraints = append(pd.Constraints, *c)
		case token.KwMinimize, token.KwMaximize:
			if pd.Objective != nil {
				return nil, p.fail(p.cur().Span, "at most one objective is allowed per problem")
			}
			obj, err := p.parseObjective()
			if err != nil {
				return nil, err
			}
			pd.Objective = obj
		default:
			return nil, p.fail(p.cur().Span, "unexpected token in problem body: %s", p.cur().Kind)
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	pd.Span = p.span(start)
	return pd, nil
}
