package parser

import (
	"qsol/internal/ast"
	"qsol/internal/token"
)

// Precedence climbing per spec.md §4.2, high to low: unary, `* /`, `+ -`,
// comparisons, `and`, `or`, `=>`.

func (p *parser) parseExpr() (ast.Expr, error) { return p.parseImplies() }

func (p *parser) parseImplies() (ast.Expr, error) {
	start := p.cur().Span
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.at(token.Arrow) {
		p.advance()
		right, err := p.parseImplies() // right-associative
		if err != nil {
			return nil, err
		}
		return ast.NewBinary(p.span(start), "=>", left, right), nil
	}
	return left, nil
}

func (p *parser) parseOr() (ast.Expr, error) {
	start := p.cur().Span
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(token.KwOr) {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinary(p.span(start), "or", left, right)
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Expr, error) {
	start := p.cur().Span
	left, err := p.parseCompare()
	if err != nil {
		return nil, err
	}
	for p.at(token.KwAnd) {
		p.advance()
		right, err := p.parseCompare()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinary(p.span(start), "and", left, right)
	}
	return left, nil
}

var cmpOps = map[token.Kind]string{
	token.Eq: "=", token.Ne: "!=", token.Lt: "<", token.Le: "<=", token.Gt: ">", token.Ge: ">=",
}

func (p *parser) parseCompare() (ast.Expr, error) {
	start := p.cur().Span
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if opName, ok := cmpOps[p.cur().Kind]; ok {
		p.advance()
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		return ast.NewCompare(p.span(start), opName, left, right), nil
	}
	return left, nil
}

func (p *parser) parseAdd() (ast.Expr, error) {
	start := p.cur().Span
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.at(token.Plus) || p.at(token.Minus) {
		op := "+"
		if p.at(token.Minus) {
			op = "-"
		}
		p.advance()
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinary(p.span(start), op, left, right)
	}
	return left, nil
}

func (p *parser) parseMul() (ast.Expr, error) {
	start := p.cur().Span
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(token.Star) || p.at(token.Slash) {
		op := "*"
		if p.at(token.Slash) {
			op = "/"
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinary(p.span(start), op, left, right)
	}
	return left, nil
}

func (p *parser) parseUnary() (ast.Expr, error) {
	start := p.cur().Span
	if p.at(token.Minus) {
		p.advance()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(p.span(start), "-", e), nil
	}
	if p.at(token.KwNot) {
		p.advance()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(p.span(start), "not", e), nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (ast.Expr, error) {
	start := p.cur().Span
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.at(token.Dot) {
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.LParen); err != nil {
			return nil, err
		}
		args, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		e = ast.NewMethodCall(p.span(start), e, name.Text, args)
	}
	return e, nil
}

func (p *parser) parseArgList() ([]ast.Expr, error) {
	var args []ast.Expr
	for !p.at(token.RParen) {
		a, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return args, nil
}

// parseArg parses one macro-call argument, which may be an ordinary
// expression or a Comp(Bool)/Comp(Real)-shaped comprehension.
func (p *parser) parseArg() (ast.Expr, error) {
	start := p.cur().Span
	term, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.at(token.KwFor) {
		return term, nil
	}
	p.advance()
	varName, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KwIn); err != nil {
		return nil, err
	}
	domain, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var where, els ast.Expr
	if p.at(token.KwWhere) {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		where = w
	}
	if p.at(token.KwElse) {
		p.advance()
		el, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		els = el
	}
	return ast.NewComprehension(p.span(start), term, varName.Text, domain.Text, where, els), nil
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.IntLit:
		t := p.advance()
		v, err := parseInt(t.Text)
		if err != nil {
			return nil, p.fail(t.Span, "invalid integer literal %q", t.Text)
		}
		return ast.NewIntLit(p.span(start), v), nil
	case token.RealLit:
		t := p.advance()
		v, err := parseFloat(t.Text)
		if err != nil {
			return nil, p.fail(t.Span, "invalid real literal %q", t.Text)
		}
		return ast.NewRealLit(p.span(start), v), nil
	case token.KwTrue:
		p.advance()
		return ast.NewBoolLit(p.span(start), true), nil
	case token.KwFalse:
		p.advance()
		return ast.NewBoolLit(p.span(start), false), nil
	case token.KwSize:
		p.advance()
		if _, err := p.expect(token.LParen); err != nil {
			return nil, err
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return ast.NewSizeOf(p.span(start), name.Text), nil
	case token.KwIf:
		return p.parseIfExpr()
	case token.KwForall, token.KwExists:
		return p.parseQuantifier()
	case token.KwSum, token.KwCount, token.KwAny, token.KwAll:
		return p.parseAggregate()
	case token.LParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return e, nil
	case token.Ident:
		name := p.advance()
		switch {
		case p.at(token.LBracket):
			p.advance()
			args, err := p.parseIndexArgs()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBracket); err != nil {
				return nil, err
			}
			return ast.NewIndexRead(p.span(start), name.Text, args), nil
		case p.at(token.LParen):
			p.advance()
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			return ast.NewMacroCall(p.span(start), name.Text, args), nil
		default:
			return ast.NewNameRef(p.span(start), name.Text), nil
		}
	}
	return nil, p.fail(p.cur().Span, "expected expression, found %s", p.cur().Kind)
}

func (p *parser) parseIndexArgs() ([]ast.Expr, error) {
	var args []ast.Expr
	for {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	return args, nil
}

func (p *parser) parseIfExpr() (ast.Expr, error) {
	start := p.cur().Span
	p.advance() // if
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KwThen); err != nil {
		return nil, err
	}
	thenE, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KwElse); err != nil {
		return nil, err
	}
	elseE, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return ast.NewIfThenElse(p.span(start), cond, thenE, elseE), nil
}

func (p *parser) parseQuantifier() (ast.Expr, error) {
	start := p.cur().Span
	kind := "forall"
	if p.at(token.KwExists) {
		kind = "exists"
	}
	p.advance()
	varName, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KwIn); err != nil {
		return nil, err
	}
	domain, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Colon); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return ast.NewQuantifier(p.span(start), kind, varName.Text, domain.Text, body), nil
}

// parseAggregate handles sum/count/any/all, which share the comprehension
// shape `agg(expr for x in S [where c] [else f])`, plus count's sugar
// form `count(x in X [where c])` (spec.md §4.2).
func (p *parser) parseAggregate() (ast.Expr, error) {
	start := p.cur().Span
	kind := p.cur().Text
	p.advance()
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}

	term, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	var compTerm ast.Expr
	var compVar, compDomain string
	switch {
	case p.at(token.KwFor):
		p.advance()
		v, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.KwIn); err != nil {
			return nil, err
		}
		d, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		compTerm, compVar, compDomain = term, v.Text, d.Text
	case kind == "count" && p.at(token.KwIn):
		nameRef, ok := term.(*ast.NameRef)
		if !ok {
			return nil, p.fail(term.SpanOf(), "count(x in S) sugar requires a bare loop variable name")
		}
		p.advance()
		d, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		compTerm = ast.NewIntLit(term.SpanOf(), 1)
		compVar, compDomain = nameRef.Name, d.Text
	case p.at(token.RParen):
		// A bare reference with neither `for` nor the count-sugar `in`
		// only type-checks against a Comp(Bool)/Comp(Real) macro formal:
		// `count(b)` inside a predicate/function body, where `b` stands
		// for a comprehension supplied by the caller. Var/DomainSet stay
		// empty as a marker for the elaborator to splice the caller's
		// comprehension in wholesale rather than nest it under this one.
		compTerm = term
	default:
		return nil, p.fail(p.cur().Span, "expected 'for' in %s(...) comprehension", kind)
	}

	var where, els ast.Expr
	if p.at(token.KwWhere) {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		where = w
	}
	if p.at(token.KwElse) {
		p.advance()
		el, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		els = el
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	comp := ast.NewComprehension(p.span(start), compTerm, compVar, compDomain, where, els)
	return ast.NewAggregate(p.span(start), kind, comp), nil
}
