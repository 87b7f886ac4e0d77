package parser

import (
	"strconv"
	"strings"

	"github.com/pothos/zpaqlc/pkg/ast"
	"github.com/pothos/zpaqlc/pkg/token"
)

// parseTest is the expression entry point (`test` in the grammar): the
// widest expression form, boolean-or precedence downward.
func (p *Parser) parseTest() (ast.Expr, error) {
	return p.parseOrTest()
}

func (p *Parser) parseOrTest() (ast.Expr, error) {
	start := p.cur().Start
	first, err := p.parseAndTest()
	if err != nil {
		return nil, err
	}
	if !p.at(token.OR) {
		return first, nil
	}
	values := []ast.Expr{first}
	for p.at(token.OR) {
		p.advance()
		next, err := p.parseAndTest()
		if err != nil {
			return nil, err
		}
		values = append(values, next)
	}
	return &ast.BoolOp{Op: token.OR, Values: values, StartPos: start}, nil
}

func (p *Parser) parseAndTest() (ast.Expr, error) {
	start := p.cur().Start
	first, err := p.parseNotTest()
	if err != nil {
		return nil, err
	}
	if !p.at(token.AND) {
		return first, nil
	}
	values := []ast.Expr{first}
	for p.at(token.AND) {
		p.advance()
		next, err := p.parseNotTest()
		if err != nil {
			return nil, err
		}
		values = append(values, next)
	}
	return &ast.BoolOp{Op: token.AND, Values: values, StartPos: start}, nil
}

func (p *Parser) parseNotTest() (ast.Expr, error) {
	if p.at(token.NOT) {
		start := p.cur().Start
		p.advance()
		x, err := p.parseNotTest()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: token.NOT, X: x, StartPos: start}, nil
	}
	return p.parseComparison()
}

var compareOps = map[token.Kind]bool{
	token.LT: true, token.GT: true, token.LE: true, token.GE: true,
	token.EQEQUAL: true, token.NOTEQUAL: true,
	token.IN: true, token.IS: true, token.NOT: true,
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	start := p.cur().Start
	first, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	var ops []token.Kind
	var comparators []ast.Expr
	for compareOps[p.cur().Kind] {
		op := p.cur().Kind
		if op == token.NOT {
			// `not in`
			p.advance()
			if !p.at(token.IN) {
				return nil, &Error{Pos: p.cur().Start, Msg: "expected 'in' after 'not' in comparison"}
			}
			op = token.NOT // caller resolves NOT+IN as "not in" via lookahead already consumed
			p.advance()
		} else if op == token.IN || op == token.IS {
			p.advance()
			if op == token.IS && p.at(token.NOT) {
				p.advance()
			}
		} else {
			p.advance()
		}
		next, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		comparators = append(comparators, next)
	}
	if len(ops) == 0 {
		return first, nil
	}
	return &ast.Compare{Left: first, Ops: ops, Comparators: comparators, StartPos: start}, nil
}

func (p *Parser) parseBitOr() (ast.Expr, error) {
	left, err := p.parseBitXor()
	if err != nil {
		return nil, err
	}
	for p.at(token.VBAR) {
		start := p.cur().Start
		p.advance()
		right, err := p.parseBitXor()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: token.VBAR, Left: left, Right: right, StartPos: start}
	}
	return left, nil
}

func (p *Parser) parseBitXor() (ast.Expr, error) {
	left, err := p.parseBitAnd()
	if err != nil {
		return nil, err
	}
	for p.at(token.CIRCUMFLEX) {
		start := p.cur().Start
		p.advance()
		right, err := p.parseBitAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: token.CIRCUMFLEX, Left: left, Right: right, StartPos: start}
	}
	return left, nil
}

func (p *Parser) parseBitAnd() (ast.Expr, error) {
	left, err := p.parseShift()
	if err != nil {
		return nil, err
	}
	for p.at(token.AMPER) {
		start := p.cur().Start
		p.advance()
		right, err := p.parseShift()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: token.AMPER, Left: left, Right: right, StartPos: start}
	}
	return left, nil
}

func (p *Parser) parseShift() (ast.Expr, error) {
	left, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	for p.at(token.LSHIFT) || p.at(token.RSHIFT) {
		op := p.cur().Kind
		start := p.cur().Start
		p.advance()
		right, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: op, Left: left, Right: right, StartPos: start}
	}
	return left, nil
}

func (p *Parser) parseArith() (ast.Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.at(token.PLUS) || p.at(token.MINUS) {
		op := p.cur().Kind
		start := p.cur().Start
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: op, Left: left, Right: right, StartPos: start}
	}
	return left, nil
}

func (p *Parser) parseTerm() (ast.Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.at(token.STAR) || p.at(token.SLASH) || p.at(token.DSLASH) || p.at(token.PERCENT) {
		op := p.cur().Kind
		start := p.cur().Start
		p.advance()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: op, Left: left, Right: right, StartPos: start}
	}
	return left, nil
}

func (p *Parser) parseFactor() (ast.Expr, error) {
	switch p.cur().Kind {
	case token.PLUS, token.MINUS, token.TILDE:
		op := p.cur().Kind
		start := p.cur().Start
		p.advance()
		x, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		if op == token.PLUS {
			return x, nil // unary plus is a no-op
		}
		return &ast.UnaryOp{Op: op, X: x, StartPos: start}, nil
	default:
		return p.parsePower()
	}
}

func (p *Parser) parsePower() (ast.Expr, error) {
	base, err := p.parseAtomTrailer()
	if err != nil {
		return nil, err
	}
	if p.at(token.DOUBLESTAR) {
		start := p.cur().Start
		p.advance()
		exp, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &ast.BinOp{Op: token.DOUBLESTAR, Left: base, Right: exp, StartPos: start}, nil
	}
	return base, nil
}

func (p *Parser) parseAtomTrailer() (ast.Expr, error) {
	atom, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Kind {
		case token.LPAR:
			start := p.cur().Start
			p.advance()
			var args []ast.Expr
			for !p.at(token.RPAR) {
				a, err := p.parseTest()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.at(token.COMMA) {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(token.RPAR); err != nil {
				return nil, err
			}
			atom = &ast.Call{Func: atom, Args: args, StartPos: start}
		case token.LSQB:
			start := p.cur().Start
			p.advance()
			idx, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RSQB); err != nil {
				return nil, err
			}
			atom = &ast.Subscript{Value: atom, Index: idx, StartPos: start}
		case token.DOT:
			start := p.cur().Start
			p.advance()
			name, err := p.expect(token.NAME)
			if err != nil {
				return nil, err
			}
			atom = &ast.Attribute{Value: atom, Attr: name.Value, StartPos: start}
		default:
			return atom, nil
		}
	}
}

func (p *Parser) parseAtom() (ast.Expr, error) {
	t := p.cur()
	switch t.Kind {
	case token.NAME:
		p.advance()
		return &ast.Name{Id: t.Value, Ctx: ast.Load, StartPos: t.Start}, nil
	case token.NUMBER:
		p.advance()
		v, err := parseNumberLiteral(t.Value)
		if err != nil {
			return nil, &Error{Pos: t.Start, Msg: err.Error()}
		}
		return &ast.Num{Value: v, StartPos: t.Start}, nil
	case token.STRING:
		p.advance()
		return &ast.Str{Value: t.Value, StartPos: t.Start}, nil
	case token.TRUE, token.FALSE, token.NONE:
		p.advance()
		return &ast.NameConstant{Value: t.Kind.String(), StartPos: t.Start}, nil
	case token.ELLIPSIS:
		p.advance()
		return &ast.EllipsisExpr{StartPos: t.Start}, nil
	case token.LPAR:
		p.advance()
		if p.at(token.RPAR) {
			p.advance()
			return &ast.Tuple{StartPos: t.Start}, nil
		}
		x, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		if p.at(token.COMMA) {
			elts := []ast.Expr{x}
			for p.at(token.COMMA) {
				p.advance()
				if p.at(token.RPAR) {
					break
				}
				next, err := p.parseTest()
				if err != nil {
					return nil, err
				}
				elts = append(elts, next)
			}
			if _, err := p.expect(token.RPAR); err != nil {
				return nil, err
			}
			return &ast.Tuple{Elts: elts, StartPos: t.Start}, nil
		}
		if _, err := p.expect(token.RPAR); err != nil {
			return nil, err
		}
		return x, nil
	case token.LSQB:
		p.advance()
		var elts []ast.Expr
		for !p.at(token.RSQB) {
			e, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			elts = append(elts, e)
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(token.RSQB); err != nil {
			return nil, err
		}
		return &ast.List{Elts: elts, StartPos: t.Start}, nil
	case token.LBRACE:
		p.advance()
		var entries []ast.DictEntry
		for !p.at(token.RBRACE) {
			k, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.COLON); err != nil {
				return nil, err
			}
			v, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			entries = append(entries, ast.DictEntry{Key: k, Value: v})
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(token.RBRACE); err != nil {
			return nil, err
		}
		return &ast.Dict{Entries: entries, StartPos: t.Start}, nil
	default:
		return nil, &Error{Pos: t.Start, Msg: "expected an expression, got " + t.Kind.String()}
	}
}

// parseNumberLiteral decodes a Python 3.5 integer literal (decimal or
// 0x-hex) into a 32-bit unsigned value
func parseNumberLiteral(text string) (uint32, error) {
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		v, err := strconv.ParseUint(text[2:], 16, 64)
		if err != nil {
			return 0, err
		}
		return uint32(v), nil
	}
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
