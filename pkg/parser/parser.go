// Package parser implements a predictive recursive-descent parser over the
// filtered token stream produced by pkg/lexer (+ pkg/section), producing one
// pkg/ast.Unit per translation unit. The source language is LL(1), and
// compilers for grammars this shape are usually hand-written as
// recursive-descent front ends rather than generated from an LALR grammar.
package parser

import (
	"fmt"

	"github.com/pothos/zpaqlc/pkg/ast"
	"github.com/pothos/zpaqlc/pkg/token"
)

// Error is a parse error: an unexpected token.
type Error struct {
	Pos token.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: parse error: %s", e.Pos, e.Msg)
}

// Parser parses one token stream into one ast.Unit.
type Parser struct {
	toks []token.Token
	pos  int
}

// New filters layout noise (COMMENT, NL) the grammar never looks at, keeping
// INDENT/DEDENT/NEWLINE which the grammar is driven by.
func New(toks []token.Token) *Parser {
	filtered := make([]token.Token, 0, len(toks))
	for _, t := range toks {
		if t.Kind == token.COMMENT || t.Kind == token.NL {
			continue
		}
		filtered = append(filtered, t)
	}
	return &Parser{toks: filtered}
}

// ParseUnit parses a full translation unit: zero or more top-level
// statements until EOF.
func ParseUnit(toks []token.Token) (*ast.Unit, error) {
	p := New(toks)
	return p.parseUnit()
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peek(n int) token.Token {
	i := p.pos + n
	if i >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[i]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if !p.at(k) {
		return token.Token{}, &Error{Pos: p.cur().Start, Msg: fmt.Sprintf("expected %s, got %s", k, p.cur().Kind)}
	}
	return p.advance(), nil
}

func (p *Parser) skipNewlines() {
	for p.at(token.NEWLINE) {
		p.advance()
	}
}

func (p *Parser) parseUnit() (*ast.Unit, error) {
	u := &ast.Unit{StartPos: p.cur().Start}
	p.skipNewlines()
	for !p.at(token.EOF) {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		u.Body = append(u.Body, s...)
		p.skipNewlines()
	}
	return u, nil
}

// parseStatement returns a slice because simple_stmt lines may hold several
// semicolon-separated statements.
func (p *Parser) parseStatement() ([]ast.Stmt, error) {
	switch p.cur().Kind {
	case token.DEF:
		s, err := p.parseFuncDef()
		return []ast.Stmt{s}, err
	case token.IF:
		s, err := p.parseIf()
		return []ast.Stmt{s}, err
	case token.WHILE:
		s, err := p.parseWhile()
		return []ast.Stmt{s}, err
	default:
		return p.parseSimpleStmtLine()
	}
}

func (p *Parser) parseSimpleStmtLine() ([]ast.Stmt, error) {
	var out []ast.Stmt
	for {
		s, err := p.parseSmallStmt()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		if p.at(token.SEMI) {
			p.advance()
			if p.at(token.NEWLINE) || p.at(token.EOF) {
				break
			}
			continue
		}
		break
	}
	if p.at(token.NEWLINE) {
		p.advance()
	} else if !p.at(token.EOF) {
		return nil, &Error{Pos: p.cur().Start, Msg: fmt.Sprintf("expected NEWLINE, got %s", p.cur().Kind)}
	}
	return out, nil
}

func (p *Parser) parseSmallStmt() (ast.Stmt, error) {
	start := p.cur().Start
	switch p.cur().Kind {
	case token.PASS:
		p.advance()
		return &ast.Pass{StartPos: start}, nil
	case token.BREAK:
		p.advance()
		return &ast.Break{StartPos: start}, nil
	case token.CONTINUE:
		p.advance()
		return &ast.Continue{StartPos: start}, nil
	case token.RETURN:
		p.advance()
		if p.at(token.NEWLINE) || p.at(token.SEMI) || p.at(token.EOF) {
			return &ast.Return{StartPos: start}, nil
		}
		v, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		return &ast.Return{Value: v, StartPos: start}, nil
	case token.GLOBAL:
		p.advance()
		names, err := p.parseNameList()
		if err != nil {
			return nil, err
		}
		return &ast.Global{Names: names, StartPos: start}, nil
	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *Parser) parseNameList() ([]string, error) {
	var names []string
	tok, err := p.expect(token.NAME)
	if err != nil {
		return nil, err
	}
	names = append(names, tok.Value)
	for p.at(token.COMMA) {
		p.advance()
		tok, err := p.expect(token.NAME)
		if err != nil {
			return nil, err
		}
		names = append(names, tok.Value)
	}
	return names, nil
}

var augOps = map[token.Kind]bool{
	token.PLUSEQ: true, token.MINUSEQ: true, token.STAREQ: true,
	token.SLASHEQ: true, token.DSLASHEQ: true, token.PERCENTEQ: true,
	token.AMPEREQ: true, token.VBAREQ: true, token.CIRCUMFLEXEQ: true,
	token.LSHIFTEQ: true, token.RSHIFTEQ: true, token.DOUBLESTAREQ: true,
}

var augBase = map[token.Kind]token.Kind{
	token.PLUSEQ: token.PLUS, token.MINUSEQ: token.MINUS, token.STAREQ: token.STAR,
	token.SLASHEQ: token.SLASH, token.DSLASHEQ: token.DSLASH, token.PERCENTEQ: token.PERCENT,
	token.AMPEREQ: token.AMPER, token.VBAREQ: token.VBAR, token.CIRCUMFLEXEQ: token.CIRCUMFLEX,
	token.LSHIFTEQ: token.LSHIFT, token.RSHIFTEQ: token.RSHIFT, token.DOUBLESTAREQ: token.DOUBLESTAR,
}

func (p *Parser) parseExprOrAssignStmt() (ast.Stmt, error) {
	start := p.cur().Start
	lhs, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	switch {
	case p.at(token.EQUAL):
		p.advance()
		rhs, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		target := toStoreCtx(lhs)
		return &ast.Assign{Target: target, Value: rhs, StartPos: start}, nil
	case augOps[p.cur().Kind]:
		op := augBase[p.cur().Kind]
		p.advance()
		rhs, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		target := toStoreCtx(lhs)
		return &ast.AugAssign{Target: target, Op: op, Value: rhs, StartPos: start}, nil
	default:
		return &ast.ExprStmt{X: lhs, StartPos: start}, nil
	}
}

// toStoreCtx rewrites a parsed Name/Subscript expression's context to Store
// in place, for use as an assignment target.
func toStoreCtx(e ast.Expr) ast.Expr {
	switch v := e.(type) {
	case *ast.Name:
		v.Ctx = ast.Store
		return v
	case *ast.Subscript:
		v.Ctx = ast.Store
		return v
	default:
		return e
	}
}

func (p *Parser) parseFuncDef() (ast.Stmt, error) {
	start := p.cur().Start
	p.advance() // def
	name, err := p.expect(token.NAME)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAR); err != nil {
		return nil, err
	}
	var params []string
	for !p.at(token.RPAR) {
		tok, err := p.expect(token.NAME)
		if err != nil {
			return nil, err
		}
		params = append(params, tok.Value)
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RPAR); err != nil {
		return nil, err
	}
	var returns ast.Expr
	if p.at(token.ARROW) {
		p.advance()
		returns, err = p.parseTest()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDef{Name: name.Value, Params: params, Returns: returns, Body: body, StartPos: start}, nil
}

func (p *Parser) parseSuite() ([]ast.Stmt, error) {
	if p.at(token.NEWLINE) {
		p.advance()
		if _, err := p.expect(token.INDENT); err != nil {
			return nil, err
		}
		var body []ast.Stmt
		for !p.at(token.DEDENT) && !p.at(token.EOF) {
			s, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			body = append(body, s...)
		}
		if _, err := p.expect(token.DEDENT); err != nil {
			return nil, err
		}
		return body, nil
	}
	return p.parseSimpleStmtLine()
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	start := p.cur().Start
	p.advance() // if
	test, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	node := &ast.If{Test: test, Body: body, StartPos: start}
	if p.at(token.ELIF) {
		elifStart := p.cur().Start
		p.advance()
		elifTest, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		elifBody, err := p.parseSuite()
		if err != nil {
			return nil, err
		}
		rest := &ast.If{Test: elifTest, Body: elifBody, StartPos: elifStart}
		node.Else = []ast.Stmt{rest}
		if err := p.parseElifChainTail(rest); err != nil {
			return nil, err
		}
		return node, nil
	}
	if p.at(token.ELSE) {
		p.advance()
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		elseBody, err := p.parseSuite()
		if err != nil {
			return nil, err
		}
		node.Else = elseBody
	}
	return node, nil
}

// parseElifChainTail recursively attaches further elif/else clauses onto an
// If node that is itself acting as the Else branch of its parent.
func (p *Parser) parseElifChainTail(node *ast.If) error {
	if p.at(token.ELIF) {
		start := p.cur().Start
		p.advance()
		test, err := p.parseTest()
		if err != nil {
			return err
		}
		if _, err := p.expect(token.COLON); err != nil {
			return err
		}
		body, err := p.parseSuite()
		if err != nil {
			return err
		}
		rest := &ast.If{Test: test, Body: body, StartPos: start}
		node.Else = []ast.Stmt{rest}
		return p.parseElifChainTail(rest)
	}
	if p.at(token.ELSE) {
		p.advance()
		if _, err := p.expect(token.COLON); err != nil {
			return err
		}
		body, err := p.parseSuite()
		if err != nil {
			return err
		}
		node.Else = body
	}
	return nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	start := p.cur().Start
	p.advance() // while
	test, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	node := &ast.While{Test: test, Body: body, StartPos: start}
	if p.at(token.ELSE) {
		p.advance()
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		elseBody, err := p.parseSuite()
		if err != nil {
			return nil, err
		}
		node.Else = elseBody
	}
	return node, nil
}
