package parser

import (
	"testing"

	"github.com/pothos/zpaqlc/pkg/ast"
	"github.com/pothos/zpaqlc/pkg/lexer"
)

func mustParse(t *testing.T, src string) *ast.Unit {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	u, err := ParseUnit(toks)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return u
}

func TestParseAssign(t *testing.T) {
	u := mustParse(t, "x = 1\n")
	if len(u.Body) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(u.Body))
	}
	a, ok := u.Body[0].(*ast.Assign)
	if !ok {
		t.Fatalf("expected *ast.Assign, got %T", u.Body[0])
	}
	name, ok := a.Target.(*ast.Name)
	if !ok || name.Id != "x" {
		t.Fatalf("expected target name x, got %#v", a.Target)
	}
}

func TestParseIfElif(t *testing.T) {
	src := "if a:\n    x = 1\nelif b:\n    x = 2\nelse:\n    x = 3\n"
	u := mustParse(t, src)
	top, ok := u.Body[0].(*ast.If)
	if !ok {
		t.Fatalf("expected *ast.If, got %T", u.Body[0])
	}
	if len(top.Else) != 1 {
		t.Fatalf("expected elif to attach as single Else statement, got %d", len(top.Else))
	}
	if _, ok := top.Else[0].(*ast.If); !ok {
		t.Fatalf("expected elif chain to be *ast.If, got %T", top.Else[0])
	}
}

func TestParseComparisonChain(t *testing.T) {
	u := mustParse(t, "if 1 < x <= 10:\n    pass\n")
	top := u.Body[0].(*ast.If)
	cmp, ok := top.Test.(*ast.Compare)
	if !ok {
		t.Fatalf("expected *ast.Compare, got %T", top.Test)
	}
	if len(cmp.Ops) != 2 || len(cmp.Comparators) != 2 {
		t.Fatalf("expected 2 chained comparisons, got ops=%v comps=%d", cmp.Ops, len(cmp.Comparators))
	}
}

func TestParseAugAssign(t *testing.T) {
	u := mustParse(t, "x += 1\n")
	aug, ok := u.Body[0].(*ast.AugAssign)
	if !ok {
		t.Fatalf("expected *ast.AugAssign, got %T", u.Body[0])
	}
	if aug.Op.String() != "+" {
		t.Fatalf("expected base op +, got %s", aug.Op)
	}
}

func TestParseFuncDefAndCall(t *testing.T) {
	src := "def f(a, b):\n    return a + b\n\ny = f(1, 2)\n"
	u := mustParse(t, src)
	if len(u.Body) != 2 {
		t.Fatalf("expected 2 top-level statements, got %d", len(u.Body))
	}
	fn, ok := u.Body[0].(*ast.FunctionDef)
	if !ok || fn.Name != "f" || len(fn.Params) != 2 {
		t.Fatalf("unexpected function def: %#v", u.Body[0])
	}
	assign, ok := u.Body[1].(*ast.Assign)
	if !ok {
		t.Fatalf("expected assign, got %T", u.Body[1])
	}
	call, ok := assign.Value.(*ast.Call)
	if !ok || len(call.Args) != 2 {
		t.Fatalf("expected call with 2 args, got %#v", assign.Value)
	}
}

func TestParseSubscriptAssign(t *testing.T) {
	u := mustParse(t, "hH[0] = c\n")
	a, ok := u.Body[0].(*ast.Assign)
	if !ok {
		t.Fatalf("expected *ast.Assign, got %T", u.Body[0])
	}
	if _, ok := a.Target.(*ast.Subscript); !ok {
		t.Fatalf("expected subscript target, got %#v", a.Target)
	}
}

func TestParseDictLiteral(t *testing.T) {
	u := mustParse(t, "n = len({0: \"cm 19 20\", 1: \"mix 16 0 1 24 255\"})\n")
	a := u.Body[0].(*ast.Assign)
	call := a.Value.(*ast.Call)
	d := call.Args[0].(*ast.Dict)
	if len(d.Entries) != 2 {
		t.Fatalf("expected 2 dict entries, got %d", len(d.Entries))
	}
}
