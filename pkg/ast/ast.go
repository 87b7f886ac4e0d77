// Package ast defines the syntax tree produced by pkg/parser for one
// translation unit (hcomp or pcomp).
package ast

import "github.com/pothos/zpaqlc/pkg/token"

// Node is the base interface implemented by every AST node.
type Node interface {
	Pos() token.Position
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Unit is a whole translation unit: a flat list of top-level statements.
type Unit struct {
	Body     []Stmt
	StartPos token.Position
}

func (u *Unit) Pos() token.Position { return u.StartPos }

// ---- Statements ----

type FunctionDef struct {
	Name       string
	Params     []string
	Returns    Expr // optional return-type annotation, nil if absent
	Body       []Stmt
	StartPos   token.Position
}

func (f *FunctionDef) Pos() token.Position { return f.StartPos }
func (*FunctionDef) stmtNode()             {}

// Assign covers both `name = expr` and `name[index] = expr` (a single
// subscript target is the only supported assignment-to-subscript form).
type Assign struct {
	Target   Expr // *Name or *Subscript
	Value    Expr
	StartPos token.Position
}

func (a *Assign) Pos() token.Position { return a.StartPos }
func (*Assign) stmtNode()             {}

// AugAssign is `target OP= value`.
type AugAssign struct {
	Target   Expr
	Op       token.Kind // PLUS, MINUS, STAR, ...
	Value    Expr
	StartPos token.Position
}

func (a *AugAssign) Pos() token.Position { return a.StartPos }
func (*AugAssign) stmtNode()             {}

type While struct {
	Test     Expr
	Body     []Stmt
	Else     []Stmt
	StartPos token.Position
}

func (w *While) Pos() token.Position { return w.StartPos }
func (*While) stmtNode()             {}

type If struct {
	Test     Expr
	Body     []Stmt
	Else     []Stmt
	StartPos token.Position
}

func (i *If) Pos() token.Position { return i.StartPos }
func (*If) stmtNode()             {}

type Return struct {
	Value    Expr // nil if bare `return`
	StartPos token.Position
}

func (r *Return) Pos() token.Position { return r.StartPos }
func (*Return) stmtNode()             {}

type Global struct {
	Names    []string
	StartPos token.Position
}

func (g *Global) Pos() token.Position { return g.StartPos }
func (*Global) stmtNode()             {}

type Pass struct{ StartPos token.Position }

func (p *Pass) Pos() token.Position { return p.StartPos }
func (*Pass) stmtNode()             {}

type Break struct{ StartPos token.Position }

func (b *Break) Pos() token.Position { return b.StartPos }
func (*Break) stmtNode()             {}

type Continue struct{ StartPos token.Position }

func (c *Continue) Pos() token.Position { return c.StartPos }
func (*Continue) stmtNode()             {}

type ExprStmt struct {
	X        Expr
	StartPos token.Position
}

func (e *ExprStmt) Pos() token.Position { return e.StartPos }
func (*ExprStmt) stmtNode()             {}

// ---- Expressions ----

type Num struct {
	Value    uint32
	StartPos token.Position
}

func (n *Num) Pos() token.Position { return n.StartPos }
func (*Num) exprNode()             {}

// NameConstant is True / False / None.
type NameConstant struct {
	Value    string // "True", "False", "None"
	StartPos token.Position
}

func (n *NameConstant) Pos() token.Position { return n.StartPos }
func (*NameConstant) exprNode()             {}

type Str struct {
	Value    string
	StartPos token.Position
}

func (s *Str) Pos() token.Position { return s.StartPos }
func (*Str) exprNode()             {}

type EllipsisExpr struct{ StartPos token.Position }

func (e *EllipsisExpr) Pos() token.Position { return e.StartPos }
func (*EllipsisExpr) exprNode()             {}

type ExprContext int

const (
	Load ExprContext = iota
	Store
)

type Name struct {
	Id       string
	Ctx      ExprContext
	StartPos token.Position
}

func (n *Name) Pos() token.Position { return n.StartPos }
func (*Name) exprNode()             {}

type UnaryOp struct {
	Op       token.Kind // NOT, MINUS, TILDE
	X        Expr
	StartPos token.Position
}

func (u *UnaryOp) Pos() token.Position { return u.StartPos }
func (*UnaryOp) exprNode()             {}

type BinOp struct {
	Op       token.Kind
	Left     Expr
	Right    Expr
	StartPos token.Position
}

func (b *BinOp) Pos() token.Position { return b.StartPos }
func (*BinOp) exprNode()             {}

// BoolOp is `and` / `or` with short-circuit, value-returning semantics.
type BoolOp struct {
	Op       token.Kind // AND or OR
	Values   []Expr
	StartPos token.Position
}

func (b *BoolOp) Pos() token.Position { return b.StartPos }
func (*BoolOp) exprNode()             {}

// Compare is a chained comparison `a OP0 b OP1 c ...`, flattened into an
// ordered operand list and an ordered operator list (len(Ops) ==
// len(Comparators), len(Comparators) == len(values)-1).
type Compare struct {
	Left        Expr
	Ops         []token.Kind
	Comparators []Expr
	StartPos    token.Position
}

func (c *Compare) Pos() token.Position { return c.StartPos }
func (*Compare) exprNode()             {}

type Call struct {
	Func     Expr
	Args     []Expr
	StartPos token.Position
}

func (c *Call) Pos() token.Position { return c.StartPos }
func (*Call) exprNode()             {}

// Subscript is `value[index]`: the only supported single-index form.
type Subscript struct {
	Value    Expr
	Index    Expr
	Ctx      ExprContext
	StartPos token.Position
}

func (s *Subscript) Pos() token.Position { return s.StartPos }
func (*Subscript) exprNode()             {}

// DictEntry is one `key: value` pair of a dict literal.
type DictEntry struct {
	Key   Expr
	Value Expr
}

type Dict struct {
	Entries  []DictEntry
	StartPos token.Position
}

func (d *Dict) Pos() token.Position { return d.StartPos }
func (*Dict) exprNode()             {}

type List struct {
	Elts     []Expr
	StartPos token.Position
}

func (l *List) Pos() token.Position { return l.StartPos }
func (*List) exprNode()             {}

type Tuple struct {
	Elts     []Expr
	StartPos token.Position
}

func (t *Tuple) Pos() token.Position { return t.StartPos }
func (*Tuple) exprNode()             {}

// Attribute is `value.attr`, parsed so it can be rejected with a precise
// semantic error: attribute access is unsupported.
type Attribute struct {
	Value    Expr
	Attr     string
	StartPos token.Position
}

func (a *Attribute) Pos() token.Position { return a.StartPos }
func (*Attribute) exprNode()             {}
