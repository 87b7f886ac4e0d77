package irgen

import (
	"github.com/pothos/zpaqlc/pkg/ast"
	"github.com/pothos/zpaqlc/pkg/ir"
	"github.com/pothos/zpaqlc/pkg/token"
)

// genExpr lowers an expression, returning the operand holding its value and
// the compile-time array-kind tag it carries forward (KindUnknown for
// ordinary u32 values).
func (g *Generator) genExpr(e ast.Expr) (ir.Operand, ir.ArrayKind, error) {
	switch v := e.(type) {
	case *ast.Num:
		return ir.ImmOp(v.Value), ir.KindUnknown, nil
	case *ast.NameConstant:
		switch v.Value {
		case "True":
			return ir.ImmOp(1), ir.KindUnknown, nil
		case "False", "None":
			return ir.ImmOp(0), ir.KindUnknown, nil
		}
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "unsupported name constant " + v.Value}
	case *ast.Str:
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "strings are not runtime values in this dialect"}
	case *ast.EllipsisExpr:
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "'...' is not a valid expression here"}
	case *ast.Name:
		return g.genNameLoad(v)
	case *ast.UnaryOp:
		return g.genUnary(v)
	case *ast.BinOp:
		return g.genBinOp(v)
	case *ast.BoolOp:
		return g.genBoolOp(v)
	case *ast.Compare:
		return g.genCompare(v)
	case *ast.Call:
		return g.genCall(v)
	case *ast.Subscript:
		op, err := g.genSubscriptLoadTemp(v)
		return op, ir.KindUnknown, err
	case *ast.Dict, *ast.List, *ast.Tuple:
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "list/dict/tuple literals are only meaningful in the pcomp header position"}
	case *ast.Attribute:
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "attribute access is not supported"}
	default:
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "unsupported expression"}
	}
}

// genExprDiscard evaluates e for its side effects only (an expression
// statement); any temporary it produced is released immediately since
// guarantees no temporary survives a statement boundary.
func (g *Generator) genExprDiscard(e ast.Expr) (ir.Operand, error) {
	op, _, err := g.genExpr(e)
	if err != nil {
		return ir.Operand{}, err
	}
	if op.Kind == ir.Reg && op.Slot >= 1 && op.Slot <= 251 {
		g.sym.ReleaseTemp(op.Slot)
	}
	return op, nil
}

func (g *Generator) genNameLoad(n *ast.Name) (ir.Operand, ir.ArrayKind, error) {
	if isArrayName(n.Id) {
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "array '" + n.Id + "' must be subscripted or passed to len()"}
	}
	if op, ok := g.sym.Lookup(n.Id); ok {
		kind := g.arrayKind[n.Id]
		if g.globalNames[n.Id] {
			if g.opts.FixedGlobalAccess {
				if abs, ok := g.globalAbs(op); ok {
					return abs, kind, nil
				}
			}
			return ir.StackOp(ir.BaseGlobal, op.Off), kind, nil
		}
		return op, kind, nil
	}
	return ir.Operand{}, ir.KindUnknown, &Error{Msg: "unknown identifier '" + n.Id + "'"}
}

func isArrayName(id string) bool {
	switch id {
	case "hH", "hM", "pH", "pM":
		return true
	}
	return false
}

func (g *Generator) genUnary(u *ast.UnaryOp) (ir.Operand, ir.ArrayKind, error) {
	x, _, err := g.genExpr(u.X)
	if err != nil {
		return ir.Operand{}, ir.KindUnknown, err
	}
	var op ir.UnOp
	switch u.Op {
	case token.NOT:
		op = ir.UnNot
	case token.TILDE:
		op = ir.UnInv
	case token.MINUS:
		op = ir.UnNeg
	default:
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "unsupported unary operator " + u.Op.String()}
	}
	dst := g.sym.MakeTemp()
	g.unit.Emit(ir.Instr{Op: ir.OpUnary, Dst: ir.RegOp(dst), A: x, UnOp: op})
	if x.Kind == ir.Reg && x.Slot >= 1 && x.Slot <= 251 {
		g.sym.ReleaseTemp(x.Slot)
	}
	return ir.RegOp(dst), ir.KindUnknown, nil
}

func (g *Generator) genBinOp(b *ast.BinOp) (ir.Operand, ir.ArrayKind, error) {
	left, leftKind, err := g.genExpr(b.Left)
	if err != nil {
		return ir.Operand{}, ir.KindUnknown, err
	}
	right, _, err := g.genExpr(b.Right)
	if err != nil {
		return ir.Operand{}, ir.KindUnknown, err
	}
	binOp, err := binOpFromToken(b.Op)
	if err != nil {
		return ir.Operand{}, ir.KindUnknown, err
	}
	dst := g.sym.MakeTemp()
	g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(dst), A: left, B: right, BinOp: binOp})
	releaseIfTemp(g, left)
	releaseIfTemp(g, right)
	// array_hH(p)+0 style casts are rare; kind only propagates through bare
	// identity-like operations such as `p + 0` is not specially modeled —
	// arithmetic on a tagged pointer yields an untagged value, matching the
	// original's single pointer-integer representation.
	_ = leftKind
	return ir.RegOp(dst), ir.KindUnknown, nil
}

func releaseIfTemp(g *Generator, op ir.Operand) {
	if op.Kind == ir.Reg && op.Slot >= 1 && op.Slot <= 251 {
		g.sym.ReleaseTemp(op.Slot)
	}
}

// genBoolOp lowers `and`/`or` chains to tests and branches: the result temp
// takes each operand in turn, and a branch to the end label (on nonzero for
// `or`, on zero for `and`) skips the remaining operands, so the chosen
// operand's value becomes the expression's result. The IR's
// BinLogicalAnd/BinLogicalOr operators are not used here.
func (g *Generator) genBoolOp(b *ast.BoolOp) (ir.Operand, ir.ArrayKind, error) {
	end := g.sym.NewLabel("bool_end")
	result := g.sym.MakeTemp()

	first, _, err := g.genExpr(b.Values[0])
	if err != nil {
		return ir.Operand{}, ir.KindUnknown, err
	}
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(result), A: first})
	releaseIfTemp(g, first)

	for _, v := range b.Values[1:] {
		switch b.Op {
		case token.OR:
			g.unit.Emit(ir.Instr{Op: ir.OpBranchNZero, A: ir.RegOp(result), Label: end})
		case token.AND:
			g.unit.Emit(ir.Instr{Op: ir.OpBranchZero, A: ir.RegOp(result), Label: end})
		default:
			return ir.Operand{}, ir.KindUnknown, &Error{Msg: "unsupported boolean operator"}
		}
		next, _, err := g.genExpr(v)
		if err != nil {
			return ir.Operand{}, ir.KindUnknown, err
		}
		g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(result), A: next})
		releaseIfTemp(g, next)
	}
	g.unit.Emit(ir.Label(end))
	return ir.RegOp(result), ir.KindUnknown, nil
}

// genCompare lowers a chained comparison `a OP0 b OP1 c ...` into a single
// destination updated by each link, with an early-exit label on the first
// failing link.
func (g *Generator) genCompare(c *ast.Compare) (ir.Operand, ir.ArrayKind, error) {
	result := g.sym.MakeTemp()
	fail := g.sym.NewLabel("cmp_fail")
	done := g.sym.NewLabel("cmp_done")

	cur, _, err := g.genExpr(c.Left)
	if err != nil {
		return ir.Operand{}, ir.KindUnknown, err
	}
	for i, opKind := range c.Ops {
		rhs, _, err := g.genExpr(c.Comparators[i])
		if err != nil {
			return ir.Operand{}, ir.KindUnknown, err
		}
		binOp, err := compareBinOp(opKind)
		if err != nil {
			return ir.Operand{}, ir.KindUnknown, err
		}
		cond := g.sym.MakeTemp()
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(cond), A: cur, B: rhs, BinOp: binOp})
		g.unit.Emit(ir.Instr{Op: ir.OpBranchZero, A: ir.RegOp(cond), Label: fail})
		g.sym.ReleaseTemp(cond)
		releaseIfTemp(g, cur)
		cur = rhs
	}
	releaseIfTemp(g, cur)
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(result), A: ir.ImmOp(1)})
	g.unit.Emit(ir.Goto(done))
	g.unit.Emit(ir.Label(fail))
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(result), A: ir.ImmOp(0)})
	g.unit.Emit(ir.Label(done))
	return ir.RegOp(result), ir.KindUnknown, nil
}

func compareBinOp(k token.Kind) (ir.BinOp, error) {
	switch k {
	case token.LT:
		return ir.BinLt, nil
	case token.GT:
		return ir.BinGt, nil
	case token.LE:
		return ir.BinLe, nil
	case token.GE:
		return ir.BinGe, nil
	case token.EQEQUAL:
		return ir.BinEq, nil
	case token.NOTEQUAL:
		return ir.BinNe, nil
	default:
		return 0, &Error{Msg: "unsupported comparison operator '" + k.String() + "' (in/is/not are unsupported)"}
	}
}
