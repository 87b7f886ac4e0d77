package irgen

import (
	"github.com/pothos/zpaqlc/pkg/ast"
	"github.com/pothos/zpaqlc/pkg/ir"
)

func (g *Generator) genStmt(s ast.Stmt) error {
	switch v := s.(type) {
	case *ast.Pass:
		return nil
	case *ast.ExprStmt:
		_, err := g.genExprDiscard(v.X)
		return err
	case *ast.Assign:
		return g.genAssign(v)
	case *ast.AugAssign:
		return g.genAugAssign(v)
	case *ast.Global:
		for _, n := range v.Names {
			g.globalNames[n] = true
		}
		return nil
	case *ast.If:
		return g.genIf(v)
	case *ast.While:
		return g.genWhile(v)
	case *ast.Return:
		return g.genReturn(v)
	case *ast.Break:
		if g.loopDepth == 0 {
			return &Error{Msg: "'break' outside a loop"}
		}
		g.unit.Emit(ir.Goto(g.breakLabels[len(g.breakLabels)-1]))
		return nil
	case *ast.Continue:
		if g.loopDepth == 0 {
			return &Error{Msg: "'continue' outside a loop"}
		}
		g.unit.Emit(ir.Goto(g.contLabels[len(g.contLabels)-1]))
		return nil
	case *ast.FunctionDef:
		// Nested function definitions are not part of the supported
		// subset: closures aren't supported, and every function this
		// compiler knows about is registered up front by Generate's first
		// pass.
		return &Error{Msg: "nested function definitions are not supported"}
	default:
		return &Error{Msg: "unsupported statement"}
	}
}

func (g *Generator) genBlock(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := g.genStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) genAssign(a *ast.Assign) error {
	switch target := a.Target.(type) {
	case *ast.Name:
		val, kind, err := g.genExpr(a.Value)
		if err != nil {
			return err
		}
		dst, err := g.resolveOrDefine(target.Id, kind)
		if err != nil {
			return err
		}
		g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: dst, A: val})
		return nil
	case *ast.Subscript:
		return g.genSubscriptStore(target, a.Value)
	default:
		return &Error{Msg: "assignment target must be a name or a single subscript"}
	}
}

func (g *Generator) genAugAssign(a *ast.AugAssign) error {
	switch target := a.Target.(type) {
	case *ast.Name:
		cur, kind, err := g.genExpr(target)
		if err != nil {
			return err
		}
		rhs, _, err := g.genExpr(a.Value)
		if err != nil {
			return err
		}
		binOp, err := binOpFromToken(a.Op)
		if err != nil {
			return err
		}
		result := g.sym.MakeTemp()
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(result), A: cur, B: rhs, BinOp: binOp})
		dst, err := g.resolveOrDefine(target.Id, kind)
		if err != nil {
			return err
		}
		g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: dst, A: ir.RegOp(result)})
		g.sym.ReleaseTemp(result)
		return nil
	case *ast.Subscript:
		// Desugar `a[i] OP= v` into a load, compute, store.
		cur, err := g.genSubscriptLoadTemp(target)
		if err != nil {
			return err
		}
		rhs, _, err := g.genExpr(a.Value)
		if err != nil {
			return err
		}
		binOp, err := binOpFromToken(a.Op)
		if err != nil {
			return err
		}
		result := g.sym.MakeTemp()
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(result), A: cur, B: rhs, BinOp: binOp})
		err = g.genSubscriptStoreOperand(target, ir.RegOp(result))
		g.sym.ReleaseTemp(result)
		return err
	default:
		return &Error{Msg: "augmented-assignment target must be a name or a single subscript"}
	}
}

func (g *Generator) genIf(n *ast.If) error {
	elseLabel := g.sym.NewLabel("if_else")
	endLabel := g.sym.NewLabel("if_end")
	test, _, err := g.genExpr(n.Test)
	if err != nil {
		return err
	}
	target := elseLabel
	if len(n.Else) == 0 {
		target = endLabel
	}
	g.unit.Emit(ir.Instr{Op: ir.OpBranchZero, A: test, Label: target})
	if err := g.genBlock(n.Body); err != nil {
		return err
	}
	if len(n.Else) > 0 {
		g.unit.Emit(ir.Goto(endLabel))
		g.unit.Emit(ir.Label(elseLabel))
		if err := g.genBlock(n.Else); err != nil {
			return err
		}
	}
	g.unit.Emit(ir.Label(endLabel))
	return nil
}

func (g *Generator) genWhile(n *ast.While) error {
	top := g.sym.NewLabel("while_top")
	body := g.sym.NewLabel("while_body")
	elseLabel := g.sym.NewLabel("while_else")
	end := g.sym.NewLabel("while_end")

	afterTest := elseLabel
	if len(n.Else) == 0 {
		afterTest = end
	}

	g.unit.Emit(ir.Label(top))
	test, _, err := g.genExpr(n.Test)
	if err != nil {
		return err
	}
	g.unit.Emit(ir.Instr{Op: ir.OpBranchZero, A: test, Label: afterTest})
	g.unit.Emit(ir.Label(body))

	g.pushLoop(end, top)
	err = g.genBlock(n.Body)
	g.popLoop()
	if err != nil {
		return err
	}
	g.unit.Emit(ir.Goto(top))
	if len(n.Else) > 0 {
		g.unit.Emit(ir.Label(elseLabel))
		if err := g.genBlock(n.Else); err != nil {
			return err
		}
	}
	g.unit.Emit(ir.Label(end))
	return nil
}

// genReturn emits the callee epilogue in full: store the return value,
// recover the call site's return id from this frame's reserved slot 1,
// restore the caller's base pointer from slot 0, then jump to the shared
// trampoline that routes back to that call site.
func (g *Generator) genReturn(r *ast.Return) error {
	if !g.sym.InFunction() {
		return &Error{Msg: "'return' outside a function"}
	}
	var val ir.Operand = ir.ImmOp(0)
	if r.Value != nil {
		v, _, err := g.genExpr(r.Value)
		if err != nil {
			return err
		}
		val = v
	}
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(ir.SlotRetValue), A: val})
	releaseIfTemp(g, val)
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(ir.SlotRetID), A: ir.StackOp(ir.BaseLocal, 1)})
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(ir.SlotBase), A: ir.StackOp(ir.BaseLocal, 0)})
	g.unit.Emit(ir.Goto(g.trampolineLabel))
	return nil
}

// resolveOrDefine returns the storage operand a name written-to should
// target: an already-bound local/global, or a newly allocated stack slot in
// the current function frame.
func (g *Generator) resolveOrDefine(name string, kind ir.ArrayKind) (ir.Operand, error) {
	if kind != ir.KindUnknown {
		g.arrayKind[name] = kind
	}
	if existing, ok := g.sym.Lookup(name); ok {
		if g.globalNames[name] {
			if g.opts.FixedGlobalAccess {
				if abs, ok := g.globalAbs(existing); ok {
					return abs, nil
				}
			}
			return ir.StackOp(ir.BaseGlobal, existing.Off), nil
		}
		return existing, nil
	}
	off := g.sym.AllocStackSlot()
	base := ir.BaseLocal
	if g.globalNames[name] {
		base = ir.BaseGlobal
	}
	op := ir.StackOp(base, off)
	g.sym.Define(name, op)
	if base == ir.BaseGlobal && g.opts.FixedGlobalAccess {
		if abs, ok := g.globalAbs(op); ok {
			return abs, nil
		}
	}
	return op, nil
}

// globalAbs folds a global's stack-relative operand to an absolute H[addr]
// under --fixed-global-access, using the section's base-stack-pointer
// (2^h invariant) as the fold point.
func (g *Generator) globalAbs(op ir.Operand) (ir.Operand, bool) {
	if op.Kind != ir.Stack || op.Base != ir.BaseGlobal {
		return ir.Operand{}, false
	}
	bsp := uint32(1) << g.h
	return ir.AbsHOp(bsp + uint32(op.Off)), true
}
