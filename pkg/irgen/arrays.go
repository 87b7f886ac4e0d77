// This file lowers the four statically sized arrays (hH, hM, pH, pM),
// dynamic sub-array allocation, and the typed VH/VM pointer-cast builtins.
package irgen

import (
	"github.com/pothos/zpaqlc/pkg/ast"
	"github.com/pothos/zpaqlc/pkg/ir"
)

const mPointerTagBit uint32 = 1 << 31

// sectionArrayNames returns which of the two array-name pairs are valid in
// the current section: hcomp sees hH/hM, pcomp sees pH/pM.
func (g *Generator) sectionArrayNames() (hName, mName string) {
	if g.section == "hcomp" {
		return "hH", "hM"
	}
	return "pH", "pM"
}

func (g *Generator) checkArrayNameInSection(name string) error {
	hName, mName := g.sectionArrayNames()
	if name == hName || name == mName {
		return nil
	}
	if isArrayName(name) {
		return &Error{Msg: "'" + name + "' is not in scope in the " + g.section + " section"}
	}
	return nil
}

// genSubscriptLoadTemp lowers `value[index]` in load context to the operand
// holding the loaded value.
func (g *Generator) genSubscriptLoadTemp(s *ast.Subscript) (ir.Operand, error) {
	idxOp, _, err := g.genExpr(s.Index)
	if err != nil {
		return ir.Operand{}, err
	}
	idxReg := g.materializeToReg(idxOp)

	if name, ok := directArrayName(s.Value); ok {
		if err := g.checkArrayNameInSection(name); err != nil {
			return ir.Operand{}, err
		}
		kind := arrayNameKind(name)
		dst := g.sym.MakeTemp()
		if kind == ir.KindH {
			g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(dst), A: ir.IndHOp(idxReg)})
		} else {
			g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(dst), A: ir.IndMOp(idxReg)})
		}
		g.releaseTempReg(idxReg)
		return ir.RegOp(dst), nil
	}

	ptrOp, kind, err := g.genExpr(s.Value)
	if err != nil {
		return ir.Operand{}, err
	}
	return g.loadThroughPointer(ptrOp, kind, idxReg)
}

// loadThroughPointer adds the statically-known index register to the
// pointer and reads through H or M, or — when the kind is unknown — tests
// bit 31 at runtime and takes the matching path.
func (g *Generator) loadThroughPointer(ptrOp ir.Operand, kind ir.ArrayKind, idxReg int) (ir.Operand, error) {
	addrReg := g.sym.MakeTemp()
	g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(addrReg), A: ptrOp, B: ir.RegOp(idxReg), BinOp: ir.BinAdd})
	releaseIfTemp(g, ptrOp)
	g.releaseTempReg(idxReg)

	result := g.sym.MakeTemp()
	switch kind {
	case ir.KindH:
		g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(result), A: ir.IndHOp(addrReg)})
	case ir.KindM:
		g.maskOffTagBit(addrReg)
		g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(result), A: ir.IndMOp(addrReg)})
	default:
		mPath := g.sym.NewLabel("ptr_m_path")
		join := g.sym.NewLabel("ptr_join")
		testReg := g.sym.MakeTemp()
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(testReg), A: ir.RegOp(addrReg), B: ir.ImmOp(mPointerTagBit), BinOp: ir.BinAnd})
		g.unit.Emit(ir.Instr{Op: ir.OpBranchNZero, A: ir.RegOp(testReg), Label: mPath})
		g.sym.ReleaseTemp(testReg)
		// H path (bit 31 clear)
		g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(result), A: ir.IndHOp(addrReg)})
		g.unit.Emit(ir.Goto(join))
		g.unit.Emit(ir.Label(mPath))
		g.maskOffTagBit(addrReg)
		g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(result), A: ir.IndMOp(addrReg)})
		g.unit.Emit(ir.Label(join))
	}
	g.releaseTempReg(addrReg)
	return ir.RegOp(result), nil
}

// maskOffTagBit clears bit 31 (the M-vs-H pointer tag) of the register in
// place, ahead of an indirect M access.
func (g *Generator) maskOffTagBit(reg int) {
	g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(reg), A: ir.RegOp(reg), B: ir.ImmOp(^mPointerTagBit), BinOp: ir.BinAnd})
}

func (g *Generator) genSubscriptStore(s *ast.Subscript, valueExpr ast.Expr) error {
	val, _, err := g.genExpr(valueExpr)
	if err != nil {
		return err
	}
	err = g.genSubscriptStoreOperand(s, val)
	releaseIfTemp(g, val)
	return err
}

func (g *Generator) genSubscriptStoreOperand(s *ast.Subscript, val ir.Operand) error {
	idxOp, _, err := g.genExpr(s.Index)
	if err != nil {
		return err
	}
	idxReg := g.materializeToReg(idxOp)
	defer g.releaseTempReg(idxReg)

	if name, ok := directArrayName(s.Value); ok {
		if err := g.checkArrayNameInSection(name); err != nil {
			return err
		}
		kind := arrayNameKind(name)
		if kind == ir.KindH {
			g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.IndHOp(idxReg), A: val})
		} else {
			g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.IndMOp(idxReg), A: val})
		}
		return nil
	}

	ptrOp, kind, err := g.genExpr(s.Value)
	if err != nil {
		return err
	}
	defer releaseIfTemp(g, ptrOp)
	addrReg := g.sym.MakeTemp()
	defer g.releaseTempReg(addrReg)
	g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(addrReg), A: ptrOp, B: ir.RegOp(idxReg), BinOp: ir.BinAdd})

	switch kind {
	case ir.KindH:
		g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.IndHOp(addrReg), A: val})
	case ir.KindM:
		g.maskOffTagBit(addrReg)
		g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.IndMOp(addrReg), A: val})
	default:
		mPath := g.sym.NewLabel("ptr_store_m")
		join := g.sym.NewLabel("ptr_store_join")
		testReg := g.sym.MakeTemp()
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(testReg), A: ir.RegOp(addrReg), B: ir.ImmOp(mPointerTagBit), BinOp: ir.BinAnd})
		g.unit.Emit(ir.Instr{Op: ir.OpBranchNZero, A: ir.RegOp(testReg), Label: mPath})
		g.sym.ReleaseTemp(testReg)
		g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.IndHOp(addrReg), A: val})
		g.unit.Emit(ir.Goto(join))
		g.unit.Emit(ir.Label(mPath))
		g.maskOffTagBit(addrReg)
		g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.IndMOp(addrReg), A: val})
		g.unit.Emit(ir.Label(join))
	}
	return nil
}

func directArrayName(e ast.Expr) (string, bool) {
	n, ok := e.(*ast.Name)
	if !ok {
		return "", false
	}
	if isArrayName(n.Id) {
		return n.Id, true
	}
	return "", false
}

func arrayNameKind(name string) ir.ArrayKind {
	if name == "hH" || name == "pH" {
		return ir.KindH
	}
	return ir.KindM
}

// materializeToReg ensures op's value is sitting in a register slot,
// allocating a fresh temp and assigning into it if op was an immediate or
// another indirect form; indirect addressing always indexes through a
// register.
func (g *Generator) materializeToReg(op ir.Operand) int {
	if op.Kind == ir.Reg {
		return op.Slot
	}
	reg := g.sym.MakeTemp()
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(reg), A: op})
	return reg
}

func (g *Generator) releaseTempReg(reg int) {
	if reg >= 1 && reg <= 251 {
		g.sym.ReleaseTemp(reg)
	}
}

// arraySizeLog2 returns the log2 exponent h of the named array's size in
// the current section. len(hH), len(hM), and the rest are constant-folded
// from this at compile time rather than computed at runtime.
func (g *Generator) arraySizeLog2(name string) (byte, error) {
	switch name {
	case "hH":
		return g.sym.ArraySizes.HH, nil
	case "hM":
		return g.sym.ArraySizes.HM, nil
	case "pH":
		return g.sym.ArraySizes.PH, nil
	case "pM":
		return g.sym.ArraySizes.PM, nil
	default:
		return 0, &Error{Msg: "len() is only valid on hH, hM, pH, pM, or a dict literal"}
	}
}
