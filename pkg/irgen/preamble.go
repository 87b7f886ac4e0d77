// Section entry/exit: the dispatcher that tells a fresh invocation from a
// resumed read_b() apart, the function-body lowering that binds parameters
// into the callee's frame, and the trampoline cascade every call and every
// return funnels through.
package irgen

import (
	"github.com/pothos/zpaqlc/pkg/ast"
	"github.com/pothos/zpaqlc/pkg/ir"
)

// emitPreamble runs before any user code. R254 (the reading flag) is zero
// on every invocation except the one right after a read_b() suspended the
// unit; in that case the host has placed the next input byte in R255 and
// this jumps straight to the trampoline using the return id read_b stashed
// in R253, skipping back into the middle of user code instead of restarting
// the section from the top.
func (g *Generator) emitPreamble() {
	flag := g.sym.MakeTemp()
	fresh := g.sym.NewLabel("fresh_entry")
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(flag), A: ir.RegOp(ir.SlotReadingFlag), Comment: "entry dispatch"})
	g.unit.Emit(ir.Instr{Op: ir.OpBranchZero, A: ir.RegOp(flag), Label: fresh})
	g.sym.ReleaseTemp(flag)
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(ir.SlotReadingFlag), A: ir.ImmOp(0)})
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(ir.SlotRetID), A: ir.RegOp(ir.SlotPushback)})
	g.unit.Emit(ir.Goto(g.trampolineLabel))
	g.unit.Emit(ir.Label(fresh))
}

// emitTrampoline is the shared landing pad every call and every return
// jumps to: an equality cascade on R2 routing control back to whichever
// call site (or read_b resume point) issued that return id.
func (g *Generator) emitTrampoline() {
	g.unit.TrampolineLabel = g.trampolineLabel
	g.unit.Emit(ir.Label(g.trampolineLabel))
	for _, id := range g.unit.ReturnIDs {
		site := g.returnSites[id]
		g.unit.Emit(ir.Instr{Op: ir.OpBranchEq, A: ir.RegOp(ir.SlotRetID), B: ir.ImmOp(uint32(id)), Label: site})
	}
	g.unit.Emit(ir.ErrorTrap())
}

// genFunction lowers one function body: its frame reserves offset 0 for the
// caller's saved base pointer and offset 1 for the return id before any
// parameter, matching the layout genUserCall writes at the call site.
func (g *Generator) genFunction(name string, fn *ast.FunctionDef) error {
	g.sym.PushScope(true)
	g.sym.AllocStackSlot() // offset 0: saved caller base
	g.sym.AllocStackSlot() // offset 1: return id

	g.unit.Emit(ir.Label(g.funcLabels[name]))
	for _, p := range fn.Params {
		off := g.sym.AllocStackSlot()
		g.sym.Define(p, ir.StackOp(ir.BaseLocal, off))
	}

	if err := g.genBlock(fn.Body); err != nil {
		g.sym.PopScope()
		return err
	}
	if err := g.genReturn(&ast.Return{}); err != nil {
		g.sym.PopScope()
		return err
	}
	g.sym.PopScope()
	return nil
}
