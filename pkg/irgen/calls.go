// Built-in calls and the user-defined function calling convention. The
// target machine has no call/return instruction, so a call is expanded at
// the IR level into an explicit activation record push: the caller writes
// its own base pointer, a return id, and the argument values into the stack
// slots just above its own frame, then jumps to the callee's entry label.
// The callee's epilogue reads the return id back out of its frame, restores
// the caller's base pointer, and jumps to a single shared trampoline that
// dispatches on the return id to get back to the right call site.
package irgen

import (
	"strings"

	"github.com/pothos/zpaqlc/pkg/ast"
	"github.com/pothos/zpaqlc/pkg/ir"
)

func (g *Generator) genCall(c *ast.Call) (ir.Operand, ir.ArrayKind, error) {
	name, ok := calleeName(c.Func)
	if !ok {
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "call target must be a plain name"}
	}
	switch name {
	case "out":
		return g.genOut(c)
	case "error":
		return g.genErrorCall(c)
	case "read_b":
		return g.genReadB(c)
	case "peek_b":
		return g.genPeekB(c)
	case "push_b":
		return g.genPushB(c)
	case "len":
		return g.genLen(c)
	case "array_hH", "array_hM", "array_pH", "array_pM":
		return g.genArrayCast(name, c)
	case "alloc_hH", "alloc_hM", "alloc_pH", "alloc_pM", "free_hH", "free_hM", "free_pH", "free_pM":
		return g.genAllocFree(name, c)
	case "len_hH", "len_hM", "len_pH", "len_pM":
		return g.genLenPtr(name, c)
	}
	if fn, ok := g.funcs[name]; ok {
		return g.genUserCall(name, fn, c)
	}
	return ir.Operand{}, ir.KindUnknown, &Error{Msg: "call to undefined function '" + name + "'"}
}

func calleeName(e ast.Expr) (string, bool) {
	n, ok := e.(*ast.Name)
	if !ok {
		return "", false
	}
	return n.Id, true
}

func (g *Generator) genOut(c *ast.Call) (ir.Operand, ir.ArrayKind, error) {
	if len(c.Args) != 1 {
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "out() takes exactly one argument"}
	}
	val, _, err := g.genExpr(c.Args[0])
	if err != nil {
		return ir.Operand{}, ir.KindUnknown, err
	}
	g.unit.Emit(ir.Instr{Op: ir.OpOut, A: val})
	releaseIfTemp(g, val)
	return ir.ImmOp(0), ir.KindUnknown, nil
}

func (g *Generator) genErrorCall(c *ast.Call) (ir.Operand, ir.ArrayKind, error) {
	if len(c.Args) != 0 {
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "error() takes no arguments"}
	}
	g.unit.Emit(ir.ErrorTrap())
	return ir.ImmOp(0), ir.KindUnknown, nil
}

// genReadB lowers read_b() to a suspend point: the unit halts with the
// reading flag set, and is re-entered from the top the next time the host
// runs it with the next input byte sitting in R255. The preamble recognizes
// the flag and jumps straight back into the trampoline, which routes to the
// label right after this halt.
func (g *Generator) genReadB(c *ast.Call) (ir.Operand, ir.ArrayKind, error) {
	if len(c.Args) != 0 {
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "read_b() takes no arguments"}
	}
	retID := g.sym.NewReturnID()
	resumeLabel := g.sym.NewLabel("read_resume")
	g.returnSites[retID] = resumeLabel
	g.unit.ReturnIDs = append(g.unit.ReturnIDs, retID)

	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(ir.SlotPushback), A: ir.ImmOp(uint32(retID))})
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(ir.SlotReadingFlag), A: ir.ImmOp(1)})
	g.unit.Emit(ir.Halt())
	g.unit.Emit(ir.Label(resumeLabel))

	result := g.sym.MakeTemp()
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(result), A: ir.RegOp(ir.SlotLastByte)})
	return ir.RegOp(result), ir.KindUnknown, nil
}

func (g *Generator) genPeekB(c *ast.Call) (ir.Operand, ir.ArrayKind, error) {
	if len(c.Args) != 0 {
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "peek_b() takes no arguments"}
	}
	result := g.sym.MakeTemp()
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(result), A: ir.RegOp(ir.SlotLastByte)})
	return ir.RegOp(result), ir.KindUnknown, nil
}

func (g *Generator) genPushB(c *ast.Call) (ir.Operand, ir.ArrayKind, error) {
	if len(c.Args) != 1 {
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "push_b() takes exactly one argument"}
	}
	val, _, err := g.genExpr(c.Args[0])
	if err != nil {
		return ir.Operand{}, ir.KindUnknown, err
	}
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(ir.SlotPushback), A: val})
	releaseIfTemp(g, val)
	return ir.ImmOp(0), ir.KindUnknown, nil
}

// genLen constant-folds len(hH) etc. to the array's runtime size, and
// len({...}) to its literal entry count; neither form produces code.
func (g *Generator) genLen(c *ast.Call) (ir.Operand, ir.ArrayKind, error) {
	if len(c.Args) != 1 {
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "len() takes exactly one argument"}
	}
	if n, ok := c.Args[0].(*ast.Name); ok && isArrayName(n.Id) {
		if err := g.checkArrayNameInSection(n.Id); err != nil {
			return ir.Operand{}, ir.KindUnknown, err
		}
		log2, err := g.arraySizeLog2(n.Id)
		if err != nil {
			return ir.Operand{}, ir.KindUnknown, err
		}
		return ir.ImmOp(uint32(1) << log2), ir.KindUnknown, nil
	}
	if d, ok := c.Args[0].(*ast.Dict); ok {
		return ir.ImmOp(uint32(len(d.Entries))), ir.KindUnknown, nil
	}
	return ir.Operand{}, ir.KindUnknown, &Error{Msg: "len() only accepts hH, hM, pH, pM, or a dict literal"}
}

// genArrayCast is a pure compile-time reinterpretation: array_hM(p) tells
// the generator p addresses the M space, so later subscripts on its result
// skip the runtime bit-31 test.
func (g *Generator) genArrayCast(name string, c *ast.Call) (ir.Operand, ir.ArrayKind, error) {
	if len(c.Args) != 1 {
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: name + "() takes exactly one argument"}
	}
	val, _, err := g.genExpr(c.Args[0])
	if err != nil {
		return ir.Operand{}, ir.KindUnknown, err
	}
	return val, arrayNameKind(name[len("array_"):]), nil
}

// genAllocFree lowers alloc_hH(n)/alloc_hM(n)/… and free_hH(p)/free_hM(p)/…
// to a call to a user-defined addr_alloc_*/addr_free_* function — the
// compiler never allocates addresses itself. free_hM/free_pM mask bit 31
// (the M-space pointer tag) off their argument before the call, since H
// pointers carry no such tag; alloc_hM/alloc_pM OR bit 31 onto the call's
// result so a later array_hM/unresolved subscript can recover the space at
// runtime. alloc_hH/alloc_pH and free_* otherwise pass their argument and
// result through unchanged.
func (g *Generator) genAllocFree(name string, c *ast.Call) (ir.Operand, ir.ArrayKind, error) {
	if len(c.Args) != 1 {
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: name + "() takes exactly one argument"}
	}
	isAlloc := name[0] == 'a'
	arrName := name[strings.IndexByte(name, '_')+1:]
	kind := arrayNameKind(arrName)

	arg, _, err := g.genExpr(c.Args[0])
	if err != nil {
		return ir.Operand{}, ir.KindUnknown, err
	}
	if !isAlloc && kind == ir.KindM {
		masked := g.sym.MakeTemp()
		g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(masked), A: arg})
		releaseIfTemp(g, arg)
		g.maskOffTagBit(masked)
		arg = ir.RegOp(masked)
	}

	calleeName := "addr_" + name
	fn, ok := g.funcs[calleeName]
	if !ok {
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "call to undefined function '" + calleeName + "'"}
	}
	if len(fn.Params) != 1 {
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "function '" + calleeName + "' takes 1 argument(s)"}
	}

	result, err := g.genCallWithArgs(calleeName, []ir.Operand{arg})
	if err != nil {
		return ir.Operand{}, ir.KindUnknown, err
	}

	if !isAlloc {
		return result, ir.KindUnknown, nil
	}
	if kind == ir.KindM {
		resReg := g.sym.MakeTemp()
		g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(resReg), A: result})
		releaseIfTemp(g, result)
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(resReg), A: ir.RegOp(resReg), B: ir.ImmOp(mPointerTagBit), BinOp: ir.BinOr})
		result = ir.RegOp(resReg)
	}
	return result, kind, nil
}

// genLenPtr lowers len_hH(p)/len_hM(p)/len_pH(p)/len_pM(p): the length word
// a dynamic allocation writes just before the pointer it returns. H arrays
// store it as one cell two slots before the pointer; M arrays store it as
// four bytes, big-endian, five bytes before the (untagged) pointer.
func (g *Generator) genLenPtr(name string, c *ast.Call) (ir.Operand, ir.ArrayKind, error) {
	if len(c.Args) != 1 {
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: name + "() takes exactly one argument"}
	}
	val, _, err := g.genExpr(c.Args[0])
	if err != nil {
		return ir.Operand{}, ir.KindUnknown, err
	}
	addr := g.sym.MakeTemp()
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(addr), A: val})
	releaseIfTemp(g, val)

	switch name {
	case "len_hH", "len_pH":
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(addr), A: ir.RegOp(addr), B: ir.ImmOp(2), BinOp: ir.BinSub})
		result := g.sym.MakeTemp()
		g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(result), A: ir.IndHOp(addr)})
		g.releaseTempReg(addr)
		return ir.RegOp(result), ir.KindUnknown, nil
	case "len_hM", "len_pM":
		g.maskOffTagBit(addr)
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(addr), A: ir.RegOp(addr), B: ir.ImmOp(5), BinOp: ir.BinSub})
		calc := g.sym.MakeTemp()
		g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(calc), A: ir.IndMOp(addr)})
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(calc), A: ir.RegOp(calc), B: ir.ImmOp(8), BinOp: ir.BinShl})
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(addr), A: ir.RegOp(addr), B: ir.ImmOp(1), BinOp: ir.BinAdd})
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(calc), A: ir.RegOp(calc), B: ir.IndMOp(addr), BinOp: ir.BinAdd})
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(calc), A: ir.RegOp(calc), B: ir.ImmOp(8), BinOp: ir.BinShl})
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(addr), A: ir.RegOp(addr), B: ir.ImmOp(1), BinOp: ir.BinAdd})
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(calc), A: ir.RegOp(calc), B: ir.IndMOp(addr), BinOp: ir.BinAdd})
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(calc), A: ir.RegOp(calc), B: ir.ImmOp(8), BinOp: ir.BinShl})
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(addr), A: ir.RegOp(addr), B: ir.ImmOp(1), BinOp: ir.BinAdd})
		g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(calc), A: ir.RegOp(calc), B: ir.IndMOp(addr), BinOp: ir.BinAdd})
		g.releaseTempReg(addr)
		return ir.RegOp(calc), ir.KindUnknown, nil
	}
	return ir.Operand{}, ir.KindUnknown, &Error{Msg: "unsupported len variant " + name}
}

// genUserCall expands a call to a user-defined function into the push of a
// new activation record directly above the caller's current frame.
func (g *Generator) genUserCall(name string, fn *ast.FunctionDef, c *ast.Call) (ir.Operand, ir.ArrayKind, error) {
	if len(c.Args) != len(fn.Params) {
		return ir.Operand{}, ir.KindUnknown, &Error{Msg: "function '" + name + "' takes " + itoa(len(fn.Params)) + " argument(s)"}
	}

	argVals := make([]ir.Operand, len(c.Args))
	for i, a := range c.Args {
		v, _, err := g.genExpr(a)
		if err != nil {
			return ir.Operand{}, ir.KindUnknown, err
		}
		argVals[i] = v
	}

	result, err := g.genCallWithArgs(name, argVals)
	return result, ir.KindUnknown, err
}

// genCallWithArgs pushes a new activation record directly above the
// caller's current frame and jumps to name's entry label, given arguments
// already lowered to operands. Shared by genUserCall (whose arguments come
// straight from an *ast.Call) and the alloc_*/free_* builtins (whose single
// argument is a mask/tag-adjusted expression rather than a literal one).
func (g *Generator) genCallWithArgs(name string, argVals []ir.Operand) (ir.Operand, error) {
	g.calledFns[name] = true

	liveTemps := g.sym.LiveTemps()
	saveOff := -1
	if len(liveTemps) > 0 {
		saveOff = g.sym.AllocStackSlot()
		for range liveTemps[1:] {
			g.sym.AllocStackSlot()
		}
		g.unit.Emit(ir.Instr{Op: ir.OpStoreTempVars, TempIDs: liveTemps, StackOff: saveOff})
	}

	frameSize := g.sym.FrameSize()
	newBase := g.sym.MakeTemp()
	g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(newBase), A: ir.RegOp(ir.SlotBase), B: ir.ImmOp(uint32(frameSize)), BinOp: ir.BinAdd})

	retID := g.sym.NewReturnID()
	returnLabel := g.sym.NewLabel("call_ret_" + name)
	g.returnSites[retID] = returnLabel
	g.unit.ReturnIDs = append(g.unit.ReturnIDs, retID)

	g.storeAtFrameOffset(newBase, 0, ir.RegOp(ir.SlotBase))
	g.storeAtFrameOffset(newBase, 1, ir.ImmOp(uint32(retID)))
	for i, v := range argVals {
		g.storeAtFrameOffset(newBase, 2+i, v)
		releaseIfTemp(g, v)
	}

	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(ir.SlotBase), A: ir.RegOp(newBase)})
	g.releaseTempReg(newBase)
	g.unit.Emit(ir.Instr{Op: ir.OpGoto, Label: g.funcLabels[name], CallTarget: g.funcLabels[name], RetID: retID})
	g.unit.Emit(ir.Label(returnLabel))

	if saveOff >= 0 {
		g.unit.Emit(ir.Instr{Op: ir.OpLoadTempVars, TempIDs: liveTemps, StackOff: saveOff})
	}

	result := g.sym.MakeTemp()
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.RegOp(result), A: ir.RegOp(ir.SlotRetValue)})
	return ir.RegOp(result), nil
}

// storeAtFrameOffset writes val to H[baseReg+off], materializing the
// address in a scratch temp.
func (g *Generator) storeAtFrameOffset(baseReg, off int, val ir.Operand) {
	addr := g.sym.MakeTemp()
	g.unit.Emit(ir.Instr{Op: ir.OpBinary, Dst: ir.RegOp(addr), A: ir.RegOp(baseReg), B: ir.ImmOp(uint32(off)), BinOp: ir.BinAdd})
	g.unit.Emit(ir.Instr{Op: ir.OpAssign, Dst: ir.IndHOp(addr), A: val})
	g.sym.ReleaseTemp(addr)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
