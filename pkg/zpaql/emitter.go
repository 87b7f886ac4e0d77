package zpaql

import (
	"fmt"

	"github.com/pothos/zpaqlc/pkg/ir"
)

// Emitter lowers one optimized ir.Unit into a flat Op sequence, tracking
// which physical location (A, B, C, or D) currently holds which IR operand
// so repeated references to the same value skip redundant reloads. The
// cache is purely an optimization: every lookup falls back to a fresh
// reload, so an overly conservative invalidation never produces wrong code.
type Emitter struct {
	ops        []Op
	cache      map[string]ir.Operand
	labelCount int
	noComments bool
}

// NewEmitter creates an emitter. noComments suppresses the per-instruction
// source annotations --no-comments asks for.
func NewEmitter(noComments bool) *Emitter {
	return &Emitter{cache: map[string]ir.Operand{}, noComments: noComments}
}

func (e *Emitter) emit(o Op) { e.ops = append(e.ops, o) }

func (e *Emitter) newLabel(prefix string) string {
	e.labelCount++
	return fmt.Sprintf("%s_%d", prefix, e.labelCount)
}

// Emit translates every instruction in unit and returns the Op stream.
func (e *Emitter) Emit(unit *ir.Unit) []Op {
	for _, inst := range unit.Instructions {
		e.translate(inst)
	}
	return e.ops
}

func (e *Emitter) translate(inst ir.Instr) {
	if inst.Comment != "" && !e.noComments {
		e.emit(Comment(inst.Comment))
	}
	switch inst.Op {
	case ir.OpLabel:
		e.emit(Label(inst.Label))
		e.cache = map[string]ir.Operand{}
	case ir.OpGoto:
		e.emit(LJ(inst.Label))
	case ir.OpAssign:
		e.translateAssign(inst.Dst, inst.A)
	case ir.OpUnary:
		e.translateUnary(inst.Dst, inst.UnOp, inst.A)
	case ir.OpBinary:
		e.translateBinary(inst.Dst, inst.A, inst.BinOp, inst.B)
	case ir.OpBranchZero:
		e.loadIntoA(inst.A)
		e.emit(op("a!=0"))
		e.emitFarBranch(inst.Label, true)
	case ir.OpBranchNZero:
		e.loadIntoA(inst.A)
		e.emit(op("a!=0"))
		e.emitFarBranch(inst.Label, false)
	case ir.OpBranchEq:
		e.loadIntoC(inst.B)
		e.loadIntoA(inst.A)
		e.emit(op("a==c"))
		e.emitFarBranch(inst.Label, false)
	case ir.OpBranchNeq:
		e.loadIntoC(inst.B)
		e.loadIntoA(inst.A)
		e.emit(op("a==c"))
		e.emitFarBranch(inst.Label, true)
	case ir.OpHalt:
		e.emit(Halt())
	case ir.OpError:
		e.emit(Error())
	case ir.OpOut:
		e.loadIntoA(inst.A)
		e.emit(Out())
	case ir.OpStoreTempVars:
		for i, t := range inst.TempIDs {
			e.translateAssign(ir.StackOp(ir.BaseLocal, inst.StackOff+i), ir.RegOp(t))
		}
	case ir.OpLoadTempVars:
		for i, t := range inst.TempIDs {
			e.translateAssign(ir.RegOp(t), ir.StackOp(ir.BaseLocal, inst.StackOff+i))
		}
	case ir.OpNop, ir.OpBlock:
		// stripped by the deblock pass; defensively a no-op here too.
	default:
		e.emit(Comment("unsupported meta-instruction"))
	}
}

// loadIntoA ensures A holds operand's value, reusing the cache when
// possible.
func (e *Emitter) loadIntoA(operand ir.Operand) {
	if cached, ok := e.cache["a"]; ok && cached == operand {
		return
	}
	e.materializeInto(operand)
	e.cache["a"] = operand
}

// loadIntoC computes operand into A (possibly reusing the cache) then
// copies it to C, matching the "val2 goes in C first" ordering the binary
// op lowering below relies on.
func (e *Emitter) loadIntoC(operand ir.Operand) {
	if cached, ok := e.cache["c"]; ok && cached == operand {
		return
	}
	e.loadIntoA(operand)
	e.emit(Move("c", "a"))
	e.cache["c"] = operand
}

// materializeInto emits the op sequence that computes operand's value into
// A, without consulting the cache — callers check that first. The two
// indirect cases borrow C or D as an address scratch register because only
// A can read R or dereference an indexed cell.
func (e *Emitter) materializeInto(operand ir.Operand) {
	switch operand.Kind {
	case ir.Imm:
		e.materializeNumber("a", operand.Imm)
	case ir.Reg:
		e.emit(AFromReg(operand.Slot))
	case ir.IndH:
		e.emit(AFromReg(operand.Slot))
		e.emit(Move("d", "a"))
		e.emit(op("a=*d"))
	case ir.IndM:
		e.emit(AFromReg(operand.Slot))
		e.emit(Move("b", "a"))
		e.emit(op("a=*b"))
	case ir.Stack:
		baseSlot := ir.SlotBase
		if operand.Base == ir.BaseGlobal {
			baseSlot = ir.SlotGlobalBase
		}
		e.emit(AFromReg(baseSlot))
		if operand.Off != 0 {
			e.materializeNumber("c", uint32(operand.Off))
			e.emit(op("a+=c"))
		}
		e.emit(Move("d", "a"))
		e.emit(op("a=*d"))
	case ir.AbsH:
		e.materializeNumber("a", operand.Imm)
		e.emit(Move("d", "a"))
		e.emit(op("a=*d"))
	case ir.AbsM:
		e.materializeNumber("a", operand.Imm)
		e.emit(Move("b", "a"))
		e.emit(op("a=*b"))
	}
}

// materializeNumber emits the minimum-size sequence that loads n into dst.
// When the cache already holds n-1 or n+1 in A, Inc/Dec is one byte instead
// of a multi-byte immediate load.
func (e *Emitter) materializeNumber(dst string, n uint32) {
	if dst == "a" {
		if cached, ok := e.cache["a"]; ok && cached.Kind == ir.Imm {
			if cached.Imm+1 == n {
				e.emit(Inc())
				return
			}
			if cached.Imm-1 == n {
				e.emit(Dec())
				return
			}
		}
	}
	switch {
	case n == 0:
		e.emit(Zero())
	case n < 256:
		e.emit(AssignByte(int(n)))
	default:
		// No immediate-load opcode covers more than one byte; build wider
		// constants byte-by-byte with the immediate shift/add forms.
		bs := bigEndianTrimmed(n)
		e.emit(AssignByte(int(bs[0])))
		for _, b := range bs[1:] {
			e.emit(ShiftLeftImm(8))
			e.emit(AddImm(int(b)))
		}
	}
	if dst != "a" {
		e.emit(Move(dst, "a"))
	}
}

// bigEndianTrimmed returns n's big-endian byte representation with leading
// zero bytes dropped, always at least 2 bytes (callers only reach this for
// n >= 256).
func bigEndianTrimmed(n uint32) []byte {
	all := [4]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	i := 0
	for i < 2 && all[i] == 0 {
		i++
	}
	return all[i:]
}

// translateAssign lowers `dst = src`, routing through A since only A can
// read R and only A can write R or an H/M-indexed cell.
func (e *Emitter) translateAssign(dst, src ir.Operand) {
	switch dst.Kind {
	case ir.Reg:
		e.loadIntoA(src)
		e.emit(RegFromA(dst.Slot))
		e.clobberReg(dst.Slot)
	case ir.IndH:
		e.emit(AFromReg(dst.Slot))
		e.emit(Move("d", "a"))
		e.loadIntoA(src)
		e.emit(op("*d=a"))
		e.invalidateMemory()
	case ir.IndM:
		e.emit(AFromReg(dst.Slot))
		e.emit(Move("b", "a"))
		e.loadIntoA(src)
		e.emit(op("*b=a"))
		e.invalidateMemory()
	case ir.Stack:
		baseSlot := ir.SlotBase
		if dst.Base == ir.BaseGlobal {
			baseSlot = ir.SlotGlobalBase
		}
		e.emit(AFromReg(baseSlot))
		if dst.Off != 0 {
			e.materializeNumber("c", uint32(dst.Off))
			e.emit(op("a+=c"))
		}
		e.emit(Move("d", "a"))
		e.loadIntoA(src)
		e.emit(op("*d=a"))
		e.invalidateMemory()
	case ir.AbsH:
		e.materializeNumber("a", dst.Imm)
		e.emit(Move("d", "a"))
		e.loadIntoA(src)
		e.emit(op("*d=a"))
		e.invalidateMemory()
	case ir.AbsM:
		e.materializeNumber("a", dst.Imm)
		e.emit(Move("b", "a"))
		e.loadIntoA(src)
		e.emit(op("*b=a"))
		e.invalidateMemory()
	}
}

// clobberReg invalidates every cache entry that reads slot as its value or
// as an index: a write to an R slot only stales the A/C entries that name
// it, not unrelated cached immediates.
func (e *Emitter) clobberReg(slot int) {
	for k, v := range e.cache {
		switch v.Kind {
		case ir.Reg, ir.IndH, ir.IndM:
			if v.Slot == slot {
				delete(e.cache, k)
			}
		}
	}
}

// invalidateMemory drops the cache after any H/M write, since a cached A/C
// value loaded from an indirect may no longer reflect memory.
func (e *Emitter) invalidateMemory() {
	e.cache = map[string]ir.Operand{}
}

func (e *Emitter) translateUnary(dst ir.Operand, op_ ir.UnOp, src ir.Operand) {
	switch op_ {
	case ir.UnNot:
		e.loadIntoA(src)
		e.emit(op("a!=0"))
		e.emit(Zero())
		skip := e.newLabel("not_skip")
		e.emit(JT(skip))
		e.emit(AssignByte(1))
		e.emit(Label(skip))
		e.cache = map[string]ir.Operand{}
	case ir.UnInv:
		e.loadIntoA(src)
		e.emit(Not())
	case ir.UnNeg:
		e.loadIntoA(src)
		e.emit(Not())
		e.emit(Inc())
	}
	delete(e.cache, "a") // the result is synthetic, not the cacheable source operand
	e.storeResultInto(dst)
}

func (e *Emitter) translateBinary(dst ir.Operand, left ir.Operand, bop ir.BinOp, right ir.Operand) {
	if bop == ir.BinPow {
		e.translatePow(dst, left, right)
		return
	}
	e.loadIntoC(right)
	e.loadIntoA(left)
	switch bop {
	case ir.BinAdd:
		e.emit(op("a+=c"))
	case ir.BinSub:
		e.emit(op("a-=c"))
	case ir.BinMul:
		e.emit(op("a*=c"))
	case ir.BinDiv:
		e.emit(op("a/=c"))
	case ir.BinMod:
		e.emit(op("a%=c"))
	case ir.BinAnd, ir.BinLogicalAnd:
		e.emit(op("a&=c"))
	case ir.BinOr, ir.BinLogicalOr:
		e.emit(op("a|=c"))
	case ir.BinXor:
		e.emit(op("a^=c"))
	case ir.BinShl:
		e.emit(op("a<<=c"))
	case ir.BinShr:
		e.emit(op("a>>=c"))
	case ir.BinEq, ir.BinNe, ir.BinLt, ir.BinGt, ir.BinLe, ir.BinGe:
		e.emitRelational(bop)
	}
	delete(e.cache, "a")
	e.storeResultInto(dst)
}

// emitFarBranch reaches an arbitrarily distant IR label despite jt/jf only
// encoding a signed one-byte offset: it skips a local three-byte lj (whose
// absolute target can be anywhere) when the flag says not to branch.
func (e *Emitter) emitFarBranch(label string, skipOnTrue bool) {
	skip := e.newLabel("far_skip")
	if skipOnTrue {
		e.emit(JT(skip))
	} else {
		e.emit(JF(skip))
	}
	e.emit(LJ(label))
	e.emit(Label(skip))
	e.cache = map[string]ir.Operand{}
}

func (e *Emitter) emitRelational(bop ir.BinOp) {
	switch bop {
	case ir.BinEq:
		e.emit(op("a==c"))
	case ir.BinNe:
		e.emit(op("a==c"))
	case ir.BinLt:
		e.emit(op("a<c"))
	case ir.BinGt:
		e.emit(op("a>c"))
	case ir.BinLe:
		e.emit(op("a>c"))
	case ir.BinGe:
		e.emit(op("a<c"))
	}
	e.emit(Zero())
	skip := e.newLabel("cmp_false")
	if bop == ir.BinNe || bop == ir.BinLe || bop == ir.BinGe {
		e.emit(JT(skip))
	} else {
		e.emit(JF(skip))
	}
	e.emit(AssignByte(1))
	e.emit(Label(skip))
	e.cache = map[string]ir.Operand{}
}

// translatePow expands x**y into a multiply loop: B holds the base, C the
// remaining exponent, D the running accumulator.
func (e *Emitter) translatePow(dst, base, exp ir.Operand) {
	e.loadIntoA(base)
	e.emit(Move("b", "a"))
	e.loadIntoA(exp)
	e.emit(Move("c", "a"))
	e.emit(AssignByte(1))
	e.emit(Move("d", "a"))

	top := e.newLabel("pow_top")
	done := e.newLabel("pow_done")
	e.emit(Label(top))
	e.cache = map[string]ir.Operand{}
	e.emit(Move("a", "c"))
	e.emit(op("a!=0"))
	e.emit(JF(done))
	e.emit(Move("a", "d"))
	e.emit(op("a*=b"))
	e.emit(Move("d", "a"))
	e.emit(Move("a", "c"))
	e.emit(Dec())
	e.emit(Move("c", "a"))
	e.emit(LJ(top))
	e.emit(Label(done))
	e.emit(Move("a", "d"))
	e.cache = map[string]ir.Operand{}
	e.storeResultInto(dst)
}

// storeResultInto copies A (the just-computed result) into dst.
func (e *Emitter) storeResultInto(dst ir.Operand) {
	switch dst.Kind {
	case ir.Reg:
		e.emit(RegFromA(dst.Slot))
		e.clobberReg(dst.Slot)
	default:
		// Indirect/stack destinations need their address computed before A
		// is loaded; route back through translateAssign with a synthetic
		// "value already in A" source by spilling to a temp register slot
		// 0 is never user-addressable, so stash via the trampoline-free
		// slot 1 (the return-value slot) is unsafe to reuse here — instead
		// re-derive the address first, then move A into place directly.
		e.storeAFromAccumulator(dst)
	}
}

// storeAFromAccumulator writes the value currently in A to an
// indirect/stack destination without reloading it (the binary/unary
// lowering above has already computed the result there).
func (e *Emitter) storeAFromAccumulator(dst ir.Operand) {
	switch dst.Kind {
	case ir.IndH:
		e.emit(Move("c", "a"))
		e.emit(AFromReg(dst.Slot))
		e.emit(Move("d", "a"))
		e.emit(Move("a", "c"))
		e.emit(op("*d=a"))
	case ir.IndM:
		e.emit(Move("c", "a"))
		e.emit(AFromReg(dst.Slot))
		e.emit(Move("b", "a"))
		e.emit(Move("a", "c"))
		e.emit(op("*b=a"))
	case ir.Stack:
		baseSlot := ir.SlotBase
		if dst.Base == ir.BaseGlobal {
			baseSlot = ir.SlotGlobalBase
		}
		e.emit(Move("c", "a"))
		e.emit(AFromReg(baseSlot))
		if dst.Off != 0 {
			e.emit(Move("d", "a"))
			e.materializeNumber("a", uint32(dst.Off))
			e.emit(op("a+=d"))
		}
		e.emit(Move("d", "a"))
		e.emit(Move("a", "c"))
		e.emit(op("*d=a"))
	case ir.AbsH:
		e.emit(Move("c", "a"))
		e.materializeNumber("a", dst.Imm)
		e.emit(Move("d", "a"))
		e.emit(Move("a", "c"))
		e.emit(op("*d=a"))
	case ir.AbsM:
		e.emit(Move("c", "a"))
		e.materializeNumber("a", dst.Imm)
		e.emit(Move("b", "a"))
		e.emit(Move("a", "c"))
		e.emit(op("*b=a"))
	}
	e.invalidateMemory()
}
