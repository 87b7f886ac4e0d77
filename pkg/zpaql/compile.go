package zpaql

import "github.com/pothos/zpaqlc/pkg/ir"

// Compile lowers an optimized unit to its final Op stream: the physical
// accumulator bridge, the register-cache-directed translation, and the
// array-store peephole pass.
//
// ZPAQL re-enters hcomp/pcomp with the fresh input byte sitting in the
// physical A register; the IR's read_b()/peek_b() built-ins model that byte
// as R255 instead; so every unit opens by copying A across before any IR
// instruction runs.
func Compile(unit *ir.Unit, noComments bool) []Op {
	e := NewEmitter(noComments)
	ops := make([]Op, 0, len(unit.Instructions)+1)
	ops = append(ops, RegFromA(ir.SlotLastByte))
	ops = append(ops, e.Emit(unit)...)
	return Peephole(ops)
}
