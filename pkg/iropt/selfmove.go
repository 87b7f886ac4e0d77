package iropt

import "github.com/pothos/zpaqlc/pkg/ir"

// SelfMovePass drops assignments whose source and destination are the same
// operand — the IR generator and the calling convention both
// occasionally produce these (e.g. restoring a value into the slot it was
// already read from).
type SelfMovePass struct{}

func (p *SelfMovePass) Name() string { return "redundant-self-move" }

func (p *SelfMovePass) Run(unit *ir.Unit) (bool, error) {
	changed := false
	out := make([]ir.Instr, 0, len(unit.Instructions))
	for _, inst := range unit.Instructions {
		if inst.Op == ir.OpAssign && inst.Dst == inst.A {
			changed = true
			continue
		}
		out = append(out, inst)
	}
	unit.Instructions = out
	return changed, nil
}
