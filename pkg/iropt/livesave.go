package iropt

import "github.com/pothos/zpaqlc/pkg/ir"

// LivenessSavePass narrows each call site's StoreTempVars/LoadTempVars pair
// down to the temporaries actually read again after the call returns. The
// generator saves every temp live in scope at the call (a safe
// over-approximation); a reverse liveness scan usually finds several of
// them are never touched again and drops the matching stack traffic.
type LivenessSavePass struct{}

func (p *LivenessSavePass) Name() string { return "liveness-pruned-save-restore" }

func (p *LivenessSavePass) Run(unit *ir.Unit) (bool, error) {
	live := map[int]bool{}
	necessary := map[int][]int{}
	changed := false

	for i := len(unit.Instructions) - 1; i >= 0; i-- {
		inst := unit.Instructions[i]
		switch inst.Op {
		case ir.OpLoadTempVars:
			keep := make([]int, 0, len(inst.TempIDs))
			for _, t := range inst.TempIDs {
				if live[t] {
					keep = append(keep, t)
				}
			}
			if len(keep) != len(inst.TempIDs) {
				changed = true
			}
			necessary[inst.StackOff] = keep
			unit.Instructions[i].TempIDs = keep
			for _, t := range inst.TempIDs {
				delete(live, t)
			}
		case ir.OpStoreTempVars:
			keep := necessary[inst.StackOff]
			if keep == nil {
				keep = inst.TempIDs
			}
			if len(keep) != len(inst.TempIDs) {
				changed = true
			}
			unit.Instructions[i].TempIDs = keep
			for _, t := range keep {
				live[t] = true
			}
		default:
			applyLivenessEffect(inst, live)
		}
	}
	return changed, nil
}

func applyLivenessEffect(inst ir.Instr, live map[int]bool) {
	if inst.Dst.Kind == ir.Reg {
		delete(live, inst.Dst.Slot)
	} else {
		for _, s := range inst.Dst.RegSlots() {
			live[s] = true
		}
	}
	for _, s := range inst.A.RegSlots() {
		live[s] = true
	}
	for _, s := range inst.B.RegSlots() {
		live[s] = true
	}
}
