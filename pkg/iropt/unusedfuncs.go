package iropt

import "github.com/pothos/zpaqlc/pkg/ir"

// UnusedFuncPass deletes the body of every function definition nothing in
// the unit ever calls. A function can only become unreferenced by another
// removal (its sole caller was itself dead code), so the Optimizer's outer
// loop re-runs this pass to a fixpoint.
type UnusedFuncPass struct{}

func (p *UnusedFuncPass) Name() string { return "unused-function-removal" }

func (p *UnusedFuncPass) Run(unit *ir.Unit) (bool, error) {
	if len(unit.FuncEntries) == 0 {
		return false, nil
	}

	labelPos := map[string]int{}
	for i, inst := range unit.Instructions {
		if inst.Op == ir.OpLabel {
			labelPos[inst.Label] = i
		}
	}

	called := map[string]bool{}
	for _, inst := range unit.Instructions {
		if inst.CallTarget != "" {
			called[inst.CallTarget] = true
		}
	}

	type span struct{ start, end int }
	spans := map[string]span{}
	for i, entry := range unit.FuncEntries {
		start, ok := labelPos[entry]
		if !ok {
			continue
		}
		end := len(unit.Instructions)
		if i+1 < len(unit.FuncEntries) {
			if next, ok := labelPos[unit.FuncEntries[i+1]]; ok {
				end = next
			}
		} else if tpos, ok := labelPos[unit.TrampolineLabel]; ok {
			end = tpos
		}
		spans[entry] = span{start, end}
	}

	removed := map[int]bool{}
	keptEntries := make([]string, 0, len(unit.FuncEntries))
	changed := false
	for _, entry := range unit.FuncEntries {
		s, ok := spans[entry]
		if !ok {
			keptEntries = append(keptEntries, entry)
			continue
		}
		if called[entry] {
			keptEntries = append(keptEntries, entry)
			continue
		}
		changed = true
		for i := s.start; i < s.end; i++ {
			removed[i] = true
		}
	}
	if !changed {
		return false, nil
	}

	out := make([]ir.Instr, 0, len(unit.Instructions))
	for i, inst := range unit.Instructions {
		if removed[i] {
			continue
		}
		out = append(out, inst)
	}
	unit.Instructions = out
	unit.FuncEntries = keptEntries

	pruneDanglingTrampolineEntries(unit)
	return true, nil
}

// pruneDanglingTrampolineEntries removes the trampoline cascade's dispatch
// entries for return ids whose resume label vanished along with the
// function body that contained the call site.
func pruneDanglingTrampolineEntries(unit *ir.Unit) {
	live := map[string]bool{}
	for _, inst := range unit.Instructions {
		if inst.Op == ir.OpLabel {
			live[inst.Label] = true
		}
	}
	out := make([]ir.Instr, 0, len(unit.Instructions))
	prunedIDs := map[int]bool{}
	for _, inst := range unit.Instructions {
		if isTrampolineDispatch(inst) && !live[inst.Label] {
			prunedIDs[int(inst.B.Imm)] = true
			continue
		}
		out = append(out, inst)
	}
	keptIDs := make([]int, 0, len(unit.ReturnIDs))
	for _, id := range unit.ReturnIDs {
		if !prunedIDs[id] {
			keptIDs = append(keptIDs, id)
		}
	}
	unit.Instructions = out
	unit.ReturnIDs = keptIDs
}

func isTrampolineDispatch(inst ir.Instr) bool {
	return inst.Op == ir.OpBranchEq && inst.A.Kind == ir.Reg && inst.A.Slot == ir.SlotRetID && inst.B.Kind == ir.Imm
}
