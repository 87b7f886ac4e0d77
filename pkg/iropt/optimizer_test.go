package iropt

import (
	"testing"

	"github.com/pothos/zpaqlc/pkg/ir"
)

func TestSelfMovePassDropsNoOp(t *testing.T) {
	unit := &ir.Unit{Instructions: []ir.Instr{
		{Op: ir.OpAssign, Dst: ir.RegOp(3), A: ir.RegOp(3)},
		{Op: ir.OpAssign, Dst: ir.RegOp(4), A: ir.ImmOp(1)},
	}}
	changed, err := (&SelfMovePass{}).Run(unit)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected change")
	}
	if len(unit.Instructions) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(unit.Instructions))
	}
}

func TestDeblockDropsMarkers(t *testing.T) {
	unit := &ir.Unit{Instructions: []ir.Instr{
		{Op: ir.OpNop},
		{Op: ir.OpAssign, Dst: ir.RegOp(1), A: ir.ImmOp(5)},
		{Op: ir.OpBlock},
	}}
	changed, err := (&DeblockPass{}).Run(unit)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || len(unit.Instructions) != 1 {
		t.Fatalf("expected markers stripped, got %d instructions", len(unit.Instructions))
	}
}

func TestUnusedFuncPassDeletesUncalledBody(t *testing.T) {
	unit := &ir.Unit{
		FuncEntries:     []string{"func_used", "func_dead"},
		TrampolineLabel: "trampoline",
		Instructions: []ir.Instr{
			ir.Halt(),
			{Op: ir.OpGoto, Label: "func_used", CallTarget: "func_used"},
			ir.Label("func_used"),
			{Op: ir.OpAssign, Dst: ir.RegOp(1), A: ir.ImmOp(1)},
			ir.Goto("trampoline"),
			ir.Label("func_dead"),
			{Op: ir.OpAssign, Dst: ir.RegOp(2), A: ir.ImmOp(2)},
			ir.Goto("trampoline"),
			ir.Label("trampoline"),
			ir.ErrorTrap(),
		},
	}
	changed, err := (&UnusedFuncPass{}).Run(unit)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected the dead function to be removed")
	}
	for _, inst := range unit.Instructions {
		if inst.Op == ir.OpLabel && inst.Label == "func_dead" {
			t.Fatal("func_dead body should have been deleted")
		}
	}
	if len(unit.FuncEntries) != 1 || unit.FuncEntries[0] != "func_used" {
		t.Fatalf("FuncEntries should only retain func_used, got %v", unit.FuncEntries)
	}
}

func TestLivenessSavePassPrunesUnusedTemps(t *testing.T) {
	unit := &ir.Unit{Instructions: []ir.Instr{
		{Op: ir.OpStoreTempVars, TempIDs: []int{5, 6}, StackOff: 0},
		ir.Goto("callee"),
		ir.Label("ret1"),
		{Op: ir.OpLoadTempVars, TempIDs: []int{5, 6}, StackOff: 0},
		// only temp 5 is read again after the call returns.
		{Op: ir.OpAssign, Dst: ir.RegOp(9), A: ir.RegOp(5)},
	}}
	changed, err := (&LivenessSavePass{}).Run(unit)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected pruning to report a change")
	}
	store := unit.Instructions[0]
	if len(store.TempIDs) != 1 || store.TempIDs[0] != 5 {
		t.Fatalf("expected store to keep only temp 5, got %v", store.TempIDs)
	}
}
