package irgen

import (
	"strings"
	"testing"

	"github.com/pothos/zpaqlc/pkg/config"
	"github.com/pothos/zpaqlc/pkg/ir"
)

func TestGenerateAllocWithoutUserFunctionIsError(t *testing.T) {
	u := mustParse(t, "x = alloc_hH(4)\n")
	_, _, err := Generate("hcomp", u, testRecord(), config.DefaultOptions())
	if err == nil || !strings.Contains(err.Error(), "addr_alloc_hH") {
		t.Fatalf("expected a call to undefined addr_alloc_hH error, got %v", err)
	}
}

func TestGenerateAllocCallsUserDefinedAddrFunction(t *testing.T) {
	src := "def addr_alloc_hH(n):\n    return n\n\nx = alloc_hH(4)\n"
	u := mustParse(t, src)
	unit, _, err := Generate("hcomp", u, testRecord(), config.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(unit.FuncEntries) != 1 {
		t.Fatalf("expected alloc_hH to call through to the user's addr_alloc_hH, got %d func entries", len(unit.FuncEntries))
	}
	called := false
	for _, inst := range unit.Instructions {
		if inst.CallTarget == unit.FuncEntries[0] {
			called = true
		}
	}
	if !called {
		t.Fatalf("expected a call targeting addr_alloc_hH's entry label %q", unit.FuncEntries[0])
	}
}

func TestGenerateAllocHMTagsResultBit31(t *testing.T) {
	src := "def addr_alloc_hM(n):\n    return n\n\nx = alloc_hM(4)\n"
	u := mustParse(t, src)
	unit, _, err := Generate("hcomp", u, testRecord(), config.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	found := false
	for _, inst := range unit.Instructions {
		if inst.Op == ir.OpBinary && inst.BinOp == ir.BinOr && inst.B == ir.ImmOp(1<<31) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected alloc_hM's result to be OR'd with bit 31")
	}
}

func TestGenerateFreeHMMasksArgumentBit31(t *testing.T) {
	src := "def addr_free_hM(p):\n    return 0\n\nfree_hM(hM[0])\n"
	u := mustParse(t, src)
	unit, _, err := Generate("hcomp", u, testRecord(), config.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	found := false
	for _, inst := range unit.Instructions {
		if inst.Op == ir.OpBinary && inst.BinOp == ir.BinAnd && inst.B == ir.ImmOp(0x7fffffff) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected free_hM's argument to be masked with 0x7fffffff before the call")
	}
}

func TestGenerateFreeHHDoesNotMaskArgument(t *testing.T) {
	src := "def addr_free_hH(p):\n    return 0\n\nfree_hH(hH[0])\n"
	u := mustParse(t, src)
	unit, _, err := Generate("hcomp", u, testRecord(), config.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, inst := range unit.Instructions {
		if inst.Op == ir.OpBinary && inst.BinOp == ir.BinAnd && inst.B == ir.ImmOp(0x7fffffff) {
			t.Fatalf("free_hH must not mask bit 31 off its argument (H has no tag bit)")
		}
	}
}

func TestGenerateLenHHReadsLengthWordAtAddrMinusTwo(t *testing.T) {
	u := mustParse(t, "x = len_hH(hH[0])\n")
	unit, _, err := Generate("hcomp", u, testRecord(), config.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	found := false
	for _, inst := range unit.Instructions {
		if inst.Op == ir.OpBinary && inst.BinOp == ir.BinSub && inst.B == ir.ImmOp(2) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected len_hH to subtract 2 from the pointer before loading the length word")
	}
}

func TestGenerateLenHMMasksTagThenReconstructsFourBytes(t *testing.T) {
	u := mustParse(t, "x = len_hM(hM[0])\n")
	unit, _, err := Generate("hcomp", u, testRecord(), config.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	counts := opCounts(unit)
	// the leading mask + addr-5, a plain assign of the first IndMOp load,
	// then three rounds of BinShl-by-8, address BinAdd-by-1, and a BinAdd
	// folding in the next IndMOp load.
	if counts[ir.OpBinary] < 8 {
		t.Fatalf("expected the len_hM big-endian reconstruction's mask/shift/add sequence, got %d binary ops", counts[ir.OpBinary])
	}
}

func TestGenerateLenHHUndefinedFunctionStillErrorsForUnknownBuiltin(t *testing.T) {
	u := mustParse(t, "x = len_qQ(hH[0])\n")
	_, _, err := Generate("hcomp", u, testRecord(), config.DefaultOptions())
	if err == nil || !strings.Contains(err.Error(), "undefined function") {
		t.Fatalf("expected an undefined-function error for a bogus len_ name, got %v", err)
	}
}
