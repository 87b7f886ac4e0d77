package irgen

import (
	"strings"
	"testing"

	"github.com/pothos/zpaqlc/pkg/config"
	"github.com/pothos/zpaqlc/pkg/ir"
)

func TestGenerateArraySubscriptReadWriteHcomp(t *testing.T) {
	src := "hH[0] = 5\nx = hH[0]\n"
	u := mustParse(t, src)
	unit, _, err := Generate("hcomp", u, testRecord(), config.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	counts := opCounts(unit)
	if counts[ir.OpAssign] < 2 {
		t.Fatalf("expected a store into hH and a load from hH, got %v", counts)
	}
}

func TestGenerateArraySubscriptMWriteMasksTagBit(t *testing.T) {
	src := "hM[0] = 5\n"
	u := mustParse(t, src)
	unit, _, err := Generate("hcomp", u, testRecord(), config.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if opCounts(unit)[ir.OpAssign] == 0 {
		t.Fatalf("expected at least one assign for the hM store")
	}
}

func TestGenerateArrayNameOutOfSectionIsError(t *testing.T) {
	// pH/pM only make sense in the pcomp section; referencing them from
	// hcomp must fail rather than silently compile.
	src := "x = pH[0]\n"
	u := mustParse(t, src)
	_, _, err := Generate("hcomp", u, testRecord(), config.DefaultOptions())
	if err == nil || !strings.Contains(err.Error(), "not in scope") {
		t.Fatalf("expected an out-of-section array error, got %v", err)
	}
}

func TestGenerateBoolOpOrShortCircuitsWithBranch(t *testing.T) {
	src := "x = 0\ny = 1\nz = x or y\n"
	u := mustParse(t, src)
	unit, _, err := Generate("hcomp", u, testRecord(), config.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if opCounts(unit)[ir.OpBranchNZero] == 0 {
		t.Fatalf("expected 'or' to lower to a branch-if-nonzero short circuit")
	}
}

func TestGenerateBoolOpAndShortCircuitsWithBranch(t *testing.T) {
	src := "x = 1\ny = 0\nz = x and y\n"
	u := mustParse(t, src)
	unit, _, err := Generate("hcomp", u, testRecord(), config.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// one OpBranchZero always comes from the section preamble.
	if opCounts(unit)[ir.OpBranchZero] < 2 {
		t.Fatalf("expected 'and' to lower to a branch-if-zero short circuit")
	}
}

func TestGenerateChainedCompareEmitsOneLinkPerOperator(t *testing.T) {
	src := "x = 5\nz = 1 < x < 10\n"
	u := mustParse(t, src)
	unit, _, err := Generate("hcomp", u, testRecord(), config.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// two links plus the section preamble's own OpBranchZero.
	if opCounts(unit)[ir.OpBranchZero] != 3 {
		t.Fatalf("expected one early-exit branch per comparison link, got %v", opCounts(unit))
	}
}

func TestGenerateStringLiteralAsValueIsError(t *testing.T) {
	u := mustParse(t, "x = \"oops\"\n")
	_, _, err := Generate("hcomp", u, testRecord(), config.DefaultOptions())
	if err == nil || !strings.Contains(err.Error(), "not runtime values") {
		t.Fatalf("expected a string-as-value error, got %v", err)
	}
}
