package asm

import (
	"testing"

	"github.com/pothos/zpaqlc/pkg/zpaql"
)

func TestAssembleResolvesForwardLongJump(t *testing.T) {
	ops := []zpaql.Op{
		zpaql.LJ("end"),
		zpaql.Halt(),
		zpaql.Label("end"),
		zpaql.Out(),
	}
	res, err := NewAssembler().Assemble(ops)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Ops) != 3 {
		t.Fatalf("expected 3 resolved ops (label dropped), got %v", res.Ops)
	}
	if res.Ops[0].Mnemonic != "lj" || res.Ops[0].Arg != 4 {
		t.Fatalf("expected lj 4 (past the 3-byte lj and the 1-byte halt), got %v", res.Ops[0])
	}
	if res.Labels["end"] != 4 {
		t.Fatalf("expected label end at position 4, got %d", res.Labels["end"])
	}
}

func TestAssembleResolvesShortBackwardRelativeJump(t *testing.T) {
	ops := []zpaql.Op{
		zpaql.Label("top"),
		zpaql.Out(),
		zpaql.JT("top"),
	}
	res, err := NewAssembler().Assemble(ops)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// jt is at position 1, size 2; its own end is at 3; top is at 0;
	// relative offset is 0 - 3 = -3.
	last := res.Ops[len(res.Ops)-1]
	if last.Mnemonic != "jt" || last.Arg != -3 {
		t.Fatalf("expected jt -3, got %v", last)
	}
}

func TestAssembleRejectsUndefinedLabel(t *testing.T) {
	ops := []zpaql.Op{zpaql.LJ("nowhere")}
	if _, err := NewAssembler().Assemble(ops); err == nil {
		t.Fatal("expected an error for an undefined label")
	}
}

func TestAssembleRejectsOutOfRangeRelativeJump(t *testing.T) {
	ops := []zpaql.Op{zpaql.JF("far")}
	for i := 0; i < 200; i++ {
		ops = append(ops, zpaql.Out())
	}
	ops = append(ops, zpaql.Label("far"))
	if _, err := NewAssembler().Assemble(ops); err == nil {
		t.Fatal("expected a range error for a 200-byte jt/jf offset")
	}
}

func TestAssembleRejectsDuplicateLabel(t *testing.T) {
	ops := []zpaql.Op{zpaql.Label("l"), zpaql.Label("l")}
	if _, err := NewAssembler().Assemble(ops); err == nil {
		t.Fatal("expected an error for a duplicate label definition")
	}
}

func TestAssembleKeepsCommentsAtZeroSize(t *testing.T) {
	ops := []zpaql.Op{
		zpaql.Comment("explains the next op"),
		zpaql.Out(),
		zpaql.Label("here"),
		zpaql.Halt(),
	}
	res, err := NewAssembler().Assemble(ops)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Labels["here"] != 1 {
		t.Fatalf("expected 'here' at position 1 (comment contributes 0 bytes), got %d", res.Labels["here"])
	}
	found := false
	for _, o := range res.Ops {
		if o.Mnemonic == "comment" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the comment to survive assembly for optional rendering")
	}
}
