package vm

import (
	"testing"

	"github.com/pothos/zpaqlc/pkg/zpaql"
)

func TestRunWritesNewByteIntoAccumulator(t *testing.T) {
	prog := NewProgram([]zpaql.Op{zpaql.Out(), zpaql.Halt()})
	m := NewMachine(4, 4)
	if err := m.Run(prog, 0x42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Output) != 1 || m.Output[0] != 0x42 {
		t.Fatalf("expected output [0x42], got %v", m.Output)
	}
}

func TestRunArithmeticWrapsInU32(t *testing.T) {
	prog := NewProgram([]zpaql.Op{zpaql.Halt()})
	m := NewMachine(4, 4)
	m.A = 0xFFFFFFFF
	m.C = 1
	if _, _, err := m.step(prog, 0, zpaql.Op{Mnemonic: "a+=c"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.A != 0 {
		t.Fatalf("expected u32 wraparound to 0, got %d", m.A)
	}
}

func TestRunDivisionByZeroYieldsZero(t *testing.T) {
	if got := divOrZero(7, 0); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := modOrZero(7, 0); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestRunMIndirectWrapsModuloLength(t *testing.T) {
	prog := NewProgram([]zpaql.Op{zpaql.Halt()})
	m := NewMachine(4, 2) // M has 4 cells
	m.B = 9                // 9 % 4 == 1
	m.A = 77
	if _, _, err := m.step(prog, 0, zpaql.Op{Mnemonic: "*b=a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.M[1] != 77 {
		t.Fatalf("expected M[1] == 77, got %v", m.M)
	}
}

func TestRunHIndirectWrapsModuloLength(t *testing.T) {
	prog := NewProgram([]zpaql.Op{zpaql.Halt()})
	m := NewMachine(2, 2) // H has 4 cells
	m.D = 6                // 6 % 4 == 2
	m.A = 1234
	if _, _, err := m.step(prog, 0, zpaql.Op{Mnemonic: "*d=a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.H[2] != 1234 {
		t.Fatalf("expected H[2] == 1234, got %v", m.H)
	}
}

func TestRunConditionalJumpSkipsOnFalseFlag(t *testing.T) {
	// jf skip ; out ; skip: halt  -- jf taken (F false) must land on halt,
	// never executing out.
	ops := []zpaql.Op{
		{Mnemonic: "jf", HasArg: true, Arg: 1}, // skip the 1-byte "out"
		zpaql.Out(),
		zpaql.Halt(),
	}
	prog := NewProgram(ops)
	m := NewMachine(2, 2)
	if err := m.Run(prog, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Output) != 0 {
		t.Fatalf("expected the jump to skip 'out', got output %v", m.Output)
	}
}

func TestRunErrorInstructionReturnsError(t *testing.T) {
	prog := NewProgram([]zpaql.Op{zpaql.Error()})
	m := NewMachine(2, 2)
	if err := m.Run(prog, 0); err == nil {
		t.Fatal("expected an error from the error instruction")
	}
}

func TestRunInvalidJumpTargetReturnsError(t *testing.T) {
	ops := []zpaql.Op{{Mnemonic: "lj", HasArg: true, Arg: 999}}
	prog := NewProgram(ops)
	m := NewMachine(2, 2)
	if err := m.Run(prog, 0); err == nil {
		t.Fatal("expected an error for a jump to a nonexistent instruction boundary")
	}
}

func TestRunPersistsRegistersAcrossInvocations(t *testing.T) {
	ops := []zpaql.Op{
		zpaql.RegFromA(9),
		zpaql.Halt(),
	}
	prog := NewProgram(ops)
	m := NewMachine(2, 2)
	if err := m.Run(prog, 41); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.R[9] != 41 {
		t.Fatalf("expected R[9] == 41, got %d", m.R[9])
	}
	if err := m.Run(prog, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.R[9] != 7 {
		t.Fatalf("expected R[9] == 7 after the second invocation, got %d", m.R[9])
	}
}
