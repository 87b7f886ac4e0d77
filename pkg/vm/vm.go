// Package vm is the reference interpreter for assembled ZPAQL: a small
// fetch-decode-execute loop over the same closed opcode table pkg/zpaql
// emits, used to self-test the compiler's output and to drive
// --run-hcomp.
package vm

import (
	"fmt"

	"github.com/pothos/zpaqlc/pkg/zpaql"
)

// Machine is one section's execution state: the four physical
// accumulators, the comparison flag, the 256-slot register file, and the
// sized H/M arrays. R-slots, H, and M persist across Run calls, modelling
// the target's cooperative per-byte suspend/resume protocol; only the
// instruction pointer and the physical accumulator A reset on every call.
type Machine struct {
	A, B, C, D uint32
	F          bool
	R          [256]uint32
	H          []uint32
	M          []byte
	Output     []byte
}

// NewMachine allocates a machine whose H and M arrays hold 2^hBits and
// 2^mBits cells respectively.
func NewMachine(hBits, mBits byte) *Machine {
	return &Machine{
		H: make([]uint32, 1<<hBits),
		M: make([]byte, 1<<mBits),
	}
}

// Run executes prog from its first instruction with newByte preloaded into
// A — the value the physical accumulator holds on every section entry —
// until a halt instruction or the program falls off its end.
func (m *Machine) Run(prog *Program, newByte byte) error {
	m.A = uint32(newByte)
	idx := 0
	for idx < len(prog.Ops) {
		next, halted, err := m.step(prog, idx, prog.Ops[idx])
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
		idx = next
	}
	return nil
}

func (m *Machine) step(prog *Program, idx int, o zpaql.Op) (next int, halted bool, err error) {
	switch o.Mnemonic {
	case "comment", "label":
		return idx + 1, false, nil
	case "halt":
		return idx, true, nil
	case "error":
		return idx, false, fmt.Errorf("error instruction reached at PC %d", prog.Offsets[idx])
	case "out":
		m.Output = append(m.Output, byte(m.A))

	case "a=0":
		m.A = 0
	case "a++":
		m.A++
	case "a--":
		m.A--
	case "b++":
		m.B++
	case "c++":
		m.C++
	case "d++":
		m.D++
	case "a=~a":
		m.A = ^m.A

	case "a!=0":
		m.F = m.A != 0
	case "a==c":
		m.F = m.A == m.C
	case "a<c":
		m.F = m.A < m.C
	case "a>c":
		m.F = m.A > m.C

	case "a+=c":
		m.A += m.C
	case "a-=c":
		m.A -= m.C
	case "a*=c":
		m.A *= m.C
	case "a/=c":
		m.A = divOrZero(m.A, m.C)
	case "a%=c":
		m.A = modOrZero(m.A, m.C)
	case "a&=c":
		m.A &= m.C
	case "a|=c":
		m.A |= m.C
	case "a^=c":
		m.A ^= m.C
	case "a<<=c":
		m.A <<= m.C & 31
	case "a>>=c":
		m.A >>= m.C & 31
	case "a*=b":
		m.A *= m.B
	case "a+=d":
		m.A += m.D

	case "a=b":
		m.A = m.B
	case "a=c":
		m.A = m.C
	case "a=d":
		m.A = m.D
	case "b=a":
		m.B = m.A
	case "c=a":
		m.C = m.A
	case "d=a":
		m.D = m.A

	case "a=*b":
		m.A = uint32(m.M[int(m.B)%len(m.M)])
	case "a=*c":
		m.A = uint32(m.M[int(m.C)%len(m.M)])
	case "a=*d":
		m.A = m.H[int(m.D)%len(m.H)]
	case "*b=a":
		m.M[int(m.B)%len(m.M)] = byte(m.A)
	case "*c=a":
		m.M[int(m.C)%len(m.M)] = byte(m.A)
	case "*d=a":
		m.H[int(m.D)%len(m.H)] = m.A

	case "a=":
		m.A = uint32(o.Arg)
	case "a<<=":
		m.A <<= uint32(o.Arg)
	case "a+=":
		m.A += uint32(o.Arg)
	case "a=r":
		m.A = m.R[o.Arg]
	case "r=a":
		m.R[o.Arg] = m.A

	case "jt":
		if m.F {
			return m.jump(prog, idx, o)
		}
	case "jf":
		if !m.F {
			return m.jump(prog, idx, o)
		}
	case "lj":
		ni, err := prog.indexOf(o.Arg)
		if err != nil {
			return idx, false, err
		}
		return ni, false, nil

	default:
		return idx, false, fmt.Errorf("unrecognized instruction %q at PC %d", o.Mnemonic, prog.Offsets[idx])
	}
	return idx + 1, false, nil
}

// jump resolves a taken jt/jf to its target instruction index: the signed
// one-byte offset is relative to the byte position immediately following
// the jt/jf instruction itself.
func (m *Machine) jump(prog *Program, idx int, o zpaql.Op) (int, bool, error) {
	target := prog.Offsets[idx] + o.Size() + o.Arg
	ni, err := prog.indexOf(target)
	if err != nil {
		return idx, false, err
	}
	return ni, false, nil
}

func divOrZero(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return a / b
}

func modOrZero(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return a % b
}
