package vm

import (
	"fmt"

	"github.com/pothos/zpaqlc/pkg/zpaql"
)

// Program indexes one section's already-assembled (label-free) instruction
// stream by byte offset, the form jt/jf/lj jump targets are resolved in.
type Program struct {
	Ops     []zpaql.Op
	Offsets []int
	size    int
	indexAt map[int]int
}

// NewProgram computes each instruction's byte offset from Op.Size(). Size-
// zero pseudo-ops (comments — labels never survive assembly) share the
// offset of the real instruction immediately following them, so a jump
// landing on that offset naturally resolves to the real instruction: the
// last write to indexAt for a given offset wins.
func NewProgram(ops []zpaql.Op) *Program {
	p := &Program{Ops: ops, Offsets: make([]int, len(ops)), indexAt: map[int]int{}}
	pos := 0
	for i, o := range ops {
		p.Offsets[i] = pos
		p.indexAt[pos] = i
		pos += o.Size()
	}
	p.size = pos
	return p
}

// indexOf resolves a jump's target byte offset to an instruction index.
// Falling exactly one past the end is a valid target (an implicit halt);
// anything else that isn't an instruction boundary is invalid per the
// VM's "instructions of size zero must not appear at a live PC" rule.
func (p *Program) indexOf(offset int) (int, error) {
	if offset == p.size {
		return len(p.Ops), nil
	}
	idx, ok := p.indexAt[offset]
	if !ok {
		return 0, fmt.Errorf("invalid PC %d: not an instruction boundary", offset)
	}
	return idx, nil
}
