// Package asm resolves a zpaql.Op stream's label references into the
// target's own addressing forms and serialises the result into the
// textual .cfg format zpaqd reads, mirroring the two-pass
// label-then-generate shape used elsewhere in the pipeline.
package asm

import (
	"fmt"

	"github.com/pothos/zpaqlc/pkg/zpaql"
)

// maxSectionSize bounds a single hcomp or pcomp routine: its PC space is a
// 16-bit byte offset.
const maxSectionSize = 65535

// Assembler resolves one section's unresolved jumps to byte positions.
// Pass one walks the op stream recording each label's byte offset; pass
// two rewrites every jt/jf/lj to carry a resolved operand and drops the
// label pseudo-ops.
type Assembler struct {
	pass   int
	pos    int
	labels map[string]int
}

// NewAssembler returns an assembler ready for one Assemble call.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Result is one section's assembled, label-free instruction stream.
type Result struct {
	Ops    []zpaql.Op
	Size   int
	Labels map[string]int
}

// Assemble runs both passes over ops and returns the resolved stream, or
// an error reporting every unresolved label and out-of-range jump found.
func (a *Assembler) Assemble(ops []zpaql.Op) (*Result, error) {
	a.pass = 1
	a.pos = 0
	a.labels = map[string]int{}
	for _, o := range ops {
		if o.Mnemonic == "label" {
			if _, dup := a.labels[o.Label]; dup {
				return nil, fmt.Errorf("label %q defined more than once", o.Label)
			}
			a.labels[o.Label] = a.pos
			continue
		}
		a.pos += o.Size()
	}
	if a.pos > maxSectionSize {
		return nil, fmt.Errorf("section exceeds %d bytes (%d)", maxSectionSize, a.pos)
	}

	a.pass = 2
	a.pos = 0
	out := make([]zpaql.Op, 0, len(ops))
	var errs []error
	for _, o := range ops {
		if o.Mnemonic == "label" {
			continue
		}
		if o.Label != "" {
			resolved, err := a.resolve(o)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			o = resolved
		}
		out = append(out, o)
		a.pos += o.Size()
	}
	if len(errs) > 0 {
		return nil, joinErrors(errs)
	}
	return &Result{Ops: out, Size: a.pos, Labels: a.labels}, nil
}

// resolve fills in o's Arg from its unresolved Label, per the addressing
// mode its mnemonic implies: jt/jf carry a signed one-byte offset relative
// to the instruction immediately following; lj carries an absolute
// 16-bit byte position.
func (a *Assembler) resolve(o zpaql.Op) (zpaql.Op, error) {
	target, ok := a.labels[o.Label]
	if !ok {
		return o, fmt.Errorf("undefined label %q", o.Label)
	}
	switch o.Mnemonic {
	case "jt", "jf":
		rel := target - (a.pos + o.Size())
		if rel < -128 || rel > 127 {
			return o, fmt.Errorf("%s %s: relative jump %d out of range (-128..127)", o.Mnemonic, o.Label, rel)
		}
		o.Arg = rel
	case "lj":
		if target > maxSectionSize {
			return o, fmt.Errorf("lj %s: target %d exceeds %d", o.Label, target, maxSectionSize)
		}
		o.Arg = target
	default:
		return o, fmt.Errorf("instruction %q carries a label but is not a jump", o.Mnemonic)
	}
	o.HasArg = true
	o.Label = ""
	return o, nil
}

func joinErrors(errs []error) error {
	msg := fmt.Sprintf("%d assembly error(s):", len(errs))
	for _, e := range errs {
		msg += "\n  " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
