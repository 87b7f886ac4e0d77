package iropt

import "github.com/pothos/zpaqlc/pkg/ir"

// DeblockPass flattens structural markers the generator leaves behind
// (OpNop placeholders, empty OpBlock wrappers) into the surrounding
// instruction stream.
type DeblockPass struct{}

func (p *DeblockPass) Name() string { return "deblock" }

func (p *DeblockPass) Run(unit *ir.Unit) (bool, error) {
	changed := false
	out := make([]ir.Instr, 0, len(unit.Instructions))
	for _, inst := range unit.Instructions {
		if inst.Op == ir.OpNop || inst.Op == ir.OpBlock {
			changed = true
			continue
		}
		out = append(out, inst)
	}
	unit.Instructions = out
	return changed, nil
}
