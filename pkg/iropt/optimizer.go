// Package iropt runs a small, fixed pipeline of cleanup passes over one
// lowered ir.Unit before it reaches the zpaql emitter: flatten any leftover
// block markers, drop no-op self moves, delete unreferenced function
// bodies, and prune each call's save/restore down to the temporaries read
// again after the call.
package iropt

import (
	"fmt"

	"github.com/pothos/zpaqlc/pkg/ir"
)

// Pass is one optimization pass over a unit.
type Pass interface {
	Name() string
	Run(unit *ir.Unit) (bool, error)
}

// Optimizer runs its passes in order, repeating the whole pipeline until a
// full pass over all of them makes no further change (or the iteration cap
// is hit).
type Optimizer struct {
	passes []Pass
}

// New builds the standard pipeline: deblock, redundant self-move removal,
// unused-function removal, then liveness-pruned temp save/restore.
func New() *Optimizer {
	return &Optimizer{passes: []Pass{
		&DeblockPass{},
		&SelfMovePass{},
		&UnusedFuncPass{},
		&LivenessSavePass{},
	}}
}

const maxIterations = 10

// Optimize runs the pipeline to a fixpoint.
func (o *Optimizer) Optimize(unit *ir.Unit) error {
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for _, p := range o.passes {
			c, err := p.Run(unit)
			if err != nil {
				return fmt.Errorf("optimization pass %s failed: %w", p.Name(), err)
			}
			if c {
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return nil
}
