// Package irgen lowers one AST translation unit to pkg/ir's three-address
// form. It walks the AST with a pkg/ir.SymbolTable, handling
// temporaries, locals/globals, arrays, the call convention, control flow,
// built-ins, and the section preamble.
package irgen

import (
	"fmt"

	"github.com/pothos/zpaqlc/pkg/ast"
	"github.com/pothos/zpaqlc/pkg/config"
	"github.com/pothos/zpaqlc/pkg/ir"
)

// Error is a semantic error: an unsupported construct, unknown identifier,
// or a misuse of break/continue.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return "semantic error: " + e.Msg }

// Generator holds the state threaded through one unit's lowering.
type Generator struct {
	sym     *ir.SymbolTable
	unit    *ir.Unit
	opts    config.Options
	section string // "hcomp" or "pcomp"
	h       byte   // hh for hcomp, ph for pcomp: the section's H-space log2 size

	loopDepth   int
	breakLabels []string
	contLabels  []string

	funcs      map[string]*ast.FunctionDef // user-defined functions by name
	funcLabels map[string]string           // function name -> entry label
	calledFns  map[string]bool             // functions actually referenced by a Call

	globalNames map[string]bool // names declared `global` somewhere, resolved to BaseGlobal
	arrayKind   map[string]ir.ArrayKind // compile-time VH/VM tag per variable name, when known

	returnSites     map[int]string // return id -> call-site label, for the trampoline cascade
	trampolineLabel string

	warnings []string
}

// Generate lowers a parsed translation unit into IR, given the already-
// extracted configuration record (for array sizes) and the section name
// ("hcomp" or "pcomp").
func Generate(section string, file *ast.Unit, rec *config.Record, opts config.Options) (*ir.Unit, []string, error) {
	sym := ir.NewSymbolTable()
	sym.ArraySizes.HH, sym.ArraySizes.HM = rec.HH, rec.HM
	sym.ArraySizes.PH, sym.ArraySizes.PM = rec.PH, rec.PM

	g := &Generator{
		sym:         sym,
		unit:        &ir.Unit{Name: section},
		opts:        opts,
		section:     section,
		funcs:       map[string]*ast.FunctionDef{},
		funcLabels:  map[string]string{},
		calledFns:   map[string]bool{},
		globalNames: map[string]bool{},
		arrayKind:   map[string]ir.ArrayKind{},
		returnSites: map[int]string{},
	}
	if section == "hcomp" {
		g.h = rec.HH
	} else {
		g.h = rec.PH
	}
	g.trampolineLabel = g.sym.NewLabel("call_trampoline")

	// First pass: register every top-level function definition so forward
	// calls resolve, then emit the section preamble ahead of user code.
	// The unit's leading header assignments (hh, hm, ph, pm, n,
	// pcomp_invocation) are read by config.ReadHeader and are not lowered;
	// the header names are not defined as variables here.
	var topLevel []ast.Stmt
	var funcOrder []string
	for i, s := range file.Body {
		if a, ok := s.(*ast.Assign); ok && i < 6 {
			if n, ok := a.Target.(*ast.Name); ok {
				switch n.Id {
				case "hh", "hm", "ph", "pm", "n", "pcomp_invocation":
					continue
				}
			}
		}
		if fn, ok := s.(*ast.FunctionDef); ok {
			g.funcs[fn.Name] = fn
			g.funcLabels[fn.Name] = g.sym.NewLabel("func_" + fn.Name)
			funcOrder = append(funcOrder, fn.Name)
			continue
		}
		topLevel = append(topLevel, s)
	}

	g.emitPreamble()

	for _, s := range topLevel {
		if err := g.genStmt(s); err != nil {
			return nil, g.warnings, err
		}
	}
	g.unit.Emit(ir.Halt())

	for _, name := range funcOrder {
		if err := g.genFunction(name, g.funcs[name]); err != nil {
			return nil, g.warnings, err
		}
		g.unit.FuncEntries = append(g.unit.FuncEntries, g.funcLabels[name])
	}

	g.emitTrampoline()

	if !opts.DisableOptim {
		// left to pkg/iropt; irgen only guarantees the IR is well-formed.
	}
	return g.unit, g.warnings, nil
}

func (g *Generator) warnf(format string, args ...interface{}) {
	g.warnings = append(g.warnings, fmt.Sprintf(format, args...))
}

// pushLoop / popLoop track break/continue target labels through nested
// loops.
func (g *Generator) pushLoop(breakLabel, contLabel string) {
	g.loopDepth++
	g.breakLabels = append(g.breakLabels, breakLabel)
	g.contLabels = append(g.contLabels, contLabel)
}

func (g *Generator) popLoop() {
	g.loopDepth--
	g.breakLabels = g.breakLabels[:len(g.breakLabels)-1]
	g.contLabels = g.contLabels[:len(g.contLabels)-1]
}
