// Package config extracts the compile-time configuration record from the
// pcomp translation unit's header assignments and holds the
// resulting record through the rest of the pipeline.
package config

import (
	"fmt"

	"github.com/pothos/zpaqlc/pkg/ast"
	"github.com/pothos/zpaqlc/pkg/zpaql"
)

// DefaultStackSize is the default activation-record stack budget
// (2^20 cells of H), overridable by --stacksize.
const DefaultStackSize uint32 = 1 << 20

// ModelComponent is one context-mixing component: its index in the model
// and its ZPAQ model-component definition text, emitted verbatim.
type ModelComponent struct {
	Index      int
	Definition string
}

// Record is the configuration extracted from a pcomp unit's header, plus
// the options that travel with it through the rest of the pipeline.
type Record struct {
	HH, HM, PH, PM byte
	N              byte
	StackSize      uint32
	Model          []ModelComponent
	PcompInvocation string

	HcompCode []zpaql.Op
	PcompCode []zpaql.Op
}

// Options are the compiler options threaded through the pipeline as an
// explicit record instead of package globals.
type Options struct {
	StackSize       uint32
	SuppressHcomp   bool
	SuppressPcomp   bool
	DisableComp     bool // implies SuppressHcomp
	DisableOptim    bool
	FixedGlobalAccess bool
	IgnoreErrors    bool
	NoPostZpaql     bool
	NoComments      bool
	NoPCComments    bool
	EmitIR          bool // -S
}

// DefaultOptions returns the CLI's documented defaults.
func DefaultOptions() Options {
	return Options{StackSize: DefaultStackSize}
}

// requiredHeaderNames are the exact six names, in any order, the first six
// top-level assignments of the pcomp unit must define.
var requiredHeaderNames = []string{"hh", "hm", "ph", "pm", "n", "pcomp_invocation"}

// Error reports a malformed or missing header constant.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return "config error: " + e.Msg }

// ReadHeader scans the first six top-level assignments of the pcomp AST
// and evaluates them as compile-time constants.
func ReadHeader(pcompUnit *ast.Unit, opts Options) (*Record, error) {
	assigns := leadingAssigns(pcompUnit, 6)
	if len(assigns) < 6 {
		return nil, &Error{Msg: fmt.Sprintf("pcomp header must open with 6 top-level assignments (hh, hm, ph, pm, n, pcomp_invocation); found %d", len(assigns))}
	}
	seen := map[string]ast.Expr{}
	order := map[string]int{}
	for i, a := range assigns {
		name, ok := a.Target.(*ast.Name)
		if !ok {
			return nil, &Error{Msg: "pcomp header assignment target must be a plain name"}
		}
		seen[name.Id] = a.Value
		order[name.Id] = i
	}
	for _, want := range requiredHeaderNames {
		if _, ok := seen[want]; !ok {
			return nil, &Error{Msg: fmt.Sprintf("pcomp header is missing required constant %q", want)}
		}
	}
	rec := &Record{StackSize: opts.StackSize}
	var err error
	if rec.HH, err = evalByte(seen["hh"]); err != nil {
		return nil, fmt.Errorf("hh: %w", err)
	}
	if rec.HM, err = evalByte(seen["hm"]); err != nil {
		return nil, fmt.Errorf("hm: %w", err)
	}
	if rec.PH, err = evalByte(seen["ph"]); err != nil {
		return nil, fmt.Errorf("ph: %w", err)
	}
	if rec.PM, err = evalByte(seen["pm"]); err != nil {
		return nil, fmt.Errorf("pm: %w", err)
	}
	model, err := evalModelLen(seen["n"])
	if err != nil {
		return nil, fmt.Errorf("n: %w", err)
	}
	rec.Model = model
	if len(model) > 255 {
		return nil, &Error{Msg: "model component count exceeds 255"}
	}
	rec.N = byte(len(model))
	inv, err := evalStr(seen["pcomp_invocation"])
	if err != nil {
		return nil, fmt.Errorf("pcomp_invocation: %w", err)
	}
	rec.PcompInvocation = inv
	return rec, nil
}

func leadingAssigns(u *ast.Unit, n int) []*ast.Assign {
	var out []*ast.Assign
	for _, s := range u.Body {
		a, ok := s.(*ast.Assign)
		if !ok {
			break
		}
		out = append(out, a)
		if len(out) == n {
			break
		}
	}
	return out
}

func evalByte(e ast.Expr) (byte, error) {
	v, err := evalConstUint(e)
	if err != nil {
		return 0, err
	}
	if v > 255 {
		return 0, fmt.Errorf("value %d does not fit in a byte", v)
	}
	return byte(v), nil
}

func evalConstUint(e ast.Expr) (uint32, error) {
	switch v := e.(type) {
	case *ast.Num:
		return v.Value, nil
	case *ast.UnaryOp:
		x, err := evalConstUint(v.X)
		if err != nil {
			return 0, err
		}
		switch v.Op.String() {
		case "-":
			return uint32(-int64(x)), nil
		case "~":
			return ^x, nil
		}
		return 0, fmt.Errorf("unsupported constant unary operator %s", v.Op)
	default:
		return 0, fmt.Errorf("expected a numeric constant, got %T", e)
	}
}

func evalStr(e ast.Expr) (string, error) {
	s, ok := e.(*ast.Str)
	if !ok {
		return "", fmt.Errorf("expected a string constant, got %T", e)
	}
	return s.Value, nil
}

// evalModelLen evaluates `len({...})`: the dict literal's entries become
// the ordered model-component list, and its entry count becomes n.
func evalModelLen(e ast.Expr) ([]ModelComponent, error) {
	call, ok := e.(*ast.Call)
	if !ok {
		return nil, fmt.Errorf("expected len({...}), got %T", e)
	}
	name, ok := call.Func.(*ast.Name)
	if !ok || name.Id != "len" {
		return nil, fmt.Errorf("expected a call to len(), got %T", call.Func)
	}
	if len(call.Args) != 1 {
		return nil, fmt.Errorf("len() expects exactly one argument")
	}
	dict, ok := call.Args[0].(*ast.Dict)
	if !ok {
		return nil, fmt.Errorf("expected a dict literal argument to len(), got %T", call.Args[0])
	}
	out := make([]ModelComponent, 0, len(dict.Entries))
	for _, entry := range dict.Entries {
		idx, err := evalConstUint(entry.Key)
		if err != nil {
			return nil, fmt.Errorf("model component key: %w", err)
		}
		def, err := evalStr(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("model component %d definition: %w", idx, err)
		}
		out = append(out, ModelComponent{Index: int(idx), Definition: def})
	}
	return out, nil
}

// HTotalLog2 computes ceil(log2(2^h + stacksize)); a total above 2^32 is
// an Error.
func HTotalLog2(h byte, stackSize uint32) (byte, error) {
	base := uint64(1) << h
	total := base + uint64(stackSize)
	if total > (uint64(1) << 32) {
		return 0, &Error{Msg: "H address space exceeds 2^32"}
	}
	var log2 byte
	for (uint64(1) << log2) < total {
		log2++
	}
	if log2 > 32 {
		return 0, &Error{Msg: "H address space exceeds 2^32"}
	}
	return log2, nil
}
