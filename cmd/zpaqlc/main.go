package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pothos/zpaqlc/pkg/asm"
	"github.com/pothos/zpaqlc/pkg/config"
	"github.com/pothos/zpaqlc/pkg/ir"
	"github.com/pothos/zpaqlc/pkg/irgen"
	"github.com/pothos/zpaqlc/pkg/iropt"
	"github.com/pothos/zpaqlc/pkg/lexer"
	"github.com/pothos/zpaqlc/pkg/parser"
	"github.com/pothos/zpaqlc/pkg/section"
	"github.com/pothos/zpaqlc/pkg/vm"
	"github.com/pothos/zpaqlc/pkg/zpaql"
	"github.com/spf13/cobra"
)

var (
	outputFile        string
	verbosity         int
	infoLexer         bool
	infoParser        bool
	infoIR            bool
	infoOptim         bool
	emitIR            bool
	suppressPcomp     bool
	suppressHcomp     bool
	disableComp       bool
	disableOptim      bool
	fixedGlobalAccess bool
	ignoreErrors      bool
	emitTemplate      bool
	noPostZpaql       bool
	noComments        bool
	noPCComments      bool
	stackSize         uint32
	externTokenizer   bool
	runHcompFile      string
	listPresets       bool
	presetName        string
)

var rootCmd = &cobra.Command{
	Use:           "zpaqlc [source file]",
	Short:         "Compiler from a restricted Python-like source language to ZPAQL",
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listPresets {
			return runListPresets()
		}
		if emitTemplate {
			return runEmitTemplate()
		}
		if len(args) == 0 {
			return cmd.Help()
		}
		return compile(args[0])
	},
}

func init() {
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v", "increase verbosity (-v..-vvvv)")
	rootCmd.Flags().BoolVar(&infoLexer, "info-lexer", false, "print the token stream and exit")
	rootCmd.Flags().BoolVar(&infoParser, "info-parser", false, "print each unit's top-level statement count and exit")
	rootCmd.Flags().BoolVar(&infoIR, "info-ir", false, "print the lowered IR and exit")
	rootCmd.Flags().BoolVar(&infoOptim, "info-optim", false, "print the optimized IR and exit")
	rootCmd.Flags().BoolVarP(&emitIR, "emit-ir", "S", false, "emit IR instead of ZPAQL")
	rootCmd.Flags().BoolVar(&suppressPcomp, "suppress-pcomp", false, "omit the pcomp block from the output")
	rootCmd.Flags().BoolVar(&suppressHcomp, "suppress-hcomp", false, "emit a lone halt for hcomp")
	rootCmd.Flags().BoolVar(&disableComp, "disable-comp", false, "disable the comp model entirely (implies --suppress-hcomp)")
	rootCmd.Flags().BoolVar(&disableOptim, "disable-optim", false, "skip the IR optimization pipeline")
	rootCmd.Flags().BoolVar(&fixedGlobalAccess, "fixed-global-access", false, "address globals at a fixed offset instead of via the base pointer")
	rootCmd.Flags().BoolVar(&ignoreErrors, "ignore-errors", false, "downgrade semantic and layout errors to warnings")
	rootCmd.Flags().BoolVar(&emitTemplate, "emit-template", false, "emit a starter source template and exit")
	rootCmd.Flags().BoolVar(&noPostZpaql, "no-post-zpaql", false, "skip the peephole post-pass")
	rootCmd.Flags().BoolVar(&noComments, "no-comments", false, "omit generated comments from the output")
	rootCmd.Flags().BoolVar(&noPCComments, "no-pc-comments", false, "omit per-instruction byte-offset comments")
	rootCmd.Flags().Uint32Var(&stackSize, "stacksize", config.DefaultStackSize, "activation-record stack budget, in H cells")
	rootCmd.Flags().BoolVar(&externTokenizer, "extern-tokenizer", false, "no effect: the built-in lexer is always used (noted on stderr under -v)")
	rootCmd.Flags().StringVar(&runHcompFile, "run-hcomp", "", "run the assembled hcomp section against FILE's bytes on the reference VM")
	rootCmd.Flags().BoolVar(&listPresets, "list-presets", false, "list available named model-component presets and exit")
	rootCmd.Flags().StringVar(&presetName, "preset", "", "apply a named model-component preset (see --list-presets)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "zpaqlc: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitStatus carries a specific process exit code alongside the error
// cobra prints, for the input-open/output-create distinctions §6 requires.
type exitStatus struct {
	code int
	err  error
}

func (e *exitStatus) Error() string { return e.err.Error() }
func (e *exitStatus) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var es *exitStatus
	if as, ok := err.(*exitStatus); ok {
		es = as
	}
	if es != nil {
		return es.code
	}
	return 1
}

func runListPresets() error {
	names, err := config.PresetNames()
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

const sourceTemplate = `### BEGIN OF EDITABLE SECTION
hh = 16
hm = 16
ph = 16
pm = 16
n = len({0: "cm 19 20"})
pcomp_invocation = "c 0 0"
### END OF EDITABLE SECTION
### BEGIN OF EDITABLE SECTION
pass
### END OF EDITABLE SECTION
### BEGIN OF EDITABLE SECTION
pass
### END OF EDITABLE SECTION
### BEGIN OF EDITABLE SECTION
### END OF EDITABLE SECTION
`

func runEmitTemplate() error {
	out, err := openOutput()
	if err != nil {
		return &exitStatus{code: 3, err: err}
	}
	defer out.Close()
	_, err = io.WriteString(out, sourceTemplate)
	return err
}

func compile(inputPath string) error {
	src, err := readInput(inputPath)
	if err != nil {
		return &exitStatus{code: 2, err: err}
	}

	if externTokenizer && verbosity > 0 {
		fmt.Fprintln(os.Stderr, "--extern-tokenizer requested; no external tokenizer is wired in, falling back to the built-in lexer")
	}
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return fmt.Errorf("lex error: %w", err)
	}
	if verbosity > 0 {
		fmt.Fprintf(os.Stderr, "lexed %d tokens\n", len(toks))
	}
	if infoLexer {
		for _, t := range toks {
			fmt.Printf("%s %q\n", t.Kind, t.Value)
		}
		return nil
	}

	regions, err := section.Split(toks)
	if err != nil {
		return fmt.Errorf("input error: %w", err)
	}

	hcompToks := section.HcompUnit(regions)
	pcompToks := section.PcompUnit(regions)

	hcompAST, err := parser.ParseUnit(hcompToks)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	pcompAST, err := parser.ParseUnit(pcompToks)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	if infoParser {
		fmt.Printf("hcomp: %d statements\npcomp: %d statements\n", len(hcompAST.Body), len(pcompAST.Body))
		return nil
	}

	opts := config.Options{
		StackSize:         stackSize,
		SuppressHcomp:     suppressHcomp || disableComp,
		SuppressPcomp:     suppressPcomp,
		DisableComp:       disableComp,
		DisableOptim:      disableOptim,
		FixedGlobalAccess: fixedGlobalAccess,
		IgnoreErrors:      ignoreErrors,
		NoPostZpaql:       noPostZpaql,
		NoComments:        noComments,
		NoPCComments:      noPCComments,
		EmitIR:            emitIR,
	}

	if verbosity > 1 {
		fmt.Fprintf(os.Stderr, "parsed hcomp (%d stmts) and pcomp (%d stmts) units\n", len(hcompAST.Body), len(pcompAST.Body))
	}

	rec, err := config.ReadHeader(pcompAST, opts)
	if err != nil {
		if !ignoreErrors {
			return fmt.Errorf("config error: %w", err)
		}
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		rec = &config.Record{StackSize: opts.StackSize}
	}

	if presetName != "" {
		if err := config.ApplyPreset(rec, presetName); err != nil {
			return fmt.Errorf("preset error: %w", err)
		}
	}

	hcompIR, hwarns, err := irgen.Generate("hcomp", hcompAST, rec, opts)
	if err != nil {
		return reportSemanticError(err)
	}
	pcompIR, pwarns, err := irgen.Generate("pcomp", pcompAST, rec, opts)
	if err != nil {
		return reportSemanticError(err)
	}
	for _, w := range append(hwarns, pwarns...) {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	if verbosity > 2 {
		fmt.Fprintf(os.Stderr, "generated %d hcomp / %d pcomp IR instructions\n", len(hcompIR.Instructions), len(pcompIR.Instructions))
	}
	if infoIR {
		dumpIR(os.Stdout, hcompIR, pcompIR)
		return nil
	}

	if !opts.DisableOptim {
		opt := iropt.New()
		if err := opt.Optimize(hcompIR); err != nil {
			return fmt.Errorf("optimization error: %w", err)
		}
		if err := opt.Optimize(pcompIR); err != nil {
			return fmt.Errorf("optimization error: %w", err)
		}
		if verbosity > 3 {
			fmt.Fprintf(os.Stderr, "optimized to %d hcomp / %d pcomp IR instructions\n", len(hcompIR.Instructions), len(pcompIR.Instructions))
		}
	}
	if infoOptim {
		dumpIR(os.Stdout, hcompIR, pcompIR)
		return nil
	}

	out, err := openOutput()
	if err != nil {
		return &exitStatus{code: 3, err: err}
	}
	defer out.Close()

	if opts.EmitIR {
		dumpIR(out, hcompIR, pcompIR)
		return nil
	}

	compileUnit := zpaql.Compile
	if opts.NoPostZpaql {
		compileUnit = func(u *ir.Unit, noComments bool) []zpaql.Op {
			ops := []zpaql.Op{zpaql.RegFromA(ir.SlotLastByte)}
			return append(ops, zpaql.NewEmitter(noComments).Emit(u)...)
		}
	}
	if !opts.SuppressHcomp {
		rec.HcompCode = compileUnit(hcompIR, opts.NoComments)
	}
	if !opts.SuppressPcomp {
		rec.PcompCode = compileUnit(pcompIR, opts.NoComments)
	}

	asmd, err := asm.AssembleRecord(rec)
	if err != nil {
		return fmt.Errorf("assembly error: %w", err)
	}

	if err := asm.WriteConfig(out, rec, opts, asmd); err != nil {
		return fmt.Errorf("write error: %w", err)
	}

	if runHcompFile != "" {
		if opts.SuppressHcomp {
			return fmt.Errorf("--run-hcomp requires hcomp to be compiled (not --suppress-hcomp/--disable-comp)")
		}
		return runHcompOnVM(rec, asmd)
	}
	return nil
}

func reportSemanticError(err error) error {
	if ignoreErrors {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		return nil
	}
	return fmt.Errorf("semantic error: %w", err)
}

func readInput(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	return string(b), nil
}

func openOutput() (io.WriteCloser, error) {
	if outputFile == "" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", outputFile, err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func dumpIR(w io.Writer, hcompIR, pcompIR *ir.Unit) {
	dumpUnit(w, hcompIR)
	dumpUnit(w, pcompIR)
}

func dumpUnit(w io.Writer, u *ir.Unit) {
	fmt.Fprintf(w, "; %s\n", u.Name)
	for _, inst := range u.Instructions {
		fmt.Fprintf(w, "  %s\n", inst.String())
	}
}

// runHcompOnVM feeds every byte of the given file through the assembled
// hcomp section on the reference machine, printing the resulting H array
// after each byte: a way to sanity-check a .cfg's hcomp logic without
// zpaqd.
func runHcompOnVM(rec *config.Record, asmd *asm.Assembled) error {
	f, err := os.Open(runHcompFile)
	if err != nil {
		return fmt.Errorf("opening %s: %w", runHcompFile, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", runHcompFile, err)
	}

	prog := vm.NewProgram(asmd.Hcomp)
	m := vm.NewMachine(rec.HH, rec.HM)
	for i, b := range data {
		if err := m.Run(prog, b); err != nil {
			return fmt.Errorf("run-hcomp: byte %d: %w", i, err)
		}
		fmt.Printf("after byte %d (0x%02x): H[0:%d]=%v\n", i, b, len(m.H), m.H)
	}
	return nil
}
