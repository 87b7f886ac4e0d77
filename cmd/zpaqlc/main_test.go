package main

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

const minimalSource = `### BEGIN OF EDITABLE SECTION
hh = 16
hm = 16
ph = 16
pm = 16
n = len({0: "cm 19 20"})
pcomp_invocation = "c 0 0"
### END OF EDITABLE SECTION
### BEGIN OF EDITABLE SECTION
x = 1
out(x)
### END OF EDITABLE SECTION
### BEGIN OF EDITABLE SECTION
y = 2
out(y)
### END OF EDITABLE SECTION
### BEGIN OF EDITABLE SECTION
### END OF EDITABLE SECTION
`

// resetFlags restores every package-level option var to its zero value so
// tests don't leak flag state into one another.
func resetFlags(t *testing.T) {
	t.Helper()
	outputFile = ""
	verbosity = 0
	infoLexer, infoParser, infoIR, infoOptim = false, false, false, false
	emitIR = false
	suppressPcomp, suppressHcomp, disableComp, disableOptim = false, false, false, false
	fixedGlobalAccess, ignoreErrors, emitTemplate = false, false, false
	noPostZpaql, noComments, noPCComments = false, false, false
	stackSize = 1 << 20
	externTokenizer = false
	runHcompFile = ""
	listPresets = false
	presetName = ""
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing source: %v", err)
	}
	return path
}

func TestCompileProducesWellFormedConfig(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	src := writeSource(t, dir, "in.zpy", minimalSource)
	outputFile = filepath.Join(dir, "out.cfg")

	if err := compile(src); err != nil {
		t.Fatalf("compile: %v", err)
	}

	got, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	text := string(got)
	if !strings.HasPrefix(text, "comp 16 16 16 16 1 (hh hm ph pm n)\n") {
		t.Fatalf("unexpected header, got:\n%s", text)
	}
	if !strings.Contains(text, "hcomp\n") {
		t.Fatalf("expected an hcomp block, got:\n%s", text)
	}
	if !strings.Contains(text, "pcomp c 0 0 ;\n") {
		t.Fatalf("expected a pcomp block, got:\n%s", text)
	}
	if !strings.HasSuffix(text, "end\n") {
		t.Fatalf("expected output to end with 'end', got:\n%s", text)
	}
}

func TestCompileSuppressHcompEmitsLoneHalt(t *testing.T) {
	resetFlags(t)
	suppressHcomp = true
	dir := t.TempDir()
	src := writeSource(t, dir, "in.zpy", minimalSource)
	outputFile = filepath.Join(dir, "out.cfg")

	if err := compile(src); err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	text := string(got)
	idx := strings.Index(text, "hcomp\n")
	if idx < 0 {
		t.Fatalf("missing hcomp marker in:\n%s", text)
	}
	rest := text[idx+len("hcomp\n"):]
	if !strings.HasPrefix(rest, "  halt\n") {
		t.Fatalf("expected a lone halt after hcomp, got:\n%s", rest)
	}
}

func TestCompileEmitIRSkipsZpaqlStage(t *testing.T) {
	resetFlags(t)
	emitIR = true
	dir := t.TempDir()
	src := writeSource(t, dir, "in.zpy", minimalSource)
	outputFile = filepath.Join(dir, "out.ir")

	if err := compile(src); err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	text := string(got)
	if !strings.Contains(text, "; hcomp") || !strings.Contains(text, "; pcomp") {
		t.Fatalf("expected IR dump headers, got:\n%s", text)
	}
	if strings.Contains(text, "comp ") {
		t.Fatalf("expected no .cfg header when -S is set, got:\n%s", text)
	}
}

func TestCompileMissingInputFileFails(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	outputFile = filepath.Join(dir, "out.cfg")

	err := compile(filepath.Join(dir, "does-not-exist.zpy"))
	if err == nil {
		t.Fatal("expected an error for a missing input file")
	}
	if got := exitCodeFor(err); got != 2 {
		t.Fatalf("expected exit code 2 for an input-open failure, got %d", got)
	}
}

func TestCompileBadOutputPathFails(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	src := writeSource(t, dir, "in.zpy", minimalSource)
	outputFile = filepath.Join(dir, "no-such-subdir", "out.cfg")

	err := compile(src)
	if err == nil {
		t.Fatal("expected an error for an uncreatable output path")
	}
	if got := exitCodeFor(err); got != 3 {
		t.Fatalf("expected exit code 3 for an output-create failure, got %d", got)
	}
}

func TestRunEmitTemplateProducesFourRegions(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	outputFile = filepath.Join(dir, "template.zpy")

	if err := runEmitTemplate(); err != nil {
		t.Fatalf("runEmitTemplate: %v", err)
	}
	got, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("reading template: %v", err)
	}
	if n := strings.Count(string(got), "BEGIN OF EDITABLE SECTION"); n != 4 {
		t.Fatalf("expected 4 editable regions, found %d", n)
	}
}

func TestRunListPresetsPrintsSortedNames(t *testing.T) {
	resetFlags(t)
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	stdout := os.Stdout
	os.Stdout = w
	err = runListPresets()
	os.Stdout = stdout
	w.Close()
	if err != nil {
		t.Fatalf("runListPresets: %v", err)
	}
	out, _ := io.ReadAll(r)
	names := strings.Fields(string(out))
	if len(names) == 0 || !sort.StringsAreSorted(names) {
		t.Fatalf("expected a non-empty sorted list of preset names, got %q", out)
	}
}

func TestCompileWithPresetAppliesModel(t *testing.T) {
	resetFlags(t)
	presetName = "fast"
	dir := t.TempDir()
	src := writeSource(t, dir, "in.zpy", minimalSource)
	outputFile = filepath.Join(dir, "out.cfg")

	if err := compile(src); err != nil {
		t.Fatalf("compile with preset: %v", err)
	}
	got, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(got), "\n  0 cm 16 24\n") {
		t.Fatalf("expected the fast preset's model line, got:\n%s", got)
	}
}
