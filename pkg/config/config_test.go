package config

import (
	"testing"

	"github.com/pothos/zpaqlc/pkg/lexer"
	"github.com/pothos/zpaqlc/pkg/parser"
)

func TestReadHeader(t *testing.T) {
	src := `hh = 2
hm = 0
ph = 0
pm = 0
n = len({0: "cm 19 20", 1: "mix 16 0 1 24 255"})
pcomp_invocation = "0"
`
	toks, err := lexer.Tokenize(src)
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	unit, err := parser.ParseUnit(toks)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	rec, err := ReadHeader(unit, DefaultOptions())
	if err != nil {
		t.Fatalf("ReadHeader error: %v", err)
	}
	if rec.HH != 2 || rec.HM != 0 || rec.PH != 0 || rec.PM != 0 {
		t.Fatalf("unexpected sizes: %+v", rec)
	}
	if rec.N != 2 || len(rec.Model) != 2 {
		t.Fatalf("expected 2 model components, got %+v", rec.Model)
	}
	if rec.Model[0].Definition != "cm 19 20" {
		t.Fatalf("unexpected component 0: %+v", rec.Model[0])
	}
	if rec.PcompInvocation != "0" {
		t.Fatalf("unexpected pcomp_invocation: %q", rec.PcompInvocation)
	}
}

func TestReadHeaderMissingConstant(t *testing.T) {
	src := `hh = 2
hm = 0
ph = 0
pm = 0
n = len({})
x = 1
`
	toks, _ := lexer.Tokenize(src)
	unit, err := parser.ParseUnit(toks)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if _, err := ReadHeader(unit, DefaultOptions()); err == nil {
		t.Fatalf("expected error for missing pcomp_invocation")
	}
}

func TestPresets(t *testing.T) {
	names, err := PresetNames()
	if err != nil {
		t.Fatalf("PresetNames error: %v", err)
	}
	if len(names) == 0 {
		t.Fatalf("expected at least one preset")
	}
	rec := &Record{}
	if err := ApplyPreset(rec, names[0]); err != nil {
		t.Fatalf("ApplyPreset error: %v", err)
	}
	if len(rec.Model) == 0 {
		t.Fatalf("expected preset to populate model components")
	}
}

func TestHTotalLog2(t *testing.T) {
	log2, err := HTotalLog2(2, 1<<20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log2 != 21 {
		t.Fatalf("expected 21, got %d", log2)
	}
}
