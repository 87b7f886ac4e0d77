package section

import (
	"testing"

	"github.com/pothos/zpaqlc/pkg/lexer"
	"github.com/pothos/zpaqlc/pkg/token"
)

const sampleSrc = `
### BEGIN OF EDITABLE SECTION
hh = 2
hm = 0
ph = 0
pm = 0
n = len({0: "cm 19 20"})
pcomp_invocation = "0"
### END OF EDITABLE SECTION
### BEGIN OF EDITABLE SECTION
def hcomp():
    hH[0] = c
### END OF EDITABLE SECTION
### BEGIN OF EDITABLE SECTION
def pcomp():
    pass
### END OF EDITABLE SECTION
### BEGIN OF EDITABLE SECTION
# standalone runtime scaffolding, discarded entirely
x = 1
### END OF EDITABLE SECTION
`

func TestSplitFourRegions(t *testing.T) {
	toks, err := lexer.Tokenize(sampleSrc)
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	regions, err := Split(toks)
	if err != nil {
		t.Fatalf("split error: %v", err)
	}
	for i, r := range regions {
		if len(r) == 0 {
			t.Fatalf("region %d is empty", i+1)
		}
	}
	hcomp := HcompUnit(regions)
	pcomp := PcompUnit(regions)
	if !containsName(hcomp, "hh") {
		t.Fatalf("hcomp unit should contain shared region 1 tokens")
	}
	if !containsName(pcomp, "hh") {
		t.Fatalf("pcomp unit should contain shared region 1 tokens")
	}
	if !containsName(hcomp, "hcomp") {
		t.Fatalf("hcomp unit should contain region 2 tokens")
	}
	if containsName(hcomp, "pcomp") {
		t.Fatalf("hcomp unit should not contain region 3 tokens")
	}
	if !containsName(pcomp, "pcomp") {
		t.Fatalf("pcomp unit should contain region 3 tokens")
	}
	if containsName(pcomp, "x") {
		t.Fatalf("region 4 (standalone runtime) must be discarded entirely")
	}
}

func containsName(toks []token.Token, name string) bool {
	for _, t := range toks {
		if (t.Kind == token.NAME) && t.Value == name {
			return true
		}
	}
	return false
}

func TestSplitMissingMarkerErrors(t *testing.T) {
	toks, err := lexer.Tokenize("x = 1\n")
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	if _, err := Split(toks); err == nil {
		t.Fatalf("expected an error for a file with no editable regions")
	}
}
