// Package section implements the editable-region splitter:
// it walks the raw token stream and partitions it into the hcomp and pcomp
// translation units.
package section

import (
	"fmt"
	"strings"

	"github.com/pothos/zpaqlc/pkg/token"
)

// Error reports a missing or mis-ordered region marker.
type Error struct {
	Pos token.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: section error: %s", e.Pos, e.Msg)
}

const (
	beginMarker = "begin of editable section"
	endMarker   = "end of editable section"
)

// Split recognises the literal marker comments "### BEGIN OF EDITABLE
// SECTION" / "### END OF EDITABLE SECTION" and returns four regions' worth
// of tokens, region 1 through region 4. Exactly four well-nested regions
// are expected; anything else is an Error.
func Split(toks []token.Token) (regions [4][]token.Token, err error) {
	var cur []token.Token
	var regionIdx = -1
	inRegion := false

	flush := func() {
		if inRegion && regionIdx >= 0 && regionIdx < 4 {
			regions[regionIdx] = cur
		}
		cur = nil
	}

	for _, t := range toks {
		if t.Kind == token.COMMENT {
			text := strings.ToLower(t.Value)
			switch {
			case strings.Contains(text, beginMarker):
				if inRegion {
					return regions, &Error{Pos: t.Start, Msg: "nested 'begin editable' marker before matching 'end editable'"}
				}
				inRegion = true
				regionIdx++
				cur = nil
				continue
			case strings.Contains(text, endMarker):
				if !inRegion {
					return regions, &Error{Pos: t.Start, Msg: "'end editable' marker without matching 'begin editable'"}
				}
				flush()
				inRegion = false
				continue
			}
			continue // ordinary comments are dropped, including inside regions
		}
		if t.Kind == token.NL {
			continue
		}
		if inRegion {
			cur = append(cur, t)
		}
	}
	if inRegion {
		return regions, &Error{Pos: toks[len(toks)-1].Start, Msg: "unterminated editable region: missing 'end editable' marker"}
	}
	if regionIdx != 3 {
		return regions, &Error{Msg: fmt.Sprintf("expected 4 editable regions, found %d", regionIdx+1)}
	}
	return regions, nil
}

// HcompUnit concatenates region 1 (shared header/helpers) with region 2
// (hcomp body) into the token stream the parser sees for the hcomp
// translation unit.
func HcompUnit(regions [4][]token.Token) []token.Token {
	return normalize(concat(regions[0], regions[1]))
}

// PcompUnit concatenates region 1 with region 3 (pcomp body).
func PcompUnit(regions [4][]token.Token) []token.Token {
	return normalize(concat(regions[0], regions[2]))
}

func concat(a, b []token.Token) []token.Token {
	out := make([]token.Token, 0, len(a)+len(b)+1)
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// normalize repairs the INDENT/DEDENT balance at a region-concatenation
// seam: the lexer defers DEDENT emission to the next real line of code,
// so a DEDENT that closes a block from the *previous*
// editable region can land as the leading token of this one, with no
// matching INDENT in this unit's own stream; and a region can end still
// inside an open block, with its closing DEDENT deferred into whatever
// comes after it. Both are seam artifacts, not real structure, so leading
// orphan DEDENTs are dropped and the unit is closed out with exactly as
// many synthetic DEDENTs as it has unmatched INDENTs before the final EOF.
func normalize(toks []token.Token) []token.Token {
	depth := 0
	out := make([]token.Token, 0, len(toks)+4)
	for _, t := range toks {
		if t.Kind == token.DEDENT && depth == 0 {
			continue // orphan seam DEDENT: no INDENT of ours to close
		}
		if t.Kind == token.INDENT {
			depth++
		} else if t.Kind == token.DEDENT {
			depth--
		}
		out = append(out, t)
	}
	for ; depth > 0; depth-- {
		out = append(out, token.Token{Kind: token.DEDENT})
	}
	if len(out) == 0 || out[len(out)-1].Kind != token.EOF {
		out = append(out, token.Token{Kind: token.EOF})
	}
	return out
}
