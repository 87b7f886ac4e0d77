package asm

import (
	"fmt"
	"io"

	"github.com/pothos/zpaqlc/pkg/config"
	"github.com/pothos/zpaqlc/pkg/zpaql"
)

// Assembled holds both sections' resolved instruction streams, ready for
// WriteConfig.
type Assembled struct {
	Hcomp []zpaql.Op
	Pcomp []zpaql.Op
}

// AssembleRecord resolves the label references left in rec's emitted
// hcomp/pcomp streams. The two sections assemble independently: each is
// its own ZPAQL routine with its own 16-bit PC space.
func AssembleRecord(rec *config.Record) (*Assembled, error) {
	hcomp, err := NewAssembler().Assemble(rec.HcompCode)
	if err != nil {
		return nil, fmt.Errorf("hcomp: %w", err)
	}
	out := &Assembled{Hcomp: hcomp.Ops}
	if len(rec.PcompCode) > 0 {
		pcomp, err := NewAssembler().Assemble(rec.PcompCode)
		if err != nil {
			return nil, fmt.Errorf("pcomp: %w", err)
		}
		out.Pcomp = pcomp.Ops
	}
	return out, nil
}

// WriteConfig renders rec and asm as the textual .cfg format zpaqd reads:
// the comp header and model lines, hcomp (or a lone halt when n == 0 or
// hcomp was suppressed), pcomp when non-empty, and end.
func WriteConfig(w io.Writer, rec *config.Record, opts config.Options, asmd *Assembled) error {
	bw := &errWriter{w: w}

	bw.printf("comp %d %d %d %d %d (hh hm ph pm n)\n", rec.HH, rec.HM, rec.PH, rec.PM, rec.N)
	for _, c := range rec.Model {
		bw.printf("  %d %s\n", c.Index, c.Definition)
	}

	bw.printf("hcomp\n")
	if rec.N == 0 || opts.SuppressHcomp || opts.DisableComp || len(asmd.Hcomp) == 0 {
		bw.printf("  halt\n")
	} else {
		writeSection(bw, asmd.Hcomp, opts)
	}

	if !opts.SuppressPcomp && len(asmd.Pcomp) > 0 {
		bw.printf("pcomp %s ;\n", rec.PcompInvocation)
		writeSection(bw, asmd.Pcomp, opts)
	}

	bw.printf("end\n")
	return bw.err
}

func writeSection(bw *errWriter, ops []zpaql.Op, opts config.Options) {
	pos := 0
	for _, o := range ops {
		if o.Mnemonic == "comment" {
			if !opts.NoComments {
				bw.printf("  %s\n", o.String())
			}
			continue
		}
		if opts.NoPCComments {
			bw.printf("  %s\n", o.String())
		} else {
			bw.printf("  %s ; %d\n", o.String(), pos)
		}
		pos += o.Size()
	}
}

// errWriter defers error checking to a single point at the end of
// WriteConfig instead of threading it through every printf call.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
