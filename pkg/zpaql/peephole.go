package zpaql

// Peephole fuses the repeating op sequence the array-initialization lowering
// produces for `M[R[slot]] = k; R[slot] += 1` into a pointer-kept-in-C form.
// The naive sequence reloads the pointer from R[slot] through B for the
// store and again through A/C for the increment every iteration; the fused
// form keeps the running pointer in C across the whole run and only writes
// it back to R[slot] once, after the last store.
//
// Matching walks backward so a newly fused run makes its predecessor
// eligible in the same pass: consuming window N exposes window N-1
// immediately before it.
func Peephole(ops []Op) []Op {
	real := make([]int, 0, len(ops))
	for i, o := range ops {
		if o.Mnemonic != "comment" {
			real = append(real, i)
		}
	}

	type run struct {
		slot          int
		values        []uint32
		startOpsIndex int
		endOpsIndex   int // exclusive
	}
	var runs []run

	p := len(real)
	for p >= storeIncWindowLen {
		slot, k, ok := matchStoreIncWindow(ops, real, p)
		if !ok {
			p--
			continue
		}
		values := []uint32{k}
		runStartReal := p - storeIncWindowLen
		for runStartReal >= storeIncWindowLen {
			s2, k2, ok2 := matchStoreIncWindow(ops, real, runStartReal)
			if !ok2 || s2 != slot {
				break
			}
			values = append([]uint32{k2}, values...)
			runStartReal -= storeIncWindowLen
		}
		runs = append([]run{{
			slot:          slot,
			values:        values,
			startOpsIndex: real[runStartReal],
			endOpsIndex:   real[p-1] + 1,
		}}, runs...)
		p = runStartReal
	}

	if len(runs) == 0 {
		return ops
	}

	out := make([]Op, 0, len(ops))
	cursor := 0
	for _, r := range runs {
		out = append(out, ops[cursor:r.startOpsIndex]...)
		out = append(out, fuseStoreIncRun(r.slot, r.values)...)
		cursor = r.endOpsIndex
	}
	out = append(out, ops[cursor:]...)
	return out
}

const storeIncWindowLen = 9

// matchStoreIncWindow checks whether the 9 non-comment ops ending just
// before real-index p (exclusive) form:
//
//	a=r S; b=a; <k>; *b=a; a= 1; c=a; a=r S; a+=c; r=a S
//
// where <k> is a single-op immediate load (a=0 or a= N).
func matchStoreIncWindow(ops []Op, real []int, p int) (slot int, k uint32, ok bool) {
	if p < storeIncWindowLen {
		return 0, 0, false
	}
	w := make([]Op, storeIncWindowLen)
	for t := 0; t < storeIncWindowLen; t++ {
		w[t] = ops[real[p-storeIncWindowLen+t]]
	}
	if w[0].Mnemonic != "a=r" || w[1].Mnemonic != "b=a" {
		return 0, 0, false
	}
	kVal, kOK := immOpValue(w[2])
	if !kOK {
		return 0, 0, false
	}
	if w[3].Mnemonic != "*b=a" || w[4].Mnemonic != "a=" || w[4].Arg != 1 || w[5].Mnemonic != "c=a" {
		return 0, 0, false
	}
	if w[6].Mnemonic != "a=r" || w[6].Arg != w[0].Arg {
		return 0, 0, false
	}
	if w[7].Mnemonic != "a+=c" || w[8].Mnemonic != "r=a" || w[8].Arg != w[0].Arg {
		return 0, 0, false
	}
	return w[0].Arg, kVal, true
}

// immOpValue reports the constant a single-op immediate load materializes,
// if o is one.
func immOpValue(o Op) (uint32, bool) {
	switch o.Mnemonic {
	case "a=0":
		return 0, true
	case "a=":
		return uint32(o.Arg), true
	}
	return 0, false
}

func fuseStoreIncRun(slot int, values []uint32) []Op {
	out := []Op{AFromReg(slot), Move("c", "a")}
	for _, k := range values {
		out = append(out, materializeImm(k), op("*c=a"), IncOf("c"))
	}
	out = append(out, Move("a", "c"), RegFromA(slot))
	return out
}

func materializeImm(k uint32) Op {
	switch {
	case k == 0:
		return Zero()
	default:
		return AssignByte(int(k))
	}
}
