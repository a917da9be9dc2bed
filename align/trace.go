package align

type OpKind uint8

const (
	Match OpKind = iota
	Subst
	Insert
	Delete
)

func (k OpKind) String() string {
	switch k {
	case Subst:
		return "sub"
	case Insert:
		return "ins"
	case Delete:
		return "del"
	}
	return "match"
}

// Op is one column of an alignment.
// Match, Subst: a[APos] is aligned to b[BPos], Base = b[BPos].
// Delete: a[APos] has no partner in b, Base = a[APos].
// Insert: b[BPos] sits between a[APos] and a[APos+1], Base = b[BPos].
// APos is -1 for a base inserted before the start of a.
type Op struct {
	Kind OpKind
	APos int
	BPos int
	Base byte
}

// Trace expands r into alignment columns. Failed results have no trace.
func Trace(a, b []byte, r Result) []Op {
	if r.Status == Failed {
		return nil
	}
	return AppendTrace(make([]Op, 0, r.AEnd+r.Errors), a, b, r)
}

// AppendTrace is Trace writing into dst.
func AppendTrace(dst []Op, a, b []byte, r Result) []Op {
	if r.Status == Failed {
		return dst
	}
	i, j := 0, 0
	column := func() {
		if a[i] == b[j] {
			dst = append(dst, Op{Kind: Match, APos: i, BPos: j, Base: b[j]})
		} else {
			dst = append(dst, Op{Kind: Subst, APos: i, BPos: j, Base: b[j]})
		}
		i++
		j++
	}
	for _, d := range r.Delta {
		n := int(abs32(d))
		for k := 1; k < n; k++ {
			column()
		}
		if d < 0 {
			dst = append(dst, Op{Kind: Insert, APos: i - 1, BPos: j, Base: b[j]})
			j++
		} else {
			dst = append(dst, Op{Kind: Delete, APos: i, BPos: j, Base: a[i]})
			i++
		}
	}
	for i < r.AEnd {
		column()
	}
	return dst
}

// Errors counts the edit columns of a trace.
func Errors(ops []Op) int {
	n := 0
	for _, op := range ops {
		if op.Kind != Match {
			n++
		}
	}
	return n
}
