package bnt

import (
	"errors"
	"fmt"
)

const (
	BaseTypeNum = 4
	// bases are kept as lowercase ASCII, 'n' marks an unknown base
	UnknownBase = 'n'
)

// BntRev complements a 2-bit base code, Bnt2Base maps codes back to letters
var BntRev = [BaseTypeNum]uint8{3, 2, 1, 0}
var Bnt2Base = [BaseTypeNum]byte{'a', 'c', 'g', 't'}

var ErrBadBase = errors.New("bnt: unrecognized base")

// Base2Bnt maps a lowercase base to its 2-bit code, 0xFF for anything else
var Base2Bnt [256]uint8

// Complement maps any accepted base letter to its lowercase complement
var Complement [256]byte

// lower folds every accepted input letter to the stored alphabet
var lower [256]byte

func init() {
	for i := range Base2Bnt {
		Base2Bnt[i] = 0xFF
	}
	for i, b := range Bnt2Base {
		Base2Bnt[b] = uint8(i)
	}
	pairs := [][2]byte{{'a', 't'}, {'c', 'g'}, {'g', 'c'}, {'t', 'a'}, {'n', 'n'}}
	for _, p := range pairs {
		up := p[0] - 'a' + 'A'
		lower[p[0]] = p[0]
		lower[up] = p[0]
		Complement[p[0]] = p[1]
		Complement[up] = p[1]
	}
}

// IsBase reports whether b is one of a, c, g, t.
func IsBase(b byte) bool {
	return Base2Bnt[b] != 0xFF
}

// Normalize lowercases seq in place; only ACGTN (any case) is accepted.
func Normalize(seq []byte) error {
	for i, b := range seq {
		l := lower[b]
		if l == 0 {
			return fmt.Errorf("%w: '%c' (0x%02x) at %d", ErrBadBase, b, b, i)
		}
		seq[i] = l
	}
	return nil
}

// ReverseComplement writes the reverse complement of src into dst, growing dst
// when it is too short, and returns the filled slice.
func ReverseComplement(dst, src []byte) []byte {
	if cap(dst) < len(src) {
		dst = make([]byte, len(src))
	}
	dst = dst[:len(src)]
	sl := len(src)
	for i, b := range src {
		dst[sl-1-i] = Complement[b]
	}
	return dst
}

// RevCompCache memoizes the reverse complement of the last read asked for.
// A request for a different read replaces the cached one.
type RevCompCache struct {
	id    uint32
	valid bool
	seq   []byte
	Hits  uint64
	Miss  uint64
}

func (c *RevCompCache) Get(id uint32, seq []byte) []byte {
	if c.valid && c.id == id {
		c.Hits++
		return c.seq
	}
	c.Miss++
	c.seq = ReverseComplement(c.seq, seq)
	c.id = id
	c.valid = true
	return c.seq
}

// Reset drops the cached read but keeps its buffer.
func (c *RevCompCache) Reset() {
	c.valid = false
	c.seq = c.seq[:0]
}
