// Package vote keeps the per-base evidence gathered from overlaps.
package vote

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	MaxVote = math.MaxUint16
	// InsertionsDelim separates distinct insertion strings, it never occurs in sequence data
	InsertionsDelim = '$'
)

var (
	ErrVoteOverflow = errors.New("vote: counter overflow")
	ErrBadInsertion = errors.New("vote: bad insertion string")
)

// Tally holds the votes for one base of a read. Counters stop at MaxVote;
// an increment past it is refused with ErrVoteOverflow.
type Tally struct {
	Confirmed uint16
	Deletes   uint16
	ASubst    uint16
	CSubst    uint16
	GSubst    uint16
	TSubst    uint16
	NoInsert  uint16

	InsertionCnt uint32
	Insertions   string
}

func inc(c *uint16) error {
	if *c >= MaxVote {
		return ErrVoteOverflow
	}
	*c++
	return nil
}

func (v *Tally) Confirm() error      { return inc(&v.Confirmed) }
func (v *Tally) NoInsertVote() error { return inc(&v.NoInsert) }
func (v *Tally) Delete() error       { return inc(&v.Deletes) }

// Substitute votes for base b replacing the current base.
func (v *Tally) Substitute(b byte) error {
	return inc(v.substCounter(b))
}

// Insert records one occurrence of s inserted after this base. A string
// already in the list is not stored again.
func (v *Tally) Insert(s string) error {
	if len(s) == 0 || strings.IndexByte(s, InsertionsDelim) >= 0 {
		return fmt.Errorf("%w: %q", ErrBadInsertion, s)
	}
	if v.InsertionCnt >= math.MaxUint32 {
		return ErrVoteOverflow
	}
	v.InsertionCnt++
	if !v.hasInsertion(s) {
		v.Insertions += string(InsertionsDelim) + s
	}
	return nil
}

func (v *Tally) hasInsertion(s string) bool {
	rest := v.Insertions
	for len(rest) > 0 {
		if rest[0] == InsertionsDelim {
			rest = rest[1:]
			continue
		}
		end := strings.IndexByte(rest, InsertionsDelim)
		if end < 0 {
			end = len(rest)
		}
		if rest[:end] == s {
			return true
		}
		rest = rest[end:]
	}
	return false
}

// InsertionsList returns the distinct insertion strings in the order first seen.
func (v *Tally) InsertionsList() []string {
	var answer []string
	for _, s := range strings.Split(v.Insertions, string(InsertionsDelim)) {
		if s != "" {
			answer = append(answer, s)
		}
	}
	return answer
}

// Total does not consider insertions.
func (v *Tally) Total() uint32 {
	return uint32(v.Deletes) + uint32(v.ASubst) + uint32(v.CSubst) + uint32(v.GSubst) + uint32(v.TSubst)
}

func (v *Tally) InsTotal() uint32 {
	return v.InsertionCnt
}

func (v *Tally) All() uint32 {
	return v.Total() + v.InsTotal()
}

func (v *Tally) Subst(b byte) uint32 {
	return uint32(*v.substCounter(b))
}

// AllBut is the evidence against base b.
func (v *Tally) AllBut(b byte) uint32 {
	return v.All() - v.Subst(b)
}

func (v *Tally) substCounter(b byte) *uint16 {
	switch b {
	case 'a':
		return &v.ASubst
	case 'c':
		return &v.CSubst
	case 'g':
		return &v.GSubst
	case 't':
		return &v.TSubst
	}
	panic(fmt.Sprintf("vote: bad base '%c' (0x%02x) in substitution lookup", b, b))
}

func (v Tally) String() string {
	return fmt.Sprintf("conf:%d del:%d a:%d c:%d g:%d t:%d noins:%d ins:%d[%s]",
		v.Confirmed, v.Deletes, v.ASubst, v.CSubst, v.GSubst, v.TSubst, v.NoInsert, v.InsertionCnt, v.Insertions)
}
