// Package correction turns the votes gathered for a read into correction
// records and reads and writes them as a checksummed stream.
package correction

import (
	"fmt"
	"strings"

	"github.com/exascience/pargo/parallel"

	"github.com/mudesheng/ovlcorrect/bnt"
	"github.com/mudesheng/ovlcorrect/params"
	"github.com/mudesheng/ovlcorrect/readstore"
	"github.com/mudesheng/ovlcorrect/vote"
)

type Type uint8

const (
	Ident Type = iota
	Subst
	Delete
	Insert
	Haplotype
)

// haplotype alternatives
const (
	AltKeep     = "keep"
	AltDelete   = "del"
	AltNoInsert = "noins"
	AltInsert   = "ins:" // followed by the inserted bases
)

var typeNames = [...]string{"ident", "sub", "del", "ins", "hap"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Record is one line of the correction stream. Every read starts with an
// Ident record; the others follow ordered by Pos.
type Record struct {
	Type   Type
	ReadID uint32

	// Ident: the read end has too few overlaps to be trusted
	KeepLeft, KeepRight bool

	Pos  int
	Base byte     // Subst
	Ins  string   // Insert: bases to insert after Pos
	Alts []string // Haplotype
}

func (r Record) String() string {
	switch r.Type {
	case Ident:
		return fmt.Sprintf("read %d keepLeft:%v keepRight:%v", r.ReadID, r.KeepLeft, r.KeepRight)
	case Subst:
		return fmt.Sprintf("read %d %d sub %c", r.ReadID, r.Pos, r.Base)
	case Insert:
		return fmt.Sprintf("read %d %d ins %s", r.ReadID, r.Pos, r.Ins)
	case Haplotype:
		return fmt.Sprintf("read %d %d hap %s", r.ReadID, r.Pos, strings.Join(r.Alts, ","))
	}
	return fmt.Sprintf("read %d %d %v", r.ReadID, r.Pos, r.Type)
}

// Decide calls every base of an anchor read from its votes.
func Decide(cfg *params.RunConfig, r *readstore.Read) []Record {
	keepLeft := r.LeftDegree < cfg.DegreeThresh
	keepRight := r.RightDegree < cfg.DegreeThresh
	recs := []Record{{Type: Ident, ReadID: r.ID, KeepLeft: keepLeft, KeepRight: keepRight}}
	n := len(r.Seq)
	for i := 0; i < n; i++ {
		v := &r.Votes[i]
		if v.All() == 0 {
			continue
		}
		weak := v.All()+uint32(v.Confirmed) < uint32(cfg.DegreeThresh)
		if i < cfg.KmerLen && (keepLeft || weak) {
			continue
		}
		if i >= n-cfg.KmerLen && (keepRight || weak) {
			continue
		}
		if rec, ok := decideBase(cfg, r.ID, i, r.Seq[i], v); ok {
			recs = append(recs, rec)
		}
		if rec, ok := decideInsert(cfg, r.ID, i, v); ok {
			recs = append(recs, rec)
		}
	}
	return recs
}

func decideBase(cfg *params.RunConfig, id uint32, pos int, cur byte, v *vote.Tally) (Record, bool) {
	if v.Total() == 0 {
		return Record{}, false
	}
	if cfg.UseHaploCt {
		min := uint32(cfg.HaploMinOccurs)
		var alts []string
		if uint32(v.Confirmed) >= min {
			alts = append(alts, AltKeep)
		}
		if uint32(v.Deletes) >= min {
			alts = append(alts, AltDelete)
		}
		for _, b := range bnt.Bnt2Base {
			if b != cur && v.Subst(b) >= min {
				alts = append(alts, string(b))
			}
		}
		if len(alts) >= 2 {
			return Record{Type: Haplotype, ReadID: id, Pos: pos, Alts: alts}, true
		}
	}

	best := Record{Type: Delete, ReadID: id, Pos: pos}
	max := uint32(v.Deletes)
	for _, b := range bnt.Bnt2Base {
		if b == cur {
			continue
		}
		if c := v.Subst(b); c > max {
			max = c
			best = Record{Type: Subst, ReadID: id, Pos: pos, Base: b}
		}
	}
	if 2*max > uint32(v.Confirmed)+v.Total() && v.Total() > 1 {
		return best, true
	}
	return Record{}, false
}

func decideInsert(cfg *params.RunConfig, id uint32, pos int, v *vote.Tally) (Record, bool) {
	if v.InsTotal() == 0 {
		return Record{}, false
	}
	list := v.InsertionsList()
	min := uint32(cfg.HaploMinOccurs)
	if cfg.UseHaploCt && v.InsTotal() >= min && uint32(v.NoInsert) >= min {
		alts := []string{AltNoInsert}
		for _, s := range list {
			alts = append(alts, AltInsert+s)
		}
		return Record{Type: Haplotype, ReadID: id, Pos: pos, Alts: alts}, true
	}
	if v.InsTotal() > 1 && len(list) == 1 && v.InsTotal() > uint32(v.NoInsert) {
		return Record{Type: Insert, ReadID: id, Pos: pos, Ins: list[0]}, true
	}
	return Record{}, false
}

// DecideAll decides every read in parallel; the result is in the order of
// reads.
func DecideAll(cfg *params.RunConfig, reads []*readstore.Read) [][]Record {
	out := make([][]Record, len(reads))
	parallel.Range(0, len(reads), 0, func(low, high int) {
		for i := low; i < high; i++ {
			out[i] = Decide(cfg, reads[i])
		}
	})
	return out
}

// Apply returns seq with the substitution, deletion and insertion records
// of one read applied. Haplotype records leave the base as it is.
func Apply(seq []byte, recs []Record) []byte {
	out := make([]byte, 0, len(seq)+len(seq)/10)
	j := 0
	for i, b := range seq {
		for j < len(recs) && recs[j].Type == Ident {
			j++
		}
		deleted := false
		for ; j < len(recs) && recs[j].Pos == i && recs[j].Type != Insert; j++ {
			switch recs[j].Type {
			case Subst:
				b = recs[j].Base
			case Delete:
				deleted = true
			}
		}
		if !deleted {
			out = append(out, b)
		}
		for ; j < len(recs) && recs[j].Pos == i && recs[j].Type == Insert; j++ {
			out = append(out, recs[j].Ins...)
		}
		for j < len(recs) && recs[j].Pos == i {
			j++
		}
	}
	return out
}
