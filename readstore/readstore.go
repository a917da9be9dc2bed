// Package readstore loads the reads an error finding run works on.
package readstore

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/mudesheng/ovlcorrect/bnt"
	"github.com/mudesheng/ovlcorrect/params"
	"github.com/mudesheng/ovlcorrect/vote"
)

var (
	ErrReadTooLong = errors.New("readstore: read longer than max read length")
	ErrDupRead     = errors.New("readstore: read ID seen twice")
)

type Read struct {
	ID       uint32
	Seq      []byte
	ClearLen int

	// number of complete overlaps reaching the first and the last base
	LeftDegree  int
	RightDegree int

	Shredded bool
	Unused   bool

	// one tally per base, nil for partner reads that are never corrected
	Votes []vote.Tally
}

func (r *Read) Anchor() bool {
	return r.Votes != nil
}

// Skip reports whether overlaps involving r are ignored.
func (r *Read) Skip() bool {
	return r.Shredded || r.Unused
}

func (r *Read) IncLeftDegree() {
	if r.LeftDegree < params.MaxDegree {
		r.LeftDegree++
	}
}

func (r *Read) IncRightDegree() {
	if r.RightDegree < params.MaxDegree {
		r.RightDegree++
	}
}

// ReadSet holds the anchor reads of [BgnID, EndID] and the partner reads
// their overlaps need. Lookups are safe from many goroutines once loading
// is over.
type ReadSet struct {
	BgnID, EndID uint32
	MaxReadLen   int

	anchors []*Read // sorted by ID
	reads   map[uint32]*Read
}

func NewReadSet(bgn, end uint32, maxReadLen int) *ReadSet {
	return &ReadSet{BgnID: bgn, EndID: end, MaxReadLen: maxReadLen, reads: make(map[uint32]*Read)}
}

func (rs *ReadSet) Get(id uint32) *Read {
	return rs.reads[id]
}

func (rs *ReadSet) Len() int {
	return len(rs.reads)
}

func (rs *ReadSet) Anchors() []*Read {
	return rs.anchors
}

// Add stores a read, normalising its bases. Reads inside the range become
// anchors with a tally per base.
func (rs *ReadSet) Add(id uint32, seq []byte, desc string) (*Read, error) {
	if len(seq) > rs.MaxReadLen {
		return nil, fmt.Errorf("%w: read %d length %d > %d", ErrReadTooLong, id, len(seq), rs.MaxReadLen)
	}
	if _, ok := rs.reads[id]; ok {
		return nil, fmt.Errorf("%w: %d", ErrDupRead, id)
	}
	if err := bnt.Normalize(seq); err != nil {
		return nil, fmt.Errorf("read %d: %w", id, err)
	}
	r := &Read{ID: id, Seq: seq, ClearLen: len(seq)}
	for _, tok := range strings.Fields(desc) {
		switch tok {
		case "shredded":
			r.Shredded = true
		case "unused":
			r.Unused = true
		}
	}
	if rs.BgnID <= id && id <= rs.EndID {
		r.Votes = make([]vote.Tally, len(seq))
		rs.anchors = append(rs.anchors, r)
	}
	rs.reads[id] = r
	return r, nil
}

func (rs *ReadSet) sortAnchors() {
	sort.Slice(rs.anchors, func(i, j int) bool { return rs.anchors[i].ID < rs.anchors[j].ID })
}

func (rs *ReadSet) scan(files []string, keep func(id uint32) bool) (num int, err error) {
	for _, fn := range files {
		rr, err := openRecords(fn)
		if err != nil {
			return num, err
		}
		for {
			rec, err := rr.next()
			if err == io.EOF {
				break
			}
			if err != nil {
				rr.Close()
				return num, err
			}
			if !keep(rec.id) {
				continue
			}
			if _, err = rs.Add(rec.id, rec.seq, rec.desc); err != nil {
				rr.Close()
				return num, fmt.Errorf("file %s: %w", fn, err)
			}
			num++
		}
		rr.Close()
	}
	rs.sortAnchors()
	return num, nil
}

// Load reads every file and keeps the reads with IDs in [bgn, end].
func Load(files []string, bgn, end uint32, maxReadLen int) (*ReadSet, error) {
	rs := NewReadSet(bgn, end, maxReadLen)
	num, err := rs.scan(files, func(id uint32) bool { return bgn <= id && id <= end })
	if err != nil {
		return nil, err
	}
	log.Infof("[Load] loaded %d reads in range [%d, %d]", num, bgn, end)
	return rs, nil
}

// LoadPartners adds the reads named in ids that are not loaded yet. They
// carry sequence only.
func (rs *ReadSet) LoadPartners(files []string, ids map[uint32]struct{}) error {
	want := 0
	for id := range ids {
		if rs.reads[id] == nil {
			want++
		}
	}
	if want == 0 {
		return nil
	}
	num, err := rs.scan(files, func(id uint32) bool {
		_, ok := ids[id]
		return ok && rs.reads[id] == nil
	})
	if err != nil {
		return err
	}
	if num < want {
		log.Warnf("[LoadPartners] %d of %d partner reads not found", want-num, want)
	}
	log.Debugf("[LoadPartners] loaded %d partner reads", num)
	return nil
}
