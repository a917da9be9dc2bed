// Package ovlstore loads read overlaps and splits them between workers.
package ovlstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/mudesheng/ovlcorrect/readstore"
)

// hangs are stored in 31 signed bits
const (
	MaxHang = 1<<30 - 1
	MinHang = -(1 << 30)
)

var (
	ErrHangRange   = errors.New("ovlstore: hang out of range")
	ErrOrientation = errors.New("ovlstore: overlap must be exactly one of innie or normal")
	ErrLine        = errors.New("ovlstore: bad overlap line")
)

// Overlap says read b overlaps read a. AHang is the offset of b's start from
// a's start, BHang the offset of b's end from a's end. An innie overlap pairs
// a with the reverse complement of b.
type Overlap struct {
	AID, BID     uint32
	AHang, BHang int32
	Innie        bool
	Normal       bool
	ERate        float32 // reported error rate, 0 if unknown
}

func (o Overlap) Validate() error {
	if o.Innie == o.Normal {
		return fmt.Errorf("%w: %d %d", ErrOrientation, o.AID, o.BID)
	}
	for _, h := range [2]int32{o.AHang, o.BHang} {
		if h < MinHang || h > MaxHang {
			return fmt.Errorf("%w: %d %d hang %d", ErrHangRange, o.AID, o.BID, h)
		}
	}
	return nil
}

// Less orders by b, then a, then normal before innie.
func (o Overlap) Less(p Overlap) bool {
	if o.BID != p.BID {
		return o.BID < p.BID
	}
	if o.AID != p.AID {
		return o.AID < p.AID
	}
	return !o.Innie && p.Innie
}

// Flipped is the same overlap seen from read b.
func (o Overlap) Flipped() Overlap {
	f := o
	f.AID, f.BID = o.BID, o.AID
	if o.Innie {
		f.AHang, f.BHang = o.BHang, o.AHang
	} else {
		f.AHang, f.BHang = -o.AHang, -o.BHang
	}
	return f
}

func (o Overlap) String() string {
	ori := "N"
	if o.Innie {
		ori = "I"
	}
	return fmt.Sprintf("%d\t%d\t%s\t%d\t%d", o.AID, o.BID, ori, o.AHang, o.BHang)
}

func Sort(olaps []Overlap) {
	sort.Slice(olaps, func(i, j int) bool { return olaps[i].Less(olaps[j]) })
}

// ParseOverlap parses "aID bID N|I aHang bHang [erate]".
func ParseOverlap(line string) (o Overlap, err error) {
	fields := strings.Fields(line)
	if len(fields) != 5 && len(fields) != 6 {
		return o, fmt.Errorf("%w: %q", ErrLine, line)
	}
	var ids [2]uint64
	for i := 0; i < 2; i++ {
		if ids[i], err = strconv.ParseUint(fields[i], 10, 32); err != nil {
			return o, fmt.Errorf("%w: %q: %v", ErrLine, line, err)
		}
	}
	o.AID, o.BID = uint32(ids[0]), uint32(ids[1])
	switch fields[2] {
	case "N", "n":
		o.Normal = true
	case "I", "i":
		o.Innie = true
	default:
		return o, fmt.Errorf("%w: orientation %q", ErrLine, fields[2])
	}
	var hangs [2]int64
	for i := 0; i < 2; i++ {
		if hangs[i], err = strconv.ParseInt(fields[3+i], 10, 64); err != nil {
			return o, fmt.Errorf("%w: %q: %v", ErrLine, line, err)
		}
		if hangs[i] < MinHang || hangs[i] > MaxHang {
			return o, fmt.Errorf("%w: %q", ErrHangRange, line)
		}
	}
	o.AHang, o.BHang = int32(hangs[0]), int32(hangs[1])
	if len(fields) == 6 {
		er, err := strconv.ParseFloat(fields[5], 32)
		if err != nil {
			return o, fmt.Errorf("%w: %q: %v", ErrLine, line, err)
		}
		o.ERate = float32(er)
	}
	return o, o.Validate()
}

// Read parses overlaps from r, keeping those with a in [bgn, end].
func Read(r io.Reader, bgn, end uint32) (olaps []Overlap, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1<<16), 1<<20)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := sc.Text()
		if len(strings.TrimSpace(line)) == 0 || line[0] == '#' {
			continue
		}
		o, err := ParseOverlap(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if o.AID < bgn || o.AID > end {
			continue
		}
		olaps = append(olaps, o)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return olaps, nil
}

// Load reads overlap files (plain or ".zst") and returns the overlaps
// anchored in [bgn, end], sorted.
func Load(fns []string, bgn, end uint32) ([]Overlap, error) {
	var olaps []Overlap
	for _, fn := range fns {
		in, err := readstore.OpenInput(fn)
		if err != nil {
			return nil, err
		}
		o, err := Read(in, bgn, end)
		in.Close()
		if err != nil {
			return nil, fmt.Errorf("overlap file %s: %w", fn, err)
		}
		olaps = append(olaps, o...)
	}
	Sort(olaps)
	if d := Duplicates(olaps); d > 0 {
		log.Warnf("[Load] %d read pairs overlap in both orientations", d)
	}
	log.Infof("[Load] loaded %d overlaps anchored in [%d, %d]", len(olaps), bgn, end)
	return olaps, nil
}

// Duplicates counts read pairs that appear once normal and once innie in a
// sorted slice. Both copies are kept.
func Duplicates(olaps []Overlap) (num int) {
	for i := 1; i < len(olaps); i++ {
		p, o := olaps[i-1], olaps[i]
		if p.AID == o.AID && p.BID == o.BID && p.Innie != o.Innie {
			num++
		}
	}
	return num
}

// PartnerIDs returns the b reads named by olaps.
func PartnerIDs(olaps []Overlap) map[uint32]struct{} {
	ids := make(map[uint32]struct{})
	for _, o := range olaps {
		ids[o.BID] = struct{}{}
	}
	return ids
}

// Part is the work of one worker: every overlap whose a read lies in
// [BgnID, EndID], in sorted order.
type Part struct {
	BgnID, EndID uint32
	Olaps        []Overlap
}

// Partition splits sorted overlaps into at most n parts by contiguous ranges
// of a read IDs holding about the same number of overlaps. Parts never share
// an a read and together cover every ID.
func Partition(olaps []Overlap, n int) []Part {
	if n < 1 {
		n = 1
	}
	count := make(map[uint32]int)
	for _, o := range olaps {
		count[o.AID]++
	}
	ids := make([]uint32, 0, len(count))
	for id := range count {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	target := (len(olaps) + n - 1) / n
	var ends []uint32
	acc := 0
	for _, id := range ids {
		acc += count[id]
		if acc >= target && len(ends) < n-1 {
			ends = append(ends, id)
			acc = 0
		}
	}
	if len(ends) == 0 || ends[len(ends)-1] != ^uint32(0) {
		ends = append(ends, ^uint32(0))
	}
	parts := make([]Part, len(ends))
	var bgn uint32
	for i, e := range ends {
		parts[i].BgnID, parts[i].EndID = bgn, e
		bgn = e + 1
	}

	for _, o := range olaps {
		i := sort.Search(len(parts), func(i int) bool { return parts[i].EndID >= o.AID })
		parts[i].Olaps = append(parts[i].Olaps, o)
	}
	return parts
}
