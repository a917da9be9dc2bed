package correction

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/mudesheng/ovlcorrect/params"
	"github.com/mudesheng/ovlcorrect/readstore"
	"github.com/mudesheng/ovlcorrect/vote"
)

func testConfig(t *testing.T, haplo bool) *params.RunConfig {
	t.Helper()
	opt := params.DefaultOptions()
	opt.MaxReadLen = 1000
	opt.UseHaploCt = haplo
	cfg, err := params.New(opt)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func newRead(id uint32, seq string) *readstore.Read {
	return &readstore.Read{
		ID:          id,
		Seq:         []byte(seq),
		ClearLen:    len(seq),
		LeftDegree:  5,
		RightDegree: 5,
		Votes:       make([]vote.Tally, len(seq)),
	}
}

var testSeq = strings.Repeat("acgt", 10)

func TestDecideKeepsStrongBase(t *testing.T) {
	cfg := testConfig(t, false)
	r := newRead(1, testSeq)
	r.Votes[20] = vote.Tally{Confirmed: 10, CSubst: 1}
	recs := Decide(cfg, r)
	if len(recs) != 1 || recs[0].Type != Ident || recs[0].KeepLeft || recs[0].KeepRight {
		t.Errorf("10 vs 1 changed the read: %v", recs)
	}
}

func TestDecideSplit(t *testing.T) {
	r := newRead(1, testSeq)
	r.Votes[20] = vote.Tally{Confirmed: 5, GSubst: 5}

	if recs := Decide(testConfig(t, false), r); len(recs) != 1 {
		t.Errorf("5 vs 5 tie changed the read: %v", recs)
	}
	recs := Decide(testConfig(t, true), r)
	if len(recs) != 2 {
		t.Fatalf("haplotype split gave %v", recs)
	}
	want := Record{Type: Haplotype, ReadID: 1, Pos: 20, Alts: []string{AltKeep, "g"}}
	if !reflect.DeepEqual(recs[1], want) {
		t.Errorf("got %+v, want %+v", recs[1], want)
	}
}

func TestDecideInsertSplit(t *testing.T) {
	r := newRead(2, testSeq)
	r.Votes[20] = vote.Tally{Confirmed: 6, NoInsert: 3, InsertionCnt: 4, Insertions: "$a$gg"}

	if recs := Decide(testConfig(t, false), r); len(recs) != 1 {
		t.Errorf("two insertion strings without haplotypes changed the read: %v", recs)
	}
	recs := Decide(testConfig(t, true), r)
	want := []Record{
		{Type: Ident, ReadID: 2},
		{Type: Haplotype, ReadID: 2, Pos: 20, Alts: []string{AltNoInsert, AltInsert + "a", AltInsert + "gg"}},
	}
	if !reflect.DeepEqual(recs, want) {
		t.Errorf("Decide = %v, want %v", recs, want)
	}
	if got := string(Apply(r.Seq, recs)); got != testSeq {
		t.Errorf("Apply changed a haplotype position: %s", got)
	}
}

func TestDecideChanges(t *testing.T) {
	cfg := testConfig(t, false)
	r := newRead(3, testSeq)
	r.Votes[12] = vote.Tally{Confirmed: 1, TSubst: 6}
	r.Votes[13] = vote.Tally{Confirmed: 1, Deletes: 4}
	r.Votes[14] = vote.Tally{NoInsert: 1, InsertionCnt: 3, Insertions: "$ac"}
	r.Votes[15] = vote.Tally{NoInsert: 1, InsertionCnt: 3, Insertions: "$ac$a"}
	r.Votes[16] = vote.Tally{TSubst: 1}
	recs := Decide(cfg, r)
	want := []Record{
		{Type: Ident, ReadID: 3},
		{Type: Subst, ReadID: 3, Pos: 12, Base: 't'},
		{Type: Delete, ReadID: 3, Pos: 13},
		{Type: Insert, ReadID: 3, Pos: 14, Ins: "ac"},
	}
	if !reflect.DeepEqual(recs, want) {
		t.Errorf("Decide = %v, want %v", recs, want)
	}

	got := string(Apply(r.Seq, recs))
	exp := testSeq[:12] + "t" + testSeq[14:15] + "ac" + testSeq[15:]
	if got != exp {
		t.Errorf("Apply = %s, want %s", got, exp)
	}
}

func TestDecideEnds(t *testing.T) {
	cfg := testConfig(t, false)
	r := newRead(4, testSeq)
	r.LeftDegree = 0
	r.Votes[2] = vote.Tally{CSubst: 8}
	r.Votes[38] = vote.Tally{CSubst: 8}
	recs := Decide(cfg, r)
	if len(recs) != 2 || !recs[0].KeepLeft || recs[0].KeepRight || recs[1].Pos != 38 {
		t.Errorf("kept left end: %v", recs)
	}

	r.LeftDegree = 5
	r.Votes[38] = vote.Tally{}
	r.Votes[3] = vote.Tally{ASubst: 1}
	recs = Decide(cfg, r)
	if len(recs) != 2 || recs[1].Pos != 2 || recs[1].Base != 'c' {
		t.Errorf("trusted left end: %v", recs)
	}
}

func TestDecideAllOrder(t *testing.T) {
	cfg := testConfig(t, false)
	var reads []*readstore.Read
	for i := 1; i <= 50; i++ {
		r := newRead(uint32(i), testSeq)
		r.Votes[20] = vote.Tally{GSubst: 3}
		reads = append(reads, r)
	}
	all := DecideAll(cfg, reads)
	for i, recs := range all {
		if recs[0].ReadID != uint32(i+1) || len(recs) != 2 || recs[1].Base != 'g' {
			t.Fatalf("read %d: %v", i+1, recs)
		}
	}
}

func TestStreamRoundTrip(t *testing.T) {
	recs := [][]Record{
		{{Type: Ident, ReadID: 1, KeepLeft: true}, {Type: Subst, ReadID: 1, Pos: 3, Base: 'a'}, {Type: Insert, ReadID: 1, Pos: 9, Ins: "gg"}},
		{{Type: Ident, ReadID: 7, KeepRight: true}, {Type: Delete, ReadID: 7, Pos: 0}, {Type: Haplotype, ReadID: 7, Pos: 5, Alts: []string{AltNoInsert, AltInsert + "t"}}},
	}
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	for _, rr := range recs {
		for _, rec := range rr {
			if err := w.Write(rec); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	got, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !reflect.DeepEqual(got, recs) {
		t.Errorf("round trip:\n%v\n%v", got, recs)
	}
}

func compress(t *testing.T, s string) *bytes.Buffer {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	zw.Write([]byte(s))
	zw.Close()
	return &buf
}

func TestStreamChecksum(t *testing.T) {
	if _, err := ReadAll(compress(t, "R\t1\t0\t0\n#xxh64\t0000000000000000\n")); !errors.Is(err, ErrChecksum) {
		t.Errorf("bad checksum: %v", err)
	}
	if _, err := ReadAll(compress(t, "R\t1\t0\t0\n")); !errors.Is(err, ErrNoTrailer) {
		t.Errorf("missing trailer: %v", err)
	}
	if _, err := ReadAll(compress(t, "C\t1\tsub\ta\n")); !errors.Is(err, ErrBadLine) {
		t.Errorf("correction before read: %v", err)
	}
}
