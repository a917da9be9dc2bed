package finderrors

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/mudesheng/ovlcorrect/bnt"
	"github.com/mudesheng/ovlcorrect/correction"
	"github.com/mudesheng/ovlcorrect/ovlstore"
	"github.com/mudesheng/ovlcorrect/params"
	"github.com/mudesheng/ovlcorrect/readstore"
	"github.com/mudesheng/ovlcorrect/vote"
)

func testConfig(t *testing.T, threads int) *params.RunConfig {
	t.Helper()
	opt := params.DefaultOptions()
	opt.MaxReadLen = 100
	opt.NumThreads = threads
	cfg, err := params.New(opt)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

// genome never repeats a base twice in a row
func genome(seed int64, n int) []byte {
	r := rand.New(rand.NewSource(seed))
	g := make([]byte, n)
	g[0] = "acgt"[r.Intn(4)]
	for i := 1; i < n; i++ {
		for g[i] = "acgt"[r.Intn(4)]; g[i] == g[i-1]; g[i] = "acgt"[r.Intn(4)] {
		}
	}
	return g
}

func otherBase(b byte) byte {
	if b == 'a' {
		return 'c'
	}
	return 'a'
}

func addRead(t *testing.T, rs *readstore.ReadSet, id uint32, seq []byte) *readstore.Read {
	t.Helper()
	r, err := rs.Add(id, append([]byte(nil), seq...), "")
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func both(a, b uint32, ahang, bhang int32) []ovlstore.Overlap {
	o := ovlstore.Overlap{AID: a, BID: b, AHang: ahang, BHang: bhang, Normal: true}
	return []ovlstore.Overlap{o, o.Flipped()}
}

func TestThreeReadCorrection(t *testing.T) {
	cfg := testConfig(t, 2)
	g := genome(21, 70)
	r2seq := append([]byte(nil), g[10:60]...)
	r2seq[25] = otherBase(g[35])

	rs := readstore.NewReadSet(1, 3, cfg.MaxReadLen)
	addRead(t, rs, 1, g[0:50])
	addRead(t, rs, 2, r2seq)
	addRead(t, rs, 3, g[20:70])

	var olaps []ovlstore.Overlap
	olaps = append(olaps, both(1, 2, 10, 10)...)
	olaps = append(olaps, both(1, 3, 20, 20)...)
	olaps = append(olaps, both(2, 3, 10, 10)...)
	ovlstore.Sort(olaps)

	stats, err := Run(cfg, rs, olaps, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Olaps != 6 || stats.PassedOlaps != 6 || stats.FailedOlaps != 0 || stats.SkippedOlaps != 0 {
		t.Fatalf("stats %+v", stats)
	}

	v := rs.Get(2).Votes[25]
	if v.Subst(g[35]) != 2 || v.Confirmed != 0 {
		t.Errorf("read 2 pos 25 votes %v", v)
	}
	if v := rs.Get(1).Votes[35]; v.Subst(r2seq[25]) != 1 || v.Confirmed != 1 {
		t.Errorf("read 1 pos 35 votes %v", v)
	}
	r1 := rs.Get(1)
	if r1.LeftDegree != 0 || r1.RightDegree != 2 {
		t.Errorf("read 1 degrees %d %d", r1.LeftDegree, r1.RightDegree)
	}

	all := correction.DecideAll(cfg, rs.Anchors())
	want := [][]byte{g[0:50], g[10:60], g[20:70]}
	for i, recs := range all {
		r := rs.Anchors()[i]
		if got := correction.Apply(r.Seq, recs); string(got) != string(want[i]) {
			t.Errorf("read %d corrected to\n%s\nwant\n%s (%v)", r.ID, got, want[i], recs)
		}
	}
	if len(all[1]) != 2 || all[1][1].Type != correction.Subst || all[1][1].Pos != 25 {
		t.Errorf("read 2 records %v", all[1])
	}
	if len(all[0]) != 1 || len(all[2]) != 1 {
		t.Errorf("reads 1 and 3 changed: %v %v", all[0], all[2])
	}
}

func TestInnieOverlap(t *testing.T) {
	cfg := testConfig(t, 1)
	g := genome(22, 50)
	mut := append([]byte(nil), g...)
	mut[25] = otherBase(g[25])

	rs := readstore.NewReadSet(1, 1, cfg.MaxReadLen)
	a := addRead(t, rs, 1, g)
	addRead(t, rs, 5, bnt.ReverseComplement(nil, mut))
	olaps := []ovlstore.Overlap{{AID: 1, BID: 5, Innie: true}, {AID: 1, BID: 5, Innie: true, AHang: 0, BHang: 0}}

	stats, err := Run(cfg, rs, olaps, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.PassedOlaps != 2 {
		t.Fatalf("stats %+v", stats)
	}
	if a.Votes[25].Subst(mut[25]) != 2 || a.Votes[10].Confirmed != 2 || a.Votes[10].NoInsert != 2 {
		t.Errorf("votes %v %v", a.Votes[25], a.Votes[10])
	}
	// bases next to the edit are not confirmed
	if a.Votes[23].Confirmed != 0 || a.Votes[28].Confirmed != 0 || a.Votes[29].Confirmed != 2 {
		t.Errorf("trim around edit: %v %v %v", a.Votes[23], a.Votes[28], a.Votes[29])
	}
	if a.LeftDegree != 2 || a.RightDegree != 2 {
		t.Errorf("degrees %d %d", a.LeftDegree, a.RightDegree)
	}
}

func TestInsertionVote(t *testing.T) {
	cfg := testConfig(t, 1)
	g := genome(23, 60)
	x := byte('a')
	for x == g[29] || x == g[30] {
		x++
	}
	b := append(append(append([]byte(nil), g[:30]...), x), g[30:]...)

	rs := readstore.NewReadSet(1, 1, cfg.MaxReadLen)
	a := addRead(t, rs, 1, g)
	addRead(t, rs, 2, b)
	if _, err := Run(cfg, rs, []ovlstore.Overlap{{AID: 1, BID: 2, Normal: true, BHang: 1}}, nil); err != nil {
		t.Fatal(err)
	}
	if got := a.Votes[29].InsertionsList(); len(got) != 1 || got[0] != string(x) {
		t.Errorf("insertion votes %v", a.Votes[29])
	}
}

func TestSkipped(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.MinOverlap = 30
	g := genome(24, 60)
	rs := readstore.NewReadSet(1, 2, cfg.MaxReadLen)
	addRead(t, rs, 1, g[:50])
	r2 := addRead(t, rs, 2, g[10:60])
	r2.Shredded = true
	addRead(t, rs, 3, g[30:60])

	olaps := []ovlstore.Overlap{
		{AID: 1, BID: 2, AHang: 10, BHang: 10, Normal: true}, // shredded
		{AID: 1, BID: 3, AHang: 30, BHang: 10, Normal: true}, // 20 bases overlap
		{AID: 1, BID: 9, Normal: true},                       // missing
	}
	stats, err := Run(cfg, rs, olaps, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.SkippedOlaps != 3 || stats.PassedOlaps != 0 {
		t.Errorf("stats %+v", stats)
	}
}

func TestFailedAndOverflow(t *testing.T) {
	cfg := testConfig(t, 1)
	rs := readstore.NewReadSet(1, 2, cfg.MaxReadLen)
	a := addRead(t, rs, 1, genome(25, 60))
	addRead(t, rs, 2, genome(26, 60))
	stats, err := Run(cfg, rs, []ovlstore.Overlap{{AID: 1, BID: 2, Normal: true}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FailedOlaps != 1 || a.Votes[10].Confirmed != 0 {
		t.Errorf("unrelated reads: %+v", stats)
	}

	a.Votes[10].Confirmed = vote.MaxVote
	_, err = Run(cfg, rs, []ovlstore.Overlap{{AID: 1, BID: 1, Normal: true}}, nil)
	if !errors.Is(err, vote.ErrVoteOverflow) {
		t.Errorf("overflow: %v", err)
	}
}

func TestBranchCastsNoVotes(t *testing.T) {
	opt := params.DefaultOptions()
	opt.MaxReadLen = 1000
	opt.NumThreads = 1
	cfg, err := params.New(opt)
	if err != nil {
		t.Fatal(err)
	}
	r := rand.New(rand.NewSource(28))
	prefix := make([]byte, 380)
	for i := range prefix {
		prefix[i] = "gt"[r.Intn(2)]
	}
	aSeq := append(append([]byte(nil), prefix...), strings.Repeat("a", 20)...)
	bSeq := append(append([]byte(nil), prefix...), strings.Repeat("c", 20)...)

	rs := readstore.NewReadSet(1, 1, cfg.MaxReadLen)
	a := addRead(t, rs, 1, aSeq)
	addRead(t, rs, 2, bSeq)
	stats, err := Run(cfg, rs, []ovlstore.Overlap{{AID: 1, BID: 2, Normal: true}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.BranchOlaps != 1 || stats.FailedOlaps != 1 || stats.PassedOlaps != 0 {
		t.Errorf("stats %+v", stats)
	}
	for i := range a.Votes {
		if a.Votes[i] != (vote.Tally{}) {
			t.Fatalf("branch overlap voted at %d: %v", i, a.Votes[i])
		}
	}
	if a.LeftDegree != 0 || a.RightDegree != 0 {
		t.Errorf("degrees %d %d", a.LeftDegree, a.RightDegree)
	}
}

type countProgress struct{ n int64 }

func (c *countProgress) Increment() { c.n++ }

func TestProgress(t *testing.T) {
	cfg := testConfig(t, 1)
	g := genome(27, 60)
	rs := readstore.NewReadSet(1, 2, cfg.MaxReadLen)
	addRead(t, rs, 1, g[:50])
	addRead(t, rs, 2, g[10:60])
	pg := &countProgress{}
	if _, err := Run(cfg, rs, both(1, 2, 10, 10), pg); err != nil {
		t.Fatal(err)
	}
	if pg.n != 2 {
		t.Errorf("progress saw %d overlaps", pg.n)
	}
}
