package simulate

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/mudesheng/ovlcorrect/correction"
	"github.com/mudesheng/ovlcorrect/finderrors"
	"github.com/mudesheng/ovlcorrect/ovlstore"
	"github.com/mudesheng/ovlcorrect/params"
	"github.com/mudesheng/ovlcorrect/readstore"
)

func TestOverlapsHangs(t *testing.T) {
	reads := []Read{
		{ID: 1, Start: 0, End: 100},
		{ID: 2, Start: 30, End: 130, Innie: true},
		{ID: 3, Start: 60, End: 160, Innie: true},
		{ID: 4, Start: 95, End: 195},
	}
	olaps := Overlaps(reads, 10)
	want := map[[2]uint32]ovlstore.Overlap{
		{1, 2}: {AID: 1, BID: 2, AHang: 30, BHang: 30, Innie: true},
		{2, 1}: {AID: 2, BID: 1, AHang: 30, BHang: 30, Innie: true},
		{2, 3}: {AID: 2, BID: 3, AHang: -30, BHang: -30, Normal: true},
		{3, 2}: {AID: 3, BID: 2, AHang: 30, BHang: 30, Normal: true},
		{1, 3}: {AID: 1, BID: 3, AHang: 60, BHang: 60, Innie: true},
		{3, 1}: {AID: 3, BID: 1, AHang: 60, BHang: 60, Innie: true},
		{2, 4}: {AID: 2, BID: 4, AHang: -65, BHang: -65, Innie: true},
		{4, 2}: {AID: 4, BID: 2, AHang: -65, BHang: -65, Innie: true},
		{3, 4}: {AID: 3, BID: 4, AHang: -35, BHang: -35, Innie: true},
		{4, 3}: {AID: 4, BID: 3, AHang: -35, BHang: -35, Innie: true},
	}
	if len(olaps) != len(want) {
		t.Fatalf("got %d overlaps, want %d: %v", len(olaps), len(want), olaps)
	}
	for _, o := range olaps {
		if w, ok := want[[2]uint32{o.AID, o.BID}]; !ok || w != o {
			t.Errorf("overlap %v, want %v", o, w)
		}
	}
	for i := 1; i < len(olaps); i++ {
		if olaps[i].Less(olaps[i-1]) {
			t.Fatalf("not sorted at %d", i)
		}
	}
}

func TestFilesLoad(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	opt := Options{ReadLen: 100, Step: 25, ErrorRate: 0.02, MinOverlap: 20, InnieEvery: 2}
	reads, err := Reads(rng, Genome(rng, 500), opt)
	if err != nil {
		t.Fatal(err)
	}
	if len(reads) != 17 || reads[0].ID != 1 || !reads[1].Innie || reads[2].Innie {
		t.Fatalf("reads %d", len(reads))
	}
	olaps := Overlaps(reads, opt.MinOverlap)

	dir := t.TempDir()
	readsFn := filepath.Join(dir, "sim.reads.fa.zst")
	ovlFn := filepath.Join(dir, "sim.ovl.zst")
	cfgFn := filepath.Join(dir, "sim.cfg")
	if err := WriteReads(readsFn, reads); err != nil {
		t.Fatal(err)
	}
	if err := WriteOverlaps(ovlFn, olaps); err != nil {
		t.Fatal(err)
	}
	if err := WriteCfg(cfgFn, opt.ReadLen, readsFn, ovlFn); err != nil {
		t.Fatal(err)
	}

	ci, err := readstore.ParseCfg(cfgFn)
	if err != nil {
		t.Fatal(err)
	}
	if ci.MaxRdLen != 100 || len(ci.ReadFiles()) != 1 || len(ci.OvlFiles) != 1 {
		t.Fatalf("cfg %+v", ci)
	}
	rs, err := readstore.Load(ci.ReadFiles(), 1, 17, ci.MaxRdLen)
	if err != nil {
		t.Fatal(err)
	}
	if rs.Len() != len(reads) || string(rs.Get(2).Seq) != string(reads[1].Seq) {
		t.Errorf("loaded %d reads", rs.Len())
	}
	got, err := ovlstore.Load(ci.OvlFiles, 5, 8)
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, o := range olaps {
		if o.AID >= 5 && o.AID <= 8 {
			n++
		}
	}
	if len(got) != n || n == 0 {
		t.Errorf("loaded %d overlaps, want %d", len(got), n)
	}
}

func TestWriteCfgFull(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("no /dev/full")
	}
	if err := WriteCfg("/dev/full", 100, "r.fa", "r.ovl"); err == nil {
		t.Error("write to a full device succeeded")
	}
	if err := WriteCfg(filepath.Join(t.TempDir(), "no", "sim.cfg"), 100, "r.fa", "r.ovl"); err == nil {
		t.Error("write into a missing directory succeeded")
	}
}

func mismatches(a, b []byte) int {
	n := len(a) - len(b)
	if n < 0 {
		n, a, b = -n, b, a
	}
	for i := range b {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}

func TestCorrectionReducesErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	opt := Options{ReadLen: 200, Step: 20, ErrorRate: 0.01, MinOverlap: 50, InnieEvery: 3}
	reads, err := Reads(rng, Genome(rng, 3000), opt)
	if err != nil {
		t.Fatal(err)
	}
	olaps := Overlaps(reads, opt.MinOverlap)

	popt := params.DefaultOptions()
	popt.MaxReadLen = 1000
	popt.NumThreads = 4
	cfg, err := params.New(popt)
	if err != nil {
		t.Fatal(err)
	}
	rs := readstore.NewReadSet(reads[0].ID, reads[len(reads)-1].ID, cfg.MaxReadLen)
	for _, r := range reads {
		if _, err := rs.Add(r.ID, append([]byte(nil), r.Seq...), ""); err != nil {
			t.Fatal(err)
		}
	}
	stats, err := finderrors.Run(cfg, rs, olaps, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.PassedOlaps*10 < stats.Olaps*9 {
		t.Fatalf("too few overlaps passed: %v", stats)
	}

	before, after := 0, 0
	for i, recs := range correction.DecideAll(cfg, rs.Anchors()) {
		r := reads[i]
		if recs[0].ReadID != r.ID {
			t.Fatalf("read %d decided as %d", r.ID, recs[0].ReadID)
		}
		before += mismatches(r.Seq, r.Truth)
		after += mismatches(correction.Apply(r.Seq, recs), r.Truth)
	}
	t.Logf("%v, errors before %d after %d", stats, before, after)
	if before == 0 || after*4 > before {
		t.Errorf("errors before %d after %d", before, after)
	}
}
