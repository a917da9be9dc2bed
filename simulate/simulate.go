// Package simulate cuts reads with substitution errors out of a random
// genome and lists the overlaps between them, so the voting engine can be
// run against a known truth.
package simulate

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/jwaldrip/odin/cli"
	log "github.com/sirupsen/logrus"

	"github.com/mudesheng/ovlcorrect/bnt"
	"github.com/mudesheng/ovlcorrect/ovlstore"
	"github.com/mudesheng/ovlcorrect/utils"
)

var ErrOptions = errors.New("simulate: bad options")

type Options struct {
	GenomeLen  int
	ReadLen    int
	Step       int     // distance between the starts of neighbouring reads
	ErrorRate  float64 // per base substitution rate
	MinOverlap int
	InnieEvery int // every InnieEvery-th read is stored reverse complemented, 0 for none
	Seed       int64
	StartID    uint32
}

type Read struct {
	ID         uint32
	Start, End int // genome interval
	Innie      bool
	Seq        []byte
	Truth      []byte // error free bases, same strand as Seq
	Errors     int
}

// Genome returns n random bases.
func Genome(rng *rand.Rand, n int) []byte {
	g := make([]byte, n)
	for i := range g {
		g[i] = bnt.Bnt2Base[rng.Intn(4)]
	}
	return g
}

func mutate(rng *rand.Rand, b byte) byte {
	for {
		if m := bnt.Bnt2Base[rng.Intn(4)]; m != b {
			return m
		}
	}
}

// Reads tiles genome with reads of opt.ReadLen every opt.Step bases.
func Reads(rng *rand.Rand, genome []byte, opt Options) ([]Read, error) {
	if opt.ReadLen <= 0 || opt.Step <= 0 || opt.ReadLen > len(genome) || opt.ErrorRate < 0 || opt.ErrorRate >= 1 {
		return nil, fmt.Errorf("%w: %+v", ErrOptions, opt)
	}
	id := opt.StartID
	if id == 0 {
		id = 1
	}
	var reads []Read
	for s := 0; s+opt.ReadLen <= len(genome); s += opt.Step {
		r := Read{ID: id, Start: s, End: s + opt.ReadLen}
		r.Truth = append([]byte(nil), genome[r.Start:r.End]...)
		r.Seq = append([]byte(nil), r.Truth...)
		for i := range r.Seq {
			if rng.Float64() < opt.ErrorRate {
				r.Seq[i] = mutate(rng, r.Seq[i])
				r.Errors++
			}
		}
		if opt.InnieEvery > 0 && int(id)%opt.InnieEvery == 0 {
			r.Innie = true
			r.Truth = bnt.ReverseComplement(nil, r.Truth)
			r.Seq = bnt.ReverseComplement(nil, r.Seq)
		}
		reads = append(reads, r)
		id++
	}
	return reads, nil
}

// hangs of b as seen from a, in a's stored orientation
func hangs(a, b Read) (ahang, bhang int32) {
	if a.Innie {
		return int32(a.End - b.End), int32(a.Start - b.Start)
	}
	return int32(b.Start - a.Start), int32(b.End - a.End)
}

// Overlaps lists, in both directions, every pair of reads sharing at least
// minOverlap genome bases. reads must be ordered by Start.
func Overlaps(reads []Read, minOverlap int) []ovlstore.Overlap {
	var olaps []ovlstore.Overlap
	for i := range reads {
		for j := i + 1; j < len(reads); j++ {
			a, b := reads[i], reads[j]
			if utils.MinInt(a.End, b.End)-utils.MaxInt(a.Start, b.Start) < minOverlap {
				break
			}
			o := ovlstore.Overlap{AID: a.ID, BID: b.ID}
			if a.Innie != b.Innie {
				o.Innie = true
			} else {
				o.Normal = true
			}
			o.AHang, o.BHang = hangs(a, b)
			olaps = append(olaps, o, o.Flipped())
		}
	}
	ovlstore.Sort(olaps)
	return olaps
}

// WriteReads writes reads as FASTA named by ID.
func WriteReads(fn string, reads []Read) error {
	of, err := utils.CreateOutFile(fn)
	if err != nil {
		return err
	}
	for _, r := range reads {
		if _, err := fmt.Fprintf(of, ">%d\n%s\n", r.ID, r.Seq); err != nil {
			of.Close()
			return err
		}
	}
	return of.Close()
}

func WriteOverlaps(fn string, olaps []ovlstore.Overlap) error {
	of, err := utils.CreateOutFile(fn)
	if err != nil {
		return err
	}
	for _, o := range olaps {
		if _, err := fmt.Fprintln(of, o); err != nil {
			of.Close()
			return err
		}
	}
	return of.Close()
}

// WriteCfg writes a configure file naming one read library and one overlap
// file.
func WriteCfg(fn string, maxRdLen int, readsFn, ovlFn string) error {
	of, err := utils.CreateOutFile(fn)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(of, "[global_setting]\nmax_rd_len = %d\novl = %s\n[LIB]\nname = sim\nf1 = %s\n", maxRdLen, ovlFn, readsFn); err != nil {
		of.Close()
		return err
	}
	return of.Close()
}

func checkArgs(c cli.Command) (opt Options, err error) {
	ints := []struct {
		name string
		dst  *int
		min  int
	}{
		{"GenomeLen", &opt.GenomeLen, 1},
		{"ReadLen", &opt.ReadLen, 1},
		{"Step", &opt.Step, 1},
		{"MinOverlap", &opt.MinOverlap, 1},
		{"InnieEvery", &opt.InnieEvery, 0},
	}
	for _, f := range ints {
		v, ok := c.Flag(f.name).Get().(int)
		if !ok || v < f.min {
			return opt, fmt.Errorf("%w: '%s': %v", ErrOptions, f.name, c.Flag(f.name))
		}
		*f.dst = v
	}
	var ok bool
	if opt.ErrorRate, ok = c.Flag("ErrorRate").Get().(float64); !ok {
		return opt, fmt.Errorf("%w: 'ErrorRate': %v", ErrOptions, c.Flag("ErrorRate"))
	}
	seed, ok := c.Flag("Seed").Get().(int)
	if !ok {
		return opt, fmt.Errorf("%w: 'Seed': %v", ErrOptions, c.Flag("Seed"))
	}
	opt.Seed = int64(seed)
	return opt, nil
}

// SimulateOverlaps is the simovl subcommand. It writes <prefix>.reads.fa.zst,
// <prefix>.ovl.zst and a configure file at the path of the global 'C' flag,
// ready for the fe subcommand.
func SimulateOverlaps(c cli.Command) {
	gOpt, suc := utils.CheckGlobalArgs(c.Parent())
	if !suc {
		log.Fatalf("[SimulateOverlaps] check global Arguments error, opt: %v\n", gOpt)
	}
	opt, err := checkArgs(c)
	if err != nil {
		log.Fatalf("[SimulateOverlaps] check Arguments error: %v\n", err)
	}
	rng := rand.New(rand.NewSource(opt.Seed))
	reads, err := Reads(rng, Genome(rng, opt.GenomeLen), opt)
	if err != nil {
		log.Fatalf("[SimulateOverlaps] %v\n", err)
	}
	olaps := Overlaps(reads, opt.MinOverlap)

	readsFn, ovlFn := gOpt.Prefix+".reads.fa.zst", gOpt.Prefix+".ovl.zst"
	if err := WriteReads(readsFn, reads); err != nil {
		log.Fatalf("[SimulateOverlaps] write reads: %s err: %v\n", readsFn, err)
	}
	if err := WriteOverlaps(ovlFn, olaps); err != nil {
		log.Fatalf("[SimulateOverlaps] write overlaps: %s err: %v\n", ovlFn, err)
	}
	if err := WriteCfg(gOpt.CfgFn, opt.ReadLen, readsFn, ovlFn); err != nil {
		log.Fatalf("[SimulateOverlaps] write cfg: %s err: %v\n", gOpt.CfgFn, err)
	}
	errs := 0
	for _, r := range reads {
		errs += r.Errors
	}
	log.Infof("[SimulateOverlaps] wrote %d reads with %d errors and %d overlaps", len(reads), errs, len(olaps))
}
