// Package finderrors runs the overlap voting engine: every worker aligns its
// share of overlaps and records, base by base, what the overlapping reads
// say about its anchor reads.
package finderrors

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/jwaldrip/odin/cli"
	log "github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/mudesheng/ovlcorrect/correction"
	"github.com/mudesheng/ovlcorrect/ovlstore"
	"github.com/mudesheng/ovlcorrect/params"
	"github.com/mudesheng/ovlcorrect/readstore"
	"github.com/mudesheng/ovlcorrect/utils"
)

// Progress is told about every overlap a worker finishes. It must be safe
// for concurrent use.
type Progress interface {
	Increment()
}

type nopProgress struct{}

func (nopProgress) Increment() {}

// Run processes olaps with cfg.NumThreads workers. Each worker gets the
// overlaps of its own range of anchor reads, so no two workers ever write
// the same read. The first worker error is returned once all have stopped.
func Run(cfg *params.RunConfig, rs *readstore.ReadSet, olaps []ovlstore.Overlap, pg Progress) (Stats, error) {
	if pg == nil {
		pg = nopProgress{}
	}
	parts := ovlstore.Partition(olaps, cfg.NumThreads)
	stats := make([]Stats, len(parts))
	errs := make([]error, len(parts))
	var wg sync.WaitGroup
	for i := range parts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tc := newThreadContext(i, cfg)
			defer tc.release()
			part := parts[i]
			for _, o := range part.Olaps {
				if err := tc.processOverlap(cfg, rs, o); err != nil {
					errs[i] = fmt.Errorf("worker %d: %w", i, err)
					break
				}
				pg.Increment()
			}
			stats[i] = tc.stats
			log.Debugf("[Run] worker %d reads [%d, %d] %v rc cache hits: %d misses: %d",
				i, part.BgnID, part.EndID, tc.stats, tc.rc.Hits, tc.rc.Miss)
		}(i)
	}
	wg.Wait()

	var total Stats
	for i := range stats {
		total.Add(stats[i])
	}
	for _, err := range errs {
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

var errArg = errors.New("argument set error")

func checkArgs(c cli.Command, gOpt utils.ArgsOpt) (opt params.Options, err error) {
	opt = params.DefaultOptions()
	opt.NumThreads = gOpt.NumCPU
	opt.KmerLen = gOpt.Kmer
	opt.Output = correction.FileName(gOpt.Prefix)

	ints := []struct {
		name string
		dst  *int
		min  int
	}{
		{"MinOverlap", &opt.MinOverlap, 0},
		{"MaxReadLen", &opt.MaxReadLen, 0},
		{"DegreeThreshold", &opt.DegreeThresh, 0},
		{"HaploMinOccurs", &opt.HaploMinOccurs, 1},
		{"EndExcludeLen", &opt.EndExcludeLen, 0},
		{"VoteQualifyLen", &opt.VoteQualifyLen, 0},
	}
	for _, f := range ints {
		v, ok := c.Flag(f.name).Get().(int)
		if !ok || v < f.min {
			return opt, fmt.Errorf("%w: '%s': %v", errArg, f.name, c.Flag(f.name))
		}
		*f.dst = v
	}
	bgn, ok := c.Flag("bgn").Get().(int)
	if !ok || bgn < 0 || uint64(bgn) > math.MaxUint32 {
		return opt, fmt.Errorf("%w: 'bgn': %v", errArg, c.Flag("bgn"))
	}
	end, ok := c.Flag("end").Get().(int)
	if !ok || end < bgn || uint64(end) > math.MaxUint32 {
		return opt, fmt.Errorf("%w: 'end': %v", errArg, c.Flag("end"))
	}
	opt.BgnID, opt.EndID = uint32(bgn), uint32(end)
	if opt.ErrorRate, ok = c.Flag("ErrorRate").Get().(float64); !ok {
		return opt, fmt.Errorf("%w: 'ErrorRate': %v", errArg, c.Flag("ErrorRate"))
	}
	if opt.UseHaploCt, ok = c.Flag("Haplotype").Get().(bool); !ok {
		return opt, fmt.Errorf("%w: 'Haplotype': %v", errArg, c.Flag("Haplotype"))
	}
	return opt, nil
}

func newProgressBar(total int) (*mpb.Progress, *mpb.Bar) {
	pbs := mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
	bar := pbs.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("overlaps: ", decor.WC{W: len("overlaps: "), C: decor.DindentRight}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
			decor.AverageETA(decor.ET_STYLE_GO),
			decor.OnComplete(decor.Name(""), ". done"),
		),
	)
	return pbs, bar
}

// FindErrors is the fe subcommand: vote on every base of the reads in
// [bgn, end] and write the corrections.
func FindErrors(c cli.Command) {
	gOpt, suc := utils.CheckGlobalArgs(c.Parent())
	if !suc {
		log.Fatalf("[FindErrors] check global Arguments error, opt: %v\n", gOpt)
	}
	opt, err := checkArgs(c, gOpt)
	if err != nil {
		log.Fatalf("[FindErrors] check Arguments error: %v\n", err)
	}
	if gOpt.Cpuprofile != "" {
		cpuprofilefp, err := os.Create(gOpt.Cpuprofile)
		if err != nil {
			log.Fatalf("[FindErrors] open cpuprofile file: %v failed\n", gOpt.Cpuprofile)
		}
		pprof.StartCPUProfile(cpuprofilefp)
		defer pprof.StopCPUProfile()
	}
	cfgInfo, err := readstore.ParseCfg(gOpt.CfgFn)
	if err != nil {
		log.Fatalf("[FindErrors] ParseCfg 'C': %v err: %v\n", gOpt.CfgFn, err)
	}
	opt.ReadFiles = cfgInfo.ReadFiles()
	opt.OverlapFiles = cfgInfo.OvlFiles
	if opt.MaxReadLen == 0 {
		opt.MaxReadLen = params.DefaultMaxReadLen
		if cfgInfo.MaxRdLen > 0 {
			opt.MaxReadLen = cfgInfo.MaxRdLen
		}
	}
	cfg, err := params.New(opt)
	if err != nil {
		log.Fatalf("[FindErrors] %v\n", err)
	}
	log.Infof("[FindErrors] opt: %+v", opt)
	runtime.GOMAXPROCS(cfg.NumThreads + 2)

	t0 := time.Now()
	rs, err := readstore.Load(cfg.ReadFiles, cfg.BgnID, cfg.EndID, cfg.MaxReadLen)
	if err != nil {
		log.Fatalf("[FindErrors] load reads: %v\n", err)
	}
	olaps, err := ovlstore.Load(cfg.OverlapFiles, cfg.BgnID, cfg.EndID)
	if err != nil {
		log.Fatalf("[FindErrors] load overlaps: %v\n", err)
	}
	if err := rs.LoadPartners(cfg.ReadFiles, ovlstore.PartnerIDs(olaps)); err != nil {
		log.Fatalf("[FindErrors] load partner reads: %v\n", err)
	}
	log.Infof("[FindErrors] loaded %d reads and %d overlaps in %v", rs.Len(), len(olaps), time.Since(t0))

	var pg Progress = nopProgress{}
	var pbs *mpb.Progress
	var bar *mpb.Bar
	if show, _ := c.Flag("Progress").Get().(bool); show && len(olaps) > 0 {
		pbs, bar = newProgressBar(len(olaps))
		pg = bar
	}
	t1 := time.Now()
	stats, err := Run(cfg, rs, olaps, pg)
	if pbs != nil {
		if err != nil {
			bar.Abort(false)
		}
		pbs.Wait()
	}
	if err != nil {
		log.Fatalf("[FindErrors] %v\n", err)
	}
	log.Infof("[FindErrors] %v, used %v", stats, time.Since(t1))

	recs := correction.DecideAll(cfg, rs.Anchors())
	num, err := correction.WriteFile(cfg.Output, recs)
	if err != nil {
		log.Fatalf("[FindErrors] write corrections: %s err: %v\n", cfg.Output, err)
	}
	log.Infof("[FindErrors] wrote %d correction records to %s", num, cfg.Output)
}
