package main

import (
	"math"

	"github.com/jwaldrip/odin/cli"

	"github.com/mudesheng/ovlcorrect/correction"
	"github.com/mudesheng/ovlcorrect/finderrors"
	"github.com/mudesheng/ovlcorrect/ovlstore"
	"github.com/mudesheng/ovlcorrect/params"
	"github.com/mudesheng/ovlcorrect/simulate"
)

var app = cli.New("1.0.0", "Overlap based long read error correction", func(c cli.Command) {})

func init() {
	app.DefineStringFlag("C", "ovlcorrect.cfg", "configure file")
	app.DefineStringFlag("cpuprofile", "", "write cpu profile to file")
	app.DefineIntFlag("K", params.DefaultKmerLen, "minimum match run length that confirms bases")
	app.DefineStringFlag("p", "ovlcorrect", "prefix of the output file")
	app.DefineIntFlag("t", 1, "number of CPU used")
	app.DefineBoolFlag("Debug", false, "Enable Debug log")

	fe := app.DefineSubCommand("fe", "vote on read bases from overlaps and write the corrections", finderrors.FindErrors)
	{
		fe.DefineIntFlag("bgn", 1, "first anchor read ID")
		fe.DefineIntFlag("end", math.MaxUint32, "last anchor read ID")
		fe.DefineFloat64Flag("ErrorRate", params.DefaultErrorRate, "expected alignment error rate")
		fe.DefineIntFlag("MinOverlap", 0, "skip overlaps shorter than this")
		fe.DefineIntFlag("MaxReadLen", 0, "Max read length, default[0] from cfg max_rd_len")
		fe.DefineIntFlag("DegreeThreshold", params.DefaultDegreeThresh, "read ends with fewer overlaps are not corrected")
		fe.DefineBoolFlag("Haplotype", false, "report haplotype splits instead of correcting them")
		fe.DefineIntFlag("HaploMinOccurs", params.DefaultHaploMinOccurs, "Min votes for a haplotype alternative")
		fe.DefineIntFlag("EndExcludeLen", params.DefaultEndExcludeLen, "bases next to an edit that are not confirmed")
		fe.DefineIntFlag("VoteQualifyLen", params.DefaultVoteQualifyLen, "matches needed on both sides of a voted edit")
		fe.DefineBoolFlag("Progress", false, "show a progress bar")
	}
	dumpcorr := app.DefineSubCommand("dumpcorr", "print a corrections file", correction.DumpCorrections)
	{
		dumpcorr.DefineStringFlag("input", "", "corrections file, default[prefix.corrections.zst]")
		dumpcorr.DefineBoolFlag("apply", false, "print the corrected reads as fasta")
	}
	ovlgraph := app.DefineSubCommand("ovlgraph", "write the overlap graph of a read range as dot", ovlstore.OverlapGraph)
	{
		ovlgraph.DefineIntFlag("bgn", 1, "first read ID")
		ovlgraph.DefineIntFlag("end", math.MaxUint32, "last read ID")
	}
	simovl := app.DefineSubCommand("simovl", "simulate reads with errors and their overlaps", simulate.SimulateOverlaps)
	{
		simovl.DefineIntFlag("GenomeLen", 100000, "length of the random genome")
		simovl.DefineIntFlag("ReadLen", 5000, "read length")
		simovl.DefineIntFlag("Step", 500, "distance between read starts")
		simovl.DefineFloat64Flag("ErrorRate", 0.01, "substitution rate")
		simovl.DefineIntFlag("MinOverlap", 1000, "min overlap length reported")
		simovl.DefineIntFlag("InnieEvery", 2, "store every n-th read reverse complemented, 0 for none")
		simovl.DefineIntFlag("Seed", 1, "random seed")
	}
}

func main() {
	app.Start()
}
