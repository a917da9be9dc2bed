package correction

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/jwaldrip/odin/cli"
	log "github.com/sirupsen/logrus"

	"github.com/mudesheng/ovlcorrect/readstore"
	"github.com/mudesheng/ovlcorrect/utils"
)

// Dump prints a correction stream as plain text.
func Dump(w io.Writer, recs [][]Record) error {
	bw := bufio.NewWriter(w)
	for _, rr := range recs {
		for _, rec := range rr {
			if _, err := fmt.Fprintln(bw, rec); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WriteCorrected prints every corrected read as FASTA. Reads missing from rs
// are reported and skipped.
func WriteCorrected(w io.Writer, rs *readstore.ReadSet, recs [][]Record) error {
	bw := bufio.NewWriter(w)
	for _, rr := range recs {
		id := rr[0].ReadID
		r := rs.Get(id)
		if r == nil {
			log.Warnf("[WriteCorrected] read %d not found", id)
			continue
		}
		if _, err := fmt.Fprintf(bw, ">%d\n%s\n", id, Apply(r.Seq, rr)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DumpCorrections is the dumpcorr subcommand.
func DumpCorrections(c cli.Command) {
	gOpt, suc := utils.CheckGlobalArgs(c.Parent())
	if !suc {
		log.Fatalf("[DumpCorrections] check global Arguments error, opt: %v\n", gOpt)
	}
	fn := c.Flag("input").String()
	if fn == "" {
		fn = FileName(gOpt.Prefix)
	}
	fp, err := os.Open(fn)
	if err != nil {
		log.Fatalf("[DumpCorrections] open file: %s failed, err: %v\n", fn, err)
	}
	defer fp.Close()
	recs, err := ReadAll(fp)
	if err != nil {
		log.Fatalf("[DumpCorrections] read file: %s err: %v\n", fn, err)
	}

	apply, _ := c.Flag("apply").Get().(bool)
	if !apply {
		if err := Dump(os.Stdout, recs); err != nil {
			log.Fatalf("[DumpCorrections] %v\n", err)
		}
		return
	}
	if len(recs) == 0 {
		return
	}
	cfgInfo, err := readstore.ParseCfg(gOpt.CfgFn)
	if err != nil {
		log.Fatalf("[DumpCorrections] ParseCfg 'C': %v err: %v\n", gOpt.CfgFn, err)
	}
	maxLen := cfgInfo.MaxRdLen
	if maxLen <= 0 {
		maxLen = 1 << 30
	}
	bgn, end := recs[0][0].ReadID, recs[len(recs)-1][0].ReadID
	rs, err := readstore.Load(cfgInfo.ReadFiles(), bgn, end, maxLen)
	if err != nil {
		log.Fatalf("[DumpCorrections] load reads: %v\n", err)
	}
	if err := WriteCorrected(os.Stdout, rs, recs); err != nil {
		log.Fatalf("[DumpCorrections] %v\n", err)
	}
}
