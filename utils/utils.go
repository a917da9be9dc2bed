package utils

import (
	"bufio"
	"errors"
	"io"
	"math"
	"os"
	"strings"

	"github.com/jwaldrip/odin/cli"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"
)

type ArgsOpt struct {
	Prefix     string
	Kmer       int
	NumCPU     int
	CfgFn      string
	Cpuprofile string
	Debug      bool
}

// return global arguments and check if successed
func CheckGlobalArgs(c cli.Command) (opt ArgsOpt, succ bool) {
	opt.Prefix = c.Flag("p").String()
	if opt.Prefix == "" {
		log.Fatalf("[CheckGlobalArgs] args 'p' not set\n")
	}
	opt.CfgFn = c.Flag("C").String()
	if opt.CfgFn == "" {
		log.Fatalf("[CheckGlobalArgs] args 'C' not set\n")
	}
	opt.Cpuprofile = c.Flag("cpuprofile").String()

	var ok bool
	opt.Kmer, ok = c.Flag("K").Get().(int)
	if !ok {
		log.Fatalf("[CheckGlobalArgs] args 'K' : %v set error\n", c.Flag("K").String())
	}
	if opt.Kmer < 1 {
		log.Fatalf("[CheckGlobalArgs] the argument 'K':%d must be positive\n", opt.Kmer)
	}
	opt.NumCPU, ok = c.Flag("t").Get().(int)
	if !ok {
		log.Fatalf("[CheckGlobalArgs] args 't': %v set error\n", c.Flag("t").String())
	}
	if opt.NumCPU < 1 {
		log.Fatalf("[CheckGlobalArgs] args 't': %d must >= 1\n", opt.NumCPU)
	}
	opt.Debug, _ = c.Flag("Debug").Get().(bool)
	if opt.Debug {
		log.SetLevel(log.DebugLevel)
	}
	return opt, true
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	} else {
		return b
	}
}

func MinInt(a, b int) int {
	if a > b {
		return b
	} else {
		return a
	}
}

func ByteArrInt(id []byte) (d int, err error) {
	if len(id) == 0 {
		return 0, errors.New("empty digit string")
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			err = errors.New("can't convert to digit...")
			return d, err
		}
		if d > (math.MaxInt-int(c-'0'))/10 {
			return 0, errors.New("digit string overflows int")
		}
		d = d*10 + int(c-'0')
	}
	return d, nil
}

// OutFile is a buffered output file, zstd compressed when its name ends in
// ".zst".
type OutFile struct {
	*bufio.Writer
	fp *os.File
	zw *zstd.Encoder
}

func CreateOutFile(fn string) (*OutFile, error) {
	fp, err := os.Create(fn)
	if err != nil {
		return nil, err
	}
	of := &OutFile{fp: fp}
	var w io.Writer = fp
	if strings.HasSuffix(fn, ".zst") {
		if of.zw, err = zstd.NewWriter(fp, zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(zstd.SpeedFastest)); err != nil {
			fp.Close()
			return nil, err
		}
		w = of.zw
	}
	of.Writer = bufio.NewWriterSize(w, 1<<16)
	return of, nil
}

// Close flushes every layer and returns the first error met.
func (of *OutFile) Close() error {
	err := of.Flush()
	if of.zw != nil {
		if e := of.zw.Close(); err == nil {
			err = e
		}
	}
	if e := of.fp.Close(); err == nil {
		err = e
	}
	return err
}
