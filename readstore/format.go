package readstore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/google/brotli/go/cbrotli"
	"github.com/klauspost/compress/zstd"

	"github.com/mudesheng/ovlcorrect/bnt"
	"github.com/mudesheng/ovlcorrect/utils"
)

const (
	FormatFasta = "fa"
	FormatFastq = "fq"
	FormatBam   = "bam"
)

var (
	ErrFormat   = errors.New("readstore: unknown reads file format")
	ErrRecord   = errors.New("readstore: broken record")
	ErrReadName = errors.New("readstore: read name is not a numeric ID")
)

// record is one read as found in a file, before it is checked.
type record struct {
	id   uint32
	seq  []byte
	desc string
}

type recordReader interface {
	// next returns io.EOF after the last record
	next() (record, error)
	Close() error
}

// ReadsFileFormat returns the format of fn from its suffix, ignoring a
// trailing ".zst" or ".br".
func ReadsFileFormat(fn string) (format string, compressed bool, err error) {
	name := fn
	for _, suffix := range []string{".zst", ".br"} {
		if strings.HasSuffix(name, suffix) {
			compressed = true
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return "", false, fmt.Errorf("%w: %s need suffix '*.fa | *.fasta | *.fq | *.fastq | *.bam' (optionally '.zst' or '.br')", ErrFormat, fn)
	}
	switch name[idx+1:] {
	case "fa", "fasta":
		format = FormatFasta
	case "fq", "fastq":
		format = FormatFastq
	case "bam":
		if compressed {
			return "", false, fmt.Errorf("%w: %s bam files are already compressed", ErrFormat, fn)
		}
		format = FormatBam
	default:
		return "", false, fmt.Errorf("%w: %s", ErrFormat, fn)
	}
	return format, compressed, nil
}

type zstdFile struct {
	*zstd.Decoder
	fp *os.File
}

func (z *zstdFile) Close() error {
	z.Decoder.Close()
	return z.fp.Close()
}

type brotliFile struct {
	*cbrotli.Reader
	fp *os.File
}

func (b *brotliFile) Close() error {
	err := b.Reader.Close()
	if e := b.fp.Close(); err == nil {
		err = e
	}
	return err
}

// OpenInput opens fn, decompressing it on the fly when it ends with ".zst"
// or ".br".
func OpenInput(fn string) (io.ReadCloser, error) {
	fp, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(fn, ".br") {
		return &brotliFile{Reader: cbrotli.NewReader(fp), fp: fp}, nil
	}
	if !strings.HasSuffix(fn, ".zst") {
		return fp, nil
	}
	zr, err := zstd.NewReader(fp, zstd.WithDecoderConcurrency(1))
	if err != nil {
		fp.Close()
		return nil, fmt.Errorf("zstd open file: %s: %w", fn, err)
	}
	return &zstdFile{Decoder: zr, fp: fp}, nil
}

func openRecords(fn string) (recordReader, error) {
	format, _, err := ReadsFileFormat(fn)
	if err != nil {
		return nil, err
	}
	in, err := OpenInput(fn)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatFasta:
		return &fastaReader{fn: fn, in: in, r: fasta.NewReader(in, linear.NewSeq("", nil, alphabet.DNA))}, nil
	case FormatFastq:
		return &fastqReader{fn: fn, in: in, buf: bufio.NewReaderSize(in, 1<<20)}, nil
	}
	br, err := bam.NewReader(in, 1)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("create bam reader for %s: %w", fn, err)
	}
	return &bamReader{fn: fn, in: in, r: br}, nil
}

func parseID(name string) (uint32, error) {
	id, err := utils.ByteArrInt([]byte(name))
	if err != nil || id <= 0 || uint64(id) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %q", ErrReadName, name)
	}
	return uint32(id), nil
}

type fastaReader struct {
	fn string
	in io.Closer
	r  *fasta.Reader
}

func (f *fastaReader) next() (rec record, err error) {
	s, err := f.r.Read()
	if err != nil {
		if err == io.EOF {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("read file: %s: %w", f.fn, err)
	}
	l := s.(*linear.Seq)
	if rec.id, err = parseID(l.ID); err != nil {
		return rec, fmt.Errorf("file %s: %w", f.fn, err)
	}
	rec.desc = l.Desc
	rec.seq = make([]byte, len(l.Seq))
	for j, v := range l.Seq {
		rec.seq[j] = byte(v)
	}
	return rec, nil
}

func (f *fastaReader) Close() error { return f.in.Close() }

// fastqReader reads four-line FASTQ records; qualities are not kept.
type fastqReader struct {
	fn  string
	in  io.Closer
	buf *bufio.Reader
}

func (f *fastqReader) next() (rec record, err error) {
	var b [4][]byte
	i := 0
	for ; i < len(b); i++ {
		b[i], err = f.buf.ReadBytes('\n')
		if err != nil {
			break
		}
		b[i] = bytes.TrimRight(b[i], "\r\n")
	}
	if err != nil {
		if err != io.EOF {
			return rec, fmt.Errorf("read file: %s: %w", f.fn, err)
		}
		if i == 0 && len(b[0]) == 0 {
			return rec, io.EOF
		}
		// the last line may lack its newline
		if i != len(b)-1 {
			return rec, fmt.Errorf("%w: %s, record cut after %d lines", ErrRecord, f.fn, i)
		}
		b[i] = bytes.TrimRight(b[i], "\r\n")
	}
	if len(b[0]) < 2 || b[0][0] != '@' || len(b[2]) == 0 || b[2][0] != '+' {
		return rec, fmt.Errorf("%w: %s, bad fastq header %q", ErrRecord, f.fn, b[0])
	}
	flist := strings.Fields(string(b[0][1:]))
	if len(flist) == 0 {
		return rec, fmt.Errorf("%w: %s, fastq header without a name %q", ErrRecord, f.fn, b[0])
	}
	if rec.id, err = parseID(flist[0]); err != nil {
		return rec, fmt.Errorf("file %s: %w", f.fn, err)
	}
	rec.desc = strings.Join(flist[1:], " ")
	rec.seq = append([]byte(nil), b[1]...)
	return rec, nil
}

func (f *fastqReader) Close() error { return f.in.Close() }

// bamReader reads unaligned BAM; a read stored reversed is turned back.
type bamReader struct {
	fn string
	in io.Closer
	r  *bam.Reader
}

func (f *bamReader) next() (rec record, err error) {
	for {
		r, err := f.r.Read()
		if err != nil {
			if err == io.EOF {
				return rec, io.EOF
			}
			return rec, fmt.Errorf("read bam: %s: %w", f.fn, err)
		}
		if r.Flags&(sam.Secondary|sam.Supplementary) != 0 {
			continue
		}
		if rec.id, err = parseID(r.Name); err != nil {
			return rec, fmt.Errorf("file %s: %w", f.fn, err)
		}
		rec.seq = r.Seq.Expand()
		if r.Flags&sam.Reverse != 0 {
			rec.seq = bnt.ReverseComplement(nil, rec.seq)
		}
		return rec, nil
	}
}

func (f *bamReader) Close() error {
	f.r.Close()
	return f.in.Close()
}
