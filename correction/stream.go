package correction

import (
	"bufio"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cespare/xxhash"
	"github.com/klauspost/compress/zstd"
)

// The stream is zstd compressed text, one record per line:
//
//	R	<readID>	<keepLeft 0|1>	<keepRight 0|1>
//	C	<pos>	<sub|del|ins|hap>	<value>
//
// and ends with "#xxh64\t<hex>", the xxhash64 of every byte before it.
const trailerPrefix = "#xxh64\t"

var (
	ErrChecksum  = errors.New("correction: stream checksum mismatch")
	ErrNoTrailer = errors.New("correction: stream ends without checksum")
	ErrBadLine   = errors.New("correction: bad stream line")
)

type Writer struct {
	zw  *zstd.Encoder
	bw  *bufio.Writer
	h   hash.Hash64
	buf []byte
	num int
}

func NewWriter(w io.Writer) (*Writer, error) {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return &Writer{zw: zw, bw: bufio.NewWriterSize(zw, 1<<16), h: xxhash.New()}, nil
}

func boolDigit(b bool) byte {
	if b {
		return '1'
	}
	return '0'
}

func (w *Writer) Write(rec Record) error {
	b := w.buf[:0]
	if rec.Type == Ident {
		b = append(b, "R\t"...)
		b = strconv.AppendUint(b, uint64(rec.ReadID), 10)
		b = append(b, '\t', boolDigit(rec.KeepLeft), '\t', boolDigit(rec.KeepRight), '\n')
	} else {
		b = append(b, "C\t"...)
		b = strconv.AppendInt(b, int64(rec.Pos), 10)
		b = append(b, '\t')
		b = append(b, rec.Type.String()...)
		b = append(b, '\t')
		switch rec.Type {
		case Subst:
			b = append(b, rec.Base)
		case Delete:
			b = append(b, '-')
		case Insert:
			b = append(b, rec.Ins...)
		case Haplotype:
			b = append(b, strings.Join(rec.Alts, ",")...)
		default:
			return fmt.Errorf("correction: cannot write record type %v", rec.Type)
		}
		b = append(b, '\n')
	}
	w.buf = b
	w.h.Write(b)
	w.num++
	_, err := w.bw.Write(b)
	return err
}

// Close writes the checksum and flushes the compressed stream. It does not
// close the underlying writer.
func (w *Writer) Close() error {
	if _, err := fmt.Fprintf(w.bw, "%s%016x\n", trailerPrefix, w.h.Sum64()); err != nil {
		return err
	}
	if err := w.bw.Flush(); err != nil {
		return err
	}
	return w.zw.Close()
}

// FileName is the correction stream written for an output prefix.
func FileName(prefix string) string {
	return prefix + ".corrections.zst"
}

// WriteFile writes the records of every read to fn and returns the number
// of records written.
func WriteFile(fn string, recs [][]Record) (num int, err error) {
	fp, err := os.Create(fn)
	if err != nil {
		return 0, err
	}
	w, err := NewWriter(fp)
	if err != nil {
		fp.Close()
		return 0, err
	}
	for _, rr := range recs {
		for _, rec := range rr {
			if err := w.Write(rec); err != nil {
				fp.Close()
				return w.num, err
			}
		}
	}
	if err := w.Close(); err != nil {
		fp.Close()
		return w.num, err
	}
	return w.num, fp.Close()
}

type Reader struct {
	zr      *zstd.Decoder
	br      *bufio.Reader
	h       hash.Hash64
	readID  uint32
	haveID  bool
	lineNum int
	done    bool
}

func NewReader(r io.Reader) (*Reader, error) {
	zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &Reader{zr: zr, br: bufio.NewReaderSize(zr, 1<<16), h: xxhash.New()}, nil
}

func (r *Reader) Close() {
	r.zr.Close()
}

// Read returns the next record. After the last one it checks the trailer
// and returns io.EOF, ErrChecksum or ErrNoTrailer.
func (r *Reader) Read() (rec Record, err error) {
	if r.done {
		return rec, io.EOF
	}
	line, err := r.br.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			if line == "" {
				return rec, ErrNoTrailer
			}
			return rec, fmt.Errorf("%w: line %d not terminated", ErrBadLine, r.lineNum+1)
		}
		return rec, err
	}
	r.lineNum++
	if strings.HasPrefix(line, trailerPrefix) {
		r.done = true
		sum, err := strconv.ParseUint(strings.TrimSpace(line[len(trailerPrefix):]), 16, 64)
		if err != nil {
			return rec, fmt.Errorf("%w: trailer %q", ErrBadLine, line)
		}
		if sum != r.h.Sum64() {
			return rec, fmt.Errorf("%w: %016x != %016x", ErrChecksum, sum, r.h.Sum64())
		}
		return rec, io.EOF
	}
	r.h.Write([]byte(line))
	rec, err = r.parse(line[:len(line)-1])
	if err != nil {
		return rec, fmt.Errorf("line %d: %w", r.lineNum, err)
	}
	return rec, nil
}

func (r *Reader) parse(line string) (rec Record, err error) {
	f := strings.Split(line, "\t")
	if len(f) != 4 {
		return rec, fmt.Errorf("%w: %q", ErrBadLine, line)
	}
	switch f[0] {
	case "R":
		id, err := strconv.ParseUint(f[1], 10, 32)
		if err != nil || (f[2] != "0" && f[2] != "1") || (f[3] != "0" && f[3] != "1") {
			return rec, fmt.Errorf("%w: %q", ErrBadLine, line)
		}
		r.readID, r.haveID = uint32(id), true
		return Record{Type: Ident, ReadID: r.readID, KeepLeft: f[2] == "1", KeepRight: f[3] == "1"}, nil
	case "C":
		if !r.haveID {
			return rec, fmt.Errorf("%w: correction before any read: %q", ErrBadLine, line)
		}
		pos, err := strconv.Atoi(f[1])
		if err != nil || pos < 0 {
			return rec, fmt.Errorf("%w: %q", ErrBadLine, line)
		}
		rec = Record{ReadID: r.readID, Pos: pos}
		switch f[2] {
		case "sub":
			if len(f[3]) != 1 {
				return rec, fmt.Errorf("%w: %q", ErrBadLine, line)
			}
			rec.Type, rec.Base = Subst, f[3][0]
		case "del":
			rec.Type = Delete
		case "ins":
			rec.Type, rec.Ins = Insert, f[3]
		case "hap":
			rec.Type, rec.Alts = Haplotype, strings.Split(f[3], ",")
		default:
			return rec, fmt.Errorf("%w: %q", ErrBadLine, line)
		}
		return rec, nil
	}
	return rec, fmt.Errorf("%w: %q", ErrBadLine, line)
}

// ReadAll reads a whole stream grouped by read, checking its checksum.
func ReadAll(in io.Reader) (recs [][]Record, err error) {
	r, err := NewReader(in)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		if rec.Type == Ident {
			recs = append(recs, nil)
		}
		recs[len(recs)-1] = append(recs[len(recs)-1], rec)
	}
}
