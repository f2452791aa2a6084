// Package seqio reads FASTA and FASTQ records from plain, gzip or zstd
// compressed files. The compression is detected from the leading magic bytes
// and the record format from the first record marker.
package seqio

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/io/seqio/fastq"
	"github.com/biogo/biogo/seq"
	"github.com/biogo/biogo/seq/linear"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

	ErrFormat = errors.New("unknown sequence format")
)

const bufSize = 1 << 20

type Format int

const (
	FormatFasta Format = iota
	FormatFastq
)

func (f Format) String() string {
	if f == FormatFastq {
		return "fastq"
	}
	return "fasta"
}

// Record is one sequence. Seq holds upper case letters.
type Record struct {
	Name string
	Seq  []byte
}

type seqReader interface {
	Read() (seq.Sequence, error)
}

type Reader struct {
	fn     string
	format Format
	rd     seqReader
	closer []io.Closer
	rec    Record
	err    error
}

type zstdCloser struct{ *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// OpenStream wraps r, undoing gzip or zstd compression when present.
func OpenStream(r io.Reader) (io.Reader, io.Closer, error) {
	br := bufio.NewReaderSize(r, bufSize)
	magic, _ := br.Peek(4)
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		gzfp, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open gzip stream")
		}
		return bufio.NewReaderSize(gzfp, bufSize), gzfp, nil
	case bytes.HasPrefix(magic, zstdMagic):
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, errors.Wrap(err, "open zstd stream")
		}
		return bufio.NewReaderSize(zr, bufSize), zstdCloser{zr}, nil
	}
	return br, nil, nil
}

// Open opens fn ("-" for stdin) for reading sequence records.
func Open(fn string) (*Reader, error) {
	var fp *os.File
	if fn == "-" {
		fp = os.Stdin
	} else {
		var err error
		if fp, err = os.Open(fn); err != nil {
			return nil, errors.Wrapf(err, "open %s", fn)
		}
	}
	r, err := NewReader(fp, fn)
	if err != nil {
		fp.Close()
		return nil, err
	}
	if fp != os.Stdin {
		r.closer = append(r.closer, fp)
	}
	return r, nil
}

// NewReader reads records from r; name is used in error messages.
func NewReader(r io.Reader, name string) (*Reader, error) {
	sr, c, err := OpenStream(r)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	rd := &Reader{fn: name}
	if c != nil {
		rd.closer = append(rd.closer, c)
	}
	br, ok := sr.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(sr, bufSize)
	}
	format, empty, err := sniff(br)
	if err != nil {
		rd.Close()
		return nil, errors.Wrap(err, name)
	}
	rd.format = format
	if empty {
		rd.err = io.EOF
		return rd, nil
	}
	if format == FormatFastq {
		rd.rd = fastq.NewReader(br, linear.NewQSeq("", nil, alphabet.DNA, alphabet.Sanger))
	} else {
		rd.rd = fasta.NewReader(br, linear.NewSeq("", nil, alphabet.DNA))
	}
	return rd, nil
}

// sniff looks at the first non blank byte of the stream.
func sniff(br *bufio.Reader) (Format, bool, error) {
	for n := 1; ; n++ {
		b, err := br.Peek(n)
		if len(b) < n {
			if err == io.EOF || err == nil {
				return FormatFasta, true, nil
			}
			return FormatFasta, false, err
		}
		switch c := b[n-1]; c {
		case ' ', '\t', '\r', '\n':
			if n == bufSize {
				return FormatFasta, true, nil
			}
			continue
		case '>':
			return FormatFasta, false, nil
		case '@':
			return FormatFastq, false, nil
		default:
			return FormatFasta, false, errors.Wrapf(ErrFormat, "leading byte %q", c)
		}
	}
}

func (r *Reader) Format() Format { return r.format }

// Next reads the next record, it returns false at the end of the input or
// on error.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	s, err := r.rd.Read()
	if err != nil {
		r.err = err
		return false
	}
	r.rec.Name = firstField(s.Name())
	switch l := s.(type) {
	case *linear.Seq:
		r.rec.Seq = make([]byte, len(l.Seq))
		for i, c := range l.Seq {
			r.rec.Seq[i] = upper(byte(c))
		}
	case *linear.QSeq:
		r.rec.Seq = make([]byte, len(l.Seq))
		for i, ql := range l.Seq {
			r.rec.Seq[i] = upper(byte(ql.L))
		}
	default:
		r.err = errors.Errorf("unexpected sequence type %T", s)
		return false
	}
	return true
}

// Record returns the last record read by Next. The returned Seq is owned by
// the caller.
func (r *Reader) Record() Record { return r.rec }

func (r *Reader) Err() error {
	if r.err == io.EOF {
		return nil
	}
	return errors.Wrapf(r.err, "read %s", r.fn)
}

func (r *Reader) Close() (err error) {
	for i := len(r.closer) - 1; i >= 0; i-- {
		if e := r.closer[i].Close(); e != nil && err == nil {
			err = e
		}
	}
	r.closer = nil
	return err
}

// ReadAll returns every record of fn.
func ReadAll(fn string) ([]Record, error) {
	r, err := Open(fn)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var recs []Record
	for r.Next() {
		recs = append(recs, r.Record())
	}
	return recs, r.Err()
}

func firstField(s string) string {
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i]
	}
	return s
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
