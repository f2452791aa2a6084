// Package kmerindex implements a direct-address k-mer membership set: one bit
// for each of the 4^K possible k-mers, set when the k-mer or its reverse
// complement occurs in an indexed reference.
package kmerindex

import (
	"bufio"
	"encoding/binary"
	"io"
	"math/bits"
	"os"

	"github.com/cespare/xxhash"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/mudesheng/roa/bitarray"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultK = 16
	MaxK     = 16
	// CacheSuffix is appended to a reference path to name its cached index.
	CacheSuffix = ".index"
)

var ErrCorrupt = errors.New("corrupt index file")

type Index struct {
	K    int
	Bits *bitarray.BitArray
}

func New(k int) (*Index, error) {
	if k < 1 || k > MaxK {
		return nil, errors.Errorf("kmer length %d out of range [1, %d]", k, MaxK)
	}
	ba, err := bitarray.New(1<<(2*uint(k)), 1)
	if err != nil {
		return nil, err
	}
	return &Index{K: k, Bits: ba}, nil
}

// Contains reports whether code is marked present. code must hold 2K bits.
func (idx *Index) Contains(code uint64) bool {
	return idx.Bits.Lookup(code) != 0
}

func (idx *Index) Add(code uint64) {
	idx.Bits.Store(code, 1)
}

// AddSeq marks every k-mer of seq on both strands.
func (idx *Index) AddSeq(seq []byte) (n int) {
	r := NewRoller(idx.K)
	for _, b := range seq {
		if r.Push(b) {
			idx.Add(r.Fwd)
			idx.Add(r.Rev)
			n++
		}
	}
	return n
}

// Union ORs o into idx. Both must have been built with the same K.
func (idx *Index) Union(o *Index) error {
	if err := idx.Bits.Or(o.Bits); err != nil {
		return errors.Wrapf(err, "union K=%d with K=%d", idx.K, o.K)
	}
	return nil
}

type Stat struct {
	Slots uint64
	Set   uint64
	Bytes uint64
}

func (s Stat) Fill() float64 {
	if s.Slots == 0 {
		return 0
	}
	return float64(s.Set) / float64(s.Slots)
}

func (idx *Index) Stat() Stat {
	return Stat{Slots: idx.Bits.Size, Set: idx.Bits.Count(), Bytes: uint64(len(idx.Bits.Data))}
}

func (idx *Index) LogStat(name string) {
	st := idx.Stat()
	log.Infof("[LogStat] %s K: %d, set: %s/%s slots, fill: %.6f, size: %s", name, idx.K,
		humanize.Comma(int64(st.Set)), humanize.Comma(int64(st.Slots)), st.Fill(), humanize.IBytes(st.Bytes))
}

// WriteTo writes the bit array stream followed by an xxhash64 of the data.
func (idx *Index) WriteTo(w io.Writer) (int64, error) {
	n, err := idx.Bits.WriteTo(w)
	if err != nil {
		return n, err
	}
	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], xxhash.Sum64(idx.Bits.Data))
	m, err := w.Write(sum[:])
	return n + int64(m), errors.Wrap(err, "write checksum")
}

// ReadIndex reads a stream written by WriteTo. A stream ending right after
// the data, without checksum, is accepted.
func ReadIndex(r io.Reader) (*Index, error) {
	ba, err := bitarray.ReadFrom(r)
	if err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	if ba.Nbit != 1 || ba.Size == 0 || bits.OnesCount64(ba.Size) != 1 || bits.TrailingZeros64(ba.Size)%2 != 0 {
		return nil, errors.Wrapf(ErrCorrupt, "size %d nbit %d is not a k-mer index", ba.Size, ba.Nbit)
	}
	k := bits.TrailingZeros64(ba.Size) / 2
	if k < 1 || k > MaxK {
		return nil, errors.Wrapf(ErrCorrupt, "kmer length %d", k)
	}
	var sum [8]byte
	switch _, err := io.ReadFull(r, sum[:]); err {
	case nil:
		if binary.LittleEndian.Uint64(sum[:]) != xxhash.Sum64(ba.Data) {
			return nil, errors.Wrap(ErrCorrupt, "checksum mismatch")
		}
		var one [1]byte
		if _, err := io.ReadFull(r, one[:]); err != io.EOF {
			return nil, errors.Wrap(ErrCorrupt, "trailing data after checksum")
		}
	case io.EOF:
	default:
		return nil, errors.Wrap(ErrCorrupt, "read checksum: "+err.Error())
	}
	return &Index{K: k, Bits: ba}, nil
}

// Dump writes idx to fn as a gzip stream.
func (idx *Index) Dump(fn string) error {
	fp, err := os.Create(fn)
	if err != nil {
		return errors.Wrapf(err, "create %s", fn)
	}
	defer fp.Close()
	gzfp, err := gzip.NewWriterLevel(fp, gzip.BestSpeed)
	if err != nil {
		return err
	}
	buffp := bufio.NewWriterSize(gzfp, 1<<20)
	if _, err = idx.WriteTo(buffp); err != nil {
		return errors.Wrapf(err, "dump %s", fn)
	}
	if err = buffp.Flush(); err != nil {
		return errors.Wrapf(err, "flush %s", fn)
	}
	if err = gzfp.Close(); err != nil {
		return errors.Wrapf(err, "close gzip %s", fn)
	}
	return fp.Close()
}

func Load(fn string) (*Index, error) {
	fp, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", fn)
	}
	defer fp.Close()
	gzfp, err := gzip.NewReader(bufio.NewReaderSize(fp, 1<<20))
	if err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "%s: %v", fn, err)
	}
	defer gzfp.Close()
	idx, err := ReadIndex(gzfp)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", fn)
	}
	return idx, nil
}
