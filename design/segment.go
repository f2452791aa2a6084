package design

import (
	"github.com/mudesheng/roa/bitarray"
	"github.com/mudesheng/roa/kmerindex"
	"github.com/pkg/errors"
)

// Segment is a stretch of a query sequence whose k-mers are all absent from
// the background index.
type Segment struct {
	ID       int    // index into the join matrix, set by FilterSegments
	Name     string // source sequence name
	Start    int    // first base, 0-based inclusive
	End      int    // last base, 0-based inclusive
	Bases    *bitarray.BitArray
	Validity int
	Tm       float64
}

// NewSegment copies the 2-bit codes of bnts into a new segment.
func NewSegment(name string, start int, bnts []uint8) (*Segment, error) {
	ba, err := bitarray.New(uint64(len(bnts)), 2)
	if err != nil {
		return nil, err
	}
	for i, b := range bnts {
		if err := ba.Set(uint64(i), b); err != nil {
			return nil, errors.Wrapf(err, "segment %s:%d", name, start)
		}
	}
	return &Segment{Name: name, Start: start, End: start + len(bnts) - 1, Bases: ba, Validity: 1}, nil
}

func (s *Segment) Len() int {
	return int(s.Bases.Size)
}

// Bnt returns the 2-bit code of base i.
func (s *Segment) Bnt(i int) uint8 {
	return s.Bases.Lookup(uint64(i))
}

// Bnts returns the 2-bit codes of bases [from, to).
func (s *Segment) Bnts(from, to int) []uint8 {
	bnts := make([]uint8, to-from)
	for i := range bnts {
		bnts[i] = s.Bnt(from + i)
	}
	return bnts
}

// Code packs the first n bases, n <= 32.
func (s *Segment) Code(n int) (code uint64) {
	for i := 0; i < n; i++ {
		code = code<<2 | uint64(s.Bnt(i))
	}
	return code
}

func (s *Segment) String() string {
	bs := make([]byte, s.Len())
	for i := range bs {
		bs[i] = kmerindex.BitNtCharUp[s.Bnt(i)]
	}
	return string(bs)
}

// kmerBnts unpacks the k bases of a forward code.
func kmerBnts(code uint64, k int) []uint8 {
	bnts := make([]uint8, k)
	for i := k - 1; i >= 0; i-- {
		bnts[i] = uint8(code & 3)
		code >>= 2
	}
	return bnts
}

// collectSegment rebuilds the bases of the run kms[from:to]: all bases of the
// first k-mer, then the last base of every following k-mer.
func collectSegment(q *QuerySeq, from, to, k int) (*Segment, error) {
	bnts := make([]uint8, 0, k+to-from-1)
	bnts = append(bnts, kmerBnts(q.Kmers[from].Fwd, k)...)
	for x := from + 1; x < to; x++ {
		bnts = append(bnts, uint8(q.Kmers[x].Fwd&3))
	}
	return NewSegment(q.Name, q.Kmers[from].Pos, bnts)
}

// CollectSegments turns every maximal run of kept k-mers whose position span
// exceeds MinSegmentSpan into a segment.
func CollectSegments(qs []*QuerySeq, k int) ([]*Segment, error) {
	var segs []*Segment
	for _, q := range qs {
		kms := q.Kmers
		for i := 0; i < len(kms); {
			j := runEnd(kms, i)
			if !kms[i].Drop && kms[j-1].Pos-kms[i].Pos > MinSegmentSpan {
				s, err := collectSegment(q, i, j, k)
				if err != nil {
					return nil, err
				}
				segs = append(segs, s)
			}
			i = j
		}
	}
	return segs, nil
}
