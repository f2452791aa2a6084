package design

import (
	"strings"
	"testing"

	"github.com/mudesheng/roa/kmerindex"
	"github.com/mudesheng/roa/seqio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, idx *kmerindex.Index, recs ...seqio.Record) []*Segment {
	qs := NewQuery(recs, testK)
	if idx != nil {
		ValidKmers(qs, idx, 1)
	} else {
		for _, q := range qs {
			Denoise(q.Kmers)
		}
	}
	segs, err := CollectSegments(qs, testK)
	require.NoError(t, err)
	return segs
}

func TestSegmentBases(t *testing.T) {
	s := newSeg(t, "q", 7, "ACGTTGCA")
	assert.Equal(t, 8, s.Len())
	assert.Equal(t, 7, s.Start)
	assert.Equal(t, 14, s.End)
	assert.Equal(t, 1, s.Validity)
	assert.Equal(t, "ACGTTGCA", s.String())
	code, _ := kmerindex.Encode([]byte("ACGT"))
	assert.Equal(t, code, s.Code(4))
	assert.Equal(t, bntsOf("TTG"), s.Bnts(3, 6))
}

func TestCollectSegments(t *testing.T) {
	seq := "GATTACAGGCTTAACGGTACCAT"
	segs := collect(t, nil, seqio.Record{Name: "q", Seq: []byte(seq)})
	require.Len(t, segs, 1)
	s := segs[0]
	assert.Equal(t, seq, s.String())
	assert.Equal(t, 0, s.Start)
	assert.Equal(t, len(seq)-1, s.End)
	// K bases of the first k-mer plus one per following k-mer
	assert.Equal(t, testK+len(seq)-testK, s.Len())
}

func TestCollectSegmentsSpan(t *testing.T) {
	// 6 k-mers span 5 positions, 7 k-mers span 6
	short := strings.Repeat("ACGTTGCA", 2)[:testK+5]
	long := strings.Repeat("ACGTTGCA", 2)[:testK+6]
	assert.Empty(t, collect(t, nil, seqio.Record{Name: "s", Seq: []byte(short)}))
	assert.Len(t, collect(t, nil, seqio.Record{Name: "l", Seq: []byte(long)}), 1)
}

func TestCollectSegmentsSplitOnN(t *testing.T) {
	left := "GATTACAGGCTTAACG"
	right := "CCATGGTACGATCAGT"
	segs := collect(t, nil, seqio.Record{Name: "q", Seq: []byte(left + "N" + right)})
	require.Len(t, segs, 2)
	assert.Equal(t, left, segs[0].String())
	assert.Equal(t, right, segs[1].String())
	assert.Equal(t, len(left)+1, segs[1].Start)
	assert.Equal(t, 2*len(left), segs[1].End)
}

func TestCollectSegmentsAbsentFromIndex(t *testing.T) {
	idx, err := kmerindex.New(testK)
	require.NoError(t, err)
	idx.AddSeq([]byte("TGCATGCAAT"))
	seq := "GATTACAGGCTTAACGGTTGCATGCAATACCATGACTTAGCGATCGGATC"
	segs := collect(t, idx, seqio.Record{Name: "q", Seq: []byte(seq)})
	require.NotEmpty(t, segs)
	for _, s := range segs {
		assert.Equal(t, seq[s.Start:s.End+1], s.String())
		kmerindex.ForEachKmer([]byte(s.String()), testK, func(_ int, fwd, rev uint64) {
			assert.False(t, idx.Contains(fwd) || idx.Contains(rev), "segment %s holds an indexed k-mer", s)
		})
	}
}
