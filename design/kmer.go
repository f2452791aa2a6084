package design

import (
	"github.com/mudesheng/roa/kmerindex"
	"github.com/mudesheng/roa/seqio"
)

const (
	// MinRunLen is the shortest run of equal drop status kept by Denoise.
	MinRunLen = 4
	// MinSegmentSpan is the k-mer position span a safe run must exceed to
	// become a segment.
	MinSegmentSpan = 5
)

// QueryKmer is one k-mer window of a query sequence.
type QueryKmer struct {
	Pos    int    // 0-based start in the source sequence
	Fwd    uint64 // forward code
	Rev    uint64 // reverse complement code
	Drop   bool   // present in the background index or noise
	Strand uint8  // reserved
}

// QuerySeq holds a query sequence and its k-mers in position order.
type QuerySeq struct {
	Name  string
	Seq   []byte
	Kmers []QueryKmer
}

// ExtractKmers keeps one record per window of k unambiguous bases. The
// window restarts after an ambiguous base.
func ExtractKmers(seq []byte, k int) []QueryKmer {
	if len(seq) < k {
		return nil
	}
	kms := make([]QueryKmer, 0, len(seq)-k+1)
	kmerindex.ForEachKmer(seq, k, func(pos int, fwd, rev uint64) {
		kms = append(kms, QueryKmer{Pos: pos, Fwd: fwd, Rev: rev})
	})
	return kms
}

func NewQuery(recs []seqio.Record, k int) []*QuerySeq {
	qs := make([]*QuerySeq, len(recs))
	for i, r := range recs {
		qs[i] = &QuerySeq{Name: r.Name, Seq: r.Seq, Kmers: ExtractKmers(r.Seq, k)}
	}
	return qs
}

// MarkKmers drops every k-mer whose forward or reverse code is in idx.
func MarkKmers(kms []QueryKmer, idx *kmerindex.Index) {
	for i := range kms {
		if kms[i].Drop {
			continue
		}
		if idx.Contains(kms[i].Fwd) || idx.Contains(kms[i].Rev) {
			kms[i].Drop = true
		}
	}
}

// runEnd returns the end (exclusive) of the run starting at i: equal drop
// status and consecutive positions.
func runEnd(kms []QueryKmer, i int) int {
	j := i + 1
	for j < len(kms) && kms[j].Drop == kms[i].Drop && kms[j].Pos == kms[j-1].Pos+1 {
		j++
	}
	return j
}

// Denoise drops every run shorter than MinRunLen.
func Denoise(kms []QueryKmer) {
	for i := 0; i < len(kms); {
		j := runEnd(kms, i)
		if j-i < MinRunLen {
			for x := i; x < j; x++ {
				kms[x].Drop = true
			}
		}
		i = j
	}
}

// ValidKmers marks and denoises the k-mers of every query sequence, one
// sequence per goroutine.
func ValidKmers(qs []*QuerySeq, idx *kmerindex.Index, numCPU int) {
	parallelFor(len(qs), numCPU, func(i int) {
		MarkKmers(qs[i].Kmers, idx)
		Denoise(qs[i].Kmers)
	})
}
