package design

import (
	"bufio"
	"io"
	"sort"

	"github.com/mudesheng/roa/bitarray"
	"github.com/mudesheng/roa/kmerindex"
	"github.com/pkg/errors"
)

// JoinMatrix row i bit j is set when segment i may be followed by segment j.
// Rows and columns are segment IDs.
type JoinMatrix struct {
	Rows []*bitarray.BitArray
}

func NewJoinMatrix(n int) (*JoinMatrix, error) {
	m := &JoinMatrix{Rows: make([]*bitarray.BitArray, n)}
	for i := range m.Rows {
		ba, err := bitarray.New(uint64(n), 1)
		if err != nil {
			return nil, err
		}
		m.Rows[i] = ba
	}
	return m, nil
}

func (m *JoinMatrix) Size() int { return len(m.Rows) }

func (m *JoinMatrix) Get(i, j int) bool {
	return m.Rows[i].Lookup(uint64(j)) != 0
}

func (m *JoinMatrix) Set(i, j int, v bool) {
	var b uint8
	if v {
		b = 1
	}
	m.Rows[i].Store(uint64(j), b)
}

// WriteTo writes one line of space separated 0/1 per row.
func (m *JoinMatrix) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for i := range m.Rows {
		line := make([]byte, 0, 2*len(m.Rows)+1)
		for j := range m.Rows {
			if m.Get(i, j) {
				line = append(line, '1', ' ')
			} else {
				line = append(line, '0', ' ')
			}
		}
		line = append(line, '\n')
		c, err := bw.Write(line)
		n += int64(c)
		if err != nil {
			return n, errors.Wrap(err, "write join matrix")
		}
	}
	return n, errors.Wrap(bw.Flush(), "flush join matrix")
}

// JoinSafe reports whether placing b right after a creates no k-mer present
// in idx. Only windows reaching within K-1 bases of the junction are
// scanned, the others lie inside a single probe.
func JoinSafe(a, b *Segment, idx *kmerindex.Index) bool {
	k := idx.K
	la, total := a.Len(), a.Len()+b.Len()
	first := la - 2*k + 1
	if first < 0 {
		first = 0
	}
	last := la + k - 1
	if last > total-k {
		last = total - k
	}
	if last < first {
		return true
	}
	r := kmerindex.NewRoller(k)
	for p := first; p < last+k; p++ {
		if p < la {
			r.PushBnt(a.Bnt(p))
		} else {
			r.PushBnt(b.Bnt(p - la))
		}
		if !r.Full() {
			continue
		}
		if idx.Contains(r.Fwd) || idx.Contains(r.Rev) {
			return false
		}
	}
	return true
}

// PairJoinCheck evaluates every ordered pair of segments. Rows are computed
// in parallel, row i only writes segment i. Mutual joins are then reduced to
// the direction starting at the lower ID and the segments are sorted by
// decreasing validity. segs must be indexed by ID on entry.
func PairJoinCheck(segs []*Segment, idx *kmerindex.Index, numCPU int) (*JoinMatrix, error) {
	n := len(segs)
	for i, s := range segs {
		if s.ID != i {
			return nil, errors.Errorf("segment at %d has ID %d", i, s.ID)
		}
	}
	m, err := NewJoinMatrix(n)
	if err != nil {
		return nil, err
	}
	parallelFor(n, numCPU, func(i int) {
		ok := 0
		for j := 0; j < n; j++ {
			if i == j || !JoinSafe(segs[i], segs[j], idx) {
				continue
			}
			m.Set(i, j, true)
			ok++
		}
		segs[i].Validity += ok
	})
	PruneCycles(m, segs)
	sort.SliceStable(segs, func(x, y int) bool {
		return segs[x].Validity > segs[y].Validity
	})
	return m, nil
}

// PruneCycles clears (j, i) whenever both (i, j) and (j, i) are set, i < j.
func PruneCycles(m *JoinMatrix, segs []*Segment) {
	n := m.Size()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if m.Get(i, j) && m.Get(j, i) {
				m.Set(j, i, false)
				segs[i].Validity--
			}
		}
	}
}
