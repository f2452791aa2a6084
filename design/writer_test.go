package design

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testQuery = "CAACACGAACTTCTACACCGGAGAGTACTGATCCGGTTGGTCGT"

func testCircle(t *testing.T) Circle {
	var c Circle
	for x, p := range []int{3, 5, 19, 20} {
		c[x] = newSeg(t, "q1", p, testQuery[p:p+ProbeLen])
		c[x].ID = x
		c[x].Tm = WallaceTm(11)
	}
	return c
}

const testReport = `>probe-1/1 q1:3
CTCCGGTGTAGAAGTTCGTG
>probe-1/2 q1:5
CTCTCCGGTGTAGAAGTTCG
>probe-1/3 q1:19
CAACCGGATCAGTACTCTCC
>probe-1/4 q1:20
CCAACCGGATCAGTACTCTC
>circle-1
CTCCGGTGTAGAAGTTCGTGCTCTCCGGTGTAGAAGTTCGCAACCGGATCAGTACTCTCCCCAACCGGATCAGTACTCTC
`

func TestProbeSeq(t *testing.T) {
	s := newSeg(t, "q", 0, "GACTGACTGCATGCAGTCAC")
	assert.Equal(t, "GACTGACTGCATGCAGTCAC", KmerSeq(s))
	assert.Equal(t, "GTGACTGCATGCAGTCAGTC", ProbeSeq(s))
}

func TestSaveCircles(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SaveCircles(&buf, []Circle{testCircle(t)}, 1))
	assert.Equal(t, testReport, buf.String())

	// count is clamped to the circles built
	buf.Reset()
	require.NoError(t, SaveCircles(&buf, []Circle{testCircle(t)}, 3))
	assert.Equal(t, testReport, buf.String())

	buf.Reset()
	require.NoError(t, SaveCircles(&buf, nil, 5))
	assert.Empty(t, buf.String())
}

func TestWriteSegments(t *testing.T) {
	c := testCircle(t)
	var buf bytes.Buffer
	require.NoError(t, WriteSegments(&buf, c[:1]))
	assert.Equal(t, TableHeader+"\n"+
		"0\tq1\t4\t23\t53.83\tCACGAACTTCTACACCGGAG\tCTCCGGTGTAGAAGTTCGTG\t1\n", buf.String())
}

func TestCreateZstd(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "out.fa.zst")
	require.NoError(t, writeFile(fn, func(w io.Writer) error {
		return SaveCircles(w, []Circle{testCircle(t)}, 1)
	}))
	fp, err := os.Open(fn)
	require.NoError(t, err)
	defer fp.Close()
	zr, err := zstd.NewReader(fp, zstd.WithDecoderConcurrency(1))
	require.NoError(t, err)
	defer zr.Close()
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, testReport, string(data))
}

func TestWriteSAM(t *testing.T) {
	var buf bytes.Buffer
	refs := []SeqLen{{Name: "q0", Len: 10}, {Name: "q1", Len: len(testQuery)}}
	require.NoError(t, WriteSAM(&buf, refs, []Circle{testCircle(t)}))

	sr, err := sam.NewReader(&buf)
	require.NoError(t, err)
	assert.Len(t, sr.Header().Refs(), 2)
	var names []string
	var pos []int
	for {
		r, err := sr.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, r.Name)
		pos = append(pos, r.Pos)
		assert.Equal(t, "q1", r.Ref.Name())
		assert.NotZero(t, r.Flags&sam.Reverse)
		assert.Equal(t, "20M", r.Cigar.String())
		assert.Equal(t, testQuery[r.Pos:r.Pos+ProbeLen], string(r.Seq.Expand()))
	}
	assert.Equal(t, []string{"probe-1/1", "probe-1/2", "probe-1/3", "probe-1/4"}, names)
	assert.Equal(t, []int{3, 5, 19, 20}, pos)

	err = WriteSAM(&bytes.Buffer{}, refs[:1], []Circle{testCircle(t)})
	assert.Error(t, err, "probe on a sequence missing from the header")
}

func TestWriteGraph(t *testing.T) {
	segs := spaced(t, 3, CircleSpan)
	m := fullMatrix(t, 3, func(i, j int) bool { return i < j })
	var buf bytes.Buffer
	require.NoError(t, WriteGraph(&buf, BuildGraph(segs, m, CircleSpan)))
	dot := buf.String()
	assert.True(t, strings.HasPrefix(dot, "digraph G"), dot)
	assert.Equal(t, 3, strings.Count(dot, "->"))
}
