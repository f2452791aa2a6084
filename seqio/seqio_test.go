package seqio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFasta = ">chr1 first chromosome\nACGTacgtNN\nGGCC\n>chr2\nttttAAAA\n"

func writeFile(t *testing.T, name string, data []byte) string {
	fn := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(fn, data, 0644))
	return fn
}

func checkFasta(t *testing.T, recs []Record) {
	require.Len(t, recs, 2)
	assert.Equal(t, "chr1", recs[0].Name)
	assert.Equal(t, "ACGTACGTNNGGCC", string(recs[0].Seq))
	assert.Equal(t, "chr2", recs[1].Name)
	assert.Equal(t, "TTTTAAAA", string(recs[1].Seq))
}

func TestPlainFasta(t *testing.T) {
	recs, err := ReadAll(writeFile(t, "ref.fa", []byte(testFasta)))
	require.NoError(t, err)
	checkFasta(t, recs)
}

func TestGzipFasta(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(testFasta))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	recs, err := ReadAll(writeFile(t, "ref.fa.gz", buf.Bytes()))
	require.NoError(t, err)
	checkFasta(t, recs)
}

func TestZstdFasta(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write([]byte(testFasta))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	// the suffix does not matter, detection uses the magic bytes
	recs, err := ReadAll(writeFile(t, "ref.fa", buf.Bytes()))
	require.NoError(t, err)
	checkFasta(t, recs)
}

func TestFastq(t *testing.T) {
	fq := "@read1 extra\nACGTN\n+\nIIIII\n@read2\nggcc\n+\nIIII\n"
	r, err := NewReader(strings.NewReader(fq), "reads.fq")
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, FormatFastq, r.Format())
	var names []string
	var seqs []string
	for r.Next() {
		names = append(names, r.Record().Name)
		seqs = append(seqs, string(r.Record().Seq))
	}
	require.NoError(t, r.Err())
	assert.Equal(t, []string{"read1", "read2"}, names)
	assert.Equal(t, []string{"ACGTN", "GGCC"}, seqs)
}

func TestMalformedFastq(t *testing.T) {
	fq := "@read1\nACGT\n+\nIIIIIIII\n"
	r, err := NewReader(strings.NewReader(fq), "bad.fq")
	require.NoError(t, err)
	for r.Next() {
	}
	assert.Error(t, r.Err())
}

func TestUnknownFormat(t *testing.T) {
	_, err := NewReader(strings.NewReader("\n\nhello\n"), "x.txt")
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestEmpty(t *testing.T) {
	r, err := NewReader(strings.NewReader("  \n"), "empty.fa")
	require.NoError(t, err)
	assert.False(t, r.Next())
	assert.NoError(t, r.Err())
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.fa"))
	assert.Error(t, err)
}
