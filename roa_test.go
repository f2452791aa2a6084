package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testQuery = "CAACACGAACTTCTACACCGGAGAGTACTGATCCGGTTGGTCGT"

func TestIndexAndDesignCommands(t *testing.T) {
	dir := t.TempDir()
	refFn := filepath.Join(dir, "ref.fa")
	qFn := filepath.Join(dir, "query.fa")
	idxFn := filepath.Join(dir, "all.index")
	outFn := filepath.Join(dir, "template.fa")
	tblFn := filepath.Join(dir, "kmers.tsv")
	require.NoError(t, os.WriteFile(refFn, []byte(">chr1\n"+strings.Repeat("ACGT", 10)+"\n"), 0644))
	require.NoError(t, os.WriteFile(qFn, []byte(">q1 query\n"+testQuery+"\n"), 0644))

	newApp().Start("roa", "-K", "8", "-t", "2", "index", idxFn, refFn)
	for _, fn := range []string{idxFn, idxFn + ".toml"} {
		_, err := os.Stat(fn)
		require.NoError(t, err, fn)
	}

	newApp().Start("roa", "design", "-i", idxFn, "-q", qFn, "-o", outFn, "--ncircle=1", "--table", tblFn)
	data, err := os.ReadFile(outFn)
	require.NoError(t, err)
	var heads []string
	for _, l := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(l, ">") {
			heads = append(heads, l)
		}
	}
	require.Len(t, heads, 5, string(data))
	assert.True(t, strings.HasSuffix(heads[0], "-1/1 q1:3"), heads[0])
	assert.Equal(t, ">circle-1", heads[4])

	table, err := os.ReadFile(tblFn)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(table)), "\n"), 1+5)
}

func TestHelpRequested(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want bool
	}{
		{[]string{"design", "-h"}, true},
		{[]string{"--help"}, true},
		{[]string{"-h", "index"}, true},
		{[]string{"design", "-i", "x.index", "-q", "q.fa"}, false},
		{[]string{"design", "--", "-h"}, false},
		{nil, false},
	} {
		assert.Equal(t, tc.want, helpRequested(tc.args), "%v", tc.args)
	}
}
