package design

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWallaceTm(t *testing.T) {
	assert.InDelta(t, 53.83, WallaceTm(11), 1e-9)
	assert.InDelta(t, 51.78, WallaceTm(10), 1e-9)
	assert.InDelta(t, 55.88, WallaceTm(12), 1e-9)
	assert.Equal(t, 0.55, GCRate[11])
}

func TestCheckProbe(t *testing.T) {
	def := DefaultConfig().Filter
	for _, tc := range []struct {
		name  string
		probe string
		opts  func(o *FilterOpts)
		ok    bool
	}{
		{name: "accepted", probe: "GACTGACTGCATGCAGTCAC", ok: true},
		{name: "GC too low", probe: "GACTGATTGAATGAAGTCAC"},
		{name: "GC too high", probe: "GACTGCCTGCATGCAGTCAC"},
		{name: "Tm below range", probe: "GACTGACTGAATGCAGTCAC",
			opts: func(o *FilterOpts) { o.MinGC = 0.4 }},
		{name: "first three GC", probe: "GCCTGACTGAATGCAGTCAC"},
		{name: "first three GC allowed", probe: "GCCTGACTGAATGCAGTCAC", ok: true,
			opts: func(o *FilterOpts) { o.AvoidCGIn3 = false }},
		{name: "starts with A", probe: "ACGTGACTGCATGCAGTCAC"},
		{name: "ends with T", probe: "GACTGACTGCATGCAGTCCT"},
		{name: "terminal AT allowed", probe: "ACGTGACTGCATGCAGTCAC", ok: true,
			opts: func(o *FilterOpts) { o.AvoidTIn3 = false }},
		{name: "homopolymer reaches threshold", probe: "GACTGAAAGCTCGCAGTCAC"},
		{name: "homopolymer under threshold", probe: "GACTGAAAGCTCGCAGTCAC", ok: true,
			opts: func(o *FilterOpts) { o.Homopolymer = 4 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			o := def
			if tc.opts != nil {
				tc.opts(&o)
			}
			_, ok := o.CheckProbe(bntsOf(tc.probe))
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestCheckWindowBounds(t *testing.T) {
	// only the GC and Tm thresholds apply
	loose := FilterOpts{MinGC: 0.45, MaxGC: 0.55, MinTm: 0, MaxTm: 100, Homopolymer: ProbeLen + 1}
	window := func(gc int) []uint8 {
		return bntsOf(strings.Repeat("G", gc) + strings.Repeat("A", ProbeLen-gc))
	}
	for gc, want := range map[int]bool{8: false, 9: true, 10: true, 11: true, 12: false} {
		tm, ok := loose.CheckProbe(window(gc))
		assert.Equal(t, want, ok, "gc %d", gc)
		if ok {
			assert.Equal(t, WallaceTm(gc), tm)
		}
	}

	o := loose
	o.MinGC += 1e-9
	_, ok := o.CheckProbe(window(9))
	assert.False(t, ok)
	o = loose
	o.MaxGC -= 1e-9
	_, ok = o.CheckProbe(window(11))
	assert.False(t, ok)

	for _, tc := range []struct {
		minTm, maxTm float64
		ok           bool
	}{
		{0, 53.84, true},
		{0, 53.82, false},
		{53.82, 100, true},
		{53.84, 100, false},
	} {
		o = loose
		o.MinTm, o.MaxTm = tc.minTm, tc.maxTm
		_, ok = o.CheckProbe(window(11))
		assert.Equal(t, tc.ok, ok, "Tm range [%v, %v]", tc.minTm, tc.maxTm)
	}
}

func TestFilterSegments(t *testing.T) {
	query := "CAACACGAACTTCTACACCGGAGAGTACTGATCCGGTTGGTCGT"
	segs := []*Segment{
		newSeg(t, "short", 0, query[:2*ProbeLen-1]),
		newSeg(t, "q1", 100, query),
		newSeg(t, "q2", 0, query),
	}
	probes, err := FilterSegments(segs, DefaultConfig().Filter, 3)
	require.NoError(t, err)
	require.Len(t, probes, 10)
	starts := []int{3, 5, 19, 20, 22}
	for i, p := range probes {
		assert.Equal(t, i, p.ID)
		assert.Equal(t, ProbeLen, p.Len())
		assert.Equal(t, p.Start+ProbeLen-1, p.End)
		assert.InDelta(t, 53.83, p.Tm, 1e-9)
		if i < 5 {
			assert.Equal(t, "q1", p.Name)
			assert.Equal(t, 100+starts[i], p.Start)
		} else {
			assert.Equal(t, "q2", p.Name)
			assert.Equal(t, starts[i-5], p.Start)
		}
	}
}
