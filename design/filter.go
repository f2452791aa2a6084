package design

import "github.com/mudesheng/roa/kmerindex"

// ProbeLen is the length of a designed probe.
const ProbeLen = 20

// GCRate[n] is the GC fraction of a probe holding n G or C bases.
var GCRate [ProbeLen + 1]float64

func init() {
	for i := range GCRate {
		GCRate[i] = float64(i) / ProbeLen
	}
}

// FilterOpts are the probe acceptance thresholds.
type FilterOpts struct {
	MinGC       float64 `toml:"minGC"`
	MaxGC       float64 `toml:"maxGC"`
	MinTm       float64 `toml:"minTm"`
	MaxTm       float64 `toml:"maxTm"`
	Homopolymer int     `toml:"homopolymer"`
	AvoidCGIn3  bool    `toml:"avoidCGIn3"`
	AvoidTIn3   bool    `toml:"avoidTIn3"`
}

// WallaceTm is the Wallace melting temperature of a probe with gc G/C bases:
// Tm = 64.9 + 41*(gc-16.4)/L (Wallace et al. 1979, NAR 6:3543).
func WallaceTm(gc int) float64 {
	return 64.9 + 41*(float64(gc)-16.4)/ProbeLen
}

func isGC(b uint8) bool {
	return b == kmerindex.Base2Bnt['C'] || b == kmerindex.Base2Bnt['G']
}

func isAT(b uint8) bool {
	return b == kmerindex.Base2Bnt['A'] || b == kmerindex.Base2Bnt['T']
}

// maxRun returns the longest run of identical bases.
func maxRun(bnts []uint8) int {
	if len(bnts) == 0 {
		return 0
	}
	best, cur := 1, 1
	for i := 1; i < len(bnts); i++ {
		if bnts[i] == bnts[i-1] {
			cur++
		} else {
			cur = 1
		}
		if cur > best {
			best = cur
		}
	}
	return best
}

// CheckProbe applies the thresholds to one window of ProbeLen bases. It
// returns the melting temperature and whether the window is accepted.
func (o FilterOpts) CheckProbe(bnts []uint8) (float64, bool) {
	gc := 0
	for _, b := range bnts {
		if isGC(b) {
			gc++
		}
	}
	if GCRate[gc] < o.MinGC || GCRate[gc] > o.MaxGC {
		return 0, false
	}
	tm := WallaceTm(gc)
	if tm < o.MinTm || tm > o.MaxTm {
		return tm, false
	}
	if o.AvoidCGIn3 && isGC(bnts[0]) && isGC(bnts[1]) && isGC(bnts[2]) {
		return tm, false
	}
	if o.AvoidTIn3 && (isAT(bnts[0]) || isAT(bnts[ProbeLen-1])) {
		return tm, false
	}
	if maxRun(bnts) >= o.Homopolymer {
		return tm, false
	}
	return tm, true
}

// filterOne returns the accepted probes of one segment.
func (o FilterOpts) filterOne(s *Segment) (probes []*Segment, err error) {
	if s.Len() < 2*ProbeLen {
		return nil, nil
	}
	bnts := s.Bnts(0, s.Len())
	for j := 0; j+ProbeLen <= len(bnts); j++ {
		w := bnts[j : j+ProbeLen]
		tm, ok := o.CheckProbe(w)
		if !ok {
			continue
		}
		p, err := NewSegment(s.Name, s.Start+j, w)
		if err != nil {
			return nil, err
		}
		p.Tm = tm
		probes = append(probes, p)
	}
	return probes, nil
}

// FilterSegments slides a ProbeLen window over every segment of at least
// 2*ProbeLen bases and keeps the windows passing o. IDs are assigned in
// segment then window order once all segments are done.
func FilterSegments(segs []*Segment, o FilterOpts, numCPU int) ([]*Segment, error) {
	perSeg := make([][]*Segment, len(segs))
	errs := make([]error, len(segs))
	parallelFor(len(segs), numCPU, func(i int) {
		perSeg[i], errs[i] = o.filterOne(segs[i])
	})
	var probes []*Segment
	for i := range perSeg {
		if errs[i] != nil {
			return nil, errs[i]
		}
		probes = append(probes, perSeg[i]...)
	}
	for i, p := range probes {
		p.ID = i
	}
	return probes, nil
}
