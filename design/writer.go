package design

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"
	"github.com/biogo/hts/sam"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/shenwei356/kmers"
	log "github.com/sirupsen/logrus"
)

// ZstdSuffix selects zstd compression for an output path.
const ZstdSuffix = ".zst"

type outFile struct {
	*bufio.Writer
	zw *zstd.Encoder
	fp *os.File
}

func (o *outFile) Close() error {
	if err := o.Flush(); err != nil {
		o.fp.Close()
		return errors.Wrap(err, "flush")
	}
	if o.zw != nil {
		if err := o.zw.Close(); err != nil {
			o.fp.Close()
			return errors.Wrap(err, "close zstd stream")
		}
	}
	return errors.Wrapf(o.fp.Close(), "close %s", o.fp.Name())
}

// Create opens fn for writing, zstd compressed when fn ends in ZstdSuffix.
func Create(fn string) (io.WriteCloser, error) {
	fp, err := os.Create(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", fn)
	}
	o := &outFile{fp: fp}
	if strings.HasSuffix(fn, ZstdSuffix) {
		o.zw, err = zstd.NewWriter(fp, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			fp.Close()
			return nil, errors.Wrap(err, "new zstd writer")
		}
		o.Writer = bufio.NewWriter(o.zw)
	} else {
		o.Writer = bufio.NewWriter(fp)
	}
	return o, nil
}

// writeFile runs fn on a writer for path and closes it.
func writeFile(path string, fn func(w io.Writer) error) error {
	w, err := Create(path)
	if err != nil {
		return err
	}
	if err := fn(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ProbeSeq is the probe sequence: the reverse complement of the first
// ProbeLen bases of s.
func ProbeSeq(s *Segment) string {
	return string(kmers.Decode(kmers.RevComp(s.Code(ProbeLen), ProbeLen), ProbeLen))
}

// KmerSeq is the first ProbeLen bases of s.
func KmerSeq(s *Segment) string {
	return string(kmers.Decode(s.Code(ProbeLen), ProbeLen))
}

// SaveCircles writes count circles: four probe records followed by the
// joined circle record. count is clamped to len(circles).
func SaveCircles(w io.Writer, circles []Circle, count int) error {
	if count > len(circles) {
		log.Infof("[SaveCircles] count %d is larger than max count %d, set count to %d", count, len(circles), len(circles))
		count = len(circles)
	}
	var sb strings.Builder
	for i := 0; i < count; i++ {
		sb.Reset()
		for x, s := range circles[i] {
			p := ProbeSeq(s)
			if _, err := fmt.Fprintf(w, ">probe-%d/%d %s:%d\n%s\n", i+1, x+1, s.Name, s.Start, p); err != nil {
				return errors.Wrap(err, "write probe")
			}
			sb.WriteString(p)
		}
		if _, err := fmt.Fprintf(w, ">circle-%d\n%s\n", i+1, sb.String()); err != nil {
			return errors.Wrap(err, "write circle")
		}
		log.Debugf("[SaveCircles] save circle %d/%d", i+1, count)
	}
	return nil
}

// TableHeader is the first line written by WriteSegments.
const TableHeader = "id\tchr\tstart\tend\tTm\tkmer\treverse_kmer\tcount"

// WriteSegments writes one tab separated line per probe with 1-based
// coordinates.
func WriteSegments(w io.Writer, segs []*Segment) error {
	if _, err := fmt.Fprintln(w, TableHeader); err != nil {
		return errors.Wrap(err, "write table header")
	}
	for _, s := range segs {
		_, err := fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.2f\t%s\t%s\t%d\n",
			s.ID, s.Name, s.Start+1, s.End+1, s.Tm, KmerSeq(s), ProbeSeq(s), s.Validity)
		if err != nil {
			return errors.Wrap(err, "write table")
		}
	}
	return nil
}

// SeqLen is the name and length of a query sequence.
type SeqLen struct {
	Name string
	Len  int
}

// WriteSAM reports the probes of circles as reverse strand alignments
// against the query sequences.
func WriteSAM(w io.Writer, refs []SeqLen, circles []Circle) error {
	refMap := make(map[string]*sam.Reference, len(refs))
	srefs := make([]*sam.Reference, 0, len(refs))
	for _, r := range refs {
		sr, err := sam.NewReference(r.Name, "", "", r.Len, nil, nil)
		if err != nil {
			return errors.Wrapf(err, "sam reference %s", r.Name)
		}
		refMap[r.Name] = sr
		srefs = append(srefs, sr)
	}
	h, err := sam.NewHeader(nil, srefs)
	if err != nil {
		return errors.Wrap(err, "sam header")
	}
	sw, err := sam.NewWriter(w, h, sam.FlagDecimal)
	if err != nil {
		return errors.Wrap(err, "sam writer")
	}
	cigar := []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, ProbeLen)}
	for i, c := range circles {
		for x, s := range c {
			ref, ok := refMap[s.Name]
			if !ok {
				return errors.Errorf("probe on unknown sequence %s", s.Name)
			}
			tm, err := sam.NewAux(sam.NewTag("XT"), float32(s.Tm))
			if err != nil {
				return errors.Wrap(err, "sam aux")
			}
			// SEQ holds the forward strand bases, the probe is their reverse complement.
			rec, err := sam.NewRecord(fmt.Sprintf("probe-%d/%d", i+1, x+1), ref, nil,
				s.Start, -1, 0, 255, cigar, []byte(KmerSeq(s)), nil, []sam.Aux{tm})
			if err != nil {
				return errors.Wrapf(err, "sam record probe-%d/%d", i+1, x+1)
			}
			rec.Flags = sam.Reverse
			if err := sw.Write(rec); err != nil {
				return errors.Wrap(err, "write sam record")
			}
		}
	}
	return nil
}

// WriteGraph writes g in DOT format, one node per probe.
func WriteGraph(w io.Writer, g *Graph) error {
	gv := gographviz.NewGraph()
	gv.SetName("G")
	gv.SetDir(true)
	gv.SetStrict(false)
	for _, s := range g.Segs {
		attr := make(map[string]string)
		attr["color"] = "Green"
		attr["shape"] = "record"
		attr["label"] = "\"" + strconv.Itoa(s.ID) + "|" + s.Name + ":" + strconv.Itoa(s.Start) + "|Tm " + strconv.FormatFloat(s.Tm, 'f', 2, 64) + "\""
		if err := gv.AddNode("G", strconv.Itoa(s.ID), attr); err != nil {
			return errors.Wrapf(err, "add node %d", s.ID)
		}
	}
	for i, nx := range g.Next {
		src := strconv.Itoa(g.Segs[i].ID)
		for _, j := range nx {
			if err := gv.AddEdge(src, strconv.Itoa(g.Segs[j].ID), true, nil); err != nil {
				return errors.Wrapf(err, "add edge %s", src)
			}
		}
	}
	_, err := io.WriteString(w, gv.String())
	return errors.Wrap(err, "write graph")
}
