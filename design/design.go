// Package design turns query sequences into probes absent from a background
// k-mer index and groups them into circles.
package design

import (
	"context"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jwaldrip/odin/cli"
	"github.com/mudesheng/roa/constructindex"
	"github.com/mudesheng/roa/kmerindex"
	"github.com/mudesheng/roa/seqio"
	"github.com/mudesheng/roa/utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Result holds the output of every phase of Run.
type Result struct {
	Queries  []*QuerySeq
	Segments []*Segment
	Probes   []*Segment // sorted by decreasing validity when Matrix is set
	Matrix   *JoinMatrix
	Circles  []Circle
}

// Run executes the design phases in order. ctx is checked between phases
// only, a phase always runs to completion.
func Run(ctx context.Context, idx *kmerindex.Index, recs []seqio.Record, cfg Config, numCPU int) (*Result, error) {
	res := &Result{}
	t0 := time.Now()
	res.Queries = NewQuery(recs, idx.K)
	ValidKmers(res.Queries, idx, numCPU)
	if err := ctx.Err(); err != nil {
		return res, errors.Wrap(err, "after marking kmers")
	}
	var err error
	res.Segments, err = CollectSegments(res.Queries, idx.K)
	if err != nil {
		return res, err
	}
	log.Infof("[Run] collected %s segments in %v", humanize.Comma(int64(len(res.Segments))), time.Since(t0))
	if err := ctx.Err(); err != nil {
		return res, errors.Wrap(err, "after collecting segments")
	}
	res.Probes, err = FilterSegments(res.Segments, cfg.Filter, numCPU)
	if err != nil {
		return res, err
	}
	log.Debugf("[Run] filter %d segments", len(res.Probes))
	if len(res.Probes) == 0 {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return res, errors.Wrap(err, "after filtering")
	}
	if cfg.PairCheck {
		t1 := time.Now()
		res.Matrix, err = PairJoinCheck(res.Probes, idx, numCPU)
		if err != nil {
			return res, err
		}
		log.Infof("[Run] pair join check of %d probes took %v", len(res.Probes), time.Since(t1))
		if err := ctx.Err(); err != nil {
			return res, errors.Wrap(err, "after pair join check")
		}
	}
	res.Circles = CreateCircles(res.Probes, res.Matrix, cfg.NCircle)
	log.Infof("[Run] created %d circles", len(res.Circles))
	return res, nil
}

func seqLens(recs []seqio.Record) []SeqLen {
	sl := make([]SeqLen, len(recs))
	for i, r := range recs {
		sl[i] = SeqLen{Name: r.Name, Len: len(r.Seq)}
	}
	return sl
}

// WriteOutputs writes the report and every optional output set in opt.
func WriteOutputs(opt Options, recs []seqio.Record, res *Result) error {
	if err := writeFile(opt.Output, func(w io.Writer) error {
		return SaveCircles(w, res.Circles, opt.NCircle)
	}); err != nil {
		return err
	}
	if opt.Table != "" {
		if err := writeFile(opt.Table, func(w io.Writer) error {
			return WriteSegments(w, res.Probes)
		}); err != nil {
			return err
		}
	}
	if opt.SAM != "" {
		if err := writeFile(opt.SAM, func(w io.Writer) error {
			return WriteSAM(w, seqLens(recs), res.Circles)
		}); err != nil {
			return err
		}
	}
	if opt.PairOut != "" {
		if res.Matrix == nil {
			log.Warnf("[WriteOutputs] no join matrix to write to %s, set --pairCheck=1", opt.PairOut)
		} else if err := writeFile(opt.PairOut, func(w io.Writer) error {
			_, err := res.Matrix.WriteTo(w)
			return err
		}); err != nil {
			return err
		}
	}
	if opt.Graph != "" {
		if res.Matrix == nil {
			log.Warnf("[WriteOutputs] no join matrix to draw to %s, set --pairCheck=1", opt.Graph)
		} else if err := writeFile(opt.Graph, func(w io.Writer) error {
			return WriteGraph(w, BuildGraph(res.Probes, res.Matrix, CircleSpan))
		}); err != nil {
			return err
		}
	}
	return nil
}

// Design is the entry of the design subcommand.
func Design(c cli.Command) {
	opt, err := checkArgs(c)
	if err != nil {
		c.Usage()
		log.Fatalf("[Design] check arguments error: %v", err)
	}
	utils.SetupLog(opt.Verbose)
	log.Infof("[Design] index: %s, query: %s, output: %s", opt.Index, opt.Query, opt.Output)
	log.Infof("[Design] filter: %+v", opt.Filter)
	log.Infof("[Design] ncircle: %d, pairCheck: %v", opt.NCircle, opt.PairCheck)

	ctx := context.Background()
	if opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opt.Timeout)
		defer cancel()
	}
	t0 := time.Now()
	idx, err := kmerindex.Load(opt.Index)
	if err != nil {
		log.Fatalf("[Design] load index error: %v", err)
	}
	idx.LogStat(opt.Index)
	if info, err := constructindex.ReadIndexInfo(opt.Index + constructindex.InfoSuffix); err == nil {
		log.Infof("[Design] index built %s from %v", info.Created.Format(time.DateTime), info.References)
		if info.K != idx.K {
			log.Warnf("[Design] index info K %d differs from the index K %d", info.K, idx.K)
		}
	} else {
		log.Debugf("[Design] no index info: %v", err)
	}
	recs, err := seqio.ReadAll(opt.Query)
	if err != nil {
		log.Fatalf("[Design] read query error: %v", err)
	}
	log.Infof("[Design] read %d query sequences", len(recs))
	res, err := Run(ctx, idx, recs, opt.Config, opt.NumCPU)
	if err != nil {
		log.Fatalf("[Design] %v", err)
	}
	if len(res.Probes) == 0 {
		log.Infof("[Design] no specific kmer found.")
	}
	if err := WriteOutputs(opt, recs, res); err != nil {
		log.Fatalf("[Design] write outputs error: %v", err)
	}
	log.Infof("[Design] design took %v", time.Since(t0))
	utils.LogMemUsage("Design")
}
