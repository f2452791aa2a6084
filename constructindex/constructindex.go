// Package constructindex implements the index subcommand: one k-mer index per
// reference file, cached beside the reference, unioned into the output index.
package constructindex

import (
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jwaldrip/odin/cli"
	"github.com/mudesheng/roa/kmerindex"
	"github.com/mudesheng/roa/seqio"
	"github.com/mudesheng/roa/utils"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

const (
	// ChunkSize is the number of bases handed to one worker at a time.
	ChunkSize = 1 << 20
	// CodeBatchSize is the number of k-mer codes per write batch.
	CodeBatchSize = 1 << 16
	InfoSuffix    = ".toml"
)

// SeqChunk is a piece of a reference sequence. Consecutive chunks overlap by
// K-1 bases so that no window is lost at a chunk border.
type SeqChunk struct {
	Name string
	Seq  []byte
}

type optionsCI struct {
	utils.ArgsOpt
	Output string
	Refs   []string
}

func checkArgsCI(c cli.Command) (opt optionsCI, err error) {
	opt.ArgsOpt, err = utils.CheckGlobalArgs(c.Parent())
	if err != nil {
		return opt, err
	}
	opt.Output = c.Param("output").String()
	if opt.Output == "" {
		return opt, errors.New("output index path not set")
	}
	opt.Refs = append(opt.Refs, c.Param("reference").String())
	for _, a := range c.Args() {
		opt.Refs = append(opt.Refs, a.String())
	}
	return opt, nil
}

// SplitSeq cuts seq into chunks of at most size bases overlapping by k-1.
func SplitSeq(name string, seq []byte, k, size int) (chunks []SeqChunk) {
	if len(seq) < k {
		return nil
	}
	for start := 0; start < len(seq); start += size {
		end := start + size + k - 1
		if end > len(seq) {
			end = len(seq)
		}
		chunks = append(chunks, SeqChunk{Name: name, Seq: seq[start:end]})
		if end == len(seq) {
			break
		}
	}
	return chunks
}

// GetSeqChunk streams the records of fn as chunks and closes cs when done.
func GetSeqChunk(fn string, k int, cs chan<- SeqChunk) (seqNum int, err error) {
	defer close(cs)
	rd, err := seqio.Open(fn)
	if err != nil {
		return 0, err
	}
	defer rd.Close()
	for rd.Next() {
		rec := rd.Record()
		for _, ch := range SplitSeq(rec.Name, rec.Seq, k, ChunkSize) {
			cs <- ch
		}
		seqNum++
		log.Debugf("[GetSeqChunk] %s: %s %s bases", fn, rec.Name, humanize.Comma(int64(len(rec.Seq))))
	}
	return seqNum, rd.Err()
}

// paraConstructIndex encodes the k-mers of every chunk on both strands and
// hands the codes to the writer in batches.
func paraConstructIndex(k int, cs <-chan SeqChunk, wc chan<- []uint64, codePool *sync.Pool, kmerNumC chan<- int) {
	var kmerNum int
	codes := codePool.Get().([]uint64)[:0]
	for ch := range cs {
		r := kmerindex.NewRoller(k)
		for _, b := range ch.Seq {
			if !r.Push(b) {
				continue
			}
			if len(codes)+2 > cap(codes) {
				wc <- codes
				codes = codePool.Get().([]uint64)[:0]
			}
			codes = append(codes, r.Fwd, r.Rev)
			kmerNum++
		}
	}
	if len(codes) > 0 {
		wc <- codes
	} else {
		codePool.Put(codes)
	}
	kmerNumC <- kmerNum
}

// writeIndex is the only goroutine touching the bit array during a build.
func writeIndex(idx *kmerindex.Index, wc <-chan []uint64, codePool *sync.Pool, done chan<- struct{}) {
	for codes := range wc {
		for _, c := range codes {
			idx.Add(c)
		}
		codePool.Put(codes[:0])
	}
	close(done)
}

// ConcurrentConstructIndex builds the index of one reference file with
// numCPU encoding goroutines.
func ConcurrentConstructIndex(fn string, k, numCPU int) (idx *kmerindex.Index, kmerNum int, err error) {
	idx, err = kmerindex.New(k)
	if err != nil {
		return nil, 0, err
	}
	codePool := sync.Pool{New: func() interface{} {
		return make([]uint64, 0, CodeBatchSize)
	}}
	cs := make(chan SeqChunk, numCPU)
	wc := make(chan []uint64, numCPU)
	kmerNumC := make(chan int, numCPU)
	done := make(chan struct{})
	go writeIndex(idx, wc, &codePool, done)
	for i := 0; i < numCPU; i++ {
		go paraConstructIndex(k, cs, wc, &codePool, kmerNumC)
	}
	seqNum, err := GetSeqChunk(fn, k, cs)
	for i := 0; i < numCPU; i++ {
		kmerNum += <-kmerNumC
	}
	close(wc)
	<-done
	if err != nil {
		return nil, kmerNum, err
	}
	log.Infof("[ConcurrentConstructIndex] %s: %d sequences, %s kmers", fn, seqNum, humanize.Comma(int64(kmerNum)))
	return idx, kmerNum, nil
}

func fileExist(fn string) bool {
	st, err := os.Stat(fn)
	return err == nil && !st.IsDir()
}

// LoadOrBuild returns the index of ref, reading <ref>.index when it exists and
// writing it otherwise.
func LoadOrBuild(ref string, k, numCPU int) (idx *kmerindex.Index, cached bool, err error) {
	cacheFn := ref + kmerindex.CacheSuffix
	if fileExist(cacheFn) {
		idx, err = kmerindex.Load(cacheFn)
		return idx, true, err
	}
	idx, _, err = ConcurrentConstructIndex(ref, k, numCPU)
	if err != nil {
		return nil, false, err
	}
	if err = idx.Dump(cacheFn); err != nil {
		return nil, false, err
	}
	return idx, false, nil
}

// IndexInfo is written as TOML beside the output index.
type IndexInfo struct {
	K          int       `toml:"k"`
	Slots      uint64    `toml:"slots"`
	Set        uint64    `toml:"set"`
	Fill       float64   `toml:"fill"`
	References []string  `toml:"references"`
	Created    time.Time `toml:"created"`
}

func WriteIndexInfo(fn string, idx *kmerindex.Index, refs []string) error {
	st := idx.Stat()
	info := IndexInfo{K: idx.K, Slots: st.Slots, Set: st.Set, Fill: st.Fill(), References: refs, Created: time.Now()}
	data, err := toml.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "marshal index info")
	}
	return errors.Wrapf(os.WriteFile(fn, data, 0644), "write %s", fn)
}

func ReadIndexInfo(fn string) (info IndexInfo, err error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		return info, errors.Wrapf(err, "read %s", fn)
	}
	err = toml.Unmarshal(data, &info)
	return info, errors.Wrapf(err, "parse %s", fn)
}

// BuildAll unions the per reference indices. Missing references and
// references whose index does not match the others are skipped.
func BuildAll(refs []string, k, numCPU int, verbose bool) (idx *kmerindex.Index, used []string, err error) {
	var pbs *mpb.Progress
	var bar *mpb.Bar
	if verbose {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(len(refs)),
			mpb.PrependDecorators(
				decor.Name("indexed files: ", decor.WC{W: len("indexed files: "), C: decor.DindentRight}),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 10),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
	}
	for _, ref := range refs {
		t0 := time.Now()
		if !fileExist(ref) {
			log.Errorf("[BuildAll] file %s not exist", ref)
			if bar != nil {
				bar.EwmaIncrBy(1, time.Since(t0))
			}
			continue
		}
		log.Infof("[BuildAll] indexing %s", ref)
		one, cached, err := LoadOrBuild(ref, k, numCPU)
		if bar != nil {
			bar.EwmaIncrBy(1, time.Since(t0))
		}
		if err != nil {
			if pbs != nil {
				bar.Abort(false)
				pbs.Wait()
			}
			return nil, used, errors.Wrapf(err, "index %s", ref)
		}
		if cached {
			log.Infof("[BuildAll] loaded cached index %s%s", ref, kmerindex.CacheSuffix)
		}
		if one.K != k {
			log.Errorf("[BuildAll] skip %s: index K=%d, want %d", ref, one.K, k)
			continue
		}
		if idx == nil {
			idx = one
		} else if err := idx.Union(one); err != nil {
			log.Errorf("[BuildAll] skip %s: %v", ref, err)
			continue
		}
		used = append(used, ref)
	}
	if pbs != nil {
		pbs.Wait()
	}
	if idx == nil {
		return nil, nil, errors.New("no reference could be indexed")
	}
	return idx, used, nil
}

// CI is the entry of the index subcommand.
func CI(c cli.Command) {
	opt, err := checkArgsCI(c)
	if err != nil {
		c.Usage()
		log.Fatalf("[CI] check arguments error: %v", err)
	}
	utils.SetupLog(opt.Verbose)
	log.Infof("[CI] opt: %+v", opt)
	t0 := time.Now()
	idx, used, err := BuildAll(opt.Refs, opt.Kmer, opt.NumCPU, opt.Verbose)
	if err != nil {
		log.Fatalf("[CI] %v", err)
	}
	log.Infof("[CI] saving to %s", opt.Output)
	if err = idx.Dump(opt.Output); err != nil {
		log.Fatalf("[CI] %v", err)
	}
	if err = WriteIndexInfo(opt.Output+InfoSuffix, idx, used); err != nil {
		log.Fatalf("[CI] %v", err)
	}
	idx.LogStat(opt.Output)
	log.Infof("[CI] construct index took %v", time.Since(t0))
	utils.LogMemUsage("CI")
}
