package utils

import (
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jwaldrip/odin/cli"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// MaxKmer is the largest K whose 4^K slot index fits in memory.
const MaxKmer = 16

type ArgsOpt struct {
	NumCPU  int
	Kmer    int
	Verbose bool
}

// CheckGlobalArgs returns the arguments defined on the root command.
func CheckGlobalArgs(c cli.Command) (opt ArgsOpt, err error) {
	var ok bool
	opt.NumCPU, ok = c.Flag("t").Get().(int)
	if !ok {
		return opt, errors.Errorf("args 't': %v set error", c.Flag("t").String())
	}
	if opt.NumCPU < 1 {
		return opt, errors.Errorf("args 't': %d must be >= 1", opt.NumCPU)
	}
	opt.Kmer, ok = c.Flag("K").Get().(int)
	if !ok {
		return opt, errors.Errorf("args 'K': %v set error", c.Flag("K").String())
	}
	if opt.Kmer < 1 || opt.Kmer > MaxKmer {
		return opt, errors.Errorf("args 'K': %d must be in [1, %d]", opt.Kmer, MaxKmer)
	}
	opt.Verbose, ok = c.Flag("verbose").Get().(bool)
	if !ok {
		return opt, errors.Errorf("args 'verbose': %v set error", c.Flag("verbose").String())
	}
	return opt, nil
}

// SetupLog configures the level and format of the global logger.
func SetupLog(verbose bool) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: time.DateTime})
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// LogMemUsage reports the memory obtained from the OS so far.
func LogMemUsage(tag string) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	log.Infof("[%s] memory used: %s, heap in use: %s", tag, humanize.IBytes(ms.Sys), humanize.IBytes(ms.HeapInuse))
}

func AbsInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
