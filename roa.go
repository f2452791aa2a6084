package main

import (
	"os"

	"github.com/jwaldrip/odin/cli"
	"github.com/mudesheng/roa/constructindex"
	"github.com/mudesheng/roa/design"
	"github.com/mudesheng/roa/kmerindex"
)

func newApp() *cli.CLI {
	app := cli.New("1.0.0", "design probes absent from a background genome and join them into circles", func(c cli.Command) {})
	app.DefineIntFlag("t", 1, "number of CPU used")
	app.DefineIntFlag("K", kmerindex.DefaultK, "kmer length of a new index (<=16)")
	app.DefineBoolFlag("verbose", false, "verbose log")
	app.AliasFlag('t', "t")
	app.AliasFlag('K', "K")

	app.DefineSubCommand("index", "build the kmer index of reference files: index <output.index> <ref1.fa> [ref2.fa ...]", constructindex.CI, "output", "reference")

	dsg := app.DefineSubCommand("design", "design probes of query sequences and save circles", design.Design)
	{
		def := design.DefaultConfig()
		dsg.DefineStringFlag("i", "", "kmer index file built by the index command")
		dsg.DefineStringFlag("q", "", "query FASTA/FASTQ file, gzip or zstd compressed allowed")
		dsg.DefineStringFlag("o", "template.fa", "output circle file, zstd compressed if ends with .zst")
		dsg.DefineStringFlag("C", "", "TOML config file, explicit flags override it")
		dsg.AliasFlag('i', "i")
		dsg.AliasFlag('q', "q")
		dsg.AliasFlag('o', "o")
		dsg.AliasFlag('C', "C")
		dsg.DefineIntFlag("homopolymer", def.Filter.Homopolymer, "reject probes with a base run of this length")
		dsg.DefineFloat64Flag("minGC", def.Filter.MinGC, "min GC rate")
		dsg.DefineFloat64Flag("maxGC", def.Filter.MaxGC, "max GC rate")
		dsg.DefineFloat64Flag("minTm", def.Filter.MinTm, "min melting temperature")
		dsg.DefineFloat64Flag("maxTm", def.Filter.MaxTm, "max melting temperature")
		dsg.DefineIntFlag("avoidCGIn3", 1, "reject probes whose first 3 bases are all C/G [0|1]")
		dsg.DefineIntFlag("avoidTIn3", 1, "reject probes starting or ending with A/T [0|1]")
		dsg.DefineIntFlag("pairCheck", 0, "check every probe pair join against the index [0|1]")
		dsg.DefineIntFlag("ncircle", def.NCircle, "number of circles")
		dsg.DefineStringFlag("table", "", "write the probe table (TSV)")
		dsg.DefineStringFlag("sam", "", "write the circle probes as SAM")
		dsg.DefineStringFlag("graph", "", "write the join graph as Graphviz DOT, needs --pairCheck=1")
		dsg.DefineStringFlag("pairOut", "", "write the join matrix, needs --pairCheck=1")
		dsg.DefineStringFlag("timeout", "0", "abort between phases after this duration, e.g. 10m")
	}
	return app
}

// helpRequested reports whether args ask for usage. odin prints it and
// returns normally, the command line still exits 1.
func helpRequested(args []string) bool {
	for _, a := range args {
		switch a {
		case "--":
			return false
		case "-h", "--help", "--help=true":
			return true
		}
	}
	return false
}

func main() {
	newApp().Start(os.Args...)
	if helpRequested(os.Args[1:]) {
		os.Exit(1)
	}
}
