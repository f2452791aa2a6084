package design

import (
	"bytes"
	"os"
	"strings"
	"time"

	"github.com/jwaldrip/odin/cli"
	"github.com/mudesheng/roa/utils"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Config holds the tunables that may also come from a TOML file:
//
//	pairCheck = false
//	ncircle = 5
//	[filter]
//	homopolymer = 3
//	minGC = 0.45
type Config struct {
	Filter    FilterOpts `toml:"filter"`
	PairCheck bool       `toml:"pairCheck"`
	NCircle   int        `toml:"ncircle"`
}

func DefaultConfig() Config {
	return Config{
		Filter: FilterOpts{
			MinGC:       0.45,
			MaxGC:       0.55,
			MinTm:       52.4,
			MaxTm:       55.4,
			Homopolymer: 3,
			AvoidCGIn3:  true,
			AvoidTIn3:   true,
		},
		NCircle: 5,
	}
}

// LoadConfig reads fn over the defaults. Unknown keys are an error.
func LoadConfig(fn string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(fn)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", fn)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", fn)
	}
	return cfg, nil
}

func (cfg Config) Validate() error {
	f := cfg.Filter
	if f.MinGC < 0 || f.MaxGC > 1 || f.MinGC > f.MaxGC {
		return errors.Errorf("GC range [%v, %v] must be ordered within [0, 1]", f.MinGC, f.MaxGC)
	}
	if f.MinTm > f.MaxTm {
		return errors.Errorf("Tm range [%v, %v] is empty", f.MinTm, f.MaxTm)
	}
	if f.Homopolymer < 2 {
		return errors.Errorf("homopolymer %d must be >= 2", f.Homopolymer)
	}
	if cfg.NCircle < 1 {
		return errors.Errorf("ncircle %d must be >= 1", cfg.NCircle)
	}
	return nil
}

// Options are the arguments of the design subcommand.
type Options struct {
	utils.ArgsOpt
	Config
	Index   string
	Query   string
	Output  string
	Table   string
	SAM     string
	Graph   string
	PairOut string
	Timeout time.Duration
}

type flagGetter func(name string) interface{}

func intFlag(get flagGetter, name string) (int, error) {
	v, ok := get(name).(int)
	if !ok {
		return 0, errors.Errorf("args '%s': %v set error", name, get(name))
	}
	return v, nil
}

func floatFlag(get flagGetter, name string) (float64, error) {
	v, ok := get(name).(float64)
	if !ok {
		return 0, errors.Errorf("args '%s': %v set error", name, get(name))
	}
	return v, nil
}

// switchFlag reads a 0|1 flag.
func switchFlag(get flagGetter, name string) (bool, error) {
	v, err := intFlag(get, name)
	if err != nil {
		return false, err
	}
	if v != 0 && v != 1 {
		return false, errors.Errorf("args '%s': %d must be 0 or 1", name, v)
	}
	return v == 1, nil
}

// explicitFlags returns the long flag names written on the command line,
// as --name, --name=value or --name value.
func explicitFlags(args []string) map[string]bool {
	set := make(map[string]bool)
	for _, a := range args {
		if a == "--" {
			break
		}
		if !strings.HasPrefix(a, "--") {
			continue
		}
		name, _, _ := strings.Cut(a[2:], "=")
		if name != "" {
			set[name] = true
		}
	}
	return set
}

// applyFlags copies onto cfg every flag that was set on the command line
// or differs from the default, so that a config file is only overridden
// by explicit flags.
func applyFlags(get flagGetter, set map[string]bool, cfg *Config) error {
	def := DefaultConfig()
	for _, f := range []struct {
		name string
		dst  *float64
		def  float64
	}{
		{"minGC", &cfg.Filter.MinGC, def.Filter.MinGC},
		{"maxGC", &cfg.Filter.MaxGC, def.Filter.MaxGC},
		{"minTm", &cfg.Filter.MinTm, def.Filter.MinTm},
		{"maxTm", &cfg.Filter.MaxTm, def.Filter.MaxTm},
	} {
		v, err := floatFlag(get, f.name)
		if err != nil {
			return err
		}
		if set[f.name] || v != f.def {
			*f.dst = v
		}
	}
	for _, f := range []struct {
		name string
		dst  *int
		def  int
	}{
		{"homopolymer", &cfg.Filter.Homopolymer, def.Filter.Homopolymer},
		{"ncircle", &cfg.NCircle, def.NCircle},
	} {
		v, err := intFlag(get, f.name)
		if err != nil {
			return err
		}
		if set[f.name] || v != f.def {
			*f.dst = v
		}
	}
	for _, f := range []struct {
		name string
		dst  *bool
		def  bool
	}{
		{"avoidCGIn3", &cfg.Filter.AvoidCGIn3, def.Filter.AvoidCGIn3},
		{"avoidTIn3", &cfg.Filter.AvoidTIn3, def.Filter.AvoidTIn3},
		{"pairCheck", &cfg.PairCheck, def.PairCheck},
	} {
		v, err := switchFlag(get, f.name)
		if err != nil {
			return err
		}
		if set[f.name] || v != f.def {
			*f.dst = v
		}
	}
	return nil
}

func checkArgs(c cli.Command) (opt Options, err error) {
	opt.ArgsOpt, err = utils.CheckGlobalArgs(c.Parent())
	if err != nil {
		return opt, err
	}
	opt.Index = c.Flag("i").String()
	opt.Query = c.Flag("q").String()
	opt.Output = c.Flag("o").String()
	if opt.Index == "" || opt.Query == "" {
		return opt, errors.New("-i and -q must be set")
	}
	if opt.Output == "" {
		return opt, errors.New("-o must not be empty")
	}
	opt.Table = c.Flag("table").String()
	opt.SAM = c.Flag("sam").String()
	opt.Graph = c.Flag("graph").String()
	opt.PairOut = c.Flag("pairOut").String()
	if ts := c.Flag("timeout").String(); ts != "" && ts != "0" {
		opt.Timeout, err = time.ParseDuration(ts)
		if err != nil {
			return opt, errors.Wrap(err, "args 'timeout'")
		}
	}

	opt.Config = DefaultConfig()
	if cfn := c.Flag("C").String(); cfn != "" {
		opt.Config, err = LoadConfig(cfn)
		if err != nil {
			return opt, err
		}
	}
	get := func(name string) interface{} { return c.Flag(name).Get() }
	if err = applyFlags(get, explicitFlags(os.Args[1:]), &opt.Config); err != nil {
		return opt, err
	}
	return opt, opt.Config.Validate()
}
