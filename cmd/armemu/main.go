// Package main provides the entry point for armemu.
// armemu runs ARM routines on a functional emulator with a direct-mapped
// instruction cache model and reports what they executed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/sarchlab/armemu/benchmarks"
	"github.com/sarchlab/armemu/cache"
	"github.com/sarchlab/armemu/emu"
	"github.com/sarchlab/armemu/loader"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type options struct {
	cacheSize  int
	configPath string
	savePath   string
	workers    int
	verbosity  int
	maxInsts   uint64
	cacheKey   string
	routines   string
	format     string
	perCase    bool
	slots      bool
	list       bool

	elfPath string
	symbol  string
	args    string
	regs    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	var opts options

	fs := flag.NewFlagSet("armemu", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&opts.cacheSize, "c", cache.DefaultSize, "Instruction cache size in slots (power of 2, 8-1024)")
	fs.StringVar(&opts.configPath, "config", "", "Path to run configuration JSON file")
	fs.StringVar(&opts.savePath, "save-config", "", "Write the effective configuration to this JSON file")
	fs.IntVar(&opts.workers, "j", 1, "Number of workers running suite cases")
	fs.IntVar(&opts.verbosity, "v", 0, "Log verbosity: 1 logs calls, 2 traces every instruction")
	fs.Uint64Var(&opts.maxInsts, "max", emu.DefaultMaxInstructions, "Per-call instruction budget (0 for no limit)")
	fs.StringVar(&opts.cacheKey, "key", "word", "Cache key: word or address")
	fs.StringVar(&opts.routines, "routines", "", "Comma-separated routines to run (default: all)")
	fs.StringVar(&opts.format, "format", "text", "Report format: text, csv or json")
	fs.BoolVar(&opts.perCase, "stats", false, "Print statistics after every case")
	fs.BoolVar(&opts.slots, "slots", false, "Print the final cache slots")
	fs.BoolVar(&opts.list, "list", false, "Print the reference routines listing and exit")
	fs.StringVar(&opts.elfPath, "elf", "", "Run one routine from a 32-bit ARM ELF file instead of the suite")
	fs.StringVar(&opts.symbol, "sym", "", "Routine symbol to call in the ELF file")
	fs.StringVar(&opts.args, "args", "", "Comma-separated integer arguments for -sym (at most 4)")
	fs.BoolVar(&opts.regs, "regs", false, "Print the register file after an ELF call")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: armemu [options]\n")
		_, _ = fmt.Fprintf(stderr, "       armemu [options] -elf file.elf -sym name [-args a,b,c,d]\n")
		_, _ = fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return exitUsage
	}

	if opts.list {
		_, _ = fmt.Fprint(stdout, benchmarks.Program().Listing())
		return exitOK
	}

	config, err := buildConfig(fs, &opts)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	if opts.savePath != "" {
		if err := config.SaveConfig(opts.savePath); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
	}

	logger := newLogger(stderr, opts.verbosity)

	if opts.elfPath != "" {
		return runELF(ctx, config, &opts, logger, stdout, stderr)
	}
	return runSuite(ctx, config, &opts, logger, stdout, stderr)
}

// buildConfig starts from the config file, if any, and applies every flag
// that was set explicitly.
func buildConfig(fs *flag.FlagSet, opts *options) (*benchmarks.Config, error) {
	config := benchmarks.DefaultConfig()
	if opts.configPath != "" {
		var err error
		config, err = benchmarks.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "c":
			config.CacheSize = opts.cacheSize
		case "j":
			config.Workers = opts.workers
		case "max":
			config.MaxInstructions = opts.maxInsts
		case "key":
			config.CacheKey = opts.cacheKey
		case "slots":
			config.ShowSlots = opts.slots
		}
	})

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			_, _ = fmt.Fprintln(w, prefix, args)
			return
		}
		_, _ = fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}

func runSuite(
	ctx context.Context,
	config *benchmarks.Config,
	opts *options,
	logger logr.Logger,
	stdout, stderr io.Writer,
) int {
	cases := benchmarks.Suite()
	if opts.routines != "" {
		names := splitList(opts.routines)
		for _, n := range names {
			if _, ok := benchmarks.Program().Symbol(n); !ok {
				_, _ = fmt.Fprintf(stderr, "Error: unknown routine %q\n", n)
				return exitUsage
			}
		}
		cases = benchmarks.Filter(cases, names...)
	}

	runner, err := benchmarks.NewRunner(config, benchmarks.WithLogger(logger))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	report, err := runner.Run(ctx, cases)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	switch opts.format {
	case "csv":
		benchmarks.PrintCSV(stdout, report)
	case "json":
		if err := benchmarks.PrintJSON(stdout, report); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
	default:
		benchmarks.PrintResults(stdout, report, opts.perCase)
	}

	if len(report.Failed()) > 0 {
		return exitFailure
	}
	return exitOK
}

func runELF(
	ctx context.Context,
	config *benchmarks.Config,
	opts *options,
	logger logr.Logger,
	stdout, stderr io.Writer,
) int {
	if opts.symbol == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -elf requires -sym")
		return exitUsage
	}

	args, err := parseArgs(opts.args)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	prog, err := loader.Load(opts.elfPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return exitFailure
	}

	entry, err := prog.Symbol(opts.symbol)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v (symbols: %s)\n", err, strings.Join(prog.SymbolNames(), ", "))
		return exitFailure
	}

	c, err := cache.New(config.CacheSize)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	key, _ := emu.ParseCacheKey(config.CacheKey)

	e := emu.NewEmulator(
		emu.WithCache(c),
		emu.WithCacheKey(key),
		emu.WithMaxInstructions(config.MaxInstructions),
		emu.WithLogger(logger),
	)
	if err := prog.LoadInto(e.Memory()); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	result, err := e.Call(ctx, entry, args...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		if opts.regs {
			_, _ = fmt.Fprint(stderr, e.RegFile().String())
		}
		return exitFailure
	}

	_, _ = fmt.Fprintf(stdout, "%s(%s) = %d\n\n", opts.symbol, opts.args, int32(result))
	benchmarks.WriteStats(stdout, e.Stats())
	_, _ = fmt.Fprintln(stdout)
	benchmarks.WriteCacheStats(stdout, c.Stats())
	if config.ShowSlots {
		_, _ = fmt.Fprintln(stdout)
		benchmarks.WriteSlots(stdout, c.Slots())
	}
	if opts.regs {
		_, _ = fmt.Fprintln(stdout)
		_, _ = fmt.Fprint(stdout, e.RegFile().String())
	}

	return exitOK
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseArgs parses up to four comma-separated signed or unsigned integers.
func parseArgs(s string) ([]uint32, error) {
	parts := splitList(s)
	if len(parts) > emu.MaxArgs {
		return nil, fmt.Errorf("%w: %d given, at most %d", emu.ErrTooManyArgs, len(parts), emu.MaxArgs)
	}

	args := make([]uint32, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 0, 64)
		if err != nil || n < -(1<<31) || n > 0xFFFFFFFF {
			return nil, fmt.Errorf("bad argument %q", p)
		}
		args[i] = uint32(n)
	}
	return args, nil
}
