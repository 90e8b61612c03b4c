package benchmarks

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/armemu/asm"
	"github.com/sarchlab/armemu/cache"
	"github.com/sarchlab/armemu/emu"
)

// Result holds the outcome of one case.
type Result struct {
	Case Case

	// Got is the emulated r0, read as signed.
	Got int32

	// Stats are the instruction counts of the call.
	Stats emu.Stats

	// Err is set when the call faulted. Got is then meaningless.
	Err error

	// Worker is the index of the worker that ran the case.
	Worker int

	// WallTime is the time taken by the call.
	WallTime time.Duration
}

// Passed reports whether the call returned and matched the native result.
func (r Result) Passed() bool {
	return r.Err == nil && r.Got == r.Case.Expected
}

// Report is the outcome of a suite run.
type Report struct {
	Config  Config
	Results []Result

	// Totals sums the instruction counts of every case.
	Totals emu.Stats

	// Cache sums the statistics of every worker's cache.
	Cache cache.Statistics

	// Slots is the final cache content. It is only set for single-worker
	// runs, where one cache saw every case.
	Slots []cache.Slot
}

// Failed returns the results that did not pass.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Passed() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Runner runs cases against the emulator.
type Runner struct {
	config   *Config
	cacheKey emu.CacheKey
	program  *asm.Program
	logger   logr.Logger
}

// RunnerOption is a functional option for configuring the Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger handed to every emulator.
func WithLogger(logger logr.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithProgram replaces the reference routines with another program. Case
// routine names are looked up among its labels.
func WithProgram(p *asm.Program) RunnerOption {
	return func(r *Runner) {
		r.program = p
	}
}

// NewRunner validates config and creates a Runner.
func NewRunner(config *Config, opts ...RunnerOption) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	key, _ := emu.ParseCacheKey(config.CacheKey)

	r := &Runner{
		config:   config.Clone(),
		cacheKey: key,
		logger:   logr.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.program == nil {
		r.program = Program()
	}

	return r, nil
}

type worker struct {
	id    int
	emu   *emu.Emulator
	cache *cache.Cache
}

func (r *Runner) newWorker(id int) (*worker, error) {
	c, err := cache.New(r.config.CacheSize)
	if err != nil {
		return nil, err
	}

	e := emu.NewEmulator(
		emu.WithCache(c),
		emu.WithCacheKey(r.cacheKey),
		emu.WithMaxInstructions(r.config.MaxInstructions),
		emu.WithLogger(r.logger.WithValues("worker", id)),
	)
	if err := e.LoadProgram(r.program.Base, r.program.Code); err != nil {
		return nil, err
	}

	return &worker{id: id, emu: e, cache: c}, nil
}

// Run executes cases and collects their results in case order. A faulting
// case is recorded in its Result and does not stop the run; only context
// cancellation does.
func (r *Runner) Run(ctx context.Context, cases []Case) (*Report, error) {
	results := make([]Result, len(cases))

	workers := min(r.config.Workers, max(len(cases), 1))
	pool := make([]*worker, workers)
	for i := range pool {
		w, err := r.newWorker(i)
		if err != nil {
			return nil, err
		}
		pool[i] = w
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, w := range pool {
		g.Go(func() error {
			for i := w.id; i < len(cases); i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				results[i] = r.runCase(ctx, w, cases[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Config: *r.config, Results: results}
	for _, res := range results {
		report.Totals.Add(res.Stats)
	}
	for _, w := range pool {
		report.Cache.Add(w.cache.Stats())
	}
	if workers == 1 {
		report.Slots = pool[0].cache.Slots()
	}

	return report, nil
}

func (r *Runner) runCase(ctx context.Context, w *worker, c Case) Result {
	result := Result{Case: c, Worker: w.id}

	entry, ok := r.program.Symbol(c.Routine.Name)
	if !ok {
		result.Err = fmt.Errorf("routine %q not found in program", c.Routine.Name)
		return result
	}

	mem := w.emu.Memory()
	if len(c.Data) > 0 {
		data := make([]byte, len(c.Data))
		copy(data, c.Data)
		if _, err := mem.Map("data", emu.DataBase, data); err != nil {
			result.Err = err
			return result
		}
		defer mem.Unmap("data")
	}

	start := time.Now()
	got, err := w.emu.Call(ctx, entry, c.Args...)
	result.WallTime = time.Since(start)
	result.Stats = w.emu.Stats()

	if err != nil {
		result.Err = err
		r.logger.Info("case faulted", "case", c.Name(), "error", err.Error())
		return result
	}

	result.Got = int32(got)
	if !result.Passed() {
		r.logger.Info("case mismatch", "case", c.Name(), "got", result.Got, "expected", c.Expected)
	}

	return result
}
