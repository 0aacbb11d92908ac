// Package build compiles batches of templates with a pool of workers.
package build

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/conneroisu/spoon/internal/logging"
)

// Compiler is what the pipeline needs from the engine.
type Compiler interface {
	Compile(source string) (string, error)
	IsStale(source string) (bool, error)
	Destination(source string) string
}

// Result is the outcome of compiling one template.
type Result struct {
	Source   string
	Dest     string
	Err      error
	Duration time.Duration
	// Fresh is set when the cached unit was current and nothing was compiled.
	Fresh bool
}

// Callback is called once per result, from a single goroutine.
type Callback func(result Result)

// Pipeline compiles templates concurrently.
type Pipeline struct {
	compiler    Compiler
	workers     int
	incremental bool
	metrics     *Metrics
	callbacks   []Callback
	logger      logging.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers sets the number of concurrent compilations. Values below one
// use one worker per CPU.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		p.workers = n
	}
}

// WithIncremental skips templates whose cached unit is current.
func WithIncremental(incremental bool) Option {
	return func(p *Pipeline) {
		p.incremental = incremental
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a pipeline compiling through c.
func NewPipeline(c Compiler, opts ...Option) *Pipeline {
	p := &Pipeline{
		compiler: c,
		metrics:  NewMetrics(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = runtime.NumCPU()
	}
	p.logger = p.logger.WithComponent("build")
	return p
}

// AddCallback adds a callback to be called when a template is done.
func (p *Pipeline) AddCallback(callback Callback) {
	p.callbacks = append(p.callbacks, callback)
}

// Metrics returns a snapshot of the pipeline's counters.
func (p *Pipeline) Metrics() Metrics {
	return p.metrics.Snapshot()
}

type task struct {
	index  int
	source string
}

// Run compiles sources and returns their results in the same order.
// Templates not started before ctx is done fail with ctx's error.
func (p *Pipeline) Run(ctx context.Context, sources []string) []Result {
	results := make([]Result, len(sources))
	tasks := make(chan task)
	done := make(chan int, len(sources))

	var workerWg sync.WaitGroup
	for i := 0; i < min(p.workers, len(sources)); i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for t := range tasks {
				results[t.index] = p.process(t.source)
				done <- t.index
			}
		}()
	}

	var resultWg sync.WaitGroup
	resultWg.Add(1)
	go func() {
		defer resultWg.Done()
		for i := range done {
			p.handle(ctx, results[i])
		}
	}()

	queued := 0
enqueue:
	for ; queued < len(sources); queued++ {
		select {
		case <-ctx.Done():
			break enqueue
		case tasks <- task{index: queued, source: sources[queued]}:
		}
	}
	close(tasks)
	workerWg.Wait()

	for i := queued; i < len(sources); i++ {
		results[i] = Result{Source: sources[i], Dest: p.compiler.Destination(sources[i]), Err: ctx.Err()}
		done <- i
	}
	close(done)
	resultWg.Wait()

	return results
}

func (p *Pipeline) process(source string) Result {
	start := time.Now()
	result := Result{Source: source}

	if p.incremental {
		stale, err := p.compiler.IsStale(source)
		if err == nil && !stale {
			result.Dest = p.compiler.Destination(source)
			result.Fresh = true
			result.Duration = time.Since(start)
			return result
		}
	}

	result.Dest, result.Err = p.compiler.Compile(source)
	if result.Err != nil {
		result.Dest = p.compiler.Destination(source)
	}
	result.Duration = time.Since(start)
	return result
}

func (p *Pipeline) handle(ctx context.Context, result Result) {
	p.metrics.Record(result)

	switch {
	case result.Err != nil:
		p.logger.Debug(ctx, "Template failed to compile", "file", result.Source, "error", result.Err)
	case result.Fresh:
		p.logger.Debug(ctx, "Template unit is current", "file", result.Source)
	default:
		p.logger.Debug(ctx, "Template compiled", "file", result.Source, "dest", result.Dest, "duration", result.Duration)
	}

	for _, callback := range p.callbacks {
		callback(result)
	}
}
