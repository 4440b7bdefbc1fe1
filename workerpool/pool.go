// Package workerpool runs sample loads on a fixed set of goroutines and
// hands the payloads back in submission order.
//
// A pool is created once per run and shared by every phase of it. Workers
// only load; all computation stays with the caller.
package workerpool

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/hupe1980/shapespace/loader"
	"github.com/hupe1980/shapespace/matrix"
	"github.com/hupe1980/shapespace/sample"
)

// ErrClosed is returned when work is submitted to a closed pool.
var ErrClosed = errors.New("workerpool: pool is closed")

// errSkipped marks tasks not started because an earlier one failed.
var errSkipped = errors.New("workerpool: skipped after batch failure")

// LoadHook observes every completed load.
type LoadHook func(s sample.Sample, elapsed time.Duration, err error)

type options struct {
	hook   LoadHook
	logger *slog.Logger
}

// Option configures a Pool.
type Option func(*options)

// WithLoadHook registers a callback run on the worker after each load.
func WithLoadHook(h LoadHook) Option {
	return func(o *options) { o.hook = h }
}

// WithLogger sets the logger. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

type task struct {
	ctx    context.Context
	sample sample.Sample
	out    *[]float64
	err    *error
	fail   func()
	done   *sync.WaitGroup
}

// Pool is a fixed-size set of load workers.
type Pool struct {
	ld      loader.Loader
	opts    options
	workers int

	tasks chan task
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New starts workers goroutines. workers <= 0 uses GOMAXPROCS.
func New(workers int, ld loader.Loader, optFns ...Option) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, fn := range optFns {
		fn(&o)
	}
	p := &Pool{
		ld:      ld,
		opts:    o,
		workers: workers,
		tasks:   make(chan task, workers),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	o.logger.Debug("worker pool started", "workers", workers)
	return p
}

// Workers returns the number of workers.
func (p *Pool) Workers() int { return p.workers }

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.run(t)
	}
}

func (p *Pool) run(t task) {
	defer t.done.Done()
	if err := t.ctx.Err(); err != nil {
		*t.err = errSkipped
		return
	}
	start := time.Now()
	values, err := p.ld.Load(t.ctx, t.sample)
	if p.opts.hook != nil {
		p.opts.hook(t.sample, time.Since(start), err)
	}
	if err != nil {
		*t.err = err
		t.fail()
		return
	}
	*t.out = values
}

// Load loads every sample and returns the payloads in the order given.
// On failure it waits for all in-flight loads of the batch, skips the ones
// not yet started, and returns the error of the earliest failing sample.
func (p *Pool) Load(ctx context.Context, samples []sample.Sample) ([][]float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	n := len(samples)
	out := make([][]float64, n)
	errs := make([]error, n)
	var done sync.WaitGroup
	done.Add(n)
	for i, s := range samples {
		p.tasks <- task{
			ctx:    batchCtx,
			sample: s,
			out:    &out[i],
			err:    &errs[i],
			fail:   cancel,
			done:   &done,
		}
	}
	done.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		// Cancellation here can only come from the batch failing.
		if err != nil && !errors.Is(err, errSkipped) && !errors.Is(err, context.Canceled) {
			return nil, err
		}
	}
	return out, nil
}

// LoadBlock loads samples and stacks them into an n×dim matrix. If dim is
// 0 the first payload fixes it. Payloads of any other length fail with
// *loader.ShapeMismatchError.
func (p *Pool) LoadBlock(ctx context.Context, samples []sample.Sample, dim int) (*matrix.Dense, error) {
	payloads, err := p.Load(ctx, samples)
	if err != nil {
		return nil, err
	}
	if len(payloads) == 0 {
		return matrix.New(0, dim), nil
	}
	if dim == 0 {
		dim = len(payloads[0])
		if dim == 0 {
			s := samples[0]
			return nil, &loader.LoadError{ID: s.ID, Location: s.Location, Err: loader.ErrEmptyPayload}
		}
	}
	m := matrix.New(len(payloads), dim)
	for i, v := range payloads {
		if len(v) != dim {
			s := samples[i]
			return nil, &loader.ShapeMismatchError{ID: s.ID, Location: s.Location, Want: dim, Got: len(v)}
		}
		copy(m.Row(i), v)
	}
	return m, nil
}

// Close stops the workers and waits for them to exit. It waits for running
// batches first. Safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.opts.logger.Debug("worker pool stopped", "workers", p.workers)
}
