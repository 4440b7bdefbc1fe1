// Package pairwise assembles all-pairs distance matrices from blocks of
// samples that are loaded on demand.
//
// Only the upper triangle of block pairs (p <= q) is visited. Each off
// diagonal sub-block is written twice, once transposed, so the result is
// exactly symmetric. Rows and columns are indexed by sample id minus the
// collection offset regardless of traversal order, and the diagonal is
// always zero.
package pairwise

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/shapespace/block"
	"github.com/hupe1980/shapespace/distance"
	"github.com/hupe1980/shapespace/internal/stats"
	"github.com/hupe1980/shapespace/matrix"
	"github.com/hupe1980/shapespace/sample"
)

// BlockLoader materializes a run of samples as an n×dim matrix.
// *workerpool.Pool implements it.
type BlockLoader interface {
	LoadBlock(ctx context.Context, samples []sample.Sample, dim int) (*matrix.Dense, error)
}

// Progress describes one finished block pair.
type Progress struct {
	Metric  distance.Metric
	P, Q    block.Block
	Done    int
	Total   int
	Elapsed time.Duration
}

// Observer receives progress after every block pair.
type Observer func(Progress)

type options struct {
	observer   Observer
	logger     *slog.Logger
	metricOpts []distance.Option
	dim        int
}

// Option configures Compute and ComputeDense.
type Option func(*options)

// WithObserver registers a progress callback.
func WithObserver(o Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// WithLogger sets the logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(opts *options) { opts.logger = l }
}

// WithMetricOptions passes parameters to the metric kernel, such as
// distance.WithP for minkowski.
func WithMetricOptions(o ...distance.Option) Option {
	return func(opts *options) { opts.metricOpts = append(opts.metricOpts, o...) }
}

// WithDim fixes the payload length instead of adopting the first sample's.
func WithDim(dim int) Option {
	return func(opts *options) { opts.dim = dim }
}

func applyOptions(optFns []Option) options {
	opts := options{logger: slog.New(slog.DiscardHandler)}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Compute returns the N×N distance matrix of coll under metric.
func Compute(ctx context.Context, coll *sample.Collection, metric distance.Metric, policy block.Policy, ld BlockLoader, optFns ...Option) (*matrix.Dense, error) {
	opts := applyOptions(optFns)

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	// Resolve the kernel before touching any payload. Variance-based
	// metrics are re-resolved once the pre-pass is done.
	if _, err := distance.New(metric, withPlaceholderVariance(metric, opts.metricOpts)...); err != nil {
		return nil, err
	}

	n := coll.Len()
	samples := coll.Samples()
	blocks := block.Split(n, policy)
	out := matrix.New(n, n)
	if n == 0 {
		return out, nil
	}

	dim := opts.dim
	kernelOpts := opts.metricOpts
	if metric.NeedsVariance() {
		m := stats.NewMoments(dim)
		for _, b := range blocks {
			x, err := ld.LoadBlock(ctx, samples[b.Lo:b.Hi], dim)
			if err != nil {
				return nil, err
			}
			if err := m.Add(x); err != nil {
				return nil, err
			}
			dim = x.Cols()
		}
		kernelOpts = append(kernelOpts[:len(kernelOpts):len(kernelOpts)], distance.WithVariance(m.Variance(1)))
	}
	fn, err := distance.New(metric, kernelOpts...)
	if err != nil {
		return nil, err
	}

	offset := coll.Offset()
	rows := func(b block.Block) []int {
		r := make([]int, b.Len())
		for i := range r {
			r[i] = samples[b.Lo+i].ID - offset
		}
		return r
	}

	total := len(blocks) * (len(blocks) + 1) / 2
	done := 0
	opts.logger.Debug("pairwise: start", "metric", metric.String(), "samples", n, "blocks", len(blocks), "pairs", total)

	// Pairs come in row-major order, so each p block is loaded once and
	// kept while its q blocks stream past.
	var (
		xp  *matrix.Dense
		rp  []int
		cur = -1
	)
	for _, pq := range block.Pairs(len(blocks)) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		bp, bq := blocks[pq[0]], blocks[pq[1]]
		if pq[0] != cur {
			x, err := ld.LoadBlock(ctx, samples[bp.Lo:bp.Hi], dim)
			if err != nil {
				return nil, err
			}
			xp, rp, cur = x, rows(bp), pq[0]
			dim = xp.Cols()
		}

		if pq[0] == pq[1] {
			for i := range rp {
				out.Set(rp[i], rp[i], 0)
				for j := i + 1; j < len(rp); j++ {
					d := fn(xp.Row(i), xp.Row(j))
					out.Set(rp[i], rp[j], d)
					out.Set(rp[j], rp[i], d)
				}
			}
		} else {
			xq, err := ld.LoadBlock(ctx, samples[bq.Lo:bq.Hi], dim)
			if err != nil {
				return nil, err
			}
			rq := rows(bq)
			for i := range rp {
				a := xp.Row(i)
				for j := range rq {
					d := fn(a, xq.Row(j))
					out.Set(rp[i], rq[j], d)
					out.Set(rq[j], rp[i], d)
				}
			}
		}
		done++
		opts.notify(Progress{Metric: metric, P: bp, Q: bq, Done: done, Total: total, Elapsed: time.Since(start)})
	}

	opts.logger.Debug("pairwise: done", "metric", metric.String(), "pairs", done)
	return out, nil
}

// ComputeDense returns the distances between the rows of x.
func ComputeDense(x *matrix.Dense, metric distance.Metric, optFns ...Option) (*matrix.Dense, error) {
	opts := applyOptions(optFns)

	kernelOpts := opts.metricOpts
	if metric.NeedsVariance() {
		m := stats.NewMoments(x.Cols())
		if err := m.Add(x); err != nil {
			return nil, err
		}
		kernelOpts = append(kernelOpts[:len(kernelOpts):len(kernelOpts)], distance.WithVariance(m.Variance(1)))
	}
	fn, err := distance.New(metric, kernelOpts...)
	if err != nil {
		return nil, err
	}

	n := x.Rows()
	out := matrix.New(n, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := fn(x.Row(i), x.Row(j))
			out.Set(i, j, d)
			out.Set(j, i, d)
		}
	}
	return out, nil
}

func (o options) notify(p Progress) {
	if o.observer != nil {
		o.observer(p)
	}
}

// withPlaceholderVariance lets kernel validation pass for metrics whose
// variance is only known after the pre-pass.
func withPlaceholderVariance(m distance.Metric, opts []distance.Option) []distance.Option {
	if !m.NeedsVariance() {
		return opts
	}
	return append(opts[:len(opts):len(opts)], distance.WithVariance([]float64{}))
}

// Validate checks that d is square, symmetric and has a zero diagonal.
func Validate(d *matrix.Dense) error {
	n, c := d.Dims()
	if n != c {
		return fmt.Errorf("pairwise: distance matrix is %dx%d, want square", n, c)
	}
	for i := 0; i < n; i++ {
		if d.At(i, i) != 0 {
			return fmt.Errorf("pairwise: non-zero diagonal at %d", i)
		}
		for j := i + 1; j < n; j++ {
			if d.At(i, j) != d.At(j, i) {
				return fmt.Errorf("pairwise: asymmetric at (%d,%d)", i, j)
			}
		}
	}
	return nil
}
