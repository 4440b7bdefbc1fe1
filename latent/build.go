package latent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/shapespace/block"
	"github.com/hupe1980/shapespace/matrix"
	"github.com/hupe1980/shapespace/partition"
	"github.com/hupe1980/shapespace/resource"
	"github.com/hupe1980/shapespace/sample"
	"gonum.org/v1/gonum/mat"
)

// BlockLoader materializes a run of samples as an n×dim matrix.
// *workerpool.Pool implements it.
type BlockLoader interface {
	LoadBlock(ctx context.Context, samples []sample.Sample, dim int) (*matrix.Dense, error)
}

// Progress describes one finished model.
type Progress struct {
	Level   int
	Crystal int
	Members int
	K       int
	Done    int
	Total   int
	Elapsed time.Duration
}

type options struct {
	logger   *slog.Logger
	rc       *resource.Controller
	observer func(Progress)
	dim      int
}

// Option configures Build and Fit.
type Option func(*options)

// WithLogger sets the logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithResourceController lets pass-one blocks be kept for the projection
// pass while the controller's memory limit allows. Without a memory limit
// blocks are always reloaded.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}

// WithObserver registers a callback invoked after every model.
func WithObserver(fn func(Progress)) Option {
	return func(o *options) { o.observer = fn }
}

// WithDim fixes the payload length instead of adopting the first sample's.
func WithDim(dim int) Option {
	return func(o *options) { o.dim = dim }
}

func applyOptions(optFns []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// Build fits one model per crystal of every level in h.
func Build(ctx context.Context, coll *sample.Collection, h *partition.Hierarchy, policy block.Policy, ld BlockLoader, cp ComponentPolicy, optFns ...Option) (*Set, error) {
	opts := applyOptions(optFns)
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	if err := h.Validate(coll.Len()); err != nil {
		return nil, err
	}

	total := 0
	levels := make([][]partition.Group, len(h.Levels))
	for i, l := range h.Levels {
		levels[i] = l.Groups()
		total += len(levels[i])
	}

	set := newSet()
	done := 0
	for i, l := range h.Levels {
		for _, g := range levels[i] {
			start := time.Now()
			members := coll.Subset(g.RowSlice())
			m, warn, err := fit(ctx, members, policy, ld, cp, opts)
			if err != nil {
				return nil, fmt.Errorf("latent: persistence %d crystal %d: %w", l.Persistence, g.Crystal, err)
			}
			m.Level, m.Crystal = l.Persistence, g.Crystal
			if opts.dim == 0 {
				opts.dim = m.Dim()
			}
			set.add(m)
			if warn != nil {
				warn.Level, warn.Crystal = l.Persistence, g.Crystal
				set.warnings = append(set.warnings, *warn)
				opts.logger.Warn("degenerate latent model",
					"persistence", l.Persistence, "crystal", g.Crystal,
					"members", warn.Members, "k", warn.K, "requested", warn.Requested, "reason", warn.Reason)
			}
			done++
			if opts.observer != nil {
				opts.observer(Progress{
					Level: l.Persistence, Crystal: g.Crystal, Members: len(members), K: m.K(),
					Done: done, Total: total, Elapsed: time.Since(start),
				})
			}
			opts.logger.Debug("latent model built",
				"persistence", l.Persistence, "crystal", g.Crystal, "members", len(members), "k", m.K())
		}
	}
	return set, nil
}

// Fit builds a single model over samples. The returned warning is non-nil
// when the model has fewer components than requested.
func Fit(ctx context.Context, samples []sample.Sample, policy block.Policy, ld BlockLoader, cp ComponentPolicy, optFns ...Option) (*Model, *DegenerateModelWarning, error) {
	opts := applyOptions(optFns)
	if err := policy.Validate(); err != nil {
		return nil, nil, err
	}
	if err := cp.Validate(); err != nil {
		return nil, nil, err
	}
	return fit(ctx, samples, policy, ld, cp, opts)
}

func fit(ctx context.Context, samples []sample.Sample, policy block.Policy, ld BlockLoader, cp ComponentPolicy, opts options) (*Model, *DegenerateModelWarning, error) {
	n := len(samples)
	if n == 0 {
		return nil, nil, fmt.Errorf("latent: empty crystal")
	}
	blocks := block.Split(n, policy)
	cache := make([]*matrix.Dense, len(blocks))
	var reserved int64
	defer func() { opts.rc.Release(reserved) }()

	dim := opts.dim
	var ipca *IncrementalPCA

	for i, b := range blocks {
		x, err := ld.LoadBlock(ctx, samples[b.Lo:b.Hi], dim)
		if err != nil {
			return nil, nil, err
		}
		if ipca == nil {
			dim = x.Cols()
			ipca = NewIncrementalPCA(cp.track(n, dim))
		}
		if err := ipca.PartialFit(x); err != nil {
			return nil, nil, err
		}
		if bytes := int64(x.Rows()) * int64(x.Cols()) * 8; opts.rc.TryReserve(bytes) {
			cache[i] = x
			reserved += bytes
		}
	}

	k := cp.choose(ipca)
	comps := ipca.Components()
	w := matrix.New(k, dim)
	for c := 0; c < k; c++ {
		copy(w.Row(c), comps.Row(c))
	}
	ratio := ipca.ExplainedVarianceRatio()[:k]
	w0 := ipca.Mean()

	z := matrix.New(n, k)
	if k > 0 {
		wt := w.Mat().T()
		for i, b := range blocks {
			x := cache[i]
			if x == nil {
				var err error
				if x, err = ld.LoadBlock(ctx, samples[b.Lo:b.Hi], dim); err != nil {
					return nil, nil, err
				}
			}
			centered := matrix.New(x.Rows(), dim)
			for r := 0; r < x.Rows(); r++ {
				row, src := centered.Row(r), x.Row(r)
				for j := range row {
					row[j] = src[j] - w0[j]
				}
			}
			var zb mat.Dense
			zb.Mul(centered.Mat(), wt)
			for r := 0; r < x.Rows(); r++ {
				copy(z.Row(b.Lo+r), zb.RawRowView(r))
			}
			cache[i] = nil
		}
	}

	members := make([]int, n)
	for i, s := range samples {
		members[i] = s.ID
	}
	m := &Model{Members: members, W: w, W0: w0, Z: z, ExplainedVarianceRatio: ratio}
	return m, degenerate(cp, n, dim, k), nil
}

func degenerate(cp ComponentPolicy, n, d, k int) *DegenerateModelWarning {
	w := &DegenerateModelWarning{Members: n, Requested: cp.Components, K: k}
	switch {
	case n == 1:
		w.Reason = "single member"
	case k == 0:
		w.Reason = "members have no variance"
	case cp.Components > k:
		w.Reason = fmt.Sprintf("at most min(n-1, D) = %d components", limit(n, d))
	default:
		return nil
	}
	return w
}
