package shapespace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/shapespace/block"
	"github.com/hupe1980/shapespace/distance"
	"github.com/hupe1980/shapespace/internal/fs"
	"github.com/hupe1980/shapespace/latent"
	"github.com/hupe1980/shapespace/loader"
	"github.com/hupe1980/shapespace/matrix"
	"github.com/hupe1980/shapespace/pairwise"
	"github.com/hupe1980/shapespace/partition"
	"github.com/hupe1980/shapespace/sample"
	"github.com/hupe1980/shapespace/workerpool"
)

const (
	// PCAMetric names the distance between whole-collection latent
	// coefficients.
	PCAMetric = "pca"
	// PrecomputedMetric is the default name of an imported matrix.
	PrecomputedMetric = "precomputed"

	partitionsCSV  = "ms_partitions.csv"
	partitionsJSON = "ms_partitions.json"
	modelDirPrefix = "persistence-"
)

// Pipeline computes distance matrices and latent models for the collection
// listed by an indexer.
//
// A Pipeline holds no per-run state; every call indexes the collection and
// starts its own worker pool, so calls may run concurrently on different
// output directories.
type Pipeline struct {
	indexer sample.Indexer
	loader  loader.Loader
	opts    options
}

// New creates a Pipeline.
//
// Example:
//
//	p, err := shapespace.New(indexer, loader.NewBlobLoader(store),
//	    shapespace.WithWorkers(8),
//	    shapespace.WithBlocks(16),
//	)
func New(indexer sample.Indexer, ld loader.Loader, optFns ...Option) (*Pipeline, error) {
	if indexer == nil {
		return nil, errors.New("shapespace: indexer is required")
	}
	if ld == nil {
		return nil, errors.New("shapespace: loader is required")
	}
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.blocks.Validate(); err != nil {
		return nil, err
	}
	if err := opts.components.Validate(); err != nil {
		return nil, err
	}
	if opts.pcaVariance <= 0 || opts.pcaVariance > 1 {
		return nil, fmt.Errorf("shapespace: pca variance %v outside (0, 1]", opts.pcaVariance)
	}
	if _, err := distance.New(distance.Minkowski, distance.WithP(opts.minkowskiP)); err != nil {
		return nil, err
	}
	if opts.dtype != matrix.Float32 && opts.dtype != matrix.Float64 {
		return nil, fmt.Errorf("shapespace: unsupported dtype %v", opts.dtype)
	}
	return &Pipeline{indexer: indexer, loader: ld, opts: opts}, nil
}

type metricJob struct {
	name   string
	metric distance.Metric
	pca    bool
}

// resolveMetrics maps names to kernels before any sample is touched.
// Repeated names are computed once.
func resolveMetrics(names []string) ([]metricJob, error) {
	if len(names) == 0 {
		return nil, ErrNoMetrics
	}
	seen := make(map[string]bool, len(names))
	jobs := make([]metricJob, 0, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if seen[name] {
			continue
		}
		seen[name] = true
		if name == PCAMetric {
			jobs = append(jobs, metricJob{name: name, pca: true})
			continue
		}
		m, err := distance.Parse(name)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, metricJob{name: name, metric: m})
	}
	return jobs, nil
}

// DistanceFile returns the output file name of a metric.
func DistanceFile(name string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "_distance.bin"
}

// run is the state of one call.
type run struct {
	p       *Pipeline
	id      string
	kind    string
	started time.Time
	logger  *Logger
	coll    *sample.Collection
	pool    *workerpool.Pool
	policy  block.Policy
	dim     int
	staging *fs.Staging
	report  *Report
}

func (p *Pipeline) newRun(kind string) *run {
	id := p.opts.runID
	if id == "" {
		id = uuid.NewString()
	}
	started := time.Now()
	return &run{
		p:       p,
		id:      id,
		kind:    kind,
		started: started,
		logger:  p.opts.logger.WithRunID(id),
		policy:  p.opts.blocks,
		report:  newReport(id, kind, started),
	}
}

func (r *run) index(ctx context.Context) error {
	coll, err := r.p.indexer.Index(ctx)
	if err != nil {
		return err
	}
	if coll.Len() == 0 {
		return ErrEmptyCollection
	}
	r.coll = coll
	r.report.Samples = coll.Len()
	r.logger.DebugContext(ctx, "collection indexed", "samples", coll.Len(), "offset", coll.Offset())
	return nil
}

// start opens the worker pool and, for byte budgets, measures the payload
// length from the first sample.
func (r *run) start(ctx context.Context) error {
	mc := r.p.opts.metricsCollector
	r.pool = workerpool.New(r.p.opts.workers, r.p.loader,
		workerpool.WithLogger(r.logger.Logger),
		workerpool.WithLoadHook(func(_ sample.Sample, elapsed time.Duration, err error) {
			mc.RecordLoad(elapsed, err)
		}),
	)
	if r.policy.Count > 0 || r.policy.BytesPerSample > 0 {
		return nil
	}
	first, err := r.pool.LoadBlock(ctx, r.coll.Slice(0, 1), 0)
	if err != nil {
		return err
	}
	r.dim = first.Cols()
	r.policy.BytesPerSample = int64(r.dim) * 8
	r.logger.WithDimension(r.dim).DebugContext(ctx, "block budget resolved",
		"max_bytes", r.policy.MaxBytes, "blocks", r.policy.NumBlocks(r.coll.Len()))
	return nil
}

func (r *run) stage(dir string) error {
	st, err := fs.NewStaging(r.p.opts.fsys, dir)
	if err != nil {
		return err
	}
	r.staging = st
	return nil
}

func (r *run) writeMatrix(rel string, m *matrix.Dense) error {
	p, err := r.staging.Path(rel)
	if err != nil {
		return err
	}
	if err := matrix.WriteFile(r.staging.FS(), p, m, r.p.opts.dtype, matrix.RowMajor); err != nil {
		return err
	}
	if r.p.opts.debugText {
		p, err := r.staging.Path(strings.TrimSuffix(rel, ".bin") + ".csv")
		if err != nil {
			return err
		}
		return matrix.WriteCSV(r.staging.FS(), p, m)
	}
	return nil
}

func (r *run) writeFile(rel string, fn func(io.Writer) error) error {
	p, err := r.staging.Path(rel)
	if err != nil {
		return err
	}
	return fs.WriteFile(r.staging.FS(), p, fn)
}

// finish publishes the staged outputs. On error it discards them.
func (r *run) finish(ctx context.Context, err error) (*Report, error) {
	if r.pool != nil {
		r.pool.Close()
	}
	if err == nil && r.staging != nil {
		err = r.publish(ctx)
	}
	if err != nil && r.staging != nil {
		_ = r.staging.Abort()
	}
	elapsed := time.Since(r.started)
	r.p.opts.metricsCollector.RecordRun(r.kind, elapsed, err)
	if err != nil {
		return nil, err
	}
	if exportErr := r.mirror(ctx); exportErr != nil {
		return r.report, exportErr
	}
	return r.report, nil
}

func (r *run) publish(ctx context.Context) error {
	files, err := checksum(r.staging)
	if err != nil {
		return err
	}
	r.report.Files = files
	r.report.Dim = r.dim
	r.report.Finished = time.Now().UTC()
	r.report.Elapsed = r.report.Finished.Sub(r.report.Started)
	if r.p.opts.report {
		if err := writeReport(r.staging, r.report); err != nil {
			return err
		}
	}
	published, err := r.staging.Commit()
	r.logger.LogPublish(ctx, r.staging.Dest(), len(published), err)
	return err
}

// mirror copies the published outputs to the export store. Failures leave
// the local outputs in place.
func (r *run) mirror(ctx context.Context) error {
	if r.p.opts.exportStore == nil {
		return nil
	}
	files := make([]string, 0, len(r.report.Files)+1)
	for _, f := range r.report.Files {
		files = append(files, f.Path)
	}
	if r.p.opts.report {
		files = append(files, ReportName(r.kind))
	}
	n, err := r.p.export(ctx, r.staging.Dest(), files)
	r.logger.LogExport(ctx, r.p.opts.exportPrefix, n, err)
	r.report.Exported = n
	return err
}

// ComputeDistances writes one N×N matrix <metric>_distance.bin per metric
// name to outDir. Entry (i, j) is the distance between the samples with ids
// offset+i and offset+j.
//
// All names are resolved before any sample is loaded. If any metric fails,
// nothing is written.
func (p *Pipeline) ComputeDistances(ctx context.Context, names []string, outDir string) (*Report, error) {
	jobs, err := resolveMetrics(names)
	if err != nil {
		return nil, err
	}
	r := p.newRun(KindDistance)
	return r.finish(ctx, r.distances(ctx, jobs, outDir))
}

func (r *run) distances(ctx context.Context, jobs []metricJob, outDir string) error {
	if err := r.index(ctx); err != nil {
		return err
	}
	if err := r.start(ctx); err != nil {
		return err
	}
	if err := r.stage(outDir); err != nil {
		return err
	}

	mc := r.p.opts.metricsCollector
	for _, job := range jobs {
		start := time.Now()
		var (
			d   *matrix.Dense
			err error
		)
		if job.pca {
			d, err = r.pcaDistances(ctx)
		} else {
			d, err = pairwise.Compute(ctx, r.coll, job.metric, r.policy, r.pool,
				pairwise.WithDim(r.dim),
				pairwise.WithLogger(r.logger.WithMetric(job.name).Logger),
				pairwise.WithMetricOptions(distance.WithP(r.p.opts.minkowskiP)),
				pairwise.WithObserver(func(pr pairwise.Progress) {
					mc.RecordBlockPair(job.name, pr.P.Len()*pr.Q.Len(), pr.Elapsed)
					mc.RecordProgress(job.name, pr.Done, pr.Total)
				}),
			)
		}
		r.logger.LogDistance(ctx, job.name, r.coll.Len(), time.Since(start), err)
		if err != nil {
			return fmt.Errorf("shapespace: %s: %w", job.name, err)
		}
		if err := r.writeMatrix(DistanceFile(job.name), d); err != nil {
			return err
		}
		r.report.Metrics = append(r.report.Metrics, job.name)
	}
	return nil
}

// pcaDistances fits one latent model over the whole collection and returns
// the Euclidean distances between the coefficient rows.
func (r *run) pcaDistances(ctx context.Context) (*matrix.Dense, error) {
	cp := latent.ExplainedVariance(r.p.opts.pcaVariance)
	cp.Max = r.p.opts.components.Max
	m, warn, err := latent.Fit(ctx, r.coll.Samples(), r.policy, r.pool, cp,
		latent.WithDim(r.dim),
		latent.WithLogger(r.logger.WithMetric(PCAMetric).Logger),
		latent.WithResourceController(r.p.opts.rc),
	)
	if err != nil {
		return nil, err
	}
	if r.dim == 0 {
		r.dim = m.Dim()
	}
	if warn != nil {
		r.report.addWarning(*warn)
	}
	r.logger.DebugContext(ctx, "collection model fitted", "k", m.K())
	return pairwise.ComputeDense(m.Z, distance.Euclidean)
}

// BuildModels fits a latent model for every crystal of every level of h and
// writes persistence-<level>/crystal-<id>/{W,w0,z}.bin below outDir, along
// with the hierarchy as ms_partitions.csv and ms_partitions.json.
//
// Crystals too small for the requested components still get a model; they
// are listed in the report's warnings. Model directories left in outDir by an
// earlier run are replaced as a whole, so the tree only holds models of h.
func (p *Pipeline) BuildModels(ctx context.Context, h *partition.Hierarchy, outDir string) (*Report, error) {
	r := p.newRun(KindModels)
	return r.finish(ctx, r.models(ctx, h, outDir))
}

func (r *run) models(ctx context.Context, h *partition.Hierarchy, outDir string) error {
	if h == nil {
		return fmt.Errorf("%w: no hierarchy", partition.ErrInvalid)
	}
	if err := r.index(ctx); err != nil {
		return err
	}
	if err := h.Validate(r.coll.Len()); err != nil {
		return err
	}
	r.logger.DebugContext(ctx, "hierarchy validated", "levels", h.Persistences())
	if err := r.start(ctx); err != nil {
		return err
	}
	if err := r.stage(outDir); err != nil {
		return err
	}

	mc := r.p.opts.metricsCollector
	start := time.Now()
	set, err := latent.Build(ctx, r.coll, h, r.policy, r.pool, r.p.opts.components,
		latent.WithDim(r.dim),
		latent.WithLogger(r.logger.Logger),
		latent.WithResourceController(r.p.opts.rc),
		latent.WithObserver(func(pr latent.Progress) {
			mc.RecordModel(pr.Level, pr.Crystal, pr.K, pr.Elapsed)
			mc.RecordProgress(KindModels, pr.Done, pr.Total)
		}),
	)
	if err != nil {
		r.logger.LogModels(ctx, 0, 0, time.Since(start), err)
		return err
	}
	r.report.addModels(set)
	r.logger.LogModels(ctx, set.Len(), len(set.Warnings()), time.Since(start), nil)
	if r.dim == 0 {
		if first := set.Models(set.Levels()[0]); len(first) > 0 {
			r.dim = first[0].Dim()
		}
	}

	if _, err := latent.WriteSet(r.staging.FS(), r.staging.Dir(), set, latent.WriteOptions{
		DType:     r.p.opts.dtype,
		DebugText: r.p.opts.debugText,
	}); err != nil {
		return err
	}
	if err := r.writeFile(partitionsCSV, func(w io.Writer) error { return partition.EncodeCSV(w, h) }); err != nil {
		return err
	}
	if err := r.retireModels(); err != nil {
		return err
	}
	return r.writeFile(partitionsJSON, func(w io.Writer) error { return partition.EncodeJSON(w, h) })
}

// retireModels marks the persistence-* directories already in the
// destination for removal on publish.
func (r *run) retireModels() error {
	entries, err := r.staging.FS().ReadDir(r.staging.Dest())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), modelDirPrefix) {
			r.staging.Retire(e.Name())
		}
	}
	return nil
}

// ImportDistances publishes a precomputed CSV distance matrix in binary form
// as <name>_distance.bin. The matrix must be square with one row per sample,
// symmetric and zero on the diagonal. An empty name means "precomputed".
func (p *Pipeline) ImportDistances(ctx context.Context, csvPath, name, outDir string) (*Report, error) {
	if strings.TrimSpace(name) == "" {
		name = PrecomputedMetric
	}
	r := p.newRun(KindImport)
	return r.finish(ctx, r.importCSV(ctx, csvPath, strings.ToLower(strings.TrimSpace(name)), outDir))
}

func (r *run) importCSV(ctx context.Context, csvPath, name, outDir string) error {
	if err := r.index(ctx); err != nil {
		return err
	}
	d, err := matrix.ReadCSV(csvPath)
	if err != nil {
		return err
	}
	if err := pairwise.Validate(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMatrix, err)
	}
	if d.Rows() != r.coll.Len() {
		return fmt.Errorf("%w: %d rows for %d samples", ErrInvalidMatrix, d.Rows(), r.coll.Len())
	}
	if err := r.stage(outDir); err != nil {
		return err
	}
	if err := r.writeMatrix(DistanceFile(name), d); err != nil {
		return err
	}
	r.report.Metrics = append(r.report.Metrics, name)
	r.logger.InfoContext(ctx, "distance matrix imported", "metric", name, "path", csvPath)
	return nil
}
