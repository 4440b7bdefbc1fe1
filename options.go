package shapespace

import (
	"github.com/hupe1980/shapespace/blobstore"
	"github.com/hupe1980/shapespace/block"
	"github.com/hupe1980/shapespace/internal/fs"
	"github.com/hupe1980/shapespace/latent"
	"github.com/hupe1980/shapespace/matrix"
	"github.com/hupe1980/shapespace/resource"
)

const (
	// DefaultBlocks is the block count used when no policy is configured.
	DefaultBlocks = 8
	// DefaultPCAVariance is the explained variance kept by the pca metric.
	DefaultPCAVariance = 0.97
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	workers          int
	blocks           block.Policy
	dtype            matrix.DType
	debugText        bool
	components       latent.ComponentPolicy
	pcaVariance      float64
	minkowskiP       float64
	rc               *resource.Controller
	exportStore      blobstore.BlobStore
	exportPrefix     string
	report           bool
	runID            string
	fsys             fs.FileSystem
}

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		blocks:           block.ByCount(DefaultBlocks),
		dtype:            matrix.Float32,
		pcaVariance:      DefaultPCAVariance,
		minkowskiP:       2,
		report:           true,
		fsys:             fs.Default,
	}
}

// Option configures a Pipeline.
type Option func(*options)

// WithLogger configures structured logging.
//
// Example:
//
//	logger := shapespace.NewJSONLogger(os.Stderr, slog.LevelInfo)
//	p, _ := shapespace.New(indexer, loader, shapespace.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMetricsCollector configures a metrics collector for monitoring runs.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithWorkers sets the number of loader goroutines. 0 uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithBlocks splits every collection or crystal into n blocks.
func WithBlocks(n int) Option {
	return func(o *options) { o.blocks = block.ByCount(n) }
}

// WithMemoryBudget sizes blocks so that one decoded block stays within
// maxBytes. The per-sample size is measured from the first sample.
func WithMemoryBudget(maxBytes int64) Option {
	return func(o *options) { o.blocks = block.ByBudget(maxBytes, 0) }
}

// WithDType sets the element type of written matrices. Default float32.
func WithDType(d matrix.DType) Option {
	return func(o *options) { o.dtype = d }
}

// WithDebugText also writes a .csv copy of every output matrix.
func WithDebugText(enabled bool) Option {
	return func(o *options) { o.debugText = enabled }
}

// WithComponents sets how many components each latent model keeps.
func WithComponents(cp latent.ComponentPolicy) Option {
	return func(o *options) { o.components = cp }
}

// WithPCAVariance sets the explained variance of the whole-collection model
// behind the pca metric. The fit holds the whole collection in memory unless
// the Max of the policy given to WithComponents caps the components.
func WithPCAVariance(f float64) Option {
	return func(o *options) { o.pcaVariance = f }
}

// WithMinkowskiP sets the order of the minkowski metric.
func WithMinkowskiP(p float64) Option {
	return func(o *options) { o.minkowskiP = p }
}

// WithResourceController bounds block caching, payload read bandwidth and
// concurrent export uploads.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}

// WithExport mirrors every published file to store under prefix.
func WithExport(store blobstore.BlobStore, prefix string) Option {
	return func(o *options) {
		o.exportStore = store
		o.exportPrefix = prefix
	}
}

// WithReport enables or disables the JSON run report. Default enabled.
func WithReport(enabled bool) Option {
	return func(o *options) { o.report = enabled }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

func withFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) { o.fsys = fsys }
}
