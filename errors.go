package shapespace

import (
	"errors"

	"github.com/hupe1980/shapespace/distance"
	"github.com/hupe1980/shapespace/latent"
	"github.com/hupe1980/shapespace/loader"
	"github.com/hupe1980/shapespace/sample"
	"github.com/hupe1980/shapespace/workerpool"
)

var (
	// ErrNoMetrics is returned when a distance run names no metric.
	ErrNoMetrics = errors.New("shapespace: no metric requested")

	// ErrEmptyCollection is returned when the indexer finds no samples.
	ErrEmptyCollection = errors.New("shapespace: collection is empty")

	// ErrInvalidMatrix is returned when an imported distance matrix is not
	// square, symmetric with a zero diagonal, or does not match the collection.
	ErrInvalidMatrix = errors.New("shapespace: invalid distance matrix")

	// ErrClosed is returned by a closed worker pool.
	ErrClosed = workerpool.ErrClosed
)

// Error types of the subpackages, re-exported for callers that only import
// the root package.
type (
	MalformedIDError       = sample.MalformedIDError
	DuplicateIDError       = sample.DuplicateIDError
	MissingIDError         = sample.MissingIDError
	UnsupportedMetricError = distance.UnsupportedMetricError
	ShapeMismatchError     = loader.ShapeMismatchError
	LoadError              = loader.LoadError
	DegenerateModelWarning = latent.DegenerateModelWarning
)
