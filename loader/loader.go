// Package loader reads one shape sample and decodes it into a flat float64
// vector. Loaders are called concurrently by the worker pool and must be
// safe for concurrent use.
package loader

import (
	"bytes"
	"context"
	"io"

	"github.com/hupe1980/shapespace/blobstore"
	"github.com/hupe1980/shapespace/resource"
	"github.com/hupe1980/shapespace/sample"
)

// Loader produces the payload of a sample.
type Loader interface {
	Load(ctx context.Context, s sample.Sample) ([]float64, error)
}

// Func adapts a function to Loader.
type Func func(ctx context.Context, s sample.Sample) ([]float64, error)

// Load calls f.
func (f Func) Load(ctx context.Context, s sample.Sample) ([]float64, error) { return f(ctx, s) }

// BlobLoader reads samples from a blob store.
type BlobLoader struct {
	store       blobstore.BlobStore
	format      Format
	compression Compression
	rc          *resource.Controller
}

// Option configures a BlobLoader.
type Option func(*BlobLoader)

// WithFormat fixes the element format instead of detecting it per location.
func WithFormat(f Format) Option {
	return func(l *BlobLoader) { l.format = f }
}

// WithCompression fixes the compression instead of detecting it.
func WithCompression(c Compression) Option {
	return func(l *BlobLoader) { l.compression = c }
}

// WithResourceController throttles reads through rc's IO limit.
func WithResourceController(rc *resource.Controller) Option {
	return func(l *BlobLoader) { l.rc = rc }
}

// NewBlobLoader creates a loader over store.
func NewBlobLoader(store blobstore.BlobStore, optFns ...Option) *BlobLoader {
	l := &BlobLoader{store: store}
	for _, fn := range optFns {
		fn(l)
	}
	return l
}

// Load reads, decompresses and decodes one sample. Every failure is
// returned as a *LoadError.
func (l *BlobLoader) Load(ctx context.Context, s sample.Sample) ([]float64, error) {
	values, err := l.load(ctx, s.Location)
	if err != nil {
		return nil, &LoadError{ID: s.ID, Location: s.Location, Err: err}
	}
	return values, nil
}

func (l *BlobLoader) load(ctx context.Context, location string) ([]float64, error) {
	raw, err := l.read(ctx, location)
	if err != nil {
		return nil, err
	}
	data, err := Decompress(l.compression.Detect(location), raw)
	if err != nil {
		return nil, err
	}
	return Decode(l.format.Detect(location), data)
}

func (l *BlobLoader) read(ctx context.Context, location string) ([]byte, error) {
	if !l.rc.ThrottlesIO() {
		return blobstore.ReadAll(ctx, l.store, location)
	}

	b, err := l.store.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	size := b.Size()
	if size == 0 {
		return nil, nil
	}
	rc, err := b.ReadRange(ctx, 0, size)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	buf.Grow(int(size))
	if _, err := io.Copy(&buf, resource.NewRateLimitedReader(ctx, rc, l.rc)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
