package sample

import (
	"context"
	"fmt"
	"path"

	"github.com/gobwas/glob"
	"github.com/hupe1980/shapespace/blobstore"
)

// PathIndexer lists a blob store prefix and derives ids from the names.
type PathIndexer struct {
	store   blobstore.BlobStore
	prefix  string
	pattern glob.Glob
	offset  int
}

// PathOption configures a PathIndexer.
type PathOption func(*PathIndexer) error

// WithPattern keeps only names whose base name matches the glob pattern,
// e.g. "*.nrrd" or "shape_{0,1,2}*.bin".
func WithPattern(pattern string) PathOption {
	return func(p *PathIndexer) error {
		if pattern == "" {
			p.pattern = nil
			return nil
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return fmt.Errorf("sample: bad pattern %q: %w", pattern, err)
		}
		p.pattern = g
		return nil
	}
}

// WithOffset sets the id of row 0. Defaults to DefaultOffset.
func WithOffset(offset int) PathOption {
	return func(p *PathIndexer) error {
		p.offset = offset
		return nil
	}
}

// NewPathIndexer creates an indexer over the blobs under prefix.
func NewPathIndexer(store blobstore.BlobStore, prefix string, optFns ...PathOption) (*PathIndexer, error) {
	p := &PathIndexer{store: store, prefix: prefix, offset: DefaultOffset}
	for _, fn := range optFns {
		if err := fn(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Index lists the store and builds the collection.
func (p *PathIndexer) Index(ctx context.Context) (*Collection, error) {
	names, err := p.store.List(ctx, p.prefix)
	if err != nil {
		return nil, fmt.Errorf("sample: list %q: %w", p.prefix, err)
	}
	locations := names[:0]
	for _, name := range names {
		base := path.Base(name)
		if base == "" || base[0] == '.' {
			continue
		}
		if p.pattern != nil && !p.pattern.Match(base) {
			continue
		}
		locations = append(locations, name)
	}
	return FromLocations(locations, p.offset)
}

// StaticIndexer serves a fixed location list.
type StaticIndexer struct {
	Locations []string
	Offset    int
}

// Index builds the collection from the fixed list.
func (s StaticIndexer) Index(context.Context) (*Collection, error) {
	return FromLocations(s.Locations, s.Offset)
}
