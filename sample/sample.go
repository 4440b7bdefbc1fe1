// Package sample turns storage locations into a validated, id-ordered
// collection of shape samples.
//
// Ids are the last run of decimal digits in a location's base name, so
// "volumes/shape_0007.nrrd" and "img/7.png" both map to 7. Within a
// collection ids must cover offset..offset+N-1 exactly; a sample's row in
// every output matrix is id - offset.
package sample

import (
	"context"
	"path"
	"sort"
	"strconv"
	"strings"
)

// DefaultOffset is the id of the first sample when none is configured.
const DefaultOffset = 1

// Sample is one shape in the collection.
type Sample struct {
	ID       int
	Location string
}

// Indexer produces a collection from some storage backend.
type Indexer interface {
	Index(ctx context.Context) (*Collection, error)
}

// compressionExts are stripped before the format extension.
var compressionExts = map[string]bool{".zst": true, ".lz4": true, ".gz": true}

// ExtractID returns the last run of decimal digits in the base name of
// location, ignoring the file extension.
func ExtractID(location string) (int, error) {
	base := path.Base(strings.ReplaceAll(location, "\\", "/"))
	ext := path.Ext(base)
	if compressionExts[strings.ToLower(ext)] {
		base = strings.TrimSuffix(base, ext)
		ext = path.Ext(base)
	}
	base = strings.TrimSuffix(base, ext)

	end := -1
	for i := len(base) - 1; i >= 0; i-- {
		if isDigit(base[i]) {
			end = i + 1
			break
		}
	}
	if end < 0 {
		return 0, &MalformedIDError{Location: location}
	}
	start := end - 1
	for start > 0 && isDigit(base[start-1]) {
		start--
	}
	id, err := strconv.Atoi(base[start:end])
	if err != nil {
		return 0, &MalformedIDError{Location: location}
	}
	return id, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// Collection is an immutable id-sorted set of samples with contiguous ids.
type Collection struct {
	samples []Sample
	offset  int
}

// NewCollection sorts samples by id and checks that the ids are exactly
// offset..offset+len(samples)-1.
func NewCollection(samples []Sample, offset int) (*Collection, error) {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	n := len(sorted)
	for i, s := range sorted {
		if i > 0 && sorted[i-1].ID == s.ID {
			return nil, &DuplicateIDError{ID: s.ID, First: sorted[i-1].Location, Second: s.Location}
		}
	}
	if n > 0 && sorted[0].ID < offset {
		return nil, &MissingIDError{ID: sorted[0].ID, Offset: offset, Count: n, Location: sorted[0].Location}
	}
	for i, s := range sorted {
		if s.ID != offset+i {
			return nil, &MissingIDError{ID: offset + i, Offset: offset, Count: n}
		}
	}
	return &Collection{samples: sorted, offset: offset}, nil
}

// FromLocations extracts ids from every location and builds a collection.
func FromLocations(locations []string, offset int) (*Collection, error) {
	samples := make([]Sample, 0, len(locations))
	for _, loc := range locations {
		id, err := ExtractID(loc)
		if err != nil {
			return nil, err
		}
		samples = append(samples, Sample{ID: id, Location: loc})
	}
	return NewCollection(samples, offset)
}

// Len returns the number of samples.
func (c *Collection) Len() int { return len(c.samples) }

// Offset returns the id of row 0.
func (c *Collection) Offset() int { return c.offset }

// Samples returns the samples in id order. The slice must not be modified.
func (c *Collection) Samples() []Sample { return c.samples }

// At returns the sample in row i.
func (c *Collection) At(i int) Sample { return c.samples[i] }

// Row maps an id to its matrix row.
func (c *Collection) Row(id int) int { return id - c.offset }

// Slice returns the samples in rows [lo, hi).
func (c *Collection) Slice(lo, hi int) []Sample { return c.samples[lo:hi] }

// Subset returns the samples at the given rows, in the given order.
func (c *Collection) Subset(rows []int) []Sample {
	out := make([]Sample, len(rows))
	for i, r := range rows {
		out[i] = c.samples[r]
	}
	return out
}
