package testutil

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/shapespace/blobstore"
	"github.com/hupe1980/shapespace/sample"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewSource(r.seed))
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uniform returns num payloads of length dim with values in [0, 1).
func (r *RNG) Uniform(num, dim int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]float64, num)
	for i := range out {
		out[i] = make([]float64, dim)
		for j := range out[i] {
			out[i][j] = r.rand.Float64()
		}
	}
	return out
}

// Gaussian returns num standard normal payloads of length dim.
func (r *RNG) Gaussian(num, dim int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]float64, num)
	for i := range out {
		out[i] = make([]float64, dim)
		for j := range out[i] {
			out[i][j] = r.rand.NormFloat64()
		}
	}
	return out
}

// Binary returns num payloads of zeros and ones, each element set with
// probability density.
func (r *RNG) Binary(num, dim int, density float64) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]float64, num)
	for i := range out {
		out[i] = make([]float64, dim)
		for j := range out[i] {
			if r.rand.Float64() < density {
				out[i][j] = 1
			}
		}
	}
	return out
}

// LowRank returns payloads that lie near a rank-k affine subspace: a random
// mean plus k random directions with Gaussian coefficients, plus isotropic
// noise of the given standard deviation.
func (r *RNG) LowRank(num, dim, k int, noise float64) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	mean := make([]float64, dim)
	for j := range mean {
		mean[j] = r.rand.Float64()
	}
	basis := make([][]float64, k)
	for c := range basis {
		basis[c] = make([]float64, dim)
		for j := range basis[c] {
			basis[c][j] = r.rand.NormFloat64()
		}
	}

	out := make([][]float64, num)
	for i := range out {
		x := make([]float64, dim)
		copy(x, mean)
		for c := range basis {
			// Decreasing scale keeps the component order well separated.
			coef := r.rand.NormFloat64() * float64(k-c)
			for j := range x {
				x[j] += coef * basis[c][j]
			}
		}
		for j := range x {
			x[j] += noise * r.rand.NormFloat64()
		}
		out[i] = x
	}
	return out
}

// Float32Exact rounds every element to the nearest float32 so values survive
// a float32 round trip unchanged.
func Float32Exact(payloads [][]float64) [][]float64 {
	for _, p := range payloads {
		for j, v := range p {
			p[j] = float64(float32(v))
		}
	}
	return payloads
}

// ErrInjected is returned by MemorySource for ids registered with Fail.
var ErrInjected = errors.New("testutil: injected load failure")

// MemorySource serves payloads from memory. Sample i of the slice gets id
// offset+i. It implements the sample indexer and shape loader interfaces and
// counts every load.
type MemorySource struct {
	payloads [][]float64
	offset   int

	mu    sync.Mutex
	fail  map[int]error
	loads atomic.Int64
	perID map[int]int
}

// NewMemorySource creates a source over payloads.
func NewMemorySource(payloads [][]float64, offset int) *MemorySource {
	return &MemorySource{
		payloads: payloads,
		offset:   offset,
		fail:     make(map[int]error),
		perID:    make(map[int]int),
	}
}

// Location returns the synthetic location of id.
func Location(id int) string {
	return fmt.Sprintf("mem://shape_%d.bin", id)
}

// Samples returns the sample descriptors in id order.
func (m *MemorySource) Samples() []sample.Sample {
	out := make([]sample.Sample, len(m.payloads))
	for i := range out {
		id := m.offset + i
		out[i] = sample.Sample{ID: id, Location: Location(id)}
	}
	return out
}

// Collection returns the validated collection of all samples.
func (m *MemorySource) Collection() *sample.Collection {
	c, err := sample.NewCollection(m.Samples(), m.offset)
	if err != nil {
		panic(err)
	}
	return c
}

// Index implements sample.Indexer.
func (m *MemorySource) Index(context.Context) (*sample.Collection, error) {
	return sample.NewCollection(m.Samples(), m.offset)
}

// Fail makes every load of id return err (ErrInjected when nil).
func (m *MemorySource) Fail(id int, err error) {
	if err == nil {
		err = ErrInjected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[id] = err
}

// Load implements loader.Loader. The returned slice is a copy.
func (m *MemorySource) Load(ctx context.Context, s sample.Sample) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.loads.Add(1)

	m.mu.Lock()
	m.perID[s.ID]++
	err := m.fail[s.ID]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	i := s.ID - m.offset
	if i < 0 || i >= len(m.payloads) {
		return nil, fmt.Errorf("testutil: no payload for id %d", s.ID)
	}
	out := make([]float64, len(m.payloads[i]))
	copy(out, m.payloads[i])
	return out, nil
}

// Loads returns the total number of Load calls.
func (m *MemorySource) Loads() int64 {
	return m.loads.Load()
}

// LoadsOf returns the number of Load calls for id.
func (m *MemorySource) LoadsOf(id int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.perID[id]
}

// EncodeFloat32 returns the little-endian float32 encoding of p.
func EncodeFloat32(p []float64) []byte {
	buf := make([]byte, 4*len(p))
	for i, v := range p {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
	}
	return buf
}

// WriteShapes stores payloads as raw float32 blobs named
// <prefix>shape_<id>.f32 and returns their names.
func WriteShapes(ctx context.Context, store blobstore.BlobStore, prefix string, payloads [][]float64, offset int) ([]string, error) {
	names := make([]string, len(payloads))
	for i, p := range payloads {
		names[i] = fmt.Sprintf("%sshape_%d.f32", prefix, offset+i)
		if err := store.Put(ctx, names[i], EncodeFloat32(p)); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// BruteForceDistances evaluates fn on every ordered pair.
func BruteForceDistances(payloads [][]float64, fn func(a, b []float64) float64) [][]float64 {
	n := len(payloads)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := range out[i] {
			if i != j {
				out[i][j] = fn(payloads[i], payloads[j])
			}
		}
	}
	return out
}
