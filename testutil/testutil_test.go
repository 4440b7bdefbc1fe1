package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/shapespace/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNG_Deterministic(t *testing.T) {
	a := NewRNG(4711).Gaussian(4, 8)
	r := NewRNG(4711)
	b := r.Gaussian(4, 8)
	assert.Equal(t, a, b)

	r.Reset()
	assert.Equal(t, a, r.Gaussian(4, 8))
	assert.Equal(t, int64(4711), r.Seed())
}

func TestRNG_Shapes(t *testing.T) {
	rng := NewRNG(1)

	u := rng.Uniform(8, 32)
	assert.Len(t, u, 8)
	assert.Len(t, u[0], 32)
	for _, v := range u[0] {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}

	for _, row := range rng.Binary(5, 16, 0.3) {
		for _, v := range row {
			assert.Contains(t, []float64{0, 1}, v)
		}
	}

	lr := rng.LowRank(10, 6, 2, 0)
	assert.Len(t, lr, 10)
	assert.Len(t, lr[9], 6)
}

func TestFloat32Exact(t *testing.T) {
	p := Float32Exact([][]float64{{0.1}})
	assert.Equal(t, float64(float32(0.1)), p[0][0])
}

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	src := NewMemorySource([][]float64{{1, 2}, {3, 4}}, 1)

	coll, err := src.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, coll.Len())

	s := coll.Samples()[1]
	got, err := src.Load(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, got)

	got[0] = 99
	again, _ := src.Load(ctx, s)
	assert.Equal(t, 3.0, again[0], "returned payloads are copies")

	assert.Equal(t, int64(2), src.Loads())
	assert.Equal(t, 2, src.LoadsOf(2))

	boom := errors.New("boom")
	src.Fail(1, boom)
	_, err = src.Load(ctx, coll.Samples()[0])
	assert.ErrorIs(t, err, boom)
}

func TestWriteShapes(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	names, err := WriteShapes(ctx, store, "shapes/", [][]float64{{1, 2}}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"shapes/shape_1.f32"}, names)

	data, err := blobstore.ReadAll(ctx, store, names[0])
	require.NoError(t, err)
	assert.Equal(t, EncodeFloat32([]float64{1, 2}), data)
}

func TestBruteForceDistances(t *testing.T) {
	d := BruteForceDistances([][]float64{{0}, {3}}, func(a, b []float64) float64 { return b[0] - a[0] })
	assert.Equal(t, [][]float64{{0, 3}, {-3, 0}}, d)
}
