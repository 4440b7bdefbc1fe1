package pairwise

import (
	"context"
	"testing"

	"github.com/hupe1980/shapespace/block"
	"github.com/hupe1980/shapespace/distance"
	"github.com/hupe1980/shapespace/internal/stats"
	"github.com/hupe1980/shapespace/loader"
	"github.com/hupe1980/shapespace/matrix"
	"github.com/hupe1980/shapespace/sample"
	"github.com/hupe1980/shapespace/testutil"
	"github.com/hupe1980/shapespace/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPool(t *testing.T, src *testutil.MemorySource) *workerpool.Pool {
	t.Helper()
	p := workerpool.New(3, src)
	t.Cleanup(p.Close)
	return p
}

func TestCompute_FourSampleL1(t *testing.T) {
	src := testutil.NewMemorySource([][]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}, 1)
	m, err := distance.Parse("l1")
	require.NoError(t, err)

	for _, blocks := range []int{1, 2, 3, 4, 9} {
		got, err := Compute(context.Background(), src.Collection(), m, block.ByCount(blocks), newPool(t, src))
		require.NoError(t, err)
		want := matrix.NewFromRows([][]float64{
			{0, 1, 1, 2},
			{1, 0, 2, 1},
			{1, 2, 0, 1},
			{2, 1, 1, 0},
		})
		assert.True(t, want.Equal(got), "blocks=%d", blocks)
	}
}

func TestCompute_BlockingIndependence(t *testing.T) {
	payloads := testutil.NewRNG(42).Gaussian(23, 7)
	src := testutil.NewMemorySource(payloads, 5)

	for _, m := range []distance.Metric{distance.Euclidean, distance.Cosine, distance.Canberra, distance.Correlation} {
		fn, err := distance.New(m)
		require.NoError(t, err)
		want := testutil.BruteForceDistances(payloads, fn)

		for _, blocks := range []int{1, 2, 5, 23} {
			got, err := Compute(context.Background(), src.Collection(), m, block.ByCount(blocks), newPool(t, src))
			require.NoError(t, err)
			require.NoError(t, Validate(got))
			for i := range want {
				assert.InDeltaSlice(t, want[i], got.Row(i), 1e-12, "%s blocks=%d row=%d", m, blocks, i)
			}
		}
	}
}

func TestCompute_LoadsEachBlockPairOnce(t *testing.T) {
	src := testutil.NewMemorySource(testutil.NewRNG(1).Uniform(10, 4), 1)

	var pairs []Progress
	_, err := Compute(context.Background(), src.Collection(), distance.Cityblock, block.ByCount(3), newPool(t, src),
		WithObserver(func(p Progress) { pairs = append(pairs, p) }))
	require.NoError(t, err)

	// Blocks {4,3,3}: each row block once plus every q > p once.
	assert.Equal(t, int64(4+3+3+3+3+3), src.Loads())
	require.Len(t, pairs, 6)
	assert.Equal(t, block.Block{Lo: 0, Hi: 4}, pairs[0].P)
	assert.Equal(t, pairs[0].P, pairs[0].Q)
	assert.Equal(t, 6, pairs[5].Done)
	assert.Equal(t, 6, pairs[5].Total)

	blocks := block.Split(10, block.ByCount(3))
	for i, pq := range block.Pairs(len(blocks)) {
		assert.Equal(t, blocks[pq[0]], pairs[i].P, "pair %d", i)
		assert.Equal(t, blocks[pq[1]], pairs[i].Q, "pair %d", i)
	}
}

func TestCompute_Canceled(t *testing.T) {
	src := testutil.NewMemorySource(testutil.NewRNG(2).Uniform(6, 2), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Compute(ctx, src.Collection(), distance.Cityblock, block.ByCount(2), newPool(t, src))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, src.Loads())
}

func TestCompute_RowsFollowIDs(t *testing.T) {
	payloads := [][]float64{{0}, {10}, {30}}
	src := testutil.NewMemorySource(payloads, 1)
	shuffled := []sample.Sample{
		{ID: 3, Location: testutil.Location(3)},
		{ID: 1, Location: testutil.Location(1)},
		{ID: 2, Location: testutil.Location(2)},
	}
	coll, err := sample.NewCollection(shuffled, 1)
	require.NoError(t, err)

	got, err := Compute(context.Background(), coll, distance.Cityblock, block.ByCount(2), newPool(t, src))
	require.NoError(t, err)
	assert.Equal(t, 30.0, got.At(0, 2))
	assert.Equal(t, 20.0, got.At(2, 1))
}

func TestCompute_SEuclidean(t *testing.T) {
	payloads := testutil.NewRNG(7).Uniform(12, 5)
	payloads[0][4], payloads[1][4] = 0, 0
	for i := range payloads {
		payloads[i][3] = 1 // zero variance column
	}
	src := testutil.NewMemorySource(payloads, 1)

	m := stats.NewMoments(5)
	require.NoError(t, m.Add(matrix.NewFromRows(payloads)))
	fn, err := distance.New(distance.SEuclidean, distance.WithVariance(m.Variance(1)))
	require.NoError(t, err)
	want := testutil.BruteForceDistances(payloads, fn)

	got, err := Compute(context.Background(), src.Collection(), distance.SEuclidean, block.ByCount(4), newPool(t, src))
	require.NoError(t, err)
	for i := range want {
		assert.InDeltaSlice(t, want[i], got.Row(i), 1e-9)
	}

	dense, err := ComputeDense(matrix.NewFromRows(payloads), distance.SEuclidean)
	require.NoError(t, err)
	for i := range want {
		assert.InDeltaSlice(t, want[i], dense.Row(i), 1e-9)
	}
}

func TestCompute_Minkowski(t *testing.T) {
	src := testutil.NewMemorySource([][]float64{{0, 0}, {3, 4}}, 1)
	got, err := Compute(context.Background(), src.Collection(), distance.Minkowski, block.ByCount(2), newPool(t, src),
		WithMetricOptions(distance.WithP(1)))
	require.NoError(t, err)
	assert.Equal(t, 7.0, got.At(0, 1))
}

func TestCompute_UnsupportedBeforeLoad(t *testing.T) {
	src := testutil.NewMemorySource([][]float64{{0}, {1}}, 1)

	_, err := Compute(context.Background(), src.Collection(), distance.Metric(99), block.ByCount(1), newPool(t, src))
	var ue *distance.UnsupportedMetricError
	require.ErrorAs(t, err, &ue)

	_, err = Compute(context.Background(), src.Collection(), distance.Minkowski, block.ByCount(1), newPool(t, src),
		WithMetricOptions(distance.WithP(0)))
	assert.ErrorIs(t, err, distance.ErrInvalidParameter)

	assert.Zero(t, src.Loads())
}

func TestCompute_LoadFailureAborts(t *testing.T) {
	src := testutil.NewMemorySource(testutil.NewRNG(3).Uniform(8, 2), 1)
	src.Fail(6, nil)

	got, err := Compute(context.Background(), src.Collection(), distance.Euclidean, block.ByCount(3), newPool(t, src))
	assert.Nil(t, got)
	assert.ErrorIs(t, err, testutil.ErrInjected)
}

func TestCompute_ShapeMismatch(t *testing.T) {
	src := testutil.NewMemorySource([][]float64{{0, 0}, {1, 1}, {2}}, 1)

	_, err := Compute(context.Background(), src.Collection(), distance.Euclidean, block.ByCount(2), newPool(t, src))
	var sm *loader.ShapeMismatchError
	require.ErrorAs(t, err, &sm)
	assert.Equal(t, 3, sm.ID)
}

func TestCompute_Empty(t *testing.T) {
	src := testutil.NewMemorySource(nil, 1)
	got, err := Compute(context.Background(), src.Collection(), distance.Euclidean, block.ByCount(2), newPool(t, src))
	require.NoError(t, err)
	assert.Equal(t, 0, got.Rows())
}

func TestValidate(t *testing.T) {
	assert.Error(t, Validate(matrix.New(2, 3)))
	assert.Error(t, Validate(matrix.NewFromRows([][]float64{{1, 0}, {0, 0}})))
	assert.Error(t, Validate(matrix.NewFromRows([][]float64{{0, 1}, {2, 0}})))
	assert.NoError(t, Validate(matrix.NewFromRows([][]float64{{0, 1}, {1, 0}})))
}
