package stats

import (
	"testing"

	"github.com/hupe1980/shapespace/matrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoments_BlockingIndependent(t *testing.T) {
	rows := [][]float64{{1, 10}, {2, 20}, {4, 0}, {7, -5}, {0, 1}}

	whole := NewMoments(0)
	require.NoError(t, whole.Add(matrix.NewFromRows(rows)))

	parts := NewMoments(2)
	require.NoError(t, parts.Add(matrix.NewFromRows(rows[:2])))
	require.NoError(t, parts.Add(matrix.New(0, 2)))
	require.NoError(t, parts.Add(matrix.NewFromRows(rows[2:3])))
	require.NoError(t, parts.Add(matrix.NewFromRows(rows[3:])))

	assert.Equal(t, 5, parts.N())
	assert.Equal(t, whole.Sum(), parts.Sum())
	assert.InDeltaSlice(t, whole.Mean(), parts.Mean(), 1e-12)
	assert.InDeltaSlice(t, whole.M2(), parts.M2(), 1e-9)

	assert.Equal(t, []float64{14.0 / 5, 26.0 / 5}, parts.ExactMean())
	// Sample variance of 1,2,4,7,0.
	assert.InDelta(t, 7.7, parts.Variance(1)[0], 1e-12)
}

func TestMoments_Degenerate(t *testing.T) {
	m := NewMoments(3)
	assert.Equal(t, []float64{0, 0, 0}, m.Variance(1))
	assert.Equal(t, []float64{0, 0, 0}, m.ExactMean())

	require.NoError(t, m.Add(matrix.NewFromRows([][]float64{{1, 2, 3}})))
	assert.Equal(t, []float64{0, 0, 0}, m.Variance(1))

	assert.Error(t, m.Add(matrix.NewFromRows([][]float64{{1, 2}})))
}
