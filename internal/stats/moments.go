// Package stats accumulates per-dimension moments over row blocks.
package stats

import (
	"fmt"

	"github.com/hupe1980/shapespace/matrix"
	"gonum.org/v1/gonum/floats"
)

// Moments tracks count, exact sum, mean and the sum of squared deviations
// (M2) of every column seen so far. Blocks are merged with Chan's parallel
// update so the result does not depend on how rows were grouped.
type Moments struct {
	n    int
	sum  []float64
	mean []float64
	m2   []float64
}

// NewMoments returns an accumulator for dim columns. dim may be 0 to adopt
// the width of the first block.
func NewMoments(dim int) *Moments {
	m := &Moments{}
	if dim > 0 {
		m.init(dim)
	}
	return m
}

func (m *Moments) init(dim int) {
	m.sum = make([]float64, dim)
	m.mean = make([]float64, dim)
	m.m2 = make([]float64, dim)
}

// Dim returns the column count, 0 before the first block.
func (m *Moments) Dim() int { return len(m.sum) }

// N returns the number of rows accumulated.
func (m *Moments) N() int { return m.n }

// Add merges the rows of b.
func (m *Moments) Add(b *matrix.Dense) error {
	rows, cols := b.Dims()
	if rows == 0 {
		return nil
	}
	if m.sum == nil {
		m.init(cols)
	}
	if cols != len(m.sum) {
		return fmt.Errorf("stats: block has %d columns, want %d", cols, len(m.sum))
	}

	bsum := make([]float64, cols)
	for i := 0; i < rows; i++ {
		floats.Add(bsum, b.Row(i))
	}
	bmean := make([]float64, cols)
	floats.ScaleTo(bmean, 1/float64(rows), bsum)
	bm2 := make([]float64, cols)
	for i := 0; i < rows; i++ {
		for j, v := range b.Row(i) {
			d := v - bmean[j]
			bm2[j] += d * d
		}
	}

	n, nb := float64(m.n), float64(rows)
	total := n + nb
	for j := range m.sum {
		delta := bmean[j] - m.mean[j]
		m.m2[j] += bm2[j] + delta*delta*n*nb/total
		m.mean[j] += delta * nb / total
		m.sum[j] += bsum[j]
	}
	m.n += rows
	return nil
}

// Sum returns the exact column sums.
func (m *Moments) Sum() []float64 { return m.sum }

// Mean returns the running mean. See ExactMean for the sum-based value.
func (m *Moments) Mean() []float64 { return m.mean }

// ExactMean returns sum/n, independent of merge order.
func (m *Moments) ExactMean() []float64 {
	out := make([]float64, len(m.sum))
	if m.n == 0 {
		return out
	}
	n := float64(m.n)
	for j, s := range m.sum {
		out[j] = s / n
	}
	return out
}

// M2 returns the per-column sum of squared deviations from the mean.
func (m *Moments) M2() []float64 { return m.m2 }

// Variance returns M2/(n-ddof), or zeros when n <= ddof.
func (m *Moments) Variance(ddof int) []float64 {
	out := make([]float64, len(m.m2))
	if den := m.n - ddof; den > 0 {
		floats.ScaleTo(out, 1/float64(den), m.m2)
	}
	return out
}
