package latent

import (
	"fmt"
	"math"

	"github.com/hupe1980/shapespace/internal/stats"
	"github.com/hupe1980/shapespace/matrix"
	"gonum.org/v1/gonum/mat"
)

// IncrementalPCA fits a principal subspace one block of rows at a time.
//
// Each update factors the stack of the current scaled basis, the mean
// centered block and a mean correction row, then keeps the leading
// components. Component signs are normalized so that the largest magnitude
// loading of every component is positive.
type IncrementalPCA struct {
	maxComponents int
	moments       *stats.Moments

	components *matrix.Dense // k×D
	singular   []float64
}

// NewIncrementalPCA tracks at most maxComponents components. With 0 only
// the moments are accumulated.
func NewIncrementalPCA(maxComponents int) *IncrementalPCA {
	if maxComponents < 0 {
		maxComponents = 0
	}
	return &IncrementalPCA{
		maxComponents: maxComponents,
		moments:       stats.NewMoments(0),
	}
}

// PartialFit merges the rows of x.
func (p *IncrementalPCA) PartialFit(x *matrix.Dense) error {
	nb, d := x.Dims()
	if nb == 0 {
		return nil
	}
	if dim := p.moments.Dim(); dim != 0 && dim != d {
		return fmt.Errorf("latent: block has %d columns, want %d", d, dim)
	}

	nSeen := p.moments.N()
	prevMean := append([]float64(nil), p.moments.Mean()...)
	if err := p.moments.Add(x); err != nil {
		return err
	}
	if p.maxComponents == 0 {
		return nil
	}

	bmean := make([]float64, d)
	for i := 0; i < nb; i++ {
		for j, v := range x.Row(i) {
			bmean[j] += v
		}
	}
	for j := range bmean {
		bmean[j] /= float64(nb)
	}

	prevK := len(p.singular)
	rows := prevK + nb
	if nSeen > 0 {
		rows++
	}
	stack := mat.NewDense(rows, d, nil)
	for i := 0; i < prevK; i++ {
		src := p.components.Row(i)
		for j := range src {
			stack.Set(i, j, p.singular[i]*src[j])
		}
	}
	for i := 0; i < nb; i++ {
		src := x.Row(i)
		for j := range src {
			stack.Set(prevK+i, j, src[j]-bmean[j])
		}
	}
	if nSeen > 0 {
		total := float64(nSeen + nb)
		scale := math.Sqrt(float64(nSeen) * float64(nb) / total)
		for j := 0; j < d; j++ {
			stack.Set(rows-1, j, scale*(prevMean[j]-bmean[j]))
		}
	}

	var svd mat.SVD
	if !svd.Factorize(stack, mat.SVDThin) {
		return fmt.Errorf("latent: svd did not converge")
	}
	values := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)

	k := min(p.maxComponents, len(values))
	comps := matrix.New(k, d)
	for c := 0; c < k; c++ {
		row := comps.Row(c)
		for j := range row {
			row[j] = v.At(j, c)
		}
		flipSign(row)
	}
	p.components = comps
	p.singular = values[:k:k]
	return nil
}

// flipSign makes the largest magnitude element of row positive.
func flipSign(row []float64) {
	best := 0
	for j, v := range row {
		if math.Abs(v) > math.Abs(row[best]) {
			best = j
		}
	}
	if len(row) > 0 && row[best] < 0 {
		for j := range row {
			row[j] = -row[j]
		}
	}
}

// N returns the number of rows seen.
func (p *IncrementalPCA) N() int { return p.moments.N() }

// Dim returns the payload length, 0 before the first block.
func (p *IncrementalPCA) Dim() int { return p.moments.Dim() }

// Mean returns the exact mean of all rows seen.
func (p *IncrementalPCA) Mean() []float64 { return p.moments.ExactMean() }

// Components returns the fitted basis, one component per row.
func (p *IncrementalPCA) Components() *matrix.Dense {
	if p.components == nil {
		return matrix.New(0, p.moments.Dim())
	}
	return p.components
}

// SingularValues returns the singular values of the fitted components.
func (p *IncrementalPCA) SingularValues() []float64 { return p.singular }

// ExplainedVarianceRatio returns the share of total variance explained by
// each component.
func (p *IncrementalPCA) ExplainedVarianceRatio() []float64 {
	out := make([]float64, len(p.singular))
	var total float64
	for _, v := range p.moments.M2() {
		total += v
	}
	if total == 0 {
		return out
	}
	for i, s := range p.singular {
		out[i] = s * s / total
	}
	return out
}

// rankTol is the relative singular value below which a component is
// treated as zero. It absorbs the rounding accumulated across updates.
const rankTol = 1e-10

// Rank returns the number of numerically non-zero components.
func (p *IncrementalPCA) Rank() int {
	if len(p.singular) == 0 || p.singular[0] == 0 {
		return 0
	}
	tol := p.singular[0] * rankTol
	r := 0
	for _, s := range p.singular {
		if s > tol {
			r++
		}
	}
	return r
}
