package latent

import "fmt"

// ComponentPolicy chooses the number of components k of a model. The zero
// value keeps as many components as the data supports.
//
// The accumulator keeps as many components as it may need before k is
// chosen. With a fixed count that is at most Components. With Variance or
// the zero value it is min(n-1, D) for a group of n samples, so each SVD step
// runs on a matrix of about n×D and the whole group is held in memory. Set
// Max to bound that cost for large groups.
type ComponentPolicy struct {
	// Components requests a fixed k. Ignored when 0.
	Components int
	// Variance requests the smallest k explaining at least this fraction of
	// the variance. 1 or more means every numerically non-zero component.
	Variance float64
	// Max caps k regardless of the other fields. Ignored when 0.
	Max int
}

// FixedComponents requests exactly k components where the data allows.
func FixedComponents(k int) ComponentPolicy { return ComponentPolicy{Components: k} }

// ExplainedVariance requests the smallest k explaining fraction f.
func ExplainedVariance(f float64) ComponentPolicy { return ComponentPolicy{Variance: f} }

// Validate rejects contradictory or out of range settings.
func (c ComponentPolicy) Validate() error {
	switch {
	case c.Components < 0:
		return fmt.Errorf("latent: negative component count %d", c.Components)
	case c.Variance < 0:
		return fmt.Errorf("latent: negative variance fraction %v", c.Variance)
	case c.Components > 0 && c.Variance > 0:
		return fmt.Errorf("latent: set either a component count or a variance fraction")
	case c.Max < 0:
		return fmt.Errorf("latent: negative component cap %d", c.Max)
	}
	return nil
}

func (c ComponentPolicy) String() string {
	switch {
	case c.Components > 0:
		return fmt.Sprintf("k=%d", c.Components)
	case c.Variance > 0:
		return fmt.Sprintf("variance>=%g", c.Variance)
	default:
		return "all"
	}
}

// limit is the most components a group of n rows in d dimensions can have.
func limit(n, d int) int {
	return max(0, min(n-1, d))
}

// track returns how many components the accumulator must keep.
func (c ComponentPolicy) track(n, d int) int {
	k := limit(n, d)
	if c.Components > 0 {
		k = min(k, c.Components)
	}
	if c.Max > 0 {
		k = min(k, c.Max)
	}
	return k
}

// choose picks the final k from a fitted accumulator.
func (c ComponentPolicy) choose(p *IncrementalPCA) int {
	k := len(p.SingularValues())
	switch {
	case c.Variance >= 1:
		k = p.Rank()
	case c.Variance > 0:
		var cum float64
		for i, r := range p.ExplainedVarianceRatio() {
			cum += r
			if cum >= c.Variance {
				k = i + 1
				break
			}
		}
		k = min(k, p.Rank())
	}
	return k
}
