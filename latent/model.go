package latent

import (
	"fmt"
	"slices"

	"github.com/hupe1980/shapespace/matrix"
	"gonum.org/v1/gonum/floats"
)

// Model is the latent model of one crystal.
type Model struct {
	Level   int
	Crystal int
	// Members are the sample ids in row order of Z.
	Members []int

	W                      *matrix.Dense // k×D
	W0                     []float64     // D
	Z                      *matrix.Dense // n×k
	ExplainedVarianceRatio []float64     // k
}

// K returns the number of components.
func (m *Model) K() int { return m.W.Rows() }

// Dim returns the payload length.
func (m *Model) Dim() int { return len(m.W0) }

// Reconstruct returns z_i·W + w0 for member row i.
func (m *Model) Reconstruct(i int) []float64 {
	return m.Decode(m.Z.Row(i))
}

// Decode maps a coefficient vector back to payload space.
func (m *Model) Decode(z []float64) []float64 {
	out := slices.Clone(m.W0)
	for c, coef := range z {
		floats.AddScaled(out, coef, m.W.Row(c))
	}
	return out
}

// Project returns (x - w0)·Wᵀ.
func (m *Model) Project(x []float64) ([]float64, error) {
	if len(x) != len(m.W0) {
		return nil, fmt.Errorf("latent: payload has %d elements, model expects %d", len(x), len(m.W0))
	}
	centered := make([]float64, len(x))
	floats.SubTo(centered, x, m.W0)
	z := make([]float64, m.K())
	for c := range z {
		z[c] = floats.Dot(m.W.Row(c), centered)
	}
	return z, nil
}

// Set holds the models of a hierarchy, levels in hierarchy order and
// crystals ascending by id.
type Set struct {
	levels   []int
	models   map[int][]*Model
	warnings []DegenerateModelWarning
}

func newSet() *Set {
	return &Set{models: make(map[int][]*Model)}
}

func (s *Set) add(m *Model) {
	if _, ok := s.models[m.Level]; !ok {
		s.levels = append(s.levels, m.Level)
	}
	s.models[m.Level] = append(s.models[m.Level], m)
}

// Get returns the model of a crystal.
func (s *Set) Get(level, crystal int) (*Model, bool) {
	for _, m := range s.models[level] {
		if m.Crystal == crystal {
			return m, true
		}
	}
	return nil, false
}

// Levels returns the persistence levels.
func (s *Set) Levels() []int { return s.levels }

// Models returns the models of one level.
func (s *Set) Models(level int) []*Model { return s.models[level] }

// Len returns the total number of models.
func (s *Set) Len() int {
	n := 0
	for _, ms := range s.models {
		n += len(ms)
	}
	return n
}

// Warnings returns every degenerate model encountered.
func (s *Set) Warnings() []DegenerateModelWarning { return s.warnings }
