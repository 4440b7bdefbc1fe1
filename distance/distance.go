package distance

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Metric identifies a dissimilarity between two payloads.
type Metric int

const (
	Cityblock Metric = iota
	Euclidean
	SqEuclidean
	Minkowski
	Chebyshev
	Cosine
	Correlation
	BrayCurtis
	Canberra
	SEuclidean
	Hamming
	Jaccard
	Dice
	Kulsinski
	RogersTanimoto
	RussellRao
	SokalMichener
	SokalSneath
	Yule
)

var names = [...]string{
	Cityblock:      "cityblock",
	Euclidean:      "euclidean",
	SqEuclidean:    "sqeuclidean",
	Minkowski:      "minkowski",
	Chebyshev:      "chebyshev",
	Cosine:         "cosine",
	Correlation:    "correlation",
	BrayCurtis:     "braycurtis",
	Canberra:       "canberra",
	SEuclidean:     "seuclidean",
	Hamming:        "hamming",
	Jaccard:        "jaccard",
	Dice:           "dice",
	Kulsinski:      "kulsinski",
	RogersTanimoto: "rogerstanimoto",
	RussellRao:     "russellrao",
	SokalMichener:  "sokalmichener",
	SokalSneath:    "sokalsneath",
	Yule:           "yule",
}

var aliases = map[string]Metric{
	"l1":        Cityblock,
	"manhattan": Cityblock,
	"l2":        Euclidean,
}

// rejected names are known but need more than two payloads to evaluate.
var rejected = map[string]string{
	"mahalanobis": "requires the inverse covariance of the full collection",
	"script":      "user scripts are not supported",
}

// String returns the canonical metric name.
func (m Metric) String() string {
	if m >= 0 && int(m) < len(names) {
		return names[m]
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

// Boolean reports whether the metric treats payloads as bit vectors.
func (m Metric) Boolean() bool {
	return m >= Hamming && m <= Yule
}

// NeedsVariance reports whether the metric is parameterized by the
// per-dimension variance of the whole collection.
func (m Metric) NeedsVariance() bool {
	return m == SEuclidean
}

// Metrics returns every supported metric in declaration order.
func Metrics() []Metric {
	out := make([]Metric, len(names))
	for i := range out {
		out[i] = Metric(i)
	}
	return out
}

// UnsupportedMetricError is returned for a metric name that cannot be
// computed.
type UnsupportedMetricError struct {
	Name   string
	Reason string
}

func (e *UnsupportedMetricError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("distance: unsupported metric %q: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("distance: unsupported metric %q", e.Name)
}

// Parse resolves a metric name. Matching is case-insensitive.
func Parse(name string) (Metric, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if m, ok := aliases[key]; ok {
		return m, nil
	}
	for i, n := range names {
		if n == key {
			return Metric(i), nil
		}
	}
	if reason, ok := rejected[key]; ok {
		return 0, &UnsupportedMetricError{Name: name, Reason: reason}
	}
	return 0, &UnsupportedMetricError{Name: name}
}

// Func computes the dissimilarity of two equal-length payloads.
type Func func(a, b []float64) float64

var (
	// ErrInvalidParameter is returned for a parameter outside the metric's
	// domain.
	ErrInvalidParameter = errors.New("distance: invalid parameter")
)

type config struct {
	p        float64
	variance []float64
}

// Option configures a metric kernel.
type Option func(*config)

// WithP sets the order of the Minkowski metric. Default 2.
func WithP(p float64) Option {
	return func(c *config) { c.p = p }
}

// WithVariance sets the per-dimension variance used by seuclidean.
func WithVariance(v []float64) Option {
	return func(c *config) { c.variance = v }
}

// New returns the kernel for m.
func New(m Metric, opts ...Option) (Func, error) {
	cfg := config{p: 2}
	for _, opt := range opts {
		opt(&cfg)
	}

	switch m {
	case Cityblock:
		return func(a, b []float64) float64 { return floats.Distance(a, b, 1) }, nil
	case Euclidean:
		return func(a, b []float64) float64 { return floats.Distance(a, b, 2) }, nil
	case SqEuclidean:
		return sqeuclidean, nil
	case Minkowski:
		if cfg.p < 1 || math.IsNaN(cfg.p) {
			return nil, fmt.Errorf("%w: minkowski p = %v, must be >= 1", ErrInvalidParameter, cfg.p)
		}
		p := cfg.p
		return func(a, b []float64) float64 { return floats.Distance(a, b, p) }, nil
	case Chebyshev:
		return func(a, b []float64) float64 { return floats.Distance(a, b, math.Inf(1)) }, nil
	case Cosine:
		return cosine, nil
	case Correlation:
		return correlation, nil
	case BrayCurtis:
		return braycurtis, nil
	case Canberra:
		return canberra, nil
	case SEuclidean:
		if cfg.variance == nil {
			return nil, fmt.Errorf("%w: seuclidean requires the collection variance", ErrInvalidParameter)
		}
		v := cfg.variance
		return func(a, b []float64) float64 { return seuclidean(a, b, v) }, nil
	case Hamming:
		return hamming, nil
	case Jaccard, Dice, Kulsinski, RogersTanimoto, RussellRao, SokalMichener, SokalSneath, Yule:
		return boolean(m), nil
	default:
		return nil, &UnsupportedMetricError{Name: m.String()}
	}
}

func sqeuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// cosine is 1 when either vector has zero norm.
func cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - floats.Dot(a, b)/(na*nb)
}

func correlation(a, b []float64) float64 {
	if len(a) == 0 {
		return 1
	}
	ma := floats.Sum(a) / float64(len(a))
	mb := floats.Sum(b) / float64(len(b))
	var dot, na, nb float64
	for i := range a {
		x, y := a[i]-ma, b[i]-mb
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/math.Sqrt(na*nb)
}

func braycurtis(a, b []float64) float64 {
	var num, den float64
	for i := range a {
		num += math.Abs(a[i] - b[i])
		den += math.Abs(a[i] + b[i])
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// canberra skips 0/0 terms.
func canberra(a, b []float64) float64 {
	var sum float64
	for i := range a {
		den := math.Abs(a[i]) + math.Abs(b[i])
		if den == 0 {
			continue
		}
		sum += math.Abs(a[i]-b[i]) / den
	}
	return sum
}

// seuclidean ignores dimensions with zero variance.
func seuclidean(a, b, v []float64) float64 {
	var sum float64
	for i := range a {
		if v[i] == 0 {
			continue
		}
		d := a[i] - b[i]
		sum += d * d / v[i]
	}
	return math.Sqrt(sum)
}

// hamming is the fraction of differing elements.
func hamming(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	var n int
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return float64(n) / float64(len(a))
}

type truth struct {
	tt, tf, ft, ff float64
}

func (t truth) n() float64 { return t.tt + t.tf + t.ft + t.ff }

func countTruth(a, b []float64) truth {
	var t truth
	for i := range a {
		x, y := a[i] != 0, b[i] != 0
		switch {
		case x && y:
			t.tt++
		case x:
			t.tf++
		case y:
			t.ft++
		default:
			t.ff++
		}
	}
	return t
}

// boolean returns the kernel for a bit-vector metric. Undefined ratios
// (zero denominators) evaluate to 0.
func boolean(m Metric) Func {
	var f func(t truth) float64
	switch m {
	case Jaccard:
		f = func(t truth) float64 { return ratio(t.tf+t.ft, t.tt+t.tf+t.ft) }
	case Dice:
		f = func(t truth) float64 { return ratio(t.tf+t.ft, 2*t.tt+t.tf+t.ft) }
	case Kulsinski:
		f = func(t truth) float64 {
			n := t.n()
			return ratio(t.tf+t.ft-t.tt+n, t.tf+t.ft+n)
		}
	case RogersTanimoto, SokalMichener:
		f = func(t truth) float64 {
			r := 2 * (t.tf + t.ft)
			return ratio(r, t.tt+t.ff+r)
		}
	case RussellRao:
		f = func(t truth) float64 {
			n := t.n()
			return ratio(n-t.tt, n)
		}
	case SokalSneath:
		f = func(t truth) float64 {
			r := 2 * (t.tf + t.ft)
			return ratio(r, t.tt+r)
		}
	case Yule:
		f = func(t truth) float64 {
			r := 2 * t.tf * t.ft
			return ratio(r, t.tt*t.ff+t.tf*t.ft)
		}
	}
	return func(a, b []float64) float64 { return f(countTruth(a, b)) }
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
