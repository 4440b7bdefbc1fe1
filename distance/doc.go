// Package distance implements the pairwise dissimilarities supported by the
// distance engine.
//
// Metrics are a closed enumeration resolved from user-facing names with
// Parse. Unknown names, and names that are recognized but cannot be computed
// from two payloads alone (mahalanobis, script), fail with
// *UnsupportedMetricError.
//
// # Supported Metrics
//
//   - Real valued: cityblock (l1, manhattan), euclidean (l2), sqeuclidean,
//     minkowski, chebyshev, cosine, correlation, braycurtis, canberra,
//     seuclidean
//   - Boolean (non-zero elements are true): hamming, jaccard, dice,
//     kulsinski, rogerstanimoto, russellrao, sokalmichener, sokalsneath, yule
//
// # Usage
//
//	m, err := distance.Parse("l1")
//	fn, err := distance.New(m)
//	d := fn(a, b)
package distance
