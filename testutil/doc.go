// Package testutil provides testing utilities for shapespace.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded random source for synthetic shape payloads, an
// in-memory sample source with load accounting and fault injection, and
// brute-force reference distances.
//
// # Synthetic Collections
//
//	rng := testutil.NewRNG(seed)
//	payloads := rng.LowRank(100, 64, 3, 0.01)
//	src := testutil.NewMemorySource(payloads, 1)
//	coll := src.Collection()
//
// # Ground Truth
//
//	want := testutil.BruteForceDistances(payloads, fn)
package testutil
