// Package matrix holds the dense matrix type shared by the distance engine and
// the latent model builder, and the binary interchange format they publish.
//
// # Binary format
//
// A matrix is written as two files:
//
//	name.bin       raw little-endian elements, no header
//	name.bin.dims  ASCII "<rows> <cols> <dtype>", dtype is float32 or float64
//
// The element order is chosen by the writer and must be known by the reader.
// Published outputs use these conventions:
//
//   - distance matrices: row-major; they are symmetric so either order reads the same
//   - W (k×D basis) and z (n×k coefficients): row-major
//   - w0 (mean): a D×1 column
//
// Zero-sized matrices (k = 0 models) are valid: the .bin file is empty and the
// sidecar still records the shape.
package matrix
