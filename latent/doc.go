// Package latent builds per-crystal linear latent models.
//
// For every persistence level of a partition hierarchy and every crystal of
// that level, the member samples are streamed block by block through an
// incremental PCA. The resulting model holds
//
//	W   k×D  principal components, one per row
//	w0  D    exact mean of the members
//	z   n×k  coefficients, z_i = (x_i - w0)·Wᵀ
//
// so that every member is approximated by z_i·W + w0. Crystals too small for
// the requested k get fewer components and a DegenerateModelWarning. A single
// member crystal yields k = 0 with w0 equal to its payload.
//
// WriteSet lays the models out as persistence-<level>/crystal-<id>/{W,w0,z}.bin
// with .dims sidecars. W and z are row-major, w0 is a D×1 column.
package latent
