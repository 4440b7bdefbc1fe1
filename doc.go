// Package shapespace computes the derived artifacts of a shape collection:
// all-pairs distance matrices and per-crystal linear latent models.
//
// A Pipeline combines a sample indexer, which lists the samples and their
// numeric ids, with a loader, which turns a sample into a flat payload.
// Samples are streamed in blocks through a fixed pool of loader goroutines,
// so collections larger than memory are supported.
//
// # Quick Start
//
//	store := blobstore.NewLocalStore("./shapes")
//	indexer, _ := sample.NewPathIndexer(store, "", sample.WithPattern("*.f32"))
//	p, _ := shapespace.New(indexer, loader.NewBlobLoader(store),
//	    shapespace.WithBlocks(16),
//	    shapespace.WithLogger(shapespace.NewTextLogger(os.Stderr, slog.LevelInfo)),
//	)
//
//	// l1_distance.bin + l1_distance.bin.dims
//	_, err := p.ComputeDistances(ctx, []string{"l1"}, "./out")
//
//	h, _ := partition.ReadFile("ms_partitions.json", 0)
//	// persistence-<level>/crystal-<id>/{W,w0,z}.bin
//	_, err = p.BuildModels(ctx, h, "./out/models")
//
// # Outputs
//
// Every run writes its files to a hidden staging directory next to the
// destination and publishes them only when the whole run succeeded. A failed
// run leaves the destination untouched.
//
// Matrices are raw little-endian float32 or float64 buffers with a text
// sidecar "<rows> <cols> <dtype>" in <name>.bin.dims. Distance matrices and
// the model matrices W (k×D) and z (n×k) are row-major; w0 is a D×1 column.
//
// # Metrics
//
// Distance metrics are resolved by name before any sample is loaded; see
// package distance for the list. The additional name "pca" fits one latent
// model over the whole collection and measures Euclidean distance between
// the coefficient vectors.
package shapespace
