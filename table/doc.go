// Package table serves shape collections stored as rows of (id, payload)
// in a single file instead of one blob per sample.
//
// ParquetStore reads Parquet files with an int64 "id" column and a repeated
// float "payload" column. SQLiteStore reads a "shapes" table whose payload
// column is a BLOB of little-endian float32 values. Both implement
// sample.Indexer and loader.Loader, so they plug into the distance engine
// and the latent builder like a blob store with a BlobLoader.
package table
