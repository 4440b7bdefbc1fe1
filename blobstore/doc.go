// Package blobstore abstracts where shape payloads live and where published
// outputs may be mirrored.
//
// # Built-in Implementations
//
//   - LocalStore: a local directory, read through memory mappings
//   - MemoryStore: a map, for tests and in-process pipelines
//   - s3.Store: Amazon S3 with range reads and managed uploads
//   - minio.Store: MinIO and other S3-compatible servers
//
// Names are slash separated and relative to the store root. Implementations
// must be safe for concurrent use because shape payloads are opened by all
// loader workers at once.
package blobstore
