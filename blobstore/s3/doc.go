// Package s3 stores shape payloads and exported results in Amazon S3.
//
// # Usage
//
//	cfg, _ := config.LoadDefaultConfig(ctx, config.WithRegion("eu-central-1"))
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "shapes/")
//
// Whole payloads are fetched with one GET, partial reads use ranged GETs.
// Writes go through the SDK upload manager, multipart above
// UploadConfig.PartSize, with CRC32C checksums unless disabled.
package s3
