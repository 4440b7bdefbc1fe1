// Package minio provides a BlobStore implementation using the MinIO client.
//
// It works against MinIO and other S3-compatible servers such as Ceph or
// Garage without pulling in the AWS SDK configuration chain.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "shapes", "hippocampus/")
//
// The CLI selects this store for minio:// locations and reads the endpoint
// and credentials from SHAPESPACE_MINIO_* environment variables.
package minio
