package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/shapespace/blobstore"
	miniostore "github.com/hupe1980/shapespace/blobstore/minio"
	s3store "github.com/hupe1980/shapespace/blobstore/s3"
	"github.com/hupe1980/shapespace/loader"
	"github.com/hupe1980/shapespace/resource"
	"github.com/hupe1980/shapespace/sample"
	"github.com/hupe1980/shapespace/table"
)

// source is a resolved shape collection.
type source struct {
	indexer sample.Indexer
	loader  loader.Loader
	closer  io.Closer
}

func (s *source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// openSource resolves cfg.Source. Tables serve both ids and payloads;
// every other source is a blob store listed by a path indexer.
func openSource(ctx context.Context, cfg Config, env Env, rc *resource.Controller) (*source, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("no source configured")
	}
	tableOpts := []table.Option{table.WithOffset(cfg.Offset), table.WithTable(cfg.Table)}

	switch {
	case strings.HasPrefix(cfg.Source, "sqlite://"):
		st, err := table.OpenSQLite(strings.TrimPrefix(cfg.Source, "sqlite://"), tableOpts...)
		if err != nil {
			return nil, err
		}
		return &source{indexer: st, loader: st, closer: st}, nil
	case strings.HasSuffix(strings.ToLower(cfg.Source), ".parquet"):
		st, err := table.OpenParquet(cfg.Source, tableOpts...)
		if err != nil {
			return nil, err
		}
		return &source{indexer: st, loader: st, closer: st}, nil
	}

	store, err := openStore(ctx, cfg.Source, env)
	if err != nil {
		return nil, err
	}
	indexer, err := sample.NewPathIndexer(store, "",
		sample.WithPattern(cfg.Pattern),
		sample.WithOffset(cfg.Offset),
	)
	if err != nil {
		return nil, err
	}
	lopts, err := cfg.loaderOptions(rc)
	if err != nil {
		return nil, err
	}
	return &source{indexer: indexer, loader: loader.NewBlobLoader(store, lopts...)}, nil
}

// openStore returns the blob store rooted at uri: s3://bucket/prefix,
// minio://bucket/prefix, or a local directory.
func openStore(ctx context.Context, uri string, env Env) (blobstore.BlobStore, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain paths, including Windows drive letters.
		return blobstore.NewLocalStore(uri), nil
	}
	bucket := u.Host
	prefix := strings.TrimPrefix(u.Path, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	switch u.Scheme {
	case "file":
		return blobstore.NewLocalStore(u.Path), nil
	case "s3":
		client, err := newS3Client(ctx, env)
		if err != nil {
			return nil, err
		}
		return s3store.NewStore(client, bucket, prefix), nil
	case "minio":
		client, err := minio.New(env.MinioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(env.MinioAccessKey, env.MinioSecretKey, ""),
			Secure: env.MinioSecure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return miniostore.NewStore(client, bucket, prefix), nil
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", u.Scheme)
	}
}

func newS3Client(ctx context.Context, env Env) (*awss3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if env.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(env.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if env.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(env.S3Endpoint)
		}
		o.UsePathStyle = env.S3PathStyle
	}), nil
}
