package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/shapespace/internal/hash"
)

// maxParts is the S3 limit on parts per multipart upload.
const maxParts = 10000

// UploadConfig tunes how outputs are written.
type UploadConfig struct {
	// PartSize is the multipart part size and the largest object sent in a
	// single PutObject. Larger objects raise it so they fit in maxParts.
	PartSize int64
	// Concurrency is the number of parts in flight per upload.
	Concurrency int
	// Checksum attaches CRC32C checksums that S3 verifies on receipt.
	Checksum bool
	// LeavePartsOnError keeps the parts of a failed multipart upload.
	LeavePartsOnError bool
}

// DefaultUploadConfig returns 8 MiB parts, 5 in flight, with checksums.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:    8 << 20,
		Concurrency: 5,
		Checksum:    true,
	}
}

// partSize returns the part size for an object of size bytes. A 50k-sample
// float32 distance matrix is 10 GB, which needs parts above the default.
func (c UploadConfig) partSize(size int64) int64 {
	ps := max(c.PartSize, manager.MinUploadPartSize)
	if size > 0 {
		if need := (size + maxParts - 1) / maxParts; need > ps {
			ps = need
		}
	}
	return ps
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = cfg.partSize(0)
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
		u.LeavePartsOnError = cfg.LeavePartsOnError
	})
}

// crc32cHeader encodes a checksum the way S3 expects: base64 of the
// big-endian sum.
func crc32cHeader(data []byte) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], hash.CRC32C(data))
	return base64.StdEncoding.EncodeToString(b[:])
}

// put sends data in one request when it fits a single part, otherwise as a
// multipart upload sized to stay within maxParts.
func (s *Store) put(ctx context.Context, key string, data []byte) error {
	size := int64(len(data))
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if size <= s.cfg.partSize(0) {
		in.ContentLength = aws.Int64(size)
		if s.cfg.Checksum {
			in.ChecksumCRC32C = aws.String(crc32cHeader(data))
		}
		_, err := s.client.PutObject(ctx, in)
		return err
	}
	if s.cfg.Checksum {
		in.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}
	_, err := s.uploader.Upload(ctx, in, func(u *manager.Uploader) {
		u.PartSize = s.cfg.partSize(size)
	})
	return err
}

// streamWriter pipes writes into a background managed upload.
type streamWriter struct {
	pw   *io.PipeWriter
	done chan error

	mu     sync.Mutex
	closed bool
	err    error
}

func (s *Store) stream(ctx context.Context, key string) *streamWriter {
	pr, pw := io.Pipe()
	w := &streamWriter{pw: pw, done: make(chan error, 1)}

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   pr,
	}
	if s.cfg.Checksum {
		in.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}
	go func() {
		_, err := s.uploader.Upload(ctx, in)
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return 0, io.ErrClosedPipe
	}
	return w.pw.Write(p)
}

// Sync is a no-op; the object appears on Close.
func (w *streamWriter) Sync() error { return nil }

// Close completes the upload. Later calls return the first result.
func (w *streamWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return w.err
	}
	w.closed = true
	if err := w.pw.Close(); err != nil {
		w.err = err
		return err
	}
	w.err = <-w.done
	return w.err
}
