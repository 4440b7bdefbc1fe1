package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/shapespace/blobstore"
)

func objectKey(prefix, name string) string {
	if prefix == "" {
		return strings.TrimPrefix(path.Clean("/"+name), "/")
	}
	return path.Join(prefix, name)
}

// relName maps an object key back to a store name. Keys outside prefix and
// folder placeholders report false.
func relName(prefix, key string) (string, bool) {
	if prefix != "" {
		rest, ok := strings.CutPrefix(key, prefix+"/")
		if !ok {
			return "", false
		}
		key = rest
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return "", false
	}
	return key, true
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

// byteRange clamps a read of length bytes at off to an object of size bytes
// and renders the HTTP Range header.
func byteRange(off, length, size int64) (string, int64, error) {
	if off < 0 || length < 0 {
		return "", 0, fmt.Errorf("s3: invalid range off=%d len=%d", off, length)
	}
	if off >= size {
		return "", 0, io.EOF
	}
	end := min(off+length, size) - 1
	return fmt.Sprintf("bytes=%d-%d", off, end), end, nil
}

// object is a HEAD'ed S3 object.
type object struct {
	ctx    context.Context
	client Client
	bucket string
	key    string
	size   int64

	once sync.Once
	data []byte
	err  error
}

func headObject(ctx context.Context, client Client, bucket, key string) (*object, error) {
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3: %s: %w", key, blobstore.ErrNotFound)
		}
		return nil, err
	}
	return &object{
		ctx:    ctx,
		client: client,
		bucket: bucket,
		key:    key,
		size:   aws.ToInt64(head.ContentLength),
	}, nil
}

func (o *object) Size() int64 { return o.size }

func (o *object) get(ctx context.Context, rng string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in := &s3.GetObjectInput{Bucket: aws.String(o.bucket), Key: aws.String(o.key)}
	if rng != "" {
		in.Range = aws.String(rng)
	}
	resp, err := o.client.GetObject(ctx, in)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	rng, end, err := byteRange(off, int64(len(p)), o.size)
	if err != nil {
		return 0, err
	}
	body, err := o.get(ctx, rng)
	if err != nil {
		return 0, err
	}
	defer func() { _ = body.Close() }()

	want := int(end - off + 1)
	n, err := io.ReadFull(body, p[:want])
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	rng, _, err := byteRange(off, length, o.size)
	if err != nil {
		return nil, err
	}
	return o.get(ctx, rng)
}

// Bytes implements blobstore.Mappable with a single unranged GET, which is
// how whole shape payloads are fetched.
func (o *object) Bytes() ([]byte, error) {
	o.once.Do(func() {
		if o.size == 0 {
			o.data = []byte{}
			return
		}
		body, err := o.get(o.ctx, "")
		if err != nil {
			o.err = err
			return
		}
		defer func() { _ = body.Close() }()
		buf := make([]byte, o.size)
		if _, err := io.ReadFull(body, buf); err != nil {
			o.err = fmt.Errorf("s3: read %s: %w", o.key, err)
			return
		}
		o.data = buf
	})
	return o.data, o.err
}

func (o *object) Close() error {
	o.data = nil
	return nil
}
