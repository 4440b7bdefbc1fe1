package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/shapespace/blobstore"
	"github.com/minio/minio-go/v7"
)

const contentType = "application/octet-stream"

// Store reads shape payloads from and exports results to a MinIO bucket.
// All names are resolved below prefix.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewStore returns a Store over bucket. A non-empty prefix such as
// "shapes/" scopes every name.
func NewStore(client *minio.Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *Store) objectName(name string) string {
	return objectName(s.prefix, name)
}

func objectName(prefix, name string) string {
	if prefix == "" {
		return strings.TrimPrefix(path.Clean("/"+name), "/")
	}
	return path.Join(prefix, name)
}

// blobName maps an object key back to a store name. Keys outside prefix and
// directory markers report false.
func blobName(prefix, key string) (string, bool) {
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
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// Open stats the object so Size is known before any payload is fetched.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.objectName(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("minio: %s: %w", name, blobstore.ErrNotFound)
		}
		return nil, err
	}
	return &object{ctx: ctx, client: s.client, bucket: s.bucket, key: key, size: info.Size}, nil
}

// Put uploads data as one object.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectName(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

// Create streams an object of unknown size. The upload completes on Close.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	pr, pw := io.Pipe()
	w := &upload{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, s.objectName(name), pr, -1,
			minio.PutObjectOptions{ContentType: contentType})
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

// Delete removes the object. A missing object is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.objectName(name), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// List returns the sorted store names below prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	listPrefix := s.prefix
	if prefix != "" {
		listPrefix = s.objectName(prefix)
	} else if listPrefix != "" {
		listPrefix += "/"
	}

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: listPrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if name, ok := blobName(s.prefix, obj.Key); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// span clamps a read of length bytes at off to an object of size bytes and
// returns the inclusive end offset.
func span(off, length, size int64) (int64, error) {
	if off < 0 || length < 0 {
		return 0, fmt.Errorf("minio: invalid range off=%d len=%d", off, length)
	}
	if off >= size {
		return 0, io.EOF
	}
	return min(off+length, size) - 1, nil
}

// object is a stat'ed MinIO object. Bytes fetches the whole payload once,
// which is how shape loads consume it.
type object struct {
	ctx    context.Context
	client *minio.Client
	bucket string
	key    string
	size   int64

	once sync.Once
	data []byte
	err  error
}

func (o *object) Size() int64 { return o.size }

func (o *object) get(ctx context.Context, off, end int64) (*minio.Object, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, end); err != nil {
		return nil, err
	}
	return o.client.GetObject(ctx, o.bucket, o.key, opts)
}

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	end, err := span(off, int64(len(p)), o.size)
	if err != nil {
		return 0, err
	}
	r, err := o.get(ctx, off, end)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	n, err := io.ReadFull(r, p[:end-off+1])
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	end, err := span(off, length, o.size)
	if err != nil {
		return nil, err
	}
	return o.get(ctx, off, end)
}

// Bytes implements blobstore.Mappable.
func (o *object) Bytes() ([]byte, error) {
	o.once.Do(func() {
		if o.size == 0 {
			o.data = []byte{}
			return
		}
		r, err := o.client.GetObject(o.ctx, o.bucket, o.key, minio.GetObjectOptions{})
		if err != nil {
			o.err = err
			return
		}
		defer r.Close()
		buf := make([]byte, o.size)
		if _, err := io.ReadFull(r, buf); err != nil {
			o.err = fmt.Errorf("minio: read %s: %w", o.key, err)
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

type upload struct {
	pw     *io.PipeWriter
	done   chan error
	mu     sync.Mutex
	closed bool
}

func (u *upload) Write(p []byte) (int, error) { return u.pw.Write(p) }

func (u *upload) Sync() error { return nil }

func (u *upload) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return errors.New("minio: upload already closed")
	}
	u.closed = true
	if err := u.pw.Close(); err != nil {
		return err
	}
	return <-u.done
}
