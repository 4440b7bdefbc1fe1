package blobstore

import (
	"bytes"
	"context"
	"io"
)

// bytesBlob serves a blob whose contents are already in memory, either a
// stored slice or a file mapping. release runs on Close.
type bytesBlob struct {
	data    func() []byte
	release func() error
}

func sliceBlob(data []byte) *bytesBlob {
	return &bytesBlob{data: func() []byte { return data }}
}

func (b *bytesBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	data := b.data()
	if off < 0 || off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *bytesBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	data := b.data()
	if off < 0 || off >= int64(len(data)) {
		return nil, io.EOF
	}
	end := min(off+length, int64(len(data)))
	return io.NopCloser(bytes.NewReader(data[off:end])), nil
}

func (b *bytesBlob) Size() int64 { return int64(len(b.data())) }

// Bytes implements Mappable.
func (b *bytesBlob) Bytes() ([]byte, error) { return b.data(), nil }

func (b *bytesBlob) Close() error {
	if b.release == nil {
		return nil
	}
	return b.release()
}
