package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Shapes(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)
	ctx := context.Background()

	// Two float32 payloads of D = 3 written by value.
	payload := []byte{0, 0, 128, 63, 0, 0, 0, 64, 0, 0, 64, 64}
	w, err := store.Create(ctx, "cohort/shape_0001.f32")
	require.NoError(t, err)
	n, err := w.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), os.ErrClosed)
	require.NoError(t, store.Put(ctx, "cohort/shape_0002.f32", payload[:8]))

	// A run in progress stages next to its destination and must not show up
	// as a shape.
	staged := filepath.Join(root, "cohort", ".out.staging-1", "l1_distance.bin")
	require.NoError(t, os.MkdirAll(filepath.Dir(staged), 0o755))
	require.NoError(t, os.WriteFile(staged, []byte{0}, 0o644))

	names, err := store.List(ctx, "cohort/")
	require.NoError(t, err)
	assert.Equal(t, []string{"cohort/shape_0001.f32", "cohort/shape_0002.f32"}, names)

	b, err := store.Open(ctx, "cohort/shape_0001.f32")
	require.NoError(t, err)
	assert.Equal(t, int64(12), b.Size())

	second := make([]byte, 4)
	n, err = b.ReadAt(ctx, second, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, payload[4:8], second)

	m, ok := b.(Mappable)
	require.True(t, ok)
	mapped, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, payload, mapped)
	require.NoError(t, b.Close())

	require.NoError(t, store.Delete(ctx, "cohort/shape_0001.f32"))
	require.NoError(t, store.Delete(ctx, "cohort/shape_0001.f32"), "deleting twice is not an error")
	_, err = store.Open(ctx, "cohort/shape_0001.f32")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalBlobStore_ReadRange_Boundaries(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	data := []byte("0123456789")
	require.NoError(t, store.Put(ctx, "boundary.bin", data))

	blob, err := store.Open(ctx, "boundary.bin")
	require.NoError(t, err)
	defer blob.Close()

	r, err := blob.ReadRange(ctx, 0, 10)
	require.NoError(t, err)
	content, _ := io.ReadAll(r)
	r.Close()
	require.True(t, bytes.Equal(data, content))

	r, err = blob.ReadRange(ctx, 8, 5)
	require.NoError(t, err)
	content, err = io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "89", string(content))
	r.Close()

	_, err = blob.ReadRange(ctx, 20, 5)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadAll(t *testing.T) {
	ctx := context.Background()
	for name, store := range map[string]BlobStore{
		"local":  NewLocalStore(t.TempDir()),
		"memory": NewMemoryStore(),
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "a.bin", []byte("payload")))
			require.NoError(t, store.Put(ctx, "empty.bin", nil))

			got, err := ReadAll(ctx, store, "a.bin")
			require.NoError(t, err)
			assert.Equal(t, "payload", string(got))

			got, err = ReadAll(ctx, store, "empty.bin")
			require.NoError(t, err)
			assert.Empty(t, got)

			_, err = ReadAll(ctx, store, "missing.bin")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	src := []byte("abc")
	require.NoError(t, store.Put(ctx, "x/1", src))
	src[0] = 'z'

	w, err := store.Create(ctx, "x/2")
	require.NoError(t, err)
	_, _ = w.Write([]byte("def"))
	require.NoError(t, w.Close())

	names, err := store.List(ctx, "x/")
	require.NoError(t, err)
	assert.Equal(t, []string{"x/1", "x/2"}, names)

	got, err := ReadAll(ctx, store, "x/1")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got), "Put copies its input")

	b, err := store.Open(ctx, "x/2")
	require.NoError(t, err)
	buf := make([]byte, 4)
	n, err := b.ReadAt(ctx, buf, 0)
	assert.Equal(t, 3, n)
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, 2, store.Len())
	require.NoError(t, store.Delete(ctx, "x/1"))
	_, err = store.Open(ctx, "x/1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, store.Len())
}
