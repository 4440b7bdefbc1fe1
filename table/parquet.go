package table

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hupe1980/shapespace/internal/conv"
	"github.com/hupe1980/shapespace/internal/fs"
	"github.com/hupe1980/shapespace/loader"
	"github.com/hupe1980/shapespace/sample"
	"github.com/parquet-go/parquet-go"
)

// ParquetStore serves shapes from a Parquet file. Rows are located by id
// once at open time and read on demand.
type ParquetStore struct {
	path    string
	offset  int
	f       *os.File
	rows    map[int]int64
	samples []sample.Sample

	mu     sync.Mutex
	reader *parquet.GenericReader[Shape]
}

// OpenParquet opens path and indexes its ids.
func OpenParquet(path string, optFns ...Option) (*ParquetStore, error) {
	opts := applyOptions(optFns)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("table: open %s: %w", path, err)
	}

	s := &ParquetStore{
		path:   path,
		offset: opts.offset,
		f:      f,
		rows:   make(map[int]int64),
		reader: parquet.NewGenericReader[Shape](pf),
	}
	if err := s.index(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *ParquetStore) index() error {
	buf := make([]Shape, 256)
	var row int64
	for {
		n, err := s.reader.Read(buf)
		for _, r := range buf[:n] {
			id, err := conv.Int64ToInt(r.ID)
			if err != nil {
				return fmt.Errorf("table: %s row %d: %w", s.path, row, err)
			}
			if _, dup := s.rows[id]; dup {
				return &sample.DuplicateIDError{ID: id, First: location(s.path, id), Second: location(s.path, id)}
			}
			s.rows[id] = row
			s.samples = append(s.samples, sample.Sample{ID: id, Location: location(s.path, id)})
			row++
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("table: index %s: %w", s.path, err)
		}
	}
}

// Index implements sample.Indexer.
func (s *ParquetStore) Index(context.Context) (*sample.Collection, error) {
	return sample.NewCollection(s.samples, s.offset)
}

// Load implements loader.Loader.
func (s *ParquetStore) Load(ctx context.Context, smp sample.Sample) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row, ok := s.rows[smp.ID]
	if !ok {
		return nil, &loader.LoadError{ID: smp.ID, Location: smp.Location, Err: os.ErrNotExist}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reader.SeekToRow(row); err != nil {
		return nil, &loader.LoadError{ID: smp.ID, Location: smp.Location, Err: err}
	}
	buf := make([]Shape, 1)
	n, err := s.reader.Read(buf)
	if n != 1 {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &loader.LoadError{ID: smp.ID, Location: smp.Location, Err: err}
	}
	if len(buf[0].Payload) == 0 {
		return nil, &loader.LoadError{ID: smp.ID, Location: smp.Location, Err: loader.ErrEmptyPayload}
	}
	return widen(buf[0].Payload), nil
}

// Len returns the number of rows.
func (s *ParquetStore) Len() int { return len(s.samples) }

// Close releases the file.
func (s *ParquetStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	_ = s.reader.Close()
	err := s.f.Close()
	s.f = nil
	return err
}

// WriteParquet writes rows as a zstd-compressed Parquet file through an
// atomic rename.
func WriteParquet(fsys fs.FileSystem, path string, rows []Shape) error {
	return fs.WriteFile(fsys, path, func(w io.Writer) error {
		pw := parquet.NewGenericWriter[Shape](w, parquet.Compression(&parquet.Zstd))
		if _, err := pw.Write(rows); err != nil {
			_ = pw.Close()
			return err
		}
		return pw.Close()
	})
}
