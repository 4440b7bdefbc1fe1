package latent

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/hupe1980/shapespace/internal/fs"
	"github.com/hupe1980/shapespace/matrix"
)

// WriteOptions controls model serialization.
type WriteOptions struct {
	DType matrix.DType
	// DebugText also writes a .csv copy of every matrix.
	DebugText bool
}

// ModelDir returns the slash-separated directory of a model relative to the
// output root.
func ModelDir(level, crystal int) string {
	return path.Join(fmt.Sprintf("persistence-%d", level), fmt.Sprintf("crystal-%d", crystal))
}

// WriteSet writes every model of set below dir and returns the written
// paths relative to dir.
func WriteSet(fsys fs.FileSystem, dir string, set *Set, opts WriteOptions) ([]string, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	var written []string
	for _, level := range set.Levels() {
		for _, m := range set.Models(level) {
			rel := ModelDir(m.Level, m.Crystal)
			if err := fsys.MkdirAll(filepath.Join(dir, filepath.FromSlash(rel)), 0o755); err != nil {
				return nil, err
			}
			files, err := writeModel(fsys, dir, rel, m, opts)
			if err != nil {
				return nil, err
			}
			written = append(written, files...)
		}
	}
	return written, nil
}

func writeModel(fsys fs.FileSystem, dir, rel string, m *Model, opts WriteOptions) ([]string, error) {
	parts := []struct {
		name string
		m    *matrix.Dense
	}{
		{"W", m.W},
		{"w0", matrix.NewFromData(len(m.W0), 1, m.W0)},
		{"z", m.Z},
	}
	var written []string
	for _, p := range parts {
		bin := path.Join(rel, p.name+".bin")
		if err := matrix.WriteFile(fsys, filepath.Join(dir, filepath.FromSlash(bin)), p.m, opts.DType, matrix.RowMajor); err != nil {
			return nil, err
		}
		written = append(written, bin, bin+matrix.DimsSuffix)
		if opts.DebugText {
			csv := path.Join(rel, p.name+".csv")
			if err := matrix.WriteCSV(fsys, filepath.Join(dir, filepath.FromSlash(csv)), p.m); err != nil {
				return nil, err
			}
			written = append(written, csv)
		}
	}
	return written, nil
}

// ReadModel reads W, w0 and z from a model directory. Level, crystal and
// members are not stored and stay zero.
func ReadModel(dir string) (*Model, error) {
	w, _, err := matrix.ReadFile(filepath.Join(dir, "W.bin"), matrix.RowMajor)
	if err != nil {
		return nil, err
	}
	w0, _, err := matrix.ReadFile(filepath.Join(dir, "w0.bin"), matrix.RowMajor)
	if err != nil {
		return nil, err
	}
	z, _, err := matrix.ReadFile(filepath.Join(dir, "z.bin"), matrix.RowMajor)
	if err != nil {
		return nil, err
	}
	if w0.Cols() != 1 || w.Cols() != w0.Rows() || z.Cols() != w.Rows() {
		return nil, fmt.Errorf("latent: %s: inconsistent shapes W %dx%d, w0 %dx%d, z %dx%d",
			dir, w.Rows(), w.Cols(), w0.Rows(), w0.Cols(), z.Rows(), z.Cols())
	}
	return &Model{W: w, W0: w0.RawData(), Z: z}, nil
}
