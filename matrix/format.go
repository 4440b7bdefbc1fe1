package matrix

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/hupe1980/shapespace/internal/fs"
)

// DimsSuffix is appended to a .bin path to name its shape sidecar.
const DimsSuffix = ".dims"

// ErrInvalidDims is returned for a malformed shape sidecar or a payload whose
// size disagrees with it.
var ErrInvalidDims = errors.New("matrix: invalid dims")

// DType is the on-disk element type.
type DType int

const (
	Float32 DType = iota
	Float64
)

// String returns the sidecar spelling of the dtype.
func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("DType(%d)", int(d))
	}
}

// Size returns the element width in bytes.
func (d DType) Size() int {
	if d == Float64 {
		return 8
	}
	return 4
}

// ParseDType accepts float32/float64 and the single/double aliases.
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float32", "single", "f32":
		return Float32, nil
	case "float64", "double", "f64":
		return Float64, nil
	default:
		return 0, fmt.Errorf("%w: unknown dtype %q", ErrInvalidDims, s)
	}
}

// Order is the element order of the binary payload.
type Order int

const (
	RowMajor Order = iota
	ColMajor
)

func (o Order) String() string {
	if o == ColMajor {
		return "col-major"
	}
	return "row-major"
}

// Dims is the content of a shape sidecar.
type Dims struct {
	Rows  int
	Cols  int
	DType DType
}

// String formats the sidecar line "<rows> <cols> <dtype>".
func (d Dims) String() string {
	return fmt.Sprintf("%d %d %s", d.Rows, d.Cols, d.DType)
}

// ParseDims parses a sidecar line.
func ParseDims(s string) (Dims, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return Dims{}, fmt.Errorf("%w: want \"rows cols dtype\", got %q", ErrInvalidDims, s)
	}
	rows, err := strconv.Atoi(fields[0])
	if err != nil || rows < 0 {
		return Dims{}, fmt.Errorf("%w: bad rows %q", ErrInvalidDims, fields[0])
	}
	cols, err := strconv.Atoi(fields[1])
	if err != nil || cols < 0 {
		return Dims{}, fmt.Errorf("%w: bad cols %q", ErrInvalidDims, fields[1])
	}
	dt, err := ParseDType(fields[2])
	if err != nil {
		return Dims{}, err
	}
	return Dims{Rows: rows, Cols: cols, DType: dt}, nil
}

// Encode writes the elements of m to w as little-endian dtype values.
func Encode(w io.Writer, m *Dense, dtype DType, order Order) error {
	bw := bufio.NewWriterSize(w, 64*1024)
	var buf [8]byte
	put := func(v float64) error {
		if dtype == Float64 {
			binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(v))
			_, err := bw.Write(buf[:8])
			return err
		}
		binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(float32(v)))
		_, err := bw.Write(buf[:4])
		return err
	}

	if order == RowMajor {
		for _, v := range m.data {
			if err := put(v); err != nil {
				return err
			}
		}
	} else {
		for j := 0; j < m.cols; j++ {
			for i := 0; i < m.rows; i++ {
				if err := put(m.data[i*m.cols+j]); err != nil {
					return err
				}
			}
		}
	}
	return bw.Flush()
}

// Decode reads a dims-shaped payload from r.
func Decode(r io.Reader, d Dims, order Order) (*Dense, error) {
	m := New(d.Rows, d.Cols)
	n := d.Rows * d.Cols
	size := d.DType.Size()
	br := bufio.NewReaderSize(r, 64*1024)
	buf := make([]byte, size)

	for k := 0; k < n; k++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: payload holds %d of %d elements", ErrInvalidDims, k, n)
			}
			return nil, err
		}
		var v float64
		if d.DType == Float64 {
			v = math.Float64frombits(binary.LittleEndian.Uint64(buf))
		} else {
			v = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
		}
		if order == RowMajor {
			m.data[k] = v
		} else {
			i, j := k%d.Rows, k/d.Rows
			m.data[i*d.Cols+j] = v
		}
	}

	if _, err := br.ReadByte(); err == nil {
		return nil, fmt.Errorf("%w: payload longer than %d elements", ErrInvalidDims, n)
	}
	return m, nil
}

// WriteFile writes m to path and its shape to path+".dims". Both files are
// replaced atomically.
func WriteFile(fsys fs.FileSystem, path string, m *Dense, dtype DType, order Order) error {
	if err := fs.WriteFile(fsys, path, func(w io.Writer) error {
		return Encode(w, m, dtype, order)
	}); err != nil {
		return fmt.Errorf("matrix: write %s: %w", path, err)
	}
	dims := Dims{Rows: m.rows, Cols: m.cols, DType: dtype}
	if err := fs.WriteFile(fsys, path+DimsSuffix, func(w io.Writer) error {
		_, err := io.WriteString(w, dims.String())
		return err
	}); err != nil {
		return fmt.Errorf("matrix: write %s: %w", path+DimsSuffix, err)
	}
	return nil
}

// ReadFile reads path using the sidecar path+".dims".
func ReadFile(path string, order Order) (*Dense, DType, error) {
	return Read(path, path+DimsSuffix, order)
}

// Read reads a binary matrix with an explicit sidecar path.
func Read(binPath, dimsPath string, order Order) (*Dense, DType, error) {
	raw, err := os.ReadFile(dimsPath)
	if err != nil {
		return nil, 0, err
	}
	d, err := ParseDims(string(raw))
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", dimsPath, err)
	}

	f, err := os.Open(binPath)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	if want := int64(d.Rows) * int64(d.Cols) * int64(d.DType.Size()); info.Size() != want {
		return nil, 0, fmt.Errorf("%w: %s has %d bytes, sidecar implies %d", ErrInvalidDims, binPath, info.Size(), want)
	}

	m, err := Decode(f, d, order)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", binPath, err)
	}
	return m, d.DType, nil
}
