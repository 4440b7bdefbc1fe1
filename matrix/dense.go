package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Dense is a row-major float64 matrix. Unlike mat.Dense it may have zero rows
// or zero columns, which is how empty latent bases are represented.
type Dense struct {
	rows, cols int
	data       []float64
}

// New allocates a zeroed rows×cols matrix.
func New(rows, cols int) *Dense {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("matrix: negative dimension %dx%d", rows, cols))
	}
	return &Dense{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// NewFromData wraps data (row-major) without copying.
func NewFromData(rows, cols int, data []float64) *Dense {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		panic(fmt.Sprintf("matrix: %d elements do not fit %dx%d", len(data), rows, cols))
	}
	return &Dense{rows: rows, cols: cols, data: data}
}

// NewFromRows copies equally sized rows into a new matrix.
func NewFromRows(rows [][]float64) *Dense {
	if len(rows) == 0 {
		return New(0, 0)
	}
	m := New(len(rows), len(rows[0]))
	for i, r := range rows {
		if len(r) != m.cols {
			panic(fmt.Sprintf("matrix: row %d has %d columns, want %d", i, len(r), m.cols))
		}
		copy(m.Row(i), r)
	}
	return m
}

// Dims returns the shape.
func (m *Dense) Dims() (rows, cols int) { return m.rows, m.cols }

// Rows returns the number of rows.
func (m *Dense) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Dense) Cols() int { return m.cols }

// At returns element (i, j).
func (m *Dense) At(i, j int) float64 { return m.data[i*m.cols+j] }

// Set assigns element (i, j).
func (m *Dense) Set(i, j int, v float64) { m.data[i*m.cols+j] = v }

// Row returns row i as a slice aliasing the matrix storage.
func (m *Dense) Row(i int) []float64 { return m.data[i*m.cols : (i+1)*m.cols] }

// RawData returns the row-major backing slice.
func (m *Dense) RawData() []float64 { return m.data }

// Equal reports exact element-wise equality including shape.
func (m *Dense) Equal(o *Dense) bool {
	if m.rows != o.rows || m.cols != o.cols {
		return false
	}
	for i, v := range m.data {
		if v != o.data[i] {
			return false
		}
	}
	return true
}

// Mat returns a gonum view sharing storage. It returns nil for empty
// matrices because gonum cannot represent them.
func (m *Dense) Mat() *mat.Dense {
	if m.rows == 0 || m.cols == 0 {
		return nil
	}
	return mat.NewDense(m.rows, m.cols, m.data)
}
