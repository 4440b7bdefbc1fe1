package matrix

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample3x2() *Dense {
	return NewFromRows([][]float64{
		{1, -2.5},
		{0.125, 3},
		{math.MaxFloat32, -0},
	})
}

func TestDims(t *testing.T) {
	d, err := ParseDims("4 4 float32\n")
	require.NoError(t, err)
	assert.Equal(t, Dims{Rows: 4, Cols: 4, DType: Float32}, d)
	assert.Equal(t, "4 4 float32", d.String())

	d, err = ParseDims("3 0 double")
	require.NoError(t, err)
	assert.Equal(t, Dims{Rows: 3, Cols: 0, DType: Float64}, d)

	for _, bad := range []string{"", "4 4", "a 4 float32", "4 -1 float32", "4 4 int8", "1 2 float32 x"} {
		_, err := ParseDims(bad)
		assert.ErrorIs(t, err, ErrInvalidDims, bad)
	}
}

func TestRoundTrip_BitExact(t *testing.T) {
	dir := t.TempDir()

	for _, dtype := range []DType{Float32, Float64} {
		for _, order := range []Order{RowMajor, ColMajor} {
			t.Run(dtype.String()+"/"+order.String(), func(t *testing.T) {
				path := filepath.Join(dir, dtype.String()+"-"+order.String()+".bin")
				m := sample3x2()
				require.NoError(t, WriteFile(nil, path, m, dtype, order))

				raw, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Len(t, raw, 6*dtype.Size())

				dims, err := os.ReadFile(path + DimsSuffix)
				require.NoError(t, err)
				assert.Equal(t, "3 2 "+dtype.String(), string(dims))

				got, gotType, err := ReadFile(path, order)
				require.NoError(t, err)
				assert.Equal(t, dtype, gotType)
				assert.True(t, m.Equal(got))

				// Re-encoding yields the same bytes.
				var buf bytes.Buffer
				require.NoError(t, Encode(&buf, got, gotType, order))
				assert.Equal(t, raw, buf.Bytes())
			})
		}
	}
}

func TestEncode_ElementOrder(t *testing.T) {
	m := NewFromRows([][]float64{{1, 2}, {3, 4}})

	var row, col bytes.Buffer
	require.NoError(t, Encode(&row, m, Float64, RowMajor))
	require.NoError(t, Encode(&col, m, Float64, ColMajor))

	decodeAll := func(b []byte) []float64 {
		out, err := Decode(bytes.NewReader(b), Dims{Rows: 1, Cols: 4, DType: Float64}, RowMajor)
		require.NoError(t, err)
		return out.RawData()
	}
	assert.Equal(t, []float64{1, 2, 3, 4}, decodeAll(row.Bytes()))
	assert.Equal(t, []float64{1, 3, 2, 4}, decodeAll(col.Bytes()))
}

func TestRoundTrip_Empty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "W.bin")

	require.NoError(t, WriteFile(nil, path, New(0, 5), Float32, RowMajor))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	got, _, err := ReadFile(path, RowMajor)
	require.NoError(t, err)
	r, c := got.Dims()
	assert.Equal(t, 0, r)
	assert.Equal(t, 5, c)
}

func TestRead_SizeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.bin")
	require.NoError(t, WriteFile(nil, path, sample3x2(), Float32, RowMajor))
	require.NoError(t, os.WriteFile(path+DimsSuffix, []byte("3 3 float32"), 0o644))

	_, _, err := ReadFile(path, RowMajor)
	assert.ErrorIs(t, err, ErrInvalidDims)
}

func TestDecode_Truncated(t *testing.T) {
	_, err := Decode(bytes.NewReader(make([]byte, 7)), Dims{Rows: 2, Cols: 1, DType: Float32}, RowMajor)
	assert.ErrorIs(t, err, ErrInvalidDims)

	_, err = Decode(bytes.NewReader(make([]byte, 12)), Dims{Rows: 2, Cols: 1, DType: Float32}, RowMajor)
	assert.ErrorIs(t, err, ErrInvalidDims)
}

func TestCSV(t *testing.T) {
	m := NewFromRows([][]float64{{0, 0.1}, {1e-20, 3}})

	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, m))
	assert.Equal(t, "0,0.1\n1e-20,3\n", buf.String())

	got, err := DecodeCSV(&buf)
	require.NoError(t, err)
	assert.True(t, m.Equal(got))

	withHeader, err := DecodeCSV(strings.NewReader("a, b\n1, 2\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, withHeader.RawData())

	_, err = DecodeCSV(strings.NewReader("1,2\nx,4\n"))
	assert.Error(t, err)
}

func TestDense(t *testing.T) {
	m := sample3x2()
	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 2, m.Cols())
	assert.Equal(t, 3.0, m.At(1, 1))

	assert.Nil(t, New(0, 3).Mat())
	g := m.Mat()
	require.NotNil(t, g)
	g.Set(0, 0, 42)
	assert.Equal(t, 42.0, m.At(0, 0), "Mat shares storage")

	assert.Panics(t, func() { NewFromData(2, 2, []float64{1}) })
}
