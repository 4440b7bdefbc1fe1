package loader

import (
	"encoding/binary"
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/x448/float16"
)

// Format is the element encoding of a decompressed payload.
type Format int

const (
	// FormatAuto picks by the extension under any compression suffix:
	// .csv/.txt text, .f64 float64, .f16 float16, .u8 uint8, otherwise float32.
	FormatAuto Format = iota
	FormatFloat32
	FormatFloat64
	FormatFloat16
	FormatUint8
	// FormatText is numbers separated by commas, semicolons or whitespace,
	// e.g. a flattened vertex list.
	FormatText
)

func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatFloat32:
		return "f32"
	case FormatFloat64:
		return "f64"
	case FormatFloat16:
		return "f16"
	case FormatUint8:
		return "u8"
	case FormatText:
		return "text"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "f32", "float32":
		return FormatFloat32, nil
	case "f64", "float64":
		return FormatFloat64, nil
	case "f16", "float16":
		return FormatFloat16, nil
	case "u8", "uint8", "binary":
		return FormatUint8, nil
	case "text", "csv":
		return FormatText, nil
	default:
		return 0, fmt.Errorf("loader: unknown format %q", s)
	}
}

// ElemSize returns the bytes per element, or 0 for text.
func (f Format) ElemSize() int {
	switch f {
	case FormatFloat64:
		return 8
	case FormatFloat32, FormatAuto:
		return 4
	case FormatFloat16:
		return 2
	case FormatUint8:
		return 1
	default:
		return 0
	}
}

// Detect resolves FormatAuto from the location's extension.
func (f Format) Detect(location string) Format {
	if f != FormatAuto {
		return f
	}
	name := location
	if CompressionAuto.Detect(name) != CompressionNone {
		name = strings.TrimSuffix(name, path.Ext(name))
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".csv", ".txt":
		return FormatText
	case ".f64":
		return FormatFloat64
	case ".f16":
		return FormatFloat16
	case ".u8":
		return FormatUint8
	default:
		return FormatFloat32
	}
}

// Decode converts a decompressed payload to float64 values.
// f must not be FormatAuto.
func Decode(f Format, data []byte) ([]float64, error) {
	if f == FormatText {
		return decodeText(data)
	}
	size := f.ElemSize()
	if len(data)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes of %s", ErrTruncated, len(data), f)
	}
	out := make([]float64, len(data)/size)
	switch f {
	case FormatFloat32, FormatAuto:
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
	case FormatFloat64:
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
	case FormatFloat16:
		for i := range out {
			out[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(data[i*2:])).Float32())
		}
	case FormatUint8:
		for i, b := range data {
			out[i] = float64(b)
		}
	default:
		return nil, fmt.Errorf("loader: unsupported format %s", f)
	}
	return out, nil
}

// Encode is the inverse of Decode for the binary formats and writes one
// value per line for text.
func Encode(f Format, values []float64) ([]byte, error) {
	switch f {
	case FormatFloat32, FormatAuto:
		out := make([]byte, 4*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(v)))
		}
		return out, nil
	case FormatFloat64:
		out := make([]byte, 8*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
		}
		return out, nil
	case FormatFloat16:
		out := make([]byte, 2*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint16(out[i*2:], float16.Fromfloat32(float32(v)).Bits())
		}
		return out, nil
	case FormatUint8:
		out := make([]byte, len(values))
		for i, v := range values {
			out[i] = uint8(math.Max(0, math.Min(255, math.Round(v))))
		}
		return out, nil
	case FormatText:
		var sb strings.Builder
		for _, v := range values {
			sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			sb.WriteByte('\n')
		}
		return []byte(sb.String()), nil
	default:
		return nil, fmt.Errorf("loader: unsupported format %s", f)
	}
}

func decodeText(data []byte) ([]float64, error) {
	fields := strings.FieldsFunc(string(data), func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]float64, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("loader: text payload: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}
