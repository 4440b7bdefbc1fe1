package matrix

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hupe1980/shapespace/internal/fs"
)

// EncodeCSV writes one comma-separated line per row using the shortest
// representation that parses back to the same float64.
func EncodeCSV(w io.Writer, m *Dense) error {
	cw := csv.NewWriter(w)
	record := make([]string, m.cols)
	for i := 0; i < m.rows; i++ {
		for j, v := range m.Row(i) {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV writes a debug text copy of m.
func WriteCSV(fsys fs.FileSystem, path string, m *Dense) error {
	if err := fs.WriteFile(fsys, path, func(w io.Writer) error {
		return EncodeCSV(w, m)
	}); err != nil {
		return fmt.Errorf("matrix: write %s: %w", path, err)
	}
	return nil
}

// DecodeCSV parses a numeric CSV. Whitespace around values is ignored and a
// non-numeric first line is treated as a header.
func DecodeCSV(r io.Reader) (*Dense, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = 0

	var rows [][]float64
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		row := make([]float64, len(record))
		var parseErr error
		for j, field := range record {
			row[j], parseErr = strconv.ParseFloat(strings.TrimSpace(field), 64)
			if parseErr != nil {
				break
			}
		}
		if parseErr != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("matrix: csv line %d: %w", line, parseErr)
		}
		rows = append(rows, row)
	}
	return NewFromRows(rows), nil
}

// ReadCSV reads a numeric CSV file.
func ReadCSV(path string) (*Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := DecodeCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
