package partition

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hupe1980/shapespace/codec"
)

// DecodeJSON reads the JSON hierarchy form.
func DecodeJSON(r io.Reader) (*Hierarchy, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var h Hierarchy
	if err := codec.Default.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &h, nil
}

// EncodeJSON writes h in the JSON hierarchy form.
func EncodeJSON(w io.Writer, h *Hierarchy) error {
	data, err := codec.Document(codec.Default, h)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// DecodeCSV reads one membership row per level. Rows are numbered from
// first.
func DecodeCSV(r io.Reader, first int) (*Hierarchy, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	memberships := make([][]int, 0, len(records))
	for i, rec := range records {
		row := make([]int, len(rec))
		for j, field := range rec {
			v, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return nil, fmt.Errorf("%w: csv row %d column %d: %v", ErrInvalid, i+1, j+1, err)
			}
			row[j] = v
		}
		memberships = append(memberships, row)
	}
	return FromMemberships(first, memberships...), nil
}

// EncodeCSV writes the membership of every level as one row, the layout of
// ms_partitions.csv.
func EncodeCSV(w io.Writer, h *Hierarchy) error {
	cw := csv.NewWriter(w)
	for _, l := range h.Levels {
		rec := make([]string, len(l.Membership))
		for i, c := range l.Membership {
			rec[i] = strconv.Itoa(c)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadFile reads a hierarchy from path. Files ending in .csv use the CSV
// form with levels numbered from first; everything else is JSON.
func ReadFile(path string, first int) (*Hierarchy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var h *Hierarchy
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		h, err = DecodeCSV(bytes.NewReader(data), first)
	} else {
		h, err = DecodeJSON(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}
