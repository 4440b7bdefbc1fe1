package partition

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "minPersistence": 3,
  "neighborhoodSize": 15,
  "crystalPartitions": [
    {"persistenceLevel": 3, "crystalMembership": [2, 0, 2, 0, 5]},
    {"persistenceLevel": 4, "crystalMembership": [0, 0, 0, 0, 0]}
  ]
}`

func TestDecodeJSON(t *testing.T) {
	h, err := DecodeJSON(strings.NewReader(sampleJSON))
	require.NoError(t, err)
	require.NoError(t, h.Validate(5))

	assert.Equal(t, []int{3, 4}, h.Persistences())
	assert.Equal(t, 3, h.MinPersistence)

	l := h.Levels[0]
	assert.Equal(t, []int{0, 2, 5}, l.Crystals())

	groups := l.Groups()
	require.Len(t, groups, 3)
	assert.Equal(t, 0, groups[0].Crystal)
	assert.Equal(t, []int{1, 3}, groups[0].RowSlice())
	assert.Equal(t, []int{0, 2}, groups[1].RowSlice())
	assert.Equal(t, 1, groups[2].Len())
}

func TestDecodeJSON_Malformed(t *testing.T) {
	_, err := DecodeJSON(strings.NewReader(`{"crystalPartitions": [`))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		h    *Hierarchy
	}{
		{"empty", &Hierarchy{}},
		{"short", FromMemberships(0, []int{0, 1})},
		{"negative", FromMemberships(0, []int{0, -1, 0})},
		{"duplicate", &Hierarchy{Levels: []Level{
			{Persistence: 1, Membership: []int{0, 0, 0}},
			{Persistence: 1, Membership: []int{0, 0, 0}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.h.Validate(3), ErrInvalid)
		})
	}

	var le *LevelError
	err := FromMemberships(7, []int{0}).Validate(2)
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 7, le.Persistence)
}

func TestCSV(t *testing.T) {
	h := FromMemberships(2, []int{0, 1, 1}, []int{0, 0, 0})

	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, h))
	assert.Equal(t, "0,1,1\n0,0,0\n", buf.String())

	got, err := DecodeCSV(&buf, 2)
	require.NoError(t, err)
	assert.Equal(t, h.Levels, got.Levels)

	_, err = DecodeCSV(strings.NewReader("0,x\n"), 0)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "ms_partitions.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(sampleJSON), 0o644))
	h, err := ReadFile(jsonPath, 0)
	require.NoError(t, err)
	assert.Len(t, h.Levels, 2)

	var buf bytes.Buffer
	require.NoError(t, EncodeJSON(&buf, h))
	again, err := DecodeJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, h, again)

	csvPath := filepath.Join(dir, "ms_partitions.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("1,0\n"), 0o644))
	h, err = ReadFile(csvPath, 5)
	require.NoError(t, err)
	assert.Equal(t, []Level{{Persistence: 5, Membership: []int{1, 0}}}, h.Levels)
}
