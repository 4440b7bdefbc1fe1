// Package partition reads crystal partition hierarchies and groups sample
// rows by crystal.
//
// A hierarchy is an ordered list of persistence levels. At every level each
// sample row belongs to exactly one crystal, given as an integer id.
// The JSON form is
//
//	{"crystalPartitions": [{"persistenceLevel": 0, "crystalMembership": [0, 0, 1]}]}
//
// and the CSV form holds one comma-separated membership row per level.
package partition

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/shapespace/internal/conv"
)

// Level is the crystal membership of every sample row at one persistence
// level.
type Level struct {
	Persistence int   `json:"persistenceLevel"`
	Membership  []int `json:"crystalMembership"`
}

// Group is one crystal and the rows that belong to it.
type Group struct {
	Crystal int
	Rows    *roaring.Bitmap
}

// Len returns the number of member rows.
func (g Group) Len() int { return int(g.Rows.GetCardinality()) }

// RowSlice returns the member rows in ascending order.
func (g Group) RowSlice() []int {
	out := make([]int, 0, g.Len())
	it := g.Rows.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// Crystals returns the distinct crystal ids in ascending order.
func (l Level) Crystals() []int {
	ids := slices.Clone(l.Membership)
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Groups returns one member set per crystal, ascending by crystal id.
func (l Level) Groups() []Group {
	byCrystal := make(map[int]*roaring.Bitmap)
	for row, c := range l.Membership {
		bm, ok := byCrystal[c]
		if !ok {
			bm = roaring.New()
			byCrystal[c] = bm
		}
		bm.Add(uint32(row))
	}
	out := make([]Group, 0, len(byCrystal))
	for _, c := range l.Crystals() {
		out = append(out, Group{Crystal: c, Rows: byCrystal[c]})
	}
	return out
}

// Hierarchy is the ordered set of levels used to build latent models.
type Hierarchy struct {
	Levels []Level `json:"crystalPartitions"`

	// MinPersistence is the level of the first CSV row. JSON levels carry
	// their own persistence.
	MinPersistence int `json:"minPersistence,omitempty"`
}

// FromMemberships builds a hierarchy whose levels are numbered from first.
func FromMemberships(first int, memberships ...[]int) *Hierarchy {
	h := &Hierarchy{MinPersistence: first}
	for i, m := range memberships {
		h.Levels = append(h.Levels, Level{Persistence: first + i, Membership: m})
	}
	return h
}

// Validate checks that every level covers exactly n rows, uses non-negative
// crystal ids, and that persistence levels are distinct.
func (h *Hierarchy) Validate(n int) error {
	if len(h.Levels) == 0 {
		return fmt.Errorf("%w: no levels", ErrInvalid)
	}
	// Rows are kept in 32-bit bitmaps.
	if _, err := conv.IntToUint32(n); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	seen := make(map[int]bool, len(h.Levels))
	for _, l := range h.Levels {
		if seen[l.Persistence] {
			return &LevelError{Persistence: l.Persistence, Reason: "duplicate level"}
		}
		seen[l.Persistence] = true
		if len(l.Membership) != n {
			return &LevelError{
				Persistence: l.Persistence,
				Reason:      fmt.Sprintf("membership covers %d samples, collection has %d", len(l.Membership), n),
			}
		}
		for row, c := range l.Membership {
			if c < 0 {
				return &LevelError{Persistence: l.Persistence, Reason: fmt.Sprintf("negative crystal id %d at row %d", c, row)}
			}
		}
	}
	return nil
}

// Persistences returns the persistence of every level in hierarchy order.
func (h *Hierarchy) Persistences() []int {
	out := make([]int, len(h.Levels))
	for i, l := range h.Levels {
		out[i] = l.Persistence
	}
	return out
}
