package sample

import "fmt"

// MalformedIDError reports a location whose name carries no decimal digits.
type MalformedIDError struct {
	Location string
}

func (e *MalformedIDError) Error() string {
	return fmt.Sprintf("sample: no numeric id in %q", e.Location)
}

// DuplicateIDError reports two locations that map to the same id.
type DuplicateIDError struct {
	ID     int
	First  string
	Second string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("sample: id %d used by both %q and %q", e.ID, e.First, e.Second)
}

// MissingIDError reports a hole in the id range, or an id outside it.
type MissingIDError struct {
	ID       int
	Offset   int
	Count    int
	Location string // set when the id is out of range rather than absent
}

func (e *MissingIDError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("sample: id %d of %q outside [%d, %d)", e.ID, e.Location, e.Offset, e.Offset+e.Count)
	}
	return fmt.Sprintf("sample: id %d missing from [%d, %d)", e.ID, e.Offset, e.Offset+e.Count)
}
