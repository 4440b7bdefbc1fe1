package loader

import (
	"errors"
	"fmt"
)

// ErrTruncated is returned when a raw payload is not a whole number of elements.
var ErrTruncated = errors.New("loader: payload is not a whole number of elements")

// ErrEmptyPayload is returned for a sample that decodes to zero values.
var ErrEmptyPayload = errors.New("loader: empty payload")

// LoadError wraps any failure to read or decode one sample.
type LoadError struct {
	ID       int
	Location string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loader: sample %d (%s): %v", e.ID, e.Location, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ShapeMismatchError reports a payload whose length differs from the
// collection dimension.
type ShapeMismatchError struct {
	ID       int
	Location string
	Want     int
	Got      int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("loader: sample %d (%s) has %d values, want %d", e.ID, e.Location, e.Got, e.Want)
}
