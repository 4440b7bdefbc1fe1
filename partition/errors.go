package partition

import (
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by every hierarchy validation error.
var ErrInvalid = errors.New("partition: invalid hierarchy")

// LevelError reports a problem with one persistence level.
type LevelError struct {
	Persistence int
	Reason      string
}

func (e *LevelError) Error() string {
	return fmt.Sprintf("partition: persistence level %d: %s", e.Persistence, e.Reason)
}

func (e *LevelError) Unwrap() error { return ErrInvalid }
