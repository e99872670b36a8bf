package replay

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned when an index-based operation names a step
	// that does not exist.
	ErrOutOfRange = errors.New("step index out of range")

	// ErrEmptyReplay is returned when constructing a player from data with no
	// steps or a non-positive total duration.
	ErrEmptyReplay = errors.New("nothing to replay")

	// ErrInvalidReplay is returned when replay data violates its ordering or
	// range invariants.
	ErrInvalidReplay = errors.New("invalid replay data")

	// ErrInvalidSpeed is returned for a non-positive or non-finite speed.
	ErrInvalidSpeed = errors.New("invalid playback speed")

	// ErrClosed is returned by engine operations after Close.
	ErrClosed = errors.New("replay engine closed")
)

// OutOfRangeError provides details about a rejected step index.
type OutOfRangeError struct {
	Index int
	Len   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("step index %d out of range [0, %d)", e.Index, e.Len)
}

func (e *OutOfRangeError) Unwrap() error {
	return ErrOutOfRange
}
