package domain

import "errors"

var (
	// ErrRunNotFound is returned when no recording exists for a run id.
	ErrRunNotFound = errors.New("run not found")
	// ErrTraceUnavailable is returned when a remote trace source fails.
	ErrTraceUnavailable = errors.New("trace source unavailable")
)
