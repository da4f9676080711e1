package prescription

import "errors"

var (
	ErrRecordNotFound = errors.New("prescription record not found")

	// ErrInvalidRecord wraps field-level validation failures.
	ErrInvalidRecord = errors.New("invalid prescription")
)
