package assignment

import "errors"

var (
	// ErrInvalidKey is returned when the scope or device id is empty.
	ErrInvalidKey = errors.New("assignment: scope id and device id are required")

	// ErrInvalidHost is returned when storing an empty host.
	ErrInvalidHost = errors.New("assignment: host is required")
)
