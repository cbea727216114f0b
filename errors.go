package uvi

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed indicates a length prefix that can never decode. The next
	// frame boundary is unknown, so the stream must be abandoned.
	ErrMalformed = errors.New("uvi: malformed length prefix")

	// ErrFrameTooLarge indicates a frame whose length exceeds the configured
	// maximum, either on encode or as announced by a decoded prefix.
	ErrFrameTooLarge = errors.New("uvi: frame exceeds maximum size")
)

// FormatError describes a malformed length prefix.
type FormatError struct {
	Prefix []byte // Prefix bytes examined, at most varint.MaxLen64
	Err    error  // Underlying varint error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("uvi: malformed length prefix % x: %v", e.Prefix, e.Err)
}

// Unwrap lets errors.Is match both ErrMalformed and the varint cause.
func (e *FormatError) Unwrap() []error {
	return []error{ErrMalformed, e.Err}
}

// SizeError reports a frame length above the configured maximum.
type SizeError struct {
	Size  uint64
	Limit int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("uvi: frame length %d exceeds maximum %d", e.Size, e.Limit)
}

func (e *SizeError) Unwrap() error {
	return ErrFrameTooLarge
}
