package audit

import "errors"

var (
	// ErrWriterClosed is returned when writing to a closed Writer.
	ErrWriterClosed = errors.New("audit writer closed")

	// ErrQueueFull is returned when the Writer queue has no free slot.
	ErrQueueFull = errors.New("audit queue full")

	// ErrTampered means a record's hash does not match its content.
	ErrTampered = errors.New("audit record hash mismatch")
)
