package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrUnknownEntity is returned when a command targets an entity the
	// device does not expose.
	ErrUnknownEntity = errors.New("bridge: unknown entity")

	// ErrInvalidCommand is returned when a command name is not supported
	// by the targeted entity.
	ErrInvalidCommand = errors.New("bridge: invalid command")

	// ErrInvalidParameters is returned when command parameters are missing
	// or have the wrong type.
	ErrInvalidParameters = errors.New("bridge: invalid parameters")

	// ErrNotWritable is returned when a command targets a read-only data point.
	ErrNotWritable = errors.New("bridge: data point is not writable")

	// ErrWriteFailed is returned when the vendor cloud rejects a write.
	ErrWriteFailed = errors.New("bridge: cloud write failed")
)
