package codec

import "errors"

var (
	// ErrInvalidState is returned when an operation is called outside the
	// state that allows it.
	ErrInvalidState = errors.New("codec: invalid state")

	// ErrInvalidConfig is returned when a configuration violates its invariants.
	ErrInvalidConfig = errors.New("codec: invalid config")
)
