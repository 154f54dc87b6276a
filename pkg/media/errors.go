package media

import "errors"

// ErrInvalidArgument is returned when a unit is constructed from missing or malformed fields.
var ErrInvalidArgument = errors.New("media: invalid argument")
