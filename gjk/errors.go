package gjk

import "errors"

// ErrInvalidArgument is wrapped by every error caused by a caller contract violation.
var ErrInvalidArgument = errors.New("invalid argument")
