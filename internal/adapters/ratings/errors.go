package ratings

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrUnknownKind   = errors.New("unknown rating source kind")
	ErrMissingColumn = errors.New("column not found")
	ErrBadRow        = errors.New("invalid rating row")
)
