package recommend

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrEmptyField   = errors.New("required field is empty")
	ErrInvalidSize  = errors.New("response size must be positive")
	ErrSizeTooLarge = errors.New("response size exceeds the limit")
)
