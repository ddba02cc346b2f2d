package karma

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrUserIDRequired = errors.New("user id is required")
)
