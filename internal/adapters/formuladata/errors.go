package formuladata

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrMissingEndpoint    = errors.New("formula data endpoint not configured")
	ErrUnexpectedStatus   = errors.New("unexpected status code")
	ErrUpdateInfoDisabled = errors.New("update-info endpoint not configured")
	ErrIncompletePayload  = errors.New("incomplete formula data payload")
	ErrMalformedPayload   = errors.New("malformed formula data payload")
)
