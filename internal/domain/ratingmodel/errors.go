package ratingmodel

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrEmptyTrainset    = errors.New("trainset has no ratings")
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
	ErrNotFitted        = errors.New("model is not fitted")
	ErrInvalidParams    = errors.New("invalid model parameters")
)
