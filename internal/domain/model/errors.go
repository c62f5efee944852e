package model

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrInvalidInput marks data that fails basic physical-sanity checks.
	// Only the scorer entry points surface it; kinetics stays total.
	ErrInvalidInput = errors.New("invalid input")
)
