package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrMissingUserID   = errors.New("user id is required")
	ErrUnknownResource = errors.New("unknown resource")
	ErrMalformedBody   = errors.New("malformed request body")
)
