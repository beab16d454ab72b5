package lib

import "errors"

var (
	// Status fetch failures. These never mutate tracked state.
	ErrNetwork           = errors.New("network error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrUnknownIdentifier = errors.New("unknown identifier")

	// Registry and config mutation failures, returned to the caller.
	ErrAlreadyExists   = errors.New("account already exists")
	ErrNotFound        = errors.New("account not found")
	ErrInvalidAccount  = errors.New("account id must not be empty")
	ErrInvalidInterval = errors.New("interval must be a positive number of milliseconds")
)
