package catalog

import "errors"

// Errors LoadClient returns, wrapped with the offending client id via %w so
// callers can still errors.Is against the sentinel.
var (
	ErrNotFound = errors.New("client not found")
	ErrDisabled = errors.New("client disabled")
	ErrExpired  = errors.New("client expired")

	// ErrConfigInvalid is returned from Setup; it never reaches Reload or
	// LoadClient callers.
	ErrConfigInvalid = errors.New("invalid catalog config")
)
