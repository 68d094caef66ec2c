package fingerprint

import "errors"

// Sentinel errors for fingerprint operations.
var (
	ErrInvalid       = errors.New("fingerprint: invalid encoding")
	ErrEmptyIdentity = errors.New("fingerprint: identity is empty")
	ErrDuplicatePart = errors.New("fingerprint: duplicate part name")
)
