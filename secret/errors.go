package secret

import "errors"

// Sentinel errors for secret resolution.
var (
	// ErrMissingEnv is returned when a referenced environment variable is unset.
	ErrMissingEnv = errors.New("secret: missing environment variable")

	// ErrUnknownProvider is returned for references naming no registered provider.
	ErrUnknownProvider = errors.New("secret: provider not registered")

	// ErrEmpty is returned when a strict resolver resolves to an empty value.
	ErrEmpty = errors.New("secret: empty value")
)
