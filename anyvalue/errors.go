package anyvalue

import "errors"

// Sentinel errors for value operations.
var (
	// ErrTypeMismatch is returned when a downcast names a type other than the
	// stored one.
	ErrTypeMismatch = errors.New("anyvalue: type mismatch")

	// ErrNotCopyable is returned when the stored type cannot be duplicated.
	ErrNotCopyable = errors.New("anyvalue: value is not copyable")

	// ErrEmpty is returned when an operation needs a value and the Value is empty.
	ErrEmpty = errors.New("anyvalue: value is empty")

	// ErrUnknownType is returned when a type tag has no registered codec.
	ErrUnknownType = errors.New("anyvalue: unknown type")

	// ErrNotHashable is returned when a value carries state content hashing
	// cannot see. Implement Hasher or json.Marshaler on such types.
	ErrNotHashable = errors.New("anyvalue: value is not hashable")

	// ErrMissingField is returned by Map lookups for absent names.
	ErrMissingField = errors.New("anyvalue: no such field")
)
