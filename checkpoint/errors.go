package checkpoint

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/cache"
)

// Sentinel errors for checkpoint operations.
var (
	ErrVersionMismatch = errors.New("checkpoint: unsupported format version")
	ErrCorrupt         = errors.New("checkpoint: stream is corrupt")
	ErrSignature       = errors.New("checkpoint: signature invalid")
	ErrNotFound        = errors.New("checkpoint: not found")
	ErrInvalidName     = errors.New("checkpoint: invalid name")
	ErrUnknownType     = anyvalue.ErrUnknownType
)

// EntryError is the failure of a single entry.
type EntryError struct {
	Key  cache.Key
	Type anyvalue.TypeTag
	Err  error
}

// Error describes the entry and its failure.
func (e *EntryError) Error() string {
	return fmt.Sprintf("checkpoint: entry %s (%s): %v", e.Key, e.Type, e.Err)
}

// Unwrap returns the underlying error.
func (e *EntryError) Unwrap() error {
	return e.Err
}
