package fingerprint

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Size is the width of a Fingerprint in bytes.
const Size = 32

// Fingerprint is a fixed-width, totally ordered content key.
// It is comparable and usable as a map key.
type Fingerprint [Size]byte

// Zero is the zero fingerprint. No builder ever produces it.
var Zero Fingerprint

// String returns the lowercase hex encoding.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first 12 hex characters, for logs.
func (f Fingerprint) Short() string {
	return f.String()[:12]
}

// IsZero reports whether f is the zero fingerprint.
func (f Fingerprint) IsZero() bool {
	return f == Zero
}

// Compare returns -1, 0 or +1 ordering f against o byte-wise.
func (f Fingerprint) Compare(o Fingerprint) int {
	return bytes.Compare(f[:], o[:])
}

// Less reports whether f orders before o.
func (f Fingerprint) Less(o Fingerprint) bool {
	return f.Compare(o) < 0
}

// MarshalText implements encoding.TextMarshaler.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	p, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = p
	return nil
}

// Parse decodes a hex fingerprint produced by String.
func Parse(s string) (Fingerprint, error) {
	var f Fingerprint
	if len(s) != hex.EncodedLen(Size) {
		return f, fmt.Errorf("%w: length %d", ErrInvalid, len(s))
	}
	if _, err := hex.Decode(f[:], []byte(s)); err != nil {
		return f, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return f, nil
}
