package cache

import (
	"fmt"
	"strings"

	"github.com/jonwraymond/modmemo/fingerprint"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// fingerprintPrefix marks keys derived from a fingerprint.
const fingerprintPrefix = "fp:"

// Key identifies a cache entry.
type Key string

// KeyOf returns the key under which results for fp are stored.
func KeyOf(fp fingerprint.Fingerprint) Key {
	return Key(fingerprintPrefix + fp.String())
}

// Fingerprint returns the fingerprint a key was derived from, if any.
func (k Key) Fingerprint() (fingerprint.Fingerprint, bool) {
	s, ok := strings.CutPrefix(string(k), fingerprintPrefix)
	if !ok {
		return fingerprint.Fingerprint{}, false
	}
	fp, err := fingerprint.Parse(s)
	if err != nil {
		return fingerprint.Fingerprint{}, false
	}
	return fp, true
}

// String returns the key text.
func (k Key) String() string {
	return string(k)
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key Key) error {
	if key == "" || strings.TrimSpace(string(key)) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(string(key), "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// Keyer produces the fingerprint of something cacheable.
//
// Contract:
// - Determinism: equal configurations must produce equal fingerprints.
// - Errors: an invalid configuration must fail instead of producing a key.
type Keyer interface {
	Fingerprint() (fingerprint.Fingerprint, error)
}

// ComputeKey derives the cache key for k.
func ComputeKey(k Keyer) (Key, error) {
	if k == nil {
		return "", ErrInvalidKey
	}
	fp, err := k.Fingerprint()
	if err != nil {
		return "", fmt.Errorf("cache: compute key: %w", err)
	}
	return KeyOf(fp), nil
}

// Tag is the retention class of an entry.
type Tag int

const (
	// TagSession entries live for the process unless explicitly checkpointed.
	TagSession Tag = iota
	// TagDurable entries survive checkpoints and are never silently replaced.
	TagDurable
)

// Valid reports whether t is a known tag.
func (t Tag) Valid() bool {
	return t == TagSession || t == TagDurable
}

// String returns the tag name.
func (t Tag) String() string {
	switch t {
	case TagSession:
		return "session"
	case TagDurable:
		return "durable"
	default:
		return fmt.Sprintf("tag(%d)", int(t))
	}
}

// ParseTag parses a tag name produced by String.
func ParseTag(s string) (Tag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "session":
		return TagSession, nil
	case "durable":
		return TagDurable, nil
	default:
		return 0, fmt.Errorf("cache: unknown tag %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Tag) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cache: unknown tag %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tag) UnmarshalText(text []byte) error {
	p, err := ParseTag(string(text))
	if err != nil {
		return err
	}
	*t = p
	return nil
}
