package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"sort"

	"github.com/jonwraymond/modmemo/anyvalue"
)

// domain separates fingerprints from any other SHA-256 use of the same bytes.
// Bump the suffix when the layout below changes.
const domain = "modmemo/fingerprint/v2"

// Builder accumulates the parts of a fingerprint.
//
// Contract:
// - Determinism: the order in which parts are added does not matter.
// - Concurrency: a Builder is not safe for concurrent use.
// - Errors: the first error sticks and is returned by Sum.
type Builder struct {
	name     string
	version  string
	subs     map[string]Fingerprint
	inputs   map[string]anyvalue.Value
	err      error
}

// New starts a fingerprint for the module identified by name and version.
func New(name, version string) *Builder {
	b := &Builder{
		name:     name,
		version:  version,
		subs:     make(map[string]Fingerprint),
		inputs:   make(map[string]anyvalue.Value),
	}
	if name == "" {
		b.err = ErrEmptyIdentity
	}
	return b
}

// Identity renders name and version for display. Sum hashes the two
// separately, so distinct pairs never share a fingerprint even when their
// rendered identities are equal.
func Identity(name, version string) string {
	if version == "" {
		return name
	}
	return name + "@" + version
}

// Submodule adds the fingerprint of the module bound to role.
func (b *Builder) Submodule(role string, fp Fingerprint) *Builder {
	if b.err != nil {
		return b
	}
	if _, dup := b.subs[role]; dup {
		b.err = fmt.Errorf("%w: submodule %q", ErrDuplicatePart, role)
		return b
	}
	b.subs[role] = fp
	return b
}

// Input adds a named input value. Empty values are skipped; an unset input
// contributes nothing.
func (b *Builder) Input(name string, v anyvalue.Value) *Builder {
	if b.err != nil || v.IsEmpty() {
		return b
	}
	if _, dup := b.inputs[name]; dup {
		b.err = fmt.Errorf("%w: input %q", ErrDuplicatePart, name)
		return b
	}
	b.inputs[name] = v
	return b
}

// Sum returns the fingerprint of everything added so far.
func (b *Builder) Sum() (Fingerprint, error) {
	var f Fingerprint
	if b.err != nil {
		return f, b.err
	}

	h := sha256.New()
	frame(h, []byte(domain))
	frame(h, []byte(b.name))
	frame(h, []byte(b.version))

	roles := make([]string, 0, len(b.subs))
	for r := range b.subs {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	count(h, 's', len(roles))
	for _, r := range roles {
		fp := b.subs[r]
		frame(h, []byte(r))
		h.Write(fp[:])
	}

	names := make([]string, 0, len(b.inputs))
	for n := range b.inputs {
		names = append(names, n)
	}
	sort.Strings(names)
	count(h, 'i', len(names))
	for _, n := range names {
		v := b.inputs[n]
		sum, err := v.ContentHash()
		if err != nil {
			return f, fmt.Errorf("fingerprint: input %q: %w", n, err)
		}
		frame(h, []byte(n))
		frame(h, []byte(v.Type()))
		h.Write(sum[:])
	}

	copy(f[:], h.Sum(nil))
	return f, nil
}

func frame(h hash.Hash, b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	h.Write(n[:])
	h.Write(b)
}

func count(h hash.Hash, section byte, n int) {
	var buf [9]byte
	buf[0] = section
	binary.BigEndian.PutUint64(buf[1:], uint64(n))
	h.Write(buf[:])
}
