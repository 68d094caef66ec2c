package anyvalue

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// TypeTag is a stable, process-independent name for a Go type.
type TypeTag string

// Value is a type-erased container holding exactly one value.
//
// Contract:
// - Ownership: Wrap takes ownership of the value; callers must not mutate it afterwards.
// - Concurrency: a Value is immutable and safe for concurrent reads.
// - Errors: Cast never converts; a type that differs from the stored one fails.
//
// The zero Value is empty.
type Value struct {
	h *holder
}

type holder struct {
	typ   reflect.Type
	tag   TypeTag
	value any
}

// Wrap stores v in a new Value.
func Wrap[T any](v T) Value {
	t := reflect.TypeFor[T]()
	return Value{h: &holder{
		typ:   t,
		tag:   TagOf(t),
		value: v,
	}}
}

// Cast extracts the stored value as T.
// It fails with ErrTypeMismatch when T is not exactly the stored type.
func Cast[T any](v Value) (T, error) {
	var zero T
	want := reflect.TypeFor[T]()
	if v.h == nil {
		return zero, fmt.Errorf("%w: want %s, value is empty", ErrTypeMismatch, TagOf(want))
	}
	if v.h.typ != want {
		return zero, fmt.Errorf("%w: want %s, have %s", ErrTypeMismatch, TagOf(want), v.h.tag)
	}
	if v.h.value == nil {
		// nil interface stored under an interface type
		return zero, nil
	}
	out, ok := v.h.value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: want %s, have %s", ErrTypeMismatch, TagOf(want), v.h.tag)
	}
	return out, nil
}

// MustCast is like Cast but panics on mismatch.
func MustCast[T any](v Value) T {
	out, err := Cast[T](v)
	if err != nil {
		panic(err)
	}
	return out
}

// Is reports whether v holds exactly a T.
func Is[T any](v Value) bool {
	return v.h != nil && v.h.typ == reflect.TypeFor[T]()
}

// IsEmpty reports whether v holds nothing.
func (v Value) IsEmpty() bool {
	return v.h == nil
}

// Type returns the tag of the stored type, or "" when empty.
func (v Value) Type() TypeTag {
	if v.h == nil {
		return ""
	}
	return v.h.tag
}

// ReflectType returns the stored Go type, or nil when empty.
func (v Value) ReflectType() reflect.Type {
	if v.h == nil {
		return nil
	}
	return v.h.typ
}

// Interface returns the stored value for read-only inspection.
// Callers still go through a checked type assertion to use it.
func (v Value) Interface() any {
	if v.h == nil {
		return nil
	}
	return v.h.value
}

// Clone returns a deep, independent copy of v.
// Types that cannot be duplicated fail with ErrNotCopyable.
func (v Value) Clone() (Value, error) {
	if v.h == nil {
		return Value{}, nil
	}
	if v.h.value == nil {
		return v, nil
	}
	src := reflect.New(v.h.typ).Elem()
	src.Set(reflect.ValueOf(v.h.value))

	c := newCopier()
	dst, err := c.copy(src)
	if err != nil {
		return Value{}, fmt.Errorf("clone %s: %w", v.h.tag, err)
	}
	return Value{h: &holder{
		typ:   v.h.typ,
		tag:   v.h.tag,
		value: dst.Interface(),
	}}, nil
}

// String renders the value for diagnostics.
func (v Value) String() string {
	if v.h == nil {
		return "<empty>"
	}
	return fmt.Sprintf("%v (%s)", v.h.value, v.h.tag)
}

// MarshalJSON renders the value with its tag for diagnostics and logs.
// Use a Registry for lossless round trips.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.h == nil {
		return []byte("null"), nil
	}
	payload, err := json.Marshal(v.h.value)
	if err != nil {
		return nil, err
	}
	tag, err := json.Marshal(string(v.h.tag))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(payload)+len(tag)+20)
	out = append(out, `{"type":`...)
	out = append(out, tag...)
	out = append(out, `,"value":`...)
	out = append(out, payload...)
	out = append(out, '}')
	return out, nil
}

// Equal reports whether a and b hold the same type and deeply equal values.
func Equal(a, b Value) bool {
	if a.h == nil || b.h == nil {
		return a.h == nil && b.h == nil
	}
	if a.h.typ != b.h.typ {
		return false
	}
	return reflect.DeepEqual(a.h.value, b.h.value)
}
