package anyvalue

import (
	"fmt"
	"sort"
)

// Map is a bundle of named values, used for module inputs and results.
type Map map[string]Value

// Get returns the value stored under name.
func (m Map) Get(name string) (Value, bool) {
	v, ok := m[name]
	return v, ok
}

// Keys returns the names in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone deep-copies every value in the map.
func (m Map) Clone() (Map, error) {
	if m == nil {
		return nil, nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		c, err := v.Clone()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = c
	}
	return out, nil
}

// Field extracts name from m as T.
func Field[T any](m Map, name string) (T, error) {
	var zero T
	v, ok := m[name]
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrMissingField, name)
	}
	out, err := Cast[T](v)
	if err != nil {
		return zero, fmt.Errorf("field %q: %w", name, err)
	}
	return out, nil
}
