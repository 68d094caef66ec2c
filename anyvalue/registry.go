package anyvalue

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Registry maps type tags to codecs so values can cross process boundaries.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Determinism: the tag written by Encode is the tag Decode expects.
// - Errors: unregistered tags and types fail with ErrUnknownType.
type Registry struct {
	mu     sync.RWMutex
	byTag  map[TypeTag]*registration
	byType map[reflect.Type]*registration
}

type registration struct {
	typ    reflect.Type
	tag    TypeTag
	encode func(any) ([]byte, error)
	decode func([]byte) (Value, error)
}

// RegisterOption customizes a registration.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	tag       TypeTag
	codecType reflect.Type
	encode    func(any) ([]byte, error)
	decode    func([]byte) (any, error)
}

// WithTag overrides the wire tag for the registered type.
func WithTag(tag TypeTag) RegisterOption {
	return func(o *registerOptions) {
		o.tag = tag
	}
}

// WithCodec replaces the default JSON codec.
func WithCodec[T any](encode func(T) ([]byte, error), decode func([]byte) (T, error)) RegisterOption {
	return func(o *registerOptions) {
		o.codecType = reflect.TypeFor[T]()
		o.encode = func(v any) ([]byte, error) { return encode(v.(T)) }
		o.decode = func(data []byte) (any, error) { return decode(data) }
	}
}

// NewRegistry creates a registry preloaded with Go scalars, common slices
// and maps, and Map.
func NewRegistry() *Registry {
	r := &Registry{
		byTag:  make(map[TypeTag]*registration),
		byType: make(map[reflect.Type]*registration),
	}
	registerBuiltins(r)
	return r
}

// Register adds T to r. Registering the same type or tag twice is an error.
func Register[T any](r *Registry, opts ...RegisterOption) error {
	if r == nil {
		return errors.New("anyvalue: registry is nil")
	}
	t := reflect.TypeFor[T]()
	o := registerOptions{tag: TagOf(t)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tag == "" {
		return errors.New("anyvalue: type tag is required")
	}
	if o.codecType != nil && o.codecType != t {
		return fmt.Errorf("anyvalue: codec for %s registered as %s", TagOf(o.codecType), TagOf(t))
	}

	reg := &registration{typ: t, tag: o.tag}
	if o.encode != nil {
		reg.encode = o.encode
		reg.decode = func(data []byte) (Value, error) {
			x, err := o.decode(data)
			if err != nil {
				return Value{}, err
			}
			return Wrap(x.(T)), nil
		}
	} else {
		reg.encode = func(v any) ([]byte, error) { return json.Marshal(v) }
		reg.decode = func(data []byte) (Value, error) {
			var x T
			if err := json.Unmarshal(data, &x); err != nil {
				return Value{}, err
			}
			return Wrap(x), nil
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byTag[reg.tag]; exists {
		return fmt.Errorf("anyvalue: type tag %q already registered", reg.tag)
	}
	if _, exists := r.byType[t]; exists {
		return fmt.Errorf("anyvalue: type %s already registered", TagOf(t))
	}
	r.byTag[reg.tag] = reg
	r.byType[t] = reg
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister[T any](r *Registry, opts ...RegisterOption) {
	if err := Register[T](r, opts...); err != nil {
		panic(err)
	}
}

// Encode serializes v and returns the wire tag alongside the payload.
func (r *Registry) Encode(v Value) (TypeTag, []byte, error) {
	if v.IsEmpty() {
		return "", nil, ErrEmpty
	}
	r.mu.RLock()
	reg, ok := r.byType[v.h.typ]
	r.mu.RUnlock()
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownType, v.h.tag)
	}
	data, err := reg.encode(v.h.value)
	if err != nil {
		return "", nil, fmt.Errorf("anyvalue: encode %s: %w", reg.tag, err)
	}
	return reg.tag, data, nil
}

// Decode rebuilds a Value from a wire tag and payload.
func (r *Registry) Decode(tag TypeTag, data []byte) (Value, error) {
	r.mu.RLock()
	reg, ok := r.byTag[tag]
	r.mu.RUnlock()
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownType, tag)
	}
	v, err := reg.decode(data)
	if err != nil {
		return Value{}, fmt.Errorf("anyvalue: decode %s: %w", tag, err)
	}
	return v, nil
}

// Known reports whether tag has a codec.
func (r *Registry) Known(tag TypeTag) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byTag[tag]
	return ok
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []TypeTag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]TypeTag, 0, len(r.byTag))
	for t := range r.byTag {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// encodedField is the wire shape of one Map entry.
type encodedField struct {
	Type    TypeTag         `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func registerBuiltins(r *Registry) {
	MustRegister[bool](r)
	MustRegister[int](r)
	MustRegister[int8](r)
	MustRegister[int16](r)
	MustRegister[int32](r)
	MustRegister[int64](r)
	MustRegister[uint](r)
	MustRegister[uint8](r)
	MustRegister[uint16](r)
	MustRegister[uint32](r)
	MustRegister[uint64](r)
	MustRegister[[]byte](r)
	MustRegister[[]int](r)

	// Floats and strings go through wire types that keep NaN, the
	// infinities, and invalid UTF-8 exactly.
	MustRegister[float32](r, viaWire(
		func(x float32) wireFloat { return wireFloat(x) },
		func(f wireFloat) float32 { return float32(f) },
	))
	MustRegister[float64](r, viaWire(toWireFloat, fromWireFloat))
	MustRegister[string](r, viaWire(toWireString, fromWireString))
	MustRegister[[]float64](r, viaWire(
		func(xs []float64) []wireFloat { return convSlice(xs, toWireFloat) },
		func(ws []wireFloat) []float64 { return convSlice(ws, fromWireFloat) },
	))
	MustRegister[[]string](r, viaWire(
		func(xs []string) []wireString { return convSlice(xs, toWireString) },
		func(ws []wireString) []string { return convSlice(ws, fromWireString) },
	))
	MustRegister[[][]float64](r, viaWire(
		func(xss [][]float64) [][]wireFloat {
			return convSlice(xss, func(xs []float64) []wireFloat { return convSlice(xs, toWireFloat) })
		},
		func(wss [][]wireFloat) [][]float64 {
			return convSlice(wss, func(ws []wireFloat) []float64 { return convSlice(ws, fromWireFloat) })
		},
	))
	MustRegister[map[string]float64](r, stringMapCodec(toWireFloat, fromWireFloat))
	MustRegister[map[string]string](r, stringMapCodec(toWireString, fromWireString))
	MustRegister[map[string]int](r, stringMapCodec(same[int], same[int]))

	MustRegister[Map](r, WithCodec(
		func(m Map) ([]byte, error) {
			out := make(map[string]encodedField, len(m))
			for name, v := range m {
				tag, payload, err := r.Encode(v)
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", name, err)
				}
				out[name] = encodedField{Type: tag, Payload: payload}
			}
			return marshalStringMap(out, same[encodedField])
		},
		func(data []byte) (Map, error) {
			in, err := unmarshalStringMap(data, same[encodedField])
			if err != nil {
				return nil, err
			}
			out := make(Map, len(in))
			for name, f := range in {
				v, err := r.Decode(f.Type, f.Payload)
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", name, err)
				}
				out[name] = v
			}
			return out, nil
		},
	))
}
