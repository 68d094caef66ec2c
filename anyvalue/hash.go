package anyvalue

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"slices"
	"time"
)

// Hasher is implemented by types that write their own canonical bytes for
// content hashing.
type Hasher interface {
	HashInto(w io.Writer) error
}

// maxHashDepth bounds recursion so cyclic pointers fail instead of
// overflowing the stack.
const maxHashDepth = 1000

var (
	hasherType        = reflect.TypeFor[Hasher]()
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	valueType         = reflect.TypeFor[Value]()
)

// ContentHash returns a SHA-256 digest of the stored type tag and value.
//
// Equal values of the same type hash equally across processes. Strings are
// hashed from their raw bytes and every interface slot contributes the type
// tag of its dynamic value, so "\xff" and "\xfe" differ, as do 1 and 1.0
// stored under an any. Types with unexported fields must implement Hasher
// or json.Marshaler; otherwise ContentHash fails with ErrNotHashable.
func (v Value) ContentHash() ([32]byte, error) {
	var sum [32]byte
	if v.h == nil {
		return sum, ErrEmpty
	}

	h := sha256.New()
	writeFramed(h, []byte(v.h.tag))
	if err := encodeHash(h, reflect.ValueOf(v.h.value), 0); err != nil {
		return sum, fmt.Errorf("anyvalue: hash %s: %w", v.h.tag, err)
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// encodeHash writes a self-delimiting, type-directed encoding of rv to w.
// Every variable-length piece is framed so adjacent elements cannot run
// into each other.
func encodeHash(w io.Writer, rv reflect.Value, depth int) error {
	if depth > maxHashDepth {
		return fmt.Errorf("%w: cyclic or too deeply nested", ErrNotHashable)
	}
	if !rv.IsValid() {
		w.Write([]byte{'n'})
		return nil
	}
	t := rv.Type()

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			w.Write([]byte{'n'})
			return nil
		}
	}
	if rv.Kind() == reflect.Interface {
		elem := rv.Elem()
		w.Write([]byte{'a'})
		writeFramed(w, []byte(TagOf(elem.Type())))
		return encodeHash(w, elem, depth+1)
	}

	switch {
	case t == valueType:
		x := rv.Interface().(Value)
		if x.h == nil {
			w.Write([]byte{'e'})
			return nil
		}
		w.Write([]byte{'v'})
		writeFramed(w, []byte(x.h.tag))
		return encodeHash(w, reflect.ValueOf(x.h.value), depth+1)
	case t == timeType:
		w.Write([]byte{'T'})
		writeFramed(w, []byte(rv.Interface().(time.Time).UTC().Format(time.RFC3339Nano)))
		return nil
	case t.Implements(hasherType):
		var buf bytes.Buffer
		if err := rv.Interface().(Hasher).HashInto(&buf); err != nil {
			return err
		}
		w.Write([]byte{'H'})
		writeFramed(w, buf.Bytes())
		return nil
	case t.Implements(jsonMarshalerType):
		data, err := rv.Interface().(json.Marshaler).MarshalJSON()
		if err != nil {
			return err
		}
		w.Write([]byte{'M'})
		writeFramed(w, data)
		return nil
	}

	var buf [8]byte
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			w.Write([]byte{'b', 1})
		} else {
			w.Write([]byte{'b', 0})
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		binary.BigEndian.PutUint64(buf[:], uint64(rv.Int()))
		w.Write([]byte{'i'})
		w.Write(buf[:])
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		binary.BigEndian.PutUint64(buf[:], rv.Uint())
		w.Write([]byte{'u'})
		w.Write(buf[:])
	case reflect.Float32, reflect.Float64:
		w.Write([]byte{'f'})
		writeFloat(w, rv.Float())
	case reflect.Complex64, reflect.Complex128:
		c := rv.Complex()
		w.Write([]byte{'c'})
		writeFloat(w, real(c))
		writeFloat(w, imag(c))
	case reflect.String:
		w.Write([]byte{'s'})
		writeFramed(w, []byte(rv.String()))
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
			w.Write([]byte{'B'})
			writeFramed(w, rv.Bytes())
			return nil
		}
		w.Write([]byte{'['})
		writeLen(w, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if err := encodeHash(w, rv.Index(i), depth+1); err != nil {
				return err
			}
		}
	case reflect.Map:
		return encodeMap(w, rv, depth)
	case reflect.Struct:
		w.Write([]byte{'('})
		writeLen(w, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				return fmt.Errorf("%w: %s has unexported field %s", ErrNotHashable, TagOf(t), f.Name)
			}
			writeFramed(w, []byte(f.Name))
			if err := encodeHash(w, rv.Field(i), depth+1); err != nil {
				return err
			}
		}
	case reflect.Pointer:
		w.Write([]byte{'*'})
		return encodeHash(w, rv.Elem(), depth+1)
	default:
		return fmt.Errorf("%w: %s", ErrNotHashable, TagOf(t))
	}
	return nil
}

// encodeMap orders entries by their encoded keys, which is stable across
// processes where Go's map iteration is not.
func encodeMap(w io.Writer, rv reflect.Value, depth int) error {
	type entry struct {
		key []byte
		val reflect.Value
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		var kb bytes.Buffer
		if err := encodeHash(&kb, iter.Key(), depth+1); err != nil {
			return err
		}
		entries = append(entries, entry{key: kb.Bytes(), val: iter.Value()})
	}
	slices.SortFunc(entries, func(a, b entry) int { return bytes.Compare(a.key, b.key) })

	w.Write([]byte{'{'})
	writeLen(w, len(entries))
	for _, e := range entries {
		writeFramed(w, e.key)
		if err := encodeHash(w, e.val, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// writeFloat writes the IEEE bits of f with every NaN collapsed to one
// pattern.
func writeFloat(w io.Writer, f float64) {
	bits := math.Float64bits(f)
	if math.IsNaN(f) {
		bits = 0x7ff8000000000001
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], bits)
	w.Write(buf[:])
}

func writeLen(w io.Writer, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	w.Write(buf[:])
}

// writeFramed writes a length-prefixed chunk so adjacent fields cannot run
// into each other.
func writeFramed(w io.Writer, b []byte) {
	writeLen(w, len(b))
	w.Write(b)
}
