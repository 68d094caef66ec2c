package anyvalue

import (
	"fmt"
	"reflect"
	"time"
)

// Cloner is implemented by types that know how to duplicate themselves.
// Clone may also be declared as Clone() (T, error).
type Cloner[T any] interface {
	Clone() T
}

var (
	errorType = reflect.TypeFor[error]()
	timeType  = reflect.TypeFor[time.Time]()
)

// copier performs a reflective deep copy. Pointers and maps are tracked so
// shared and cyclic structures are copied once.
type copier struct {
	seen map[uintptr]reflect.Value
}

func newCopier() *copier {
	return &copier{seen: make(map[uintptr]reflect.Value)}
}

func (c *copier) copy(src reflect.Value) (reflect.Value, error) {
	t := src.Type()

	if dst, ok, err := callClone(src); ok || err != nil {
		return dst, err
	}

	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return src, nil

	case reflect.Array:
		dst := reflect.New(t).Elem()
		for i := 0; i < src.Len(); i++ {
			e, err := c.copy(src.Index(i))
			if err != nil {
				return reflect.Value{}, err
			}
			dst.Index(i).Set(e)
		}
		return dst, nil

	case reflect.Slice:
		if src.IsNil() {
			return reflect.Zero(t), nil
		}
		dst := reflect.MakeSlice(t, src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			e, err := c.copy(src.Index(i))
			if err != nil {
				return reflect.Value{}, err
			}
			dst.Index(i).Set(e)
		}
		return dst, nil

	case reflect.Map:
		if src.IsNil() {
			return reflect.Zero(t), nil
		}
		if prev, ok := c.seen[src.Pointer()]; ok {
			return prev, nil
		}
		dst := reflect.MakeMapWithSize(t, src.Len())
		c.seen[src.Pointer()] = dst
		iter := src.MapRange()
		for iter.Next() {
			k, err := c.copy(iter.Key())
			if err != nil {
				return reflect.Value{}, err
			}
			v, err := c.copy(iter.Value())
			if err != nil {
				return reflect.Value{}, err
			}
			dst.SetMapIndex(k, v)
		}
		return dst, nil

	case reflect.Pointer:
		if src.IsNil() {
			return reflect.Zero(t), nil
		}
		if prev, ok := c.seen[src.Pointer()]; ok {
			return prev, nil
		}
		dst := reflect.New(t.Elem())
		c.seen[src.Pointer()] = dst
		e, err := c.copy(src.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		dst.Elem().Set(e)
		return dst, nil

	case reflect.Interface:
		if src.IsNil() {
			return reflect.Zero(t), nil
		}
		// errors are immutable by convention
		if t.Implements(errorType) && src.Elem().Kind() == reflect.Pointer {
			return src, nil
		}
		e, err := c.copy(src.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		dst := reflect.New(t).Elem()
		dst.Set(e)
		return dst, nil

	case reflect.Struct:
		if t == timeType {
			return src, nil
		}
		dst := reflect.New(t).Elem()
		dst.Set(src)
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				if holdsReferences(f.Type) {
					return reflect.Value{}, fmt.Errorf("%w: %s has unexported field %s of type %s",
						ErrNotCopyable, TagOf(t), f.Name, f.Type)
				}
				continue
			}
			e, err := c.copy(src.Field(i))
			if err != nil {
				return reflect.Value{}, err
			}
			dst.Field(i).Set(e)
		}
		return dst, nil

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		if src.IsNil() {
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrNotCopyable, TagOf(t))
	}

	return reflect.Value{}, fmt.Errorf("%w: unsupported kind %s", ErrNotCopyable, t.Kind())
}

// callClone invokes a Clone method returning the receiver's type, if present.
func callClone(src reflect.Value) (reflect.Value, bool, error) {
	t := src.Type()
	if t.Kind() == reflect.Interface || !src.CanInterface() {
		return reflect.Value{}, false, nil
	}
	if t.Kind() == reflect.Pointer && src.IsNil() {
		return reflect.Value{}, false, nil
	}
	m, ok := t.MethodByName("Clone")
	if !ok {
		return reflect.Value{}, false, nil
	}
	mt := m.Type
	if mt.NumIn() != 1 || mt.NumOut() < 1 || mt.NumOut() > 2 || mt.Out(0) != t {
		return reflect.Value{}, false, nil
	}
	if mt.NumOut() == 2 && mt.Out(1) != errorType {
		return reflect.Value{}, false, nil
	}
	out := src.Method(m.Index).Call(nil)
	if len(out) == 2 && !out[1].IsNil() {
		return reflect.Value{}, true, out[1].Interface().(error)
	}
	return out[0], true, nil
}

// holdsReferences reports whether values of t can alias memory.
func holdsReferences(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface,
		reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return true
	case reflect.Array:
		return holdsReferences(t.Elem())
	case reflect.Struct:
		if t == timeType {
			return false
		}
		for i := 0; i < t.NumField(); i++ {
			if holdsReferences(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}
