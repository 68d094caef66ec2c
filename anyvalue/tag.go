package anyvalue

import "reflect"

// TagOf returns the stable tag for t.
// Named types use their import path and name; unnamed types use Go syntax.
func TagOf(t reflect.Type) TypeTag {
	if t == nil {
		return "nil"
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return TypeTag(t.PkgPath() + "." + t.Name())
	}
	return TypeTag(t.String())
}

// TagFor returns the tag for T.
func TagFor[T any]() TypeTag {
	return TagOf(reflect.TypeFor[T]())
}
