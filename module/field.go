package module

import (
	"fmt"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/bounds"
)

// Field declares one input or result.
type Field struct {
	Name string
	// Type is the tag values must carry; see anyvalue.TagFor.
	Type        anyvalue.TypeTag
	Description string
	// Optional inputs need not hold a value for the module to be ready.
	Optional bool
	// Transparent inputs are validated but never fingerprinted.
	Transparent bool
	Checks      []bounds.Check
	// Default is bound when the module is created. It may be empty.
	Default anyvalue.Value
}

// FieldOption customizes a Field built by Input or Result.
type FieldOption func(*Field)

// Input declares an input of type T.
func Input[T any](name string, opts ...FieldOption) Field {
	f := Field{Name: name, Type: anyvalue.TagFor[T]()}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Result declares a result of type T.
func Result[T any](name string, description string) Field {
	return Field{Name: name, Type: anyvalue.TagFor[T](), Description: description}
}

// Describe sets the field description.
func Describe(text string) FieldOption {
	return func(f *Field) {
		f.Description = text
	}
}

// Optional marks the input optional.
func Optional() FieldOption {
	return func(f *Field) {
		f.Optional = true
	}
}

// Transparent excludes the input from fingerprints.
func Transparent() FieldOption {
	return func(f *Field) {
		f.Transparent = true
	}
}

// Bounded attaches checks to the input.
func Bounded(checks ...bounds.Check) FieldOption {
	return func(f *Field) {
		f.Checks = append(f.Checks, checks...)
	}
}

// Default binds v when the module is created.
func Default[T any](v T) FieldOption {
	return func(f *Field) {
		f.Default = anyvalue.Wrap(v)
	}
}

// Check validates v against the field's type and bounds.
func (f Field) Check(v anyvalue.Value) error {
	if v.Type() != f.Type {
		return fmt.Errorf("input %q: %w: want %s, have %s", f.Name, ErrTypeMismatch, f.Type, v.Type())
	}
	if err := bounds.Validate(v, f.Checks...); err != nil {
		return fmt.Errorf("input %q: %w", f.Name, err)
	}
	return nil
}

// SubmoduleSpec declares a submodule role.
type SubmoduleSpec struct {
	Role string
	// PropertyType names the interface the bound module must satisfy.
	// Empty accepts any module.
	PropertyType string
	Description  string
	// Optional roles need not be bound for the module to be ready.
	Optional bool
	// Transparent roles do not contribute to fingerprints.
	Transparent bool
}
