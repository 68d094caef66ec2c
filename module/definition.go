package module

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jonwraymond/modmemo/anyvalue"
)

// RunFunc computes a module's results.
type RunFunc func(ctx context.Context, call *Call) (anyvalue.Map, error)

// Definition declares a module.
//
// A Definition is shared by every Module built from it and must not be
// modified after New.
type Definition struct {
	Name        string
	Version     string
	Description string
	Citations   []string

	// PropertyTypes lists the interfaces this module satisfies.
	PropertyTypes []string

	Inputs     []Field
	Results    []Field
	Submodules []SubmoduleSpec

	Run RunFunc

	// NoMemoize starts modules with memoization disabled.
	NoMemoize bool
}

// Identity returns name@version.
func (d *Definition) Identity() string {
	if d.Version == "" {
		return d.Name
	}
	return d.Name + "@" + d.Version
}

// Satisfies reports whether the module declares propertyType.
func (d *Definition) Satisfies(propertyType string) bool {
	return propertyType == "" || slices.Contains(d.PropertyTypes, propertyType)
}

// Validate checks the definition for structural errors.
func (d *Definition) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: definition is nil", ErrInvalidDef)
	}
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.Contains(d.Name, "@") {
		errs = append(errs, fmt.Errorf("name %q must not contain '@'", d.Name))
	}
	if d.Run == nil {
		errs = append(errs, errors.New("run function is required"))
	}
	errs = append(errs, checkFields("input", d.Inputs, true)...)
	errs = append(errs, checkFields("result", d.Results, false)...)

	roles := make(map[string]bool, len(d.Submodules))
	for _, s := range d.Submodules {
		if s.Role == "" {
			errs = append(errs, errors.New("submodule role name is required"))
			continue
		}
		if roles[s.Role] {
			errs = append(errs, fmt.Errorf("duplicate submodule role %q", s.Role))
		}
		roles[s.Role] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDef, d.Identity(), errors.Join(errs...))
	}
	return nil
}

func checkFields(kind string, fields []Field, inputs bool) []error {
	var errs []error
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("%s name is required", kind))
			continue
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("duplicate %s %q", kind, f.Name))
		}
		seen[f.Name] = true
		if f.Type == "" {
			errs = append(errs, fmt.Errorf("%s %q has no type", kind, f.Name))
		}
		if inputs && !f.Default.IsEmpty() {
			if err := f.Check(f.Default); err != nil {
				errs = append(errs, fmt.Errorf("default: %w", err))
			}
		}
	}
	return errs
}

func (d *Definition) input(name string) (Field, bool) {
	for _, f := range d.Inputs {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (d *Definition) result(name string) (Field, bool) {
	for _, f := range d.Results {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (d *Definition) submodule(role string) (SubmoduleSpec, bool) {
	for _, s := range d.Submodules {
		if s.Role == role {
			return s, true
		}
	}
	return SubmoduleSpec{}, false
}
