package bounds

import (
	"cmp"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonwraymond/modmemo/anyvalue"
)

// ErrOutOfBounds is returned when a value fails a check.
var ErrOutOfBounds = errors.New("bounds: value out of bounds")

// validate is shared by every Tag check; validator.Validate caches parsed tags.
var validate = validator.New()

// Check is a described predicate over a value.
type Check struct {
	Description string
	Pred        func(anyvalue.Value) bool
}

// Test reports whether v satisfies c. A Check without a predicate passes.
func (c Check) Test(v anyvalue.Value) bool {
	if c.Pred == nil {
		return true
	}
	return c.Pred(v)
}

// String returns the description.
func (c Check) String() string {
	return c.Description
}

// Validate runs checks in order and returns the first failure wrapped in
// ErrOutOfBounds.
func Validate(v anyvalue.Value, checks ...Check) error {
	for _, c := range checks {
		if !c.Test(v) {
			return fmt.Errorf("%w: %v fails %q", ErrOutOfBounds, v.Interface(), c.Description)
		}
	}
	return nil
}

// Func builds a check from a typed predicate.
func Func[T any](description string, fn func(T) bool) Check {
	return Check{
		Description: description,
		Pred: func(v anyvalue.Value) bool {
			x, err := anyvalue.Cast[T](v)
			return err == nil && fn(x)
		},
	}
}

// GreaterThan requires v > x.
func GreaterThan[T cmp.Ordered](x T) Check {
	return Func(fmt.Sprintf("> %v", x), func(v T) bool { return cmp.Compare(v, x) > 0 })
}

// GreaterEqual requires v >= x.
func GreaterEqual[T cmp.Ordered](x T) Check {
	return Func(fmt.Sprintf(">= %v", x), func(v T) bool { return cmp.Compare(v, x) >= 0 })
}

// LessThan requires v < x.
func LessThan[T cmp.Ordered](x T) Check {
	return Func(fmt.Sprintf("< %v", x), func(v T) bool { return cmp.Compare(v, x) < 0 })
}

// LessEqual requires v <= x.
func LessEqual[T cmp.Ordered](x T) Check {
	return Func(fmt.Sprintf("<= %v", x), func(v T) bool { return cmp.Compare(v, x) <= 0 })
}

// InRange requires lo <= v <= hi.
func InRange[T cmp.Ordered](lo, hi T) Check {
	return Func(fmt.Sprintf("in [%v, %v]", lo, hi), func(v T) bool {
		return cmp.Compare(v, lo) >= 0 && cmp.Compare(v, hi) <= 0
	})
}

// Equal requires v == x.
func Equal[T comparable](x T) Check {
	return Func(fmt.Sprintf("== %v", x), func(v T) bool { return v == x })
}

// NotEqual requires v != x.
func NotEqual[T comparable](x T) Check {
	return Func(fmt.Sprintf("!= %v", x), func(v T) bool { return v != x })
}

// OneOf requires v to equal one of xs.
func OneOf[T comparable](xs ...T) Check {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return Func("one of {"+strings.Join(parts, ", ")+"}", func(v T) bool {
		for _, x := range xs {
			if v == x {
				return true
			}
		}
		return false
	})
}

// NonEmpty requires a slice to have at least one element.
func NonEmpty[E any]() Check {
	return Func("non-empty", func(v []E) bool { return len(v) > 0 })
}

// All requires every check to pass.
func All(checks ...Check) Check {
	return Check{
		Description: join(checks, " and "),
		Pred: func(v anyvalue.Value) bool {
			for _, c := range checks {
				if !c.Test(v) {
					return false
				}
			}
			return true
		},
	}
}

// Any requires at least one check to pass. Any of nothing fails.
func Any(checks ...Check) Check {
	return Check{
		Description: join(checks, " or "),
		Pred: func(v anyvalue.Value) bool {
			for _, c := range checks {
				if c.Test(v) {
					return true
				}
			}
			return false
		},
	}
}

// Not inverts c.
func Not(c Check) Check {
	return Check{
		Description: "not (" + c.Description + ")",
		Pred:        func(v anyvalue.Value) bool { return !c.Test(v) },
	}
}

// Tag checks v against a go-playground/validator tag, e.g. "gt=0,lte=100".
// Empty values fail.
func Tag(tag string) Check {
	return Check{
		Description: "validate:" + tag,
		Pred: func(v anyvalue.Value) bool {
			if v.IsEmpty() {
				return false
			}
			return validate.Var(v.Interface(), tag) == nil
		},
	}
}

func join(checks []Check, sep string) string {
	parts := make([]string, len(checks))
	for i, c := range checks {
		parts[i] = "(" + c.Description + ")"
	}
	return strings.Join(parts, sep)
}
