// Package bounds provides predicates that validate module input values.
//
// A Check pairs a human readable description with a predicate over an
// anyvalue.Value. Checks compose with All, Any and Not, and the typed
// constructors (GreaterThan, InRange, OneOf, ...) fail closed: a value of the
// wrong type never satisfies them. Tag adapts go-playground/validator tags
// such as "gte=0,lte=10" or "oneof=rhf uhf".
package bounds
