// Package anyvalue provides a type-erased single-value container.
//
// A Value owns exactly one value whose concrete type is chosen by the code that
// wraps it. Extraction is gated by an exact type check (Cast), duplication is a
// deep copy that never needs the caller to name the type (Clone), and a
// Registry maps stable type tags to codecs so values can be persisted and
// restored across processes.
//
// Module results are bundled in a Map of named Values.
package anyvalue
