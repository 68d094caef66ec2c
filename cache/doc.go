// Package cache provides the memoization table for module invocations.
//
// Entries map a Key (a fingerprint or an explicit caller key) to an
// anyvalue.Value with a retention Tag. Durable entries survive checkpoints
// and are never replaced or evicted without Force; Session entries may be
// replaced freely and, when the policy bounds them, are evicted least
// recently used first.
//
// ComputeOrFetch is the single entry point for memoized computation. For a
// given key at most one computation runs at a time; concurrent callers wait
// for it and share its result. Failures are not cached unless the policy
// sets an ErrorTTL.
package cache
