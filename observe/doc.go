// Package observe provides observability primitives for module runs.
//
// It is a pure instrumentation library: it sets up OpenTelemetry tracing and
// metrics providers and a structured logger, and wraps computations with
// spans, counters, and run logs. The manager wires an Observer into every
// module computation; cache hits are reported by the cache's own metrics.
package observe
