// Package module defines computational modules and their configuration graph.
//
// A Definition declares a module's identity, ordered inputs and results,
// submodule roles, and the function that computes results. New builds a
// Module from a Definition; the Module carries the bound input values and
// submodule bindings and moves through three states:
//
//	Unconfigured -> Configured -> Locked
//
// Setting an input or binding a submodule configures the module. Lock (and
// the first Run) freezes identity-relevant configuration: afterwards only
// transparent inputs may change. Locking is recursive, so a submodule shared
// by several modules is frozen for all of them once any one locks.
//
// ComputeKey fingerprints a module together with the inputs of one call.
// Transparent inputs and transparent submodule roles never contribute.
package module
