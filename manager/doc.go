// Package manager owns a set of configured modules and runs them through a
// shared memoization cache.
//
// Modules are registered under string keys. A key names one configured
// instance, so the same Definition may be registered or copied under several
// keys with different inputs and submodule bindings. Defaults registered per
// property type fill unbound submodule roles when a module is fetched with At.
//
// Every Run goes through the Manager's invoker:
//
//	validate inputs -> lock -> fingerprint -> cache.ComputeOrFetch
//	                                              |
//	                                   (miss) observe middleware
//	                                              |
//	                                     resilience executor
//	                                              |
//	                                        Definition.Run
//
// Submodule calls made inside a computation are routed back through the same
// invoker, so they are memoized too.
//
// Configuration can be applied from YAML:
//
//	resilience:
//	  timeout: 30m
//	defaults:
//	  Basis: sto-3g
//	modules:
//	  energy:
//	    inputs:
//	      charge: 0
//	    submodules:
//	      basis: sto-3g
//	  energy-diffuse:
//	    copy_of: energy
//	    mode: deep
//	    submodules:
//	      basis: aug-cc-pvdz
package manager
