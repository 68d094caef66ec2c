package health

import "errors"

// Sentinel errors for health checks.
var (
	// ErrCheckFailed marks the error of an Unhealthy result raised by a
	// checker rather than by its dependency.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout is the error of a check that did not finish within the
	// aggregator timeout.
	ErrCheckTimeout = errors.New("health: check timed out")

	// ErrCheckerNotFound is returned by Aggregator.Check for unknown names.
	ErrCheckerNotFound = errors.New("health: no checker registered under that name")
)
