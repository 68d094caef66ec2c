// Package resilience guards module computations.
//
// The manager runs every cache miss through an Executor, which composes
// three patterns, outermost first:
//
//   - Bulkhead: caps how many computations run at once. Scientific
//     modules are often memory or core hungry; excess callers wait up to
//     MaxWait and then fail with ErrBulkheadFull.
//
//   - Retry: re-runs a computation whose error was marked with Retryable.
//     Computations are deterministic, so unmarked errors are final. A
//     module that knows when a resource frees up can return RetryableAfter
//     to set the wait itself.
//
//   - Timeout: bounds a single attempt; an overrun fails with ErrTimeout.
//
// Usage:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 4})),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithTimeout(10*time.Minute),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    results, err = mod.Execute(ctx, inputs, inv)
//	    return err
//	})
package resilience
