// Package health provides health checking primitives for the memoization
// runtime.
//
// A Checker reports the Status of one component: the result cache, a
// checkpoint store, or process memory. An Aggregator runs several checkers
// concurrently under one deadline and folds them into a Report, which the
// manager exposes and the command line prints.
//
//	agg := health.NewAggregator()
//	agg.Register(cache.NewChecker(c))
//	agg.Register(health.NewPingChecker("store", store.Ping))
//	agg.Register(health.NewMemoryChecker(health.MemoryCheckerConfig{MaxAlloc: 8 << 30}))
//
//	report := agg.Report(ctx)
//	if report.Status == health.StatusUnhealthy {
//	    ...
//	}
package health
