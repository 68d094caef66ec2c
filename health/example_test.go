package health_test

import (
	"context"
	"fmt"

	"github.com/jonwraymond/modmemo/health"
)

func ExampleAggregator() {
	agg := health.NewAggregator()
	agg.Register(health.NewPingChecker("store", func(context.Context) error { return nil }))
	agg.Register(health.NewCheckerFunc("cache", func(context.Context) health.Result {
		return health.Degraded("session tier at capacity")
	}))

	rep := agg.Report(context.Background())
	fmt.Println(rep.Status)
	fmt.Println(rep.Checks["store"].Status, rep.Checks["cache"].Message)
	// Output:
	// degraded
	// healthy session tier at capacity
}
