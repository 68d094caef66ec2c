package resilience

import (
	"context"
	"testing"
	"time"
)

func BenchmarkExecutor_Passthrough(b *testing.B) {
	e := NewExecutor()
	ctx := context.Background()
	op := func(context.Context) error { return nil }
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = e.Execute(ctx, op)
	}
}

func BenchmarkExecutor_AllPatterns(b *testing.B) {
	e := NewExecutor(
		WithBulkhead(NewBulkhead(BulkheadConfig{MaxConcurrent: 8, MaxWait: -1})),
		WithRetry(NewRetry(RetryConfig{})),
		WithTimeout(time.Minute),
	)
	ctx := context.Background()
	op := func(context.Context) error { return nil }
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Execute(ctx, op)
	}
}

func BenchmarkBulkhead_Parallel(b *testing.B) {
	bh := NewBulkhead(BulkheadConfig{MaxConcurrent: 4, MaxWait: -1})
	ctx := context.Background()
	op := func(context.Context) error { return nil }
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = bh.Execute(ctx, op)
		}
	})
}
