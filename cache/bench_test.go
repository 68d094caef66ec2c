package cache

import (
	"context"
	"fmt"
	"testing"

	"github.com/jonwraymond/modmemo/anyvalue"
)

// BenchmarkCache_Lookup_Hit measures cache hit performance.
func BenchmarkCache_Lookup_Hit(b *testing.B) {
	c := New(DefaultPolicy())
	ctx := context.Background()
	_ = c.Insert(ctx, "key", anyvalue.Wrap(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Lookup(ctx, "key")
	}
}

// BenchmarkCache_Lookup_Miss measures cache miss performance.
func BenchmarkCache_Lookup_Miss(b *testing.B) {
	c := New(DefaultPolicy())
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Lookup(ctx, "missing")
	}
}

// BenchmarkCache_Insert_Session measures bounded session inserts.
func BenchmarkCache_Insert_Session(b *testing.B) {
	c := New(SessionPolicy(1024))
	ctx := context.Background()
	v := anyvalue.Wrap(1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Insert(ctx, Key(fmt.Sprintf("key-%d", i)), v)
	}
}

// BenchmarkCache_ComputeOrFetch_Hit measures the memoized fast path.
func BenchmarkCache_ComputeOrFetch_Hit(b *testing.B) {
	c := New(DefaultPolicy())
	ctx := context.Background()
	fn := func(context.Context) (anyvalue.Value, error) { return anyvalue.Wrap(1), nil }
	_, _ = c.ComputeOrFetch(ctx, "key", fn)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.ComputeOrFetch(ctx, "key", fn)
	}
}

// BenchmarkCache_ComputeOrFetch_Parallel measures contention on one key.
func BenchmarkCache_ComputeOrFetch_Parallel(b *testing.B) {
	c := New(DefaultPolicy())
	ctx := context.Background()
	fn := func(context.Context) (anyvalue.Value, error) { return anyvalue.Wrap(1), nil }

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = c.ComputeOrFetch(ctx, "key", fn)
		}
	})
}
