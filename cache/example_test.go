package cache_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/cache"
)

func ExampleCache_ComputeOrFetch() {
	c := cache.New(cache.DefaultPolicy())
	ctx := context.Background()

	calls := 0
	square := func(x int) cache.ComputeFunc {
		return func(context.Context) (anyvalue.Value, error) {
			calls++
			return anyvalue.Wrap(x * x), nil
		}
	}

	v, _ := c.ComputeOrFetch(ctx, "square:5", square(5))
	fmt.Println(anyvalue.MustCast[int](v))

	v, _ = c.ComputeOrFetch(ctx, "square:5", square(5))
	fmt.Println(anyvalue.MustCast[int](v))

	fmt.Println("calls:", calls)
	// Output:
	// 25
	// 25
	// calls: 1
}

func ExampleCache_Insert() {
	c := cache.New(cache.DefaultPolicy())
	ctx := context.Background()

	_ = c.Insert(ctx, "energy", anyvalue.Wrap(-1.117))

	err := c.Insert(ctx, "energy", anyvalue.Wrap(0.0))
	fmt.Println(errors.Is(err, cache.ErrDurableConflict))

	err = c.Insert(ctx, "energy", anyvalue.Wrap(0.0), cache.Force())
	fmt.Println(err)
	// Output:
	// true
	// <nil>
}

func ExampleCache_Evict() {
	c := cache.New(cache.DefaultPolicy())
	ctx := context.Background()

	_ = c.Insert(ctx, "scratch", anyvalue.Wrap(1), cache.WithTag(cache.TagSession))
	_ = c.Insert(ctx, "result", anyvalue.Wrap(2))

	n, _ := c.Evict(ctx, cache.TagSession)
	fmt.Println("evicted:", n, "left:", c.Len())
	// Output:
	// evicted: 1 left: 1
}
