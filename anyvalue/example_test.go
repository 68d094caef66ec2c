package anyvalue_test

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/modmemo/anyvalue"
)

func ExampleCast() {
	v := anyvalue.Wrap(36)

	n, err := anyvalue.Cast[int](v)
	fmt.Println(n, err)

	_, err = anyvalue.Cast[float64](v)
	fmt.Println(errors.Is(err, anyvalue.ErrTypeMismatch))
	// Output:
	// 36 <nil>
	// true
}

func ExampleValue_Clone() {
	orig := anyvalue.Wrap([]float64{1, 2, 3})
	c, _ := orig.Clone()

	xs := anyvalue.MustCast[[]float64](c)
	xs[0] = 100

	fmt.Println(anyvalue.MustCast[[]float64](orig))
	fmt.Println(xs)
	// Output:
	// [1 2 3]
	// [100 2 3]
}

func ExampleRegistry() {
	r := anyvalue.NewRegistry()

	tag, payload, _ := r.Encode(anyvalue.Wrap(map[string]float64{"energy": -1.5}))
	fmt.Println(tag, string(payload))

	v, _ := r.Decode(tag, payload)
	fmt.Println(anyvalue.MustCast[map[string]float64](v)["energy"])
	// Output:
	// map[string]float64 {"energy":-1.5}
	// -1.5
}
