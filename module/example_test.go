package module_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/bounds"
	"github.com/jonwraymond/modmemo/module"
)

func Example() {
	square := module.MustNew(&module.Definition{
		Name:    "square",
		Version: "1.0",
		Inputs:  []module.Field{module.Input[int]("x", module.Bounded(bounds.GreaterEqual(0)))},
		Results: []module.Field{module.Result[int]("y", "x squared")},
		Run: func(_ context.Context, c *module.Call) (anyvalue.Map, error) {
			x, err := module.InputAs[int](c, "x")
			if err != nil {
				return nil, err
			}
			return anyvalue.Map{"y": anyvalue.Wrap(x * x)}, nil
		},
	})

	out, err := square.Run(context.Background(), anyvalue.Map{"x": anyvalue.Wrap(6)})
	fmt.Println(anyvalue.MustCast[int](out["y"]), err)

	_, err = square.Run(context.Background(), anyvalue.Map{"x": anyvalue.Wrap(-1)})
	fmt.Println(errors.Is(err, module.ErrOutOfBounds))
	// Output:
	// 36 <nil>
	// true
}

func ExampleNotReadyError() {
	m := module.MustNew(&module.Definition{
		Name:       "energy",
		Inputs:     []module.Field{module.Input[string]("molecule")},
		Submodules: []module.SubmoduleSpec{{Role: "basis"}},
		Run:        func(context.Context, *module.Call) (anyvalue.Map, error) { return nil, nil },
	})

	var nr *module.NotReadyError
	if errors.As(m.Lock(), &nr) {
		fmt.Println(nr.Report())
	}
	// Output:
	// map[Inputs:[molecule] Submodules:[basis]]
}
