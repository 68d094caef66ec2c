package module

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/modmemo/anyvalue"
)

// Invoker runs a prepared module, typically through a cache.
//
// Contract:
// - Invoke is called after Prepare succeeded for the same inputs.
// - Implementations compute results with Execute, passing themselves so
//   submodule calls are routed back through them.
type Invoker interface {
	Invoke(ctx context.Context, m *Module, inputs anyvalue.Map) (anyvalue.Map, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, m *Module, inputs anyvalue.Map) (anyvalue.Map, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, m *Module, inputs anyvalue.Map) (anyvalue.Map, error) {
	return f(ctx, m, inputs)
}

// Run validates inputs, locks the module, and computes its results through
// its invoker. Without an invoker the module computes directly.
func (m *Module) Run(ctx context.Context, inputs anyvalue.Map) (anyvalue.Map, error) {
	return m.run(ctx, inputs, nil)
}

func (m *Module) run(ctx context.Context, inputs anyvalue.Map, fallback Invoker) (anyvalue.Map, error) {
	if err := m.Prepare(inputs); err != nil {
		return nil, err
	}
	inv := m.getInvoker()
	if inv == nil {
		inv = fallback
	}
	if inv == nil {
		return m.Execute(ctx, inputs, nil)
	}
	return inv.Invoke(ctx, m, inputs)
}

// Prepare validates call inputs and locks the module for them. Nothing
// invalid gets past Prepare to fingerprinting or the cache.
func (m *Module) Prepare(inputs anyvalue.Map) error {
	if err := m.CheckInputs(inputs); err != nil {
		return err
	}
	if r := m.NotReady(inputs); r != nil {
		return r
	}
	if m.Locked() {
		return nil
	}
	if err := m.checkAcyclic(make(map[*Module]bool)); err != nil {
		return err
	}
	return m.lockTree(inputs, true)
}

func (m *Module) getInvoker() Invoker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.invoker
}

// Execute runs the module's computation once, without consulting any cache.
// Submodule calls made by the computation go through inv.
func (m *Module) Execute(ctx context.Context, inputs anyvalue.Map, inv Invoker) (anyvalue.Map, error) {
	_, bound, subs := m.snapshot()
	for k, v := range inputs {
		bound[k] = v
	}
	if inv == nil {
		inv = m.getInvoker()
	}
	call := &Call{module: m, inputs: bound, subs: subs, invoker: inv}

	start := time.Now()
	results, err := m.def.Run(ctx, call)
	m.record(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("module: %s: %w", m.Identity(), err)
	}
	if err := m.checkResults(results); err != nil {
		return nil, err
	}
	return results, nil
}

func (m *Module) checkResults(results anyvalue.Map) error {
	if len(m.def.Results) == 0 {
		return nil
	}
	for _, f := range m.def.Results {
		v, ok := results[f.Name]
		if !ok || v.IsEmpty() {
			return fmt.Errorf("%w: %s: %q", ErrMissingResult, m.Identity(), f.Name)
		}
		if v.Type() != f.Type {
			return fmt.Errorf("module: %s: result %q: %w: want %s, have %s",
				m.Identity(), f.Name, ErrTypeMismatch, f.Type, v.Type())
		}
	}
	for _, name := range results.Keys() {
		if _, ok := m.def.result(name); !ok {
			return fmt.Errorf("%w: %s: %q", ErrUnknownResult, m.Identity(), name)
		}
	}
	return nil
}

// Call is what a RunFunc sees of its module during one computation.
type Call struct {
	module  *Module
	inputs  anyvalue.Map
	subs    map[string]*Module
	invoker Invoker
}

// Module returns the module being run.
func (c *Call) Module() *Module {
	return c.module
}

// Value returns the effective value of an input.
func (c *Call) Value(name string) (anyvalue.Value, bool) {
	v, ok := c.inputs[name]
	return v, ok && !v.IsEmpty()
}

// Inputs returns all effective input values.
func (c *Call) Inputs() anyvalue.Map {
	out := make(anyvalue.Map, len(c.inputs))
	for k, v := range c.inputs {
		out[k] = v
	}
	return out
}

// InputAs returns the effective value of an input as T.
func InputAs[T any](c *Call, name string) (T, error) {
	return anyvalue.Field[T](c.inputs, name)
}

// Submodule returns the module bound to role for this call.
func (c *Call) Submodule(role string) (*Module, error) {
	if !c.module.HasRole(role) {
		return nil, fmt.Errorf("%w: %s has no role %q", ErrUnknownRole, c.module.Identity(), role)
	}
	sub := c.subs[role]
	if sub == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnboundRole, c.module.Identity(), role)
	}
	return sub, nil
}

// RunSubmodule runs the module bound to role with inputs. The call goes
// through the submodule's invoker, or this call's when it has none, so
// submodule results are memoized like any other.
func (c *Call) RunSubmodule(ctx context.Context, role string, inputs anyvalue.Map) (anyvalue.Map, error) {
	sub, err := c.Submodule(role)
	if err != nil {
		return nil, err
	}
	return sub.run(ctx, inputs, c.invoker)
}
