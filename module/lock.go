package module

import (
	"fmt"

	"github.com/jonwraymond/modmemo/anyvalue"
)

// Ready reports whether the module could lock with inputs supplied by a call.
func (m *Module) Ready(inputs anyvalue.Map) bool {
	return m.NotReady(inputs) == nil
}

// NotReady reports what keeps the module from locking with inputs supplied
// by a call, or nil when nothing does.
//
// Required inputs of m must be bound or supplied. Submodules are checked
// structurally: every required role down the graph must be bound. Their
// inputs are checked when they run, since callers usually supply them.
func (m *Module) NotReady(inputs anyvalue.Map) *NotReadyError {
	r := m.notReady(inputs, true, make(map[*Module]bool))
	if r.empty() {
		return nil
	}
	return r
}

func (m *Module) notReady(inputs anyvalue.Map, checkInputs bool, path map[*Module]bool) *NotReadyError {
	state, bound, subs := m.snapshot()
	r := &NotReadyError{Module: m.Identity()}

	if checkInputs {
		m.missingInputs(r, inputs, bound)
	}
	if state == Locked {
		// locked graphs were complete when they locked and cannot change
		return r
	}
	m.missingRoles(r, subs)

	path[m] = true
	defer delete(path, m)
	for _, s := range m.def.Submodules {
		sub := subs[s.Role]
		if sub == nil || path[sub] {
			continue
		}
		if nr := sub.notReady(nil, false, path); !nr.empty() {
			if r.Nested == nil {
				r.Nested = make(map[string]*NotReadyError)
			}
			r.Nested[s.Role] = nr
		}
	}
	return r
}

// missingInputs adds required inputs that neither inputs nor bound supply.
func (m *Module) missingInputs(r *NotReadyError, inputs, bound anyvalue.Map) {
	for _, f := range m.def.Inputs {
		if f.Optional {
			continue
		}
		if v, ok := inputs[f.Name]; ok && !v.IsEmpty() {
			continue
		}
		if v, ok := bound[f.Name]; ok && !v.IsEmpty() {
			continue
		}
		r.Inputs = append(r.Inputs, f.Name)
	}
}

// missingRoles adds required roles without a binding in subs.
func (m *Module) missingRoles(r *NotReadyError, subs map[string]*Module) {
	for _, s := range m.def.Submodules {
		if subs[s.Role] == nil && !s.Optional {
			r.Submodules = append(r.Submodules, s.Role)
		}
	}
}

// Lock freezes the module and, first, every module reachable through its
// submodules. It fails with a *NotReadyError (matching ErrNotReady) when a
// required input or role is unset, and with ErrCycle when the submodule
// graph loops. Locking a locked module does nothing.
func (m *Module) Lock() error {
	return m.lockFor(nil)
}

// lockFor locks m treating inputs as supplied for its own required inputs.
func (m *Module) lockFor(inputs anyvalue.Map) error {
	if m.Locked() {
		return nil
	}
	if r := m.NotReady(inputs); r != nil {
		return r
	}
	if err := m.checkAcyclic(make(map[*Module]bool)); err != nil {
		return err
	}
	return m.lockTree(inputs, true)
}

func (m *Module) checkAcyclic(path map[*Module]bool) error {
	if path[m] {
		return fmt.Errorf("%w: through %s", ErrCycle, m.Identity())
	}
	state, _, subs := m.snapshot()
	if state == Locked {
		return nil
	}
	path[m] = true
	defer delete(path, m)
	for _, role := range sortedRoles(subs) {
		if err := subs[role].checkAcyclic(path); err != nil {
			return fmt.Errorf("%s.%s: %w", m.Identity(), role, err)
		}
	}
	return nil
}

// lockTree locks submodules bottom-up, then m. If bindings change while
// children lock, it starts over with the new bindings. Readiness is checked
// again under m's lock before m locks.
func (m *Module) lockTree(inputs anyvalue.Map, checkInputs bool) error {
	for {
		state, _, subs := m.snapshot()
		if state == Locked {
			return nil
		}
		for _, role := range sortedRoles(subs) {
			if err := subs[role].lockTree(nil, false); err != nil {
				return err
			}
		}

		m.mu.Lock()
		if m.state == Locked {
			m.mu.Unlock()
			return nil
		}
		if !sameBindings(m.subs, subs) {
			m.mu.Unlock()
			continue
		}
		r := &NotReadyError{Module: m.Identity()}
		if checkInputs {
			m.missingInputs(r, inputs, m.inputs)
		}
		m.missingRoles(r, m.subs)
		if !r.empty() {
			m.mu.Unlock()
			return r
		}
		m.state = Locked
		m.mu.Unlock()
		return nil
	}
}

func sameBindings(a, b map[string]*Module) bool {
	if len(a) != len(b) {
		return false
	}
	for r, s := range a {
		if b[r] != s {
			return false
		}
	}
	return true
}
