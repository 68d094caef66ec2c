package module

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/modmemo/anyvalue"
)

// State is a module's configuration state.
type State int

const (
	// Unconfigured modules have had nothing set since creation or copy.
	Unconfigured State = iota
	// Configured modules have at least one input or submodule set.
	Configured
	// Locked modules accept changes to transparent inputs only.
	Locked
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Configured:
		return "configured"
	case Locked:
		return "locked"
	default:
		return "unknown"
	}
}

var nextID atomic.Uint64

// Module is a configured instance of a Definition.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Locking: once Locked, identity-relevant setters fail with ErrAlreadyLocked.
// - Ownership: submodules are shared by pointer; Copy states which semantics it uses.
type Module struct {
	def *Definition
	id  uint64

	mu      sync.RWMutex
	state   State
	inputs  map[string]anyvalue.Value
	subs    map[string]*Module
	memoize bool
	invoker Invoker

	profMu  sync.Mutex
	profile Profile
}

// Profile holds timing for a module's computations. Cache hits are not
// computations and are not counted.
type Profile struct {
	Calls int64
	Total time.Duration
	Last  time.Duration
}

// Mean returns the average computation time.
func (p Profile) Mean() time.Duration {
	if p.Calls == 0 {
		return 0
	}
	return p.Total / time.Duration(p.Calls)
}

// New creates an unconfigured module from def with its declared defaults bound.
func New(def *Definition) (*Module, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	m := &Module{
		def:     def,
		id:      nextID.Add(1),
		inputs:  make(map[string]anyvalue.Value, len(def.Inputs)),
		subs:    make(map[string]*Module, len(def.Submodules)),
		memoize: !def.NoMemoize,
	}
	for _, f := range def.Inputs {
		if !f.Default.IsEmpty() {
			m.inputs[f.Name] = f.Default
		}
	}
	return m, nil
}

// MustNew is like New but panics on an invalid definition.
func MustNew(def *Definition) *Module {
	m, err := New(def)
	if err != nil {
		panic(err)
	}
	return m
}

// Definition returns the module's declaration.
func (m *Module) Definition() *Definition { return m.def }

// Name returns the module name.
func (m *Module) Name() string { return m.def.Name }

// Version returns the module version.
func (m *Module) Version() string { return m.def.Version }

// Identity returns name@version.
func (m *Module) Identity() string { return m.def.Identity() }

// Description returns the module description.
func (m *Module) Description() string { return m.def.Description }

// Citations returns the references the module asks users to cite.
func (m *Module) Citations() []string {
	return append([]string(nil), m.def.Citations...)
}

// State returns the current state.
func (m *Module) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Locked reports whether the module is locked.
func (m *Module) Locked() bool {
	return m.State() == Locked
}

// Memoizable reports whether results of this module are cached.
func (m *Module) Memoizable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.memoize
}

// EnableMemoization turns result caching on.
func (m *Module) EnableMemoization() {
	m.mu.Lock()
	m.memoize = true
	m.mu.Unlock()
}

// DisableMemoization turns result caching off. Cached results stay cached.
func (m *Module) DisableMemoization() {
	m.mu.Lock()
	m.memoize = false
	m.mu.Unlock()
}

// SetInvoker routes Run through inv. The manager installs itself here.
func (m *Module) SetInvoker(inv Invoker) {
	m.mu.Lock()
	m.invoker = inv
	m.mu.Unlock()
}

// Profile returns timing for computations run so far.
func (m *Module) Profile() Profile {
	m.profMu.Lock()
	defer m.profMu.Unlock()
	return m.profile
}

func (m *Module) record(d time.Duration) {
	m.profMu.Lock()
	m.profile.Calls++
	m.profile.Total += d
	m.profile.Last = d
	m.profMu.Unlock()
}

// Input returns the bound value of an input.
func (m *Module) Input(name string) (anyvalue.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.inputs[name]
	return v, ok
}

// Inputs returns the bound input values.
func (m *Module) Inputs() anyvalue.Map {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(anyvalue.Map, len(m.inputs))
	for k, v := range m.inputs {
		out[k] = v
	}
	return out
}

// HasInput reports whether the module declares an input called name.
func (m *Module) HasInput(name string) bool {
	_, ok := m.def.input(name)
	return ok
}

// HasRole reports whether the module declares a submodule role.
func (m *Module) HasRole(role string) bool {
	_, ok := m.def.submodule(role)
	return ok
}

// SetInput binds v to the named input of m.
func SetInput[T any](m *Module, name string, v T) error {
	return m.SetInputValue(name, anyvalue.Wrap(v))
}

// SetInputValue binds v to the named input.
//
// It fails with ErrUnknownInput, ErrTypeMismatch, ErrOutOfBounds, or, for a
// non-transparent input of a locked module, ErrAlreadyLocked.
func (m *Module) SetInputValue(name string, v anyvalue.Value) error {
	if err := m.checkInput(name, v); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setInputLocked(name, v)
}

func (m *Module) checkInput(name string, v anyvalue.Value) error {
	f, ok := m.def.input(name)
	if !ok {
		return fmt.Errorf("%w: %s has no input %q", ErrUnknownInput, m.Identity(), name)
	}
	return f.Check(v)
}

func (m *Module) setInputLocked(name string, v anyvalue.Value) error {
	f, _ := m.def.input(name)
	if m.state == Locked && !f.Transparent {
		return fmt.Errorf("%w: %s: input %q", ErrAlreadyLocked, m.Identity(), name)
	}
	m.inputs[name] = v
	if m.state == Unconfigured {
		m.state = Configured
	}
	return nil
}

// Submodule returns the module bound to role.
func (m *Module) Submodule(role string) (*Module, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[role]
	return s, ok
}

// Submodules returns the current role bindings.
func (m *Module) Submodules() map[string]*Module {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Module, len(m.subs))
	for r, s := range m.subs {
		out[r] = s
	}
	return out
}

// UnboundRoles returns the declared roles with no binding, in declaration
// order, with their specs.
func (m *Module) UnboundRoles() []SubmoduleSpec {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []SubmoduleSpec
	for _, s := range m.def.Submodules {
		if m.subs[s.Role] == nil {
			out = append(out, s)
		}
	}
	return out
}

// ChangeSubmod binds sub to role. A nil sub clears the binding.
//
// It fails with ErrUnknownRole, ErrPropertyType, or ErrAlreadyLocked.
func (m *Module) ChangeSubmod(role string, sub *Module) error {
	if err := m.checkSubmod(role, sub); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setSubmodLocked(role, sub)
}

func (m *Module) checkSubmod(role string, sub *Module) error {
	spec, ok := m.def.submodule(role)
	if !ok {
		return fmt.Errorf("%w: %s has no role %q", ErrUnknownRole, m.Identity(), role)
	}
	if sub != nil && !sub.def.Satisfies(spec.PropertyType) {
		return fmt.Errorf("%w: %s bound to %s.%s wants %q",
			ErrPropertyType, sub.Identity(), m.Identity(), role, spec.PropertyType)
	}
	return nil
}

func (m *Module) setSubmodLocked(role string, sub *Module) error {
	if m.state == Locked {
		return fmt.Errorf("%w: %s: submodule %q", ErrAlreadyLocked, m.Identity(), role)
	}
	if sub == nil {
		delete(m.subs, role)
	} else {
		m.subs[role] = sub
	}
	if m.state == Unconfigured {
		m.state = Configured
	}
	return nil
}

// snapshot returns the state, inputs and bindings under one read lock.
func (m *Module) snapshot() (State, map[string]anyvalue.Value, map[string]*Module) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inputs := make(map[string]anyvalue.Value, len(m.inputs))
	for k, v := range m.inputs {
		inputs[k] = v
	}
	subs := make(map[string]*Module, len(m.subs))
	for r, s := range m.subs {
		subs[r] = s
	}
	return m.state, inputs, subs
}

func sortedRoles(subs map[string]*Module) []string {
	roles := make([]string, 0, len(subs))
	for r := range subs {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}
