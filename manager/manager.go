package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/cache"
	"github.com/jonwraymond/modmemo/health"
	"github.com/jonwraymond/modmemo/module"
	"github.com/jonwraymond/modmemo/observe"
	"github.com/jonwraymond/modmemo/resilience"
)

// Manager is a registry of configured modules sharing one cache.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Ownership: registered modules are owned by the Manager; At hands out
//   the live module, not a copy.
// - Errors: unknown keys fail with ErrUnknownModule.
type Manager struct {
	mu       sync.RWMutex
	modules  map[string]*module.Module
	defaults map[string]string

	cache    *cache.Cache
	observer observe.Observer
	logger   observe.Logger
	mw       *observe.Middleware
	registry *anyvalue.Registry
	tagOpts  []cache.InsertOption
	checkers []health.Checker

	execMu sync.RWMutex
	exec   *resilience.Executor
}

// New creates an empty Manager.
func New(opts ...Option) (*Manager, error) {
	m := &Manager{
		modules:  make(map[string]*module.Module),
		defaults: make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.observer != nil {
		mw, err := observe.MiddlewareFromObserver(m.observer)
		if err != nil {
			return nil, err
		}
		m.mw = mw
		m.logger = mw.Logger()
	} else {
		m.mw = observe.NewMiddleware(nil, nil, m.logger)
		m.logger = m.mw.Logger()
	}
	if m.cache == nil {
		var copts []cache.Option
		if m.observer != nil {
			copts = append(copts, cache.WithMeter(m.observer.Meter()))
		}
		m.cache = cache.New(cache.DefaultPolicy(), copts...)
	}
	if m.registry == nil {
		m.registry = anyvalue.NewRegistry()
	}
	return m, nil
}

// Cache returns the cache results are memoized in.
func (m *Manager) Cache() *cache.Cache {
	return m.cache
}

// Registry returns the registry used to decode configured inputs.
func (m *Manager) Registry() *anyvalue.Registry {
	return m.registry
}

// SetExecutor replaces the resilience executor for later computations.
func (m *Manager) SetExecutor(e *resilience.Executor) {
	m.execMu.Lock()
	m.exec = e
	m.execMu.Unlock()
}

func (m *Manager) executor() *resilience.Executor {
	m.execMu.RLock()
	defer m.execMu.RUnlock()
	return m.exec
}

// Register creates a module from def and stores it under key.
func (m *Manager) Register(key string, def *module.Definition) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidConfig)
	}
	mod, err := module.New(def)
	if err != nil {
		return err
	}
	return m.add(key, mod)
}

func (m *Manager) add(key string, mod *module.Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.modules[key]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}
	mod.SetInvoker(m)
	m.modules[key] = mod
	return nil
}

// Erase removes the module under key, and any default pointing at it.
// Cached results are kept. Erasing a missing key is a no-op.
func (m *Manager) Erase(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.modules, key)
	for pt, k := range m.defaults {
		if k == key {
			delete(m.defaults, pt)
		}
	}
}

// Has reports whether key is registered.
func (m *Manager) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.modules[key]
	return ok
}

// Keys returns the registered keys in sorted order.
func (m *Manager) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.modules))
	for k := range m.modules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered modules.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.modules)
}

// SetDefault makes the module under key the default for propertyType.
func (m *Manager) SetDefault(propertyType, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod, ok := m.modules[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModule, key)
	}
	if !mod.Definition().Satisfies(propertyType) {
		return fmt.Errorf("%w: %q for %q", module.ErrPropertyType, key, propertyType)
	}
	m.defaults[propertyType] = key
	return nil
}

// Default returns the key of the default module for propertyType.
func (m *Manager) Default(propertyType string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.defaults[propertyType]
	return k, ok
}

func (m *Manager) lookup(key string) (*module.Module, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mod, ok := m.modules[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, key)
	}
	return mod, nil
}

// At returns the module under key. Unbound submodule roles of an unlocked
// module are first bound to the default for their property type, when that
// default is ready.
func (m *Manager) At(key string) (*module.Module, error) {
	return m.at(key, make(map[string]bool))
}

func (m *Manager) at(key string, visiting map[string]bool) (*module.Module, error) {
	mod, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	if mod.Locked() || visiting[key] {
		return mod, nil
	}
	visiting[key] = true
	defer delete(visiting, key)

	for _, spec := range mod.UnboundRoles() {
		if spec.PropertyType == "" {
			continue
		}
		dkey, ok := m.Default(spec.PropertyType)
		if !ok || visiting[dkey] {
			continue
		}
		dmod, err := m.at(dkey, visiting)
		if err != nil || dmod == mod || !dmod.Ready(nil) {
			continue
		}
		if err := mod.ChangeSubmod(spec.Role, dmod); err != nil {
			if errors.Is(err, module.ErrAlreadyLocked) {
				break
			}
			return nil, err
		}
	}
	return mod, nil
}

// CopyModule registers a copy of the module under from as to.
func (m *Manager) CopyModule(from, to string, mode module.CopyMode) error {
	src, err := m.lookup(from)
	if err != nil {
		return err
	}
	dup, err := src.Copy(mode)
	if err != nil {
		return err
	}
	return m.add(to, dup)
}

// ChangeInput sets input name of the module under key.
func (m *Manager) ChangeInput(key, name string, v anyvalue.Value) error {
	mod, err := m.lookup(key)
	if err != nil {
		return err
	}
	return mod.SetInputValue(name, v)
}

// SetInput sets input name of the module under key to v.
func SetInput[T any](m *Manager, key, name string, v T) error {
	return m.ChangeInput(key, name, anyvalue.Wrap(v))
}

// ChangeSubmod binds the module under subKey to role of the module under
// modKey.
func (m *Manager) ChangeSubmod(modKey, role, subKey string) error {
	mod, err := m.lookup(modKey)
	if err != nil {
		return err
	}
	sub, err := m.lookup(subKey)
	if err != nil {
		return err
	}
	return mod.ChangeSubmod(role, sub)
}

// CascadeInput sets input name on every module declaring it. Either every
// such module changes or none does. It returns how many modules changed.
func (m *Manager) CascadeInput(name string, v anyvalue.Value) (int, error) {
	var changes []module.Change
	for _, mod := range m.snapshotModules() {
		if mod.HasInput(name) {
			changes = append(changes, module.Change{Module: mod, Input: name, Value: v})
		}
	}
	if err := module.ApplyAll(changes); err != nil {
		return 0, err
	}
	return len(changes), nil
}

// CascadeSubmod binds the module under subKey to role on every other module
// declaring that role. Either every such module changes or none does.
func (m *Manager) CascadeSubmod(role, subKey string) (int, error) {
	sub, err := m.lookup(subKey)
	if err != nil {
		return 0, err
	}
	var changes []module.Change
	for _, mod := range m.snapshotModules() {
		if mod != sub && mod.HasRole(role) {
			changes = append(changes, module.Change{Module: mod, Role: role, Submodule: sub})
		}
	}
	if err := module.ApplyAll(changes); err != nil {
		return 0, err
	}
	return len(changes), nil
}

// snapshotModules returns the registered modules ordered by key.
func (m *Manager) snapshotModules() []*module.Module {
	keys := m.Keys()
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*module.Module, 0, len(keys))
	for _, k := range keys {
		if mod, ok := m.modules[k]; ok {
			out = append(out, mod)
		}
	}
	return out
}

// Health runs the cache check and every configured checker.
func (m *Manager) Health(ctx context.Context) health.Report {
	agg := health.NewAggregator()
	agg.Register(cache.NewChecker(m.cache))
	for _, c := range m.checkers {
		agg.Register(c)
	}
	return agg.Report(ctx)
}

var _ module.Invoker = (*Manager)(nil)
