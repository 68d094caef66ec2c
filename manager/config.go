package manager

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/module"
	"github.com/jonwraymond/modmemo/resilience"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the declarative form of a Manager's module graph.
type Config struct {
	// Resilience replaces the executor guarding computations.
	Resilience *resilience.Config `yaml:"resilience,omitempty"`
	// Defaults maps property types to module keys.
	Defaults map[string]string `yaml:"defaults,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`
	// Modules configures registered modules, or copies of them, by key.
	Modules map[string]ModuleConfig `yaml:"modules,omitempty" validate:"omitempty,dive,keys,required,endkeys"`
}

// ModuleConfig configures one module.
type ModuleConfig struct {
	// CopyOf registers this key as a copy of another module.
	CopyOf string `yaml:"copy_of,omitempty"`
	// Mode is the copy mode, shared or deep. Default: shared.
	Mode string `yaml:"mode,omitempty" validate:"omitempty,oneof=shared deep"`
	// Inputs are decoded into each input's declared type.
	Inputs map[string]any `yaml:"inputs,omitempty" validate:"omitempty,dive,keys,required,endkeys"`
	// Submodules binds roles to module keys.
	Submodules map[string]string `yaml:"submodules,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`
	// Memoize toggles result caching when set.
	Memoize *bool `yaml:"memoize,omitempty"`
}

// Validate checks the configuration's structure. References to module keys
// are checked by ApplyConfig.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for key, mc := range c.Modules {
		if mc.Mode != "" && mc.CopyOf == "" {
			return fmt.Errorf("%w: %s: mode without copy_of", ErrInvalidConfig, key)
		}
		if mc.CopyOf == key {
			return fmt.Errorf("%w: %s: copies itself", ErrInvalidConfig, key)
		}
	}
	if c.Resilience != nil {
		if err := c.Resilience.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// LoadConfig decodes and validates YAML configuration. Unknown fields are
// rejected.
func LoadConfig(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyConfig applies cfg: copies are registered first, then inputs and
// submodule bindings are applied together, then defaults and memoization.
//
// Inputs and bindings are checked before anything changes; if they cannot
// all be applied, copies made by this call are erased again.
func (m *Manager) ApplyConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var exec *resilience.Executor
	if cfg.Resilience != nil {
		e, err := resilience.NewExecutorFromConfig(*cfg.Resilience)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		exec = e
	}

	order, err := m.copyOrder(cfg)
	if err != nil {
		return err
	}
	defs := make(map[string]*module.Definition, len(cfg.Modules))
	for _, key := range sortedKeys(cfg.Modules) {
		def, err := m.definitionFor(cfg, key)
		if err != nil {
			return err
		}
		defs[key] = def
	}
	values := make(map[string]map[string]anyvalue.Value, len(cfg.Modules))
	for key, mc := range cfg.Modules {
		vs, err := m.decodeInputs(defs[key], key, mc.Inputs)
		if err != nil {
			return err
		}
		values[key] = vs
	}
	for _, pt := range sortedKeys(cfg.Defaults) {
		if !m.Has(cfg.Defaults[pt]) && !isCopy(cfg, cfg.Defaults[pt]) {
			return fmt.Errorf("%w: default for %q: %q", ErrUnknownModule, pt, cfg.Defaults[pt])
		}
	}

	var created []string
	rollback := func() {
		for _, k := range created {
			m.Erase(k)
		}
	}
	for _, key := range order {
		mc := cfg.Modules[key]
		mode := module.CopyShared
		if mc.Mode == "deep" {
			mode = module.CopyDeep
		}
		if err := m.CopyModule(mc.CopyOf, key, mode); err != nil {
			rollback()
			return err
		}
		created = append(created, key)
	}

	var changes []module.Change
	for _, key := range sortedKeys(cfg.Modules) {
		mod, err := m.lookup(key)
		if err != nil {
			rollback()
			return err
		}
		for _, name := range sortedKeys(values[key]) {
			changes = append(changes, module.Change{Module: mod, Input: name, Value: values[key][name]})
		}
		subs := cfg.Modules[key].Submodules
		for _, role := range sortedKeys(subs) {
			sub, err := m.lookup(subs[role])
			if err != nil {
				rollback()
				return fmt.Errorf("%s.%s: %w", key, role, err)
			}
			changes = append(changes, module.Change{Module: mod, Role: role, Submodule: sub})
		}
	}
	if err := module.ApplyAll(changes); err != nil {
		rollback()
		return err
	}

	for _, pt := range sortedKeys(cfg.Defaults) {
		if err := m.SetDefault(pt, cfg.Defaults[pt]); err != nil {
			return err
		}
	}
	for key, mc := range cfg.Modules {
		if mc.Memoize == nil {
			continue
		}
		mod, _ := m.lookup(key)
		if *mc.Memoize {
			mod.EnableMemoization()
		} else {
			mod.DisableMemoization()
		}
	}
	if exec != nil {
		m.SetExecutor(exec)
	}
	return nil
}

// copyOrder returns the keys to copy so every source exists before its copy.
func (m *Manager) copyOrder(cfg *Config) ([]string, error) {
	var pending []string
	for _, key := range sortedKeys(cfg.Modules) {
		if cfg.Modules[key].CopyOf == "" {
			continue
		}
		if m.Has(key) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
		}
		pending = append(pending, key)
	}

	var order []string
	ready := func(key string) bool {
		if m.Has(key) {
			return true
		}
		for _, k := range order {
			if k == key {
				return true
			}
		}
		return false
	}
	for len(pending) > 0 {
		var next []string
		for _, key := range pending {
			if ready(cfg.Modules[key].CopyOf) {
				order = append(order, key)
			} else {
				next = append(next, key)
			}
		}
		if len(next) == len(pending) {
			return nil, fmt.Errorf("%w: copy_of %q for %q", ErrUnknownModule, cfg.Modules[next[0]].CopyOf, next[0])
		}
		pending = next
	}
	return order, nil
}

func (m *Manager) definitionFor(cfg *Config, key string) (*module.Definition, error) {
	for seen := 0; seen <= len(cfg.Modules); seen++ {
		if mod, err := m.lookup(key); err == nil {
			return mod.Definition(), nil
		}
		mc, ok := cfg.Modules[key]
		if !ok || mc.CopyOf == "" {
			break
		}
		key = mc.CopyOf
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownModule, key)
}

func isCopy(cfg *Config, key string) bool {
	mc, ok := cfg.Modules[key]
	return ok && mc.CopyOf != ""
}

// decodeInputs converts configured input values into the declared types via
// the registry.
func (m *Manager) decodeInputs(def *module.Definition, key string, in map[string]any) (map[string]anyvalue.Value, error) {
	out := make(map[string]anyvalue.Value, len(in))
	for name, raw := range in {
		var field *module.Field
		for i := range def.Inputs {
			if def.Inputs[i].Name == name {
				field = &def.Inputs[i]
				break
			}
		}
		if field == nil {
			return nil, fmt.Errorf("%w: %s: %q", module.ErrUnknownInput, key, name)
		}
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %w", ErrInvalidConfig, key, name, err)
		}
		v, err := m.registry.Decode(field.Type, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %w", ErrInvalidConfig, key, name, err)
		}
		if err := field.Check(v); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[name] = v
	}
	return out, nil
}

// Snapshot exports the current graph as a Config: every module's bound
// inputs, submodule bindings by key, memoization flags, and defaults.
// Inputs whose type the registry cannot encode fail with ErrNotSnapshot.
func (m *Manager) Snapshot() (*Config, error) {
	m.mu.RLock()
	keyOf := make(map[*module.Module]string, len(m.modules))
	mods := make(map[string]*module.Module, len(m.modules))
	for k, mod := range m.modules {
		keyOf[mod] = k
		mods[k] = mod
	}
	defaults := make(map[string]string, len(m.defaults))
	for pt, k := range m.defaults {
		defaults[pt] = k
	}
	m.mu.RUnlock()

	cfg := &Config{Modules: make(map[string]ModuleConfig, len(mods))}
	if len(defaults) > 0 {
		cfg.Defaults = defaults
	}
	var errs []error
	for _, key := range sortedKeys(mods) {
		mod := mods[key]
		mc := ModuleConfig{}
		if !mod.Memoizable() {
			off := false
			mc.Memoize = &off
		}
		inputs := mod.Inputs()
		for _, name := range inputs.Keys() {
			_, data, err := m.registry.Encode(inputs[name])
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s.%s: %w", ErrNotSnapshot, key, name, err))
				continue
			}
			var raw any
			if err := json.Unmarshal(data, &raw); err != nil {
				errs = append(errs, fmt.Errorf("%w: %s.%s: %w", ErrNotSnapshot, key, name, err))
				continue
			}
			if mc.Inputs == nil {
				mc.Inputs = make(map[string]any)
			}
			mc.Inputs[name] = raw
		}
		for role, sub := range mod.Submodules() {
			subKey, ok := keyOf[sub]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %s.%s: bound module %s is not registered",
					ErrNotSnapshot, key, role, sub.Identity()))
				continue
			}
			if mc.Submodules == nil {
				mc.Submodules = make(map[string]string)
			}
			mc.Submodules[role] = subKey
		}
		cfg.Modules[key] = mc
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteConfig encodes cfg as YAML.
func WriteConfig(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
