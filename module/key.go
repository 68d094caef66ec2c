package module

import (
	"fmt"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/fingerprint"
)

// CheckInputs validates inputs supplied by a call against the declared
// fields: names must be declared and values must pass type and bounds checks.
func (m *Module) CheckInputs(inputs anyvalue.Map) error {
	for _, name := range inputs.Keys() {
		if err := m.checkInput(name, inputs[name]); err != nil {
			return fmt.Errorf("module: %s: %w", m.Identity(), err)
		}
	}
	return nil
}

// ComputeKey fingerprints m for a call with inputs.
//
// The fingerprint covers the module identity, the configuration fingerprint
// of every bound non-transparent submodule (by role), and every
// non-transparent input value (call inputs override bound ones). Invalid or
// incomplete configurations fail instead of producing a key.
func (m *Module) ComputeKey(inputs anyvalue.Map) (fingerprint.Fingerprint, error) {
	if err := m.CheckInputs(inputs); err != nil {
		return fingerprint.Fingerprint{}, err
	}
	if r := m.NotReady(inputs); r != nil {
		return fingerprint.Fingerprint{}, r
	}
	return m.fingerprint(inputs, make(map[*Module]bool))
}

// Fingerprint returns the configuration fingerprint: ComputeKey with only
// the bound inputs.
func (m *Module) Fingerprint() (fingerprint.Fingerprint, error) {
	return m.ComputeKey(nil)
}

func (m *Module) fingerprint(inputs anyvalue.Map, path map[*Module]bool) (fingerprint.Fingerprint, error) {
	if path[m] {
		return fingerprint.Fingerprint{}, fmt.Errorf("%w: through %s", ErrCycle, m.Identity())
	}
	path[m] = true
	defer delete(path, m)

	_, bound, subs := m.snapshot()
	b := fingerprint.New(m.Name(), m.Version())
	for _, f := range m.def.Inputs {
		if f.Transparent {
			continue
		}
		v, ok := inputs[f.Name]
		if !ok {
			v = bound[f.Name]
		}
		b.Input(f.Name, v)
	}
	for _, s := range m.def.Submodules {
		sub := subs[s.Role]
		if s.Transparent || sub == nil {
			continue
		}
		fp, err := sub.fingerprint(nil, path)
		if err != nil {
			return fingerprint.Fingerprint{}, fmt.Errorf("%s.%s: %w", m.Identity(), s.Role, err)
		}
		b.Submodule(s.Role, fp)
	}

	fp, err := b.Sum()
	if err != nil {
		return fingerprint.Fingerprint{}, fmt.Errorf("module: %s: %w", m.Identity(), err)
	}
	return fp, nil
}

// Invocation is one call of a module with its call inputs.
// It implements cache.Keyer.
type Invocation struct {
	Module *Module
	Inputs anyvalue.Map
}

// Fingerprint returns the key of the invocation.
func (i Invocation) Fingerprint() (fingerprint.Fingerprint, error) {
	if i.Module == nil {
		return fingerprint.Fingerprint{}, ErrNilModule
	}
	return i.Module.ComputeKey(i.Inputs)
}
