package module

import (
	"fmt"

	"github.com/jonwraymond/modmemo/anyvalue"
)

// CopyMode selects how Copy treats submodules.
type CopyMode int

const (
	// CopyShared binds the copy to the same submodule instances. A change to
	// a shared submodule is visible through both modules.
	CopyShared CopyMode = iota
	// CopyDeep clones every reachable submodule once. Sharing inside the
	// copied graph is preserved; sharing with the original is severed.
	CopyDeep
)

// String returns the mode name.
func (c CopyMode) String() string {
	switch c {
	case CopyShared:
		return "shared"
	case CopyDeep:
		return "deep"
	default:
		return fmt.Sprintf("CopyMode(%d)", int(c))
	}
}

// Copy returns an unlocked duplicate of m. Input values are cloned, so a
// value that cannot be cloned fails the copy with ErrNotCopyable.
func (m *Module) Copy(mode CopyMode) (*Module, error) {
	switch mode {
	case CopyShared:
		return m.copyOne()
	case CopyDeep:
		return m.deepCopy(make(map[*Module]*Module))
	default:
		return nil, fmt.Errorf("module: unknown copy mode %d", int(mode))
	}
}

func (m *Module) copyOne() (*Module, error) {
	m.mu.RLock()
	state := m.state
	memoize, inv := m.memoize, m.invoker
	inputs := make(map[string]anyvalue.Value, len(m.inputs))
	for k, v := range m.inputs {
		inputs[k] = v
	}
	subs := make(map[string]*Module, len(m.subs))
	for r, s := range m.subs {
		subs[r] = s
	}
	m.mu.RUnlock()

	cloned, err := anyvalue.Map(inputs).Clone()
	if err != nil {
		return nil, fmt.Errorf("module: copy %s: %w", m.Identity(), err)
	}
	if state == Locked {
		state = Configured
	}
	return &Module{
		def:     m.def,
		id:      nextID.Add(1),
		state:   state,
		inputs:  cloned,
		subs:    subs,
		memoize: memoize,
		invoker: inv,
	}, nil
}

func (m *Module) deepCopy(seen map[*Module]*Module) (*Module, error) {
	if c, ok := seen[m]; ok {
		return c, nil
	}
	c, err := m.copyOne()
	if err != nil {
		return nil, err
	}
	seen[m] = c
	for role, sub := range c.subs {
		dc, err := sub.deepCopy(seen)
		if err != nil {
			return nil, fmt.Errorf("module: copy %s.%s: %w", m.Identity(), role, err)
		}
		c.subs[role] = dc
	}
	return c, nil
}
