package module

import (
	"fmt"
	"sort"

	"github.com/jonwraymond/modmemo/anyvalue"
)

// Change is one edit applied by ApplyAll. When Role is set the change binds
// Submodule to Role; otherwise it binds Value to Input.
type Change struct {
	Module    *Module
	Input     string
	Value     anyvalue.Value
	Role      string
	Submodule *Module
}

// ApplyAll applies every change or none. All affected modules are held for
// the duration, so no module can lock halfway through.
func ApplyAll(changes []Change) error {
	for _, c := range changes {
		if c.Module == nil {
			return ErrNilModule
		}
		var err error
		if c.Role != "" {
			err = c.Module.checkSubmod(c.Role, c.Submodule)
		} else {
			err = c.Module.checkInput(c.Input, c.Value)
		}
		if err != nil {
			return err
		}
	}

	mods := make([]*Module, 0, len(changes))
	seen := make(map[*Module]bool, len(changes))
	for _, c := range changes {
		if !seen[c.Module] {
			seen[c.Module] = true
			mods = append(mods, c.Module)
		}
	}
	// Fixed order prevents deadlock between concurrent batches.
	sort.Slice(mods, func(i, j int) bool { return mods[i].id < mods[j].id })
	for _, m := range mods {
		m.mu.Lock()
	}
	defer func() {
		for _, m := range mods {
			m.mu.Unlock()
		}
	}()

	for _, c := range changes {
		if c.Module.state != Locked {
			continue
		}
		if c.Role != "" {
			return fmt.Errorf("%w: %s: submodule %q", ErrAlreadyLocked, c.Module.Identity(), c.Role)
		}
		if f, _ := c.Module.def.input(c.Input); !f.Transparent {
			return fmt.Errorf("%w: %s: input %q", ErrAlreadyLocked, c.Module.Identity(), c.Input)
		}
	}
	for _, c := range changes {
		if c.Role != "" {
			_ = c.Module.setSubmodLocked(c.Role, c.Submodule)
		} else {
			_ = c.Module.setInputLocked(c.Input, c.Value)
		}
	}
	return nil
}
