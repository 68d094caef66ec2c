package module

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/bounds"
)

// Sentinel errors for module operations.
var (
	ErrNotReady      = errors.New("module: not ready")
	ErrAlreadyLocked = errors.New("module: already locked")
	ErrUnknownRole   = errors.New("module: unknown submodule role")
	ErrUnknownInput  = errors.New("module: unknown input")
	ErrCycle         = errors.New("module: submodule cycle")
	ErrPropertyType  = errors.New("module: submodule does not satisfy property type")
	ErrInvalidDef    = errors.New("module: invalid definition")
	ErrMissingResult = errors.New("module: declared result missing")
	ErrUnknownResult = errors.New("module: undeclared result")
	ErrNilModule     = errors.New("module: module is nil")
	ErrUnboundRole   = errors.New("module: submodule role is unbound")
	ErrTypeMismatch  = anyvalue.ErrTypeMismatch
	ErrOutOfBounds   = bounds.ErrOutOfBounds
	ErrNotCopyable   = anyvalue.ErrNotCopyable
)

// NotReadyError reports what keeps a module from locking.
// It matches ErrNotReady with errors.Is.
type NotReadyError struct {
	// Module is the identity of the module that is not ready.
	Module string
	// Inputs lists required inputs without a value.
	Inputs []string
	// Submodules lists required roles without a binding.
	Submodules []string
	// Nested holds reports for bound submodules that are not ready, by role.
	Nested map[string]*NotReadyError
}

// Error renders the report on one line.
func (e *NotReadyError) Error() string {
	var b strings.Builder
	b.WriteString("module: ")
	b.WriteString(e.Module)
	b.WriteString(" not ready")
	e.describe(&b)
	return b.String()
}

func (e *NotReadyError) describe(b *strings.Builder) {
	if len(e.Inputs) > 0 {
		fmt.Fprintf(b, "; inputs %v", e.Inputs)
	}
	if len(e.Submodules) > 0 {
		fmt.Fprintf(b, "; submodules %v", e.Submodules)
	}
	roles := make([]string, 0, len(e.Nested))
	for r := range e.Nested {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	for _, r := range roles {
		fmt.Fprintf(b, "; %s (%s):", r, e.Nested[r].Module)
		e.Nested[r].describe(b)
	}
}

// Unwrap lets errors.Is match ErrNotReady.
func (e *NotReadyError) Unwrap() error {
	return ErrNotReady
}

// Report returns the missing pieces keyed the way module authors read them.
func (e *NotReadyError) Report() map[string][]string {
	out := map[string][]string{}
	if len(e.Inputs) > 0 {
		out["Inputs"] = append([]string(nil), e.Inputs...)
	}
	if len(e.Submodules) > 0 {
		out["Submodules"] = append([]string(nil), e.Submodules...)
	}
	return out
}

func (e *NotReadyError) empty() bool {
	return len(e.Inputs) == 0 && len(e.Submodules) == 0 && len(e.Nested) == 0
}
