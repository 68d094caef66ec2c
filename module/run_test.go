package module

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/fingerprint"
)

func key(t *testing.T, m *Module, inputs anyvalue.Map) fingerprint.Fingerprint {
	t.Helper()
	fp, err := m.ComputeKey(inputs)
	if err != nil {
		t.Fatalf("ComputeKey error = %v", err)
	}
	return fp
}

func TestComputeKey_Deterministic(t *testing.T) {
	a, b := MustNew(squareDef(nil)), MustNew(squareDef(nil))
	_ = SetInput(a, "x", 5)
	_ = SetInput(b, "x", 5)
	if key(t, a, nil) != key(t, b, nil) {
		t.Error("identically configured modules have different keys")
	}
	if key(t, a, nil) == key(t, a, anyvalue.Map{"x": anyvalue.Wrap(6)}) {
		t.Error("call input did not change the key")
	}
	if key(t, a, nil) != key(t, MustNew(squareDef(nil)), anyvalue.Map{"x": anyvalue.Wrap(5)}) {
		t.Error("bound and supplied inputs give different keys")
	}
}

func TestComputeKey_RawStringInputs(t *testing.T) {
	m := MustNew(leafDef("leaf"))
	label := func(s string) anyvalue.Map { return anyvalue.Map{"label": anyvalue.Wrap(s)} }
	if key(t, m, label("\xff")) == key(t, m, label("\xfe")) {
		t.Error("invalid UTF-8 labels share a key")
	}
	if key(t, m, label("\xff")) == key(t, m, label("\uFFFD")) {
		t.Error("invalid UTF-8 label collides with U+FFFD")
	}
}

func TestComputeKey_TransparentIgnored(t *testing.T) {
	m := MustNew(squareDef(nil))
	_ = SetInput(m, "x", 5)
	before := key(t, m, nil)
	_ = SetInput(m, "verbosity", 9)
	if key(t, m, nil) != before {
		t.Error("transparent input changed the key")
	}
	if key(t, m, anyvalue.Map{"verbosity": anyvalue.Wrap(2)}) != before {
		t.Error("transparent call input changed the key")
	}

	p := MustNew(parentDef())
	_ = p.ChangeSubmod("basis", MustNew(leafDef("sto-3g", "Basis")))
	withoutLogger := key(t, p, nil)
	_ = p.ChangeSubmod("logger", MustNew(leafDef("stderr")))
	if key(t, p, nil) != withoutLogger {
		t.Error("transparent role changed the key")
	}
}

func TestComputeKey_Submodules(t *testing.T) {
	sto := MustNew(leafDef("sto-3g", "Basis"))
	ccpvdz := MustNew(leafDef("cc-pvdz", "Basis"))
	a, b := MustNew(parentDef()), MustNew(parentDef())
	_ = a.ChangeSubmod("basis", sto)
	_ = b.ChangeSubmod("basis", ccpvdz)
	if key(t, a, nil) == key(t, b, nil) {
		t.Error("different submodules give the same key")
	}

	_ = SetInput(ccpvdz, "label", "x")
	kb := key(t, b, nil)
	_ = SetInput(ccpvdz, "label", "y")
	if key(t, b, nil) == kb {
		t.Error("submodule input change did not change the parent key")
	}
}

func TestComputeKey_Invalid(t *testing.T) {
	m := MustNew(squareDef(nil))
	tests := []struct {
		name   string
		inputs anyvalue.Map
		want   error
	}{
		{"not ready", nil, ErrNotReady},
		{"unknown input", anyvalue.Map{"z": anyvalue.Wrap(1)}, ErrUnknownInput},
		{"out of bounds", anyvalue.Map{"x": anyvalue.Wrap(-4)}, ErrOutOfBounds},
		{"wrong type", anyvalue.Map{"x": anyvalue.Wrap("5")}, ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.ComputeKey(tt.inputs); !errors.Is(err, tt.want) {
				t.Errorf("ComputeKey error = %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := (Invocation{}).Fingerprint(); !errors.Is(err, ErrNilModule) {
		t.Errorf("nil invocation error = %v", err)
	}
}

func TestRun_Direct(t *testing.T) {
	var calls atomic.Int64
	m := MustNew(squareDef(&calls))

	got, err := m.Run(context.Background(), anyvalue.Map{"x": anyvalue.Wrap(5)})
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if y := anyvalue.MustCast[int](got["y"]); y != 25 {
		t.Errorf("y = %d, want 25", y)
	}
	if !m.Locked() {
		t.Error("Run did not lock the module")
	}
	// without a cache every run computes
	_, _ = m.Run(context.Background(), anyvalue.Map{"x": anyvalue.Wrap(5)})
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if p := m.Profile(); p.Calls != 2 || p.Total < p.Last {
		t.Errorf("Profile() = %+v", p)
	}

	if _, err := m.Run(context.Background(), nil); !errors.Is(err, ErrNotReady) {
		t.Errorf("Run without x error = %v", err)
	}
}

func TestRun_ResultValidation(t *testing.T) {
	tests := []struct {
		name    string
		results anyvalue.Map
		want    error
	}{
		{"missing", anyvalue.Map{}, ErrMissingResult},
		{"wrong type", anyvalue.Map{"y": anyvalue.Wrap(2.5)}, ErrTypeMismatch},
		{"undeclared", anyvalue.Map{"y": anyvalue.Wrap(1), "z": anyvalue.Wrap(1)}, ErrUnknownResult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := squareDef(nil)
			def.Run = func(context.Context, *Call) (anyvalue.Map, error) { return tt.results, nil }
			m := MustNew(def)
			_, err := m.Run(context.Background(), anyvalue.Map{"x": anyvalue.Wrap(1)})
			if !errors.Is(err, tt.want) {
				t.Errorf("Run error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRun_Error(t *testing.T) {
	boom := errors.New("boom")
	def := squareDef(nil)
	def.Run = func(context.Context, *Call) (anyvalue.Map, error) { return nil, boom }
	m := MustNew(def)
	if _, err := m.Run(context.Background(), anyvalue.Map{"x": anyvalue.Wrap(1)}); !errors.Is(err, boom) {
		t.Errorf("Run error = %v, want boom", err)
	}
}

func TestRun_Submodule(t *testing.T) {
	p := MustNew(parentDef())
	_ = p.ChangeSubmod("basis", MustNew(leafDef("sto-3g", "Basis")))

	got, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if name := anyvalue.MustCast[string](got["name"]); name != "sto-3g" {
		t.Errorf("name = %q", name)
	}
}

func TestCall_Submodule(t *testing.T) {
	def := parentDef()
	var unknown, unbound error
	def.Run = func(ctx context.Context, c *Call) (anyvalue.Map, error) {
		_, unknown = c.Submodule("nope")
		_, unbound = c.Submodule("logger")
		return nil, nil
	}
	p := MustNew(def)
	_ = p.ChangeSubmod("basis", MustNew(leafDef("sto-3g", "Basis")))
	if _, err := p.Run(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(unknown, ErrUnknownRole) {
		t.Errorf("unknown role error = %v", unknown)
	}
	if !errors.Is(unbound, ErrUnboundRole) {
		t.Errorf("unbound role error = %v", unbound)
	}
}

func TestRun_InvokerRouting(t *testing.T) {
	var seen []string
	inv := InvokerFunc(func(ctx context.Context, m *Module, inputs anyvalue.Map) (anyvalue.Map, error) {
		seen = append(seen, m.Name())
		return m.Execute(ctx, inputs, nil)
	})

	p := MustNew(parentDef())
	_ = p.ChangeSubmod("basis", MustNew(leafDef("sto-3g", "Basis")))
	p.SetInvoker(inv)

	if _, err := p.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if len(seen) != 2 || seen[0] != "parent" || seen[1] != "sto-3g" {
		t.Errorf("invoked = %v, want [parent sto-3g]", seen)
	}
}
