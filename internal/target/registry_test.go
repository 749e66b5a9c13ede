package target

import (
	"testing"

	"qsol/internal/ground"
)

type fakeBackend struct{ id string }

func (f fakeBackend) PluginID() string                              { return f.id }
func (f fakeBackend) DisplayName() string                           { return "fake backend " + f.id }
func (f fakeBackend) CapabilityCatalog() map[string]CapabilityStatus { return nil }
func (f fakeBackend) CheckSupport(gp *ground.Problem, required []string) []Issue { return nil }
func (f fakeBackend) CompileModel(gp *ground.Problem) *CompiledModel { return nil }

type fakeRuntime struct{ id string }

func (f fakeRuntime) PluginID() string                              { return f.id }
func (f fakeRuntime) DisplayName() string                           { return "fake runtime " + f.id }
func (f fakeRuntime) CapabilityCatalog() map[string]CapabilityStatus { return nil }
func (f fakeRuntime) CompatibleBackendIDs() []string                 { return nil }
func (f fakeRuntime) CheckSupport(model *CompiledModel, sel Selection) []Issue { return nil }
func (f fakeRuntime) RunModel(model *CompiledModel, sel Selection, opts RunOptions) (*StandardRunResult, error) {
	return nil, nil
}

func TestRegistry_RegisterBackend_RejectsDuplicateID(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterBackend(fakeBackend{"dup"}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := reg.RegisterBackend(fakeBackend{"dup"}); err == nil {
		t.Fatal("expected an error registering a duplicate backend id")
	}
}

func TestRegistry_RequireBackend_UnknownID(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.RequireBackend("nope"); err == nil {
		t.Fatal("expected an error for an unknown backend id")
	}
}

func TestRegistry_ListBackends_SortedByID(t *testing.T) {
	reg := NewRegistry()
	_ = reg.RegisterBackend(fakeBackend{"zeta"})
	_ = reg.RegisterBackend(fakeBackend{"alpha"})
	_ = reg.RegisterBackend(fakeBackend{"mu"})

	list := reg.ListBackends()
	if len(list) != 3 {
		t.Fatalf("expected 3 backends, got %d", len(list))
	}
	ids := []string{list[0].PluginID(), list[1].PluginID(), list[2].PluginID()}
	want := []string{"alpha", "mu", "zeta"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestRegistry_RegisterBundle_RegistersBothKinds(t *testing.T) {
	reg := NewRegistry()
	err := reg.RegisterBundle(Bundle{
		Backends: []BackendPlugin{fakeBackend{"b1"}},
		Runtimes: []RuntimePlugin{fakeRuntime{"r1"}},
	})
	if err != nil {
		t.Fatalf("RegisterBundle: %v", err)
	}
	if _, ok := reg.Backend("b1"); !ok {
		t.Fatal("expected backend b1 to be registered")
	}
	if _, ok := reg.Runtime("r1"); !ok {
		t.Fatal("expected runtime r1 to be registered")
	}
}

func TestRegistry_RegisterRuntime_RejectsDuplicateID(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterRuntime(fakeRuntime{"dup"}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := reg.RegisterRuntime(fakeRuntime{"dup"}); err == nil {
		t.Fatal("expected an error registering a duplicate runtime id")
	}
}
