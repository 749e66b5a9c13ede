package runtime_test

import (
	"testing"

	"qsol/internal/ground"
	"qsol/internal/kernel"
	"qsol/internal/runtime"
	"qsol/internal/target"
)

func TestCQMBackend_CompileModel(t *testing.T) {
	b := runtime.NewCQMBackend()
	gp := &ground.Problem{
		Name: "P",
		Vars: []ground.FindVar{
			{Label: "x", Find: "S", Kind: "Subset", A: "a"},
		},
		Constraints: []ground.Constraint{
			{Kind: kernel.Must, Expr: &ground.Var{Label: "x"}},
		},
	}

	model := b.CompileModel(gp)
	if model.Kind != "cqm" {
		t.Fatalf("expected kind cqm, got %q", model.Kind)
	}
	if model.BackendID != b.PluginID() {
		t.Fatalf("expected BackendID %q, got %q", b.PluginID(), model.BackendID)
	}
	if len(model.Diagnostics) != 0 {
		t.Fatalf("expected no diagnostics for a well-formed problem, got %+v", model.Diagnostics)
	}
	if model.Stats["num_variables"].(int) != 1 {
		t.Fatalf("expected num_variables=1, got %+v", model.Stats)
	}
}

func TestCQMBackend_CheckSupport_FlagsUnsupportedCapability(t *testing.T) {
	b := runtime.NewCQMBackend()
	issues := b.CheckSupport(&ground.Problem{}, []string{"unknown.custom.v1"})
	if len(issues) != 1 {
		t.Fatalf("expected exactly one issue for unknown.custom.v1 (CapNone), got %+v", issues)
	}
	if issues[0].CapabilityID != "unknown.custom.v1" {
		t.Fatalf("unexpected capability id: %+v", issues[0])
	}
}

func TestCQMBackend_CheckSupport_UnlistedCapabilityAlsoFlagged(t *testing.T) {
	b := runtime.NewCQMBackend()
	issues := b.CheckSupport(&ground.Problem{}, []string{"does.not.exist.v1"})
	if len(issues) != 1 {
		t.Fatalf("expected an issue for a capability absent from the catalog, got %+v", issues)
	}
}

func TestCQMBackend_CheckSupport_AcceptsFullySupportedCapabilities(t *testing.T) {
	b := runtime.NewCQMBackend()
	issues := b.CheckSupport(&ground.Problem{}, []string{
		"constraint.compare.eq.v1", "expression.bool.and.v1",
	})
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestCQMBackend_PluginIdentity(t *testing.T) {
	b := runtime.NewCQMBackend()
	if b.PluginID() != "dimod-cqm-v1" {
		t.Fatalf("unexpected plugin id: %q", b.PluginID())
	}
	if _, ok := interface{}(b).(target.BackendPlugin); !ok {
		t.Fatal("CQMBackend must satisfy target.BackendPlugin")
	}
}
