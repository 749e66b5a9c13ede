package target

import (
	"qsol/internal/ground"
)

// BackendPlugin compiles a grounded problem into a CompiledModel and
// reports which required capabilities it lacks.
type BackendPlugin interface {
	PluginID() string
	DisplayName() string
	CapabilityCatalog() map[string]CapabilityStatus
	CheckSupport(gp *ground.Problem, required []string) []Issue
	CompileModel(gp *ground.Problem) *CompiledModel
}

// RuntimePlugin runs a CompiledModel and returns ranked, decoded
// solutions.
type RuntimePlugin interface {
	PluginID() string
	DisplayName() string
	CapabilityCatalog() map[string]CapabilityStatus
	CompatibleBackendIDs() []string
	CheckSupport(model *CompiledModel, sel Selection) []Issue
	RunModel(model *CompiledModel, sel Selection, opts RunOptions) (*StandardRunResult, error)
}

// Bundle groups the plugins one registration source contributes.
type Bundle struct {
	Backends []BackendPlugin
	Runtimes []RuntimePlugin
}
