// Package target implements spec.md §5's targeting layer: capability
// extraction from a Ground IR, a plugin registry for backends and
// runtimes, target-selection resolution, and pair-compatibility
// checking. Grounded on original_source/targeting/{types,interfaces,
// compatibility,registry,resolution}.py.
package target

import "qsol/internal/diag"

// CapabilityStatus is how completely a plugin supports a capability.
type CapabilityStatus string

const (
	CapFull    CapabilityStatus = "full"
	CapPartial CapabilityStatus = "partial"
	CapNone    CapabilityStatus = "none"
)

// Selection names a chosen runtime/backend pair.
type Selection struct {
	RuntimeID string
	BackendID string
}

// IssueStage is where in the targeting pipeline a SupportIssue arose.
type IssueStage string

const (
	StageResolution IssueStage = "resolution"
	StageBackend    IssueStage = "backend"
	StageRuntime    IssueStage = "runtime"
	StagePair       IssueStage = "pair"
)

// Issue is one reason a selection or model is unsupported.
type Issue struct {
	Code         diag.Code
	Message      string
	Stage        IssueStage
	CapabilityID string
	Detail       map[string]any
}

// Report is the full compatibility verdict for one selection.
type Report struct {
	Selection            Selection
	Supported            bool
	Issues               []Issue
	RequiredCapabilities []string
	BackendCapabilities  map[string]CapabilityStatus
	RuntimeCapabilities  map[string]CapabilityStatus
	ModelSummary         map[string]any
}

// CompiledModel is a backend's compiled CQM/BQM plus the metadata every
// runtime needs to run and decode it.
type CompiledModel struct {
	Kind        string // "cqm"
	BackendID   string
	CQM         any // *codegen.CQM, kept as any to avoid an import cycle with internal/codegen
	BQM         any // *codegen.BQM
	VarMap      map[string]string
	Diagnostics []diag.Diagnostic
	Stats       map[string]any
}

// RunOptions carries a runtime invocation's free-form parameters.
type RunOptions struct {
	Params map[string]any
	OutDir string
}

// RankedSolution is one entry of a StandardRunResult's ranked list.
type RankedSolution struct {
	Rank                int
	Energy              float64
	NumOccurrences      int
	Sample              map[string]int
	SelectedAssignments []SelectedAssignment
}

// SelectedAssignment names one true decision variable in surface form.
type SelectedAssignment struct {
	Variable string
	Meaning  string
	Value    int
}

// StandardRunResult is spec.md §6's uniform runtime output shape.
type StandardRunResult struct {
	SchemaVersion  string
	Runtime        string
	Backend        string
	Status         string // "ok" | "threshold_failed" | "scenario_failed" | "failed"
	Energy         float64
	Reads          int
	BestSample     map[string]int
	Selected       []SelectedAssignment
	TimingMS       float64
	Solutions      []RankedSolution
	Extensions     map[string]any
}

// CompatibilityResult bundles a compatibility Report with the
// CompiledModel it managed to build, if any.
type CompatibilityResult struct {
	Report        Report
	CompiledModel *CompiledModel
}
