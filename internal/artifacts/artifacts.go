// Package artifacts writes spec.md §6's output-directory artifacts:
// model.cqm, model.bqm, qubo.json, ising.json, varmap.json, explain.json,
// capability_report.json, run.json, qsol.log. Each writer's JSON shape is
// spelled out verbatim in spec.md §6/§3, so this package defines its own
// wire structs rather than json-tagging internal/target's and
// internal/codegen's domain types directly — those stay free to evolve
// without silently changing an on-disk artifact's field names.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"qsol/internal/codegen"
	"qsol/internal/diag"
	"qsol/internal/diagfmt"
	"qsol/internal/source"
	"qsol/internal/target"
)

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteModelCQM serializes the constrained quadratic model. spec.md §6
// calls the wire format "delegated" without fixing one; QSOL delegates
// it to msgpack, the same library internal/cache already uses for its
// own on-disk records.
func WriteModelCQM(dir string, cqm *codegen.CQM) error {
	f, err := os.Create(filepath.Join(dir, "model.cqm"))
	if err != nil {
		return err
	}
	defer f.Close()
	return msgpack.NewEncoder(f).Encode(cqm)
}

// WriteModelBQM serializes the binary quadratic model, same rationale as
// WriteModelCQM.
func WriteModelBQM(dir string, bqm *codegen.BQM) error {
	f, err := os.Create(filepath.Join(dir, "model.bqm"))
	if err != nil {
		return err
	}
	defer f.Close()
	return msgpack.NewEncoder(f).Encode(bqm)
}

type quboTerm struct {
	U    string  `json:"u"`
	V    string  `json:"v"`
	Bias float64 `json:"bias"`
}

type quboDoc struct {
	Offset float64    `json:"offset"`
	Terms  []quboTerm `json:"terms"`
}

// WriteQUBO writes qubo.json: `{offset, terms: [{u,v,bias}, ...]}`, a
// term with u==v is a linear term, spec.md §6.
func WriteQUBO(dir string, bqm *codegen.BQM) error {
	doc := quboDoc{Offset: bqm.Offset}
	for _, v := range bqm.VarOrder {
		if c, ok := bqm.Linear[v]; ok {
			doc.Terms = append(doc.Terms, quboTerm{U: v, V: v, Bias: c})
		}
	}
	var quadKeys []codegen.QuadKey
	for k := range bqm.Quadratic {
		quadKeys = append(quadKeys, k)
	}
	sort.Slice(quadKeys, func(i, j int) bool {
		if quadKeys[i].U != quadKeys[j].U {
			return quadKeys[i].U < quadKeys[j].U
		}
		return quadKeys[i].V < quadKeys[j].V
	})
	for _, k := range quadKeys {
		doc.Terms = append(doc.Terms, quboTerm{U: k.U, V: k.V, Bias: bqm.Quadratic[k]})
	}
	return writeJSON(filepath.Join(dir, "qubo.json"), doc)
}

type isingDoc struct {
	Offset float64            `json:"offset"`
	H      map[string]float64 `json:"h"`
	J      map[string]float64 `json:"J"`
}

// WriteIsing writes ising.json: `{offset, h: {var->bias}, J: {(u,v)->bias}}`,
// spec.md §6. A (u,v) coupling key is rendered "u,v" since JSON object
// keys must be strings.
func WriteIsing(dir string, bqm *codegen.BQM) error {
	offset, h, j := bqm.ToIsing()
	jOut := make(map[string]float64, len(j))
	for k, bias := range j {
		jOut[k.U+","+k.V] = bias
	}
	return writeJSON(filepath.Join(dir, "ising.json"), isingDoc{Offset: offset, H: h, J: jOut})
}

// WriteVarMap writes varmap.json: the low-level binary label -> QSOL
// display meaning map, spec.md §6.
func WriteVarMap(dir string, varmap map[string]string) error {
	return writeJSON(filepath.Join(dir, "varmap.json"), varmap)
}

// WriteExplain writes explain.json: `{diagnostics: [Diagnostic, ...]}`,
// delegating to internal/diagfmt's json.go.
func WriteExplain(dir string, bag *diag.Bag, files *source.FileSet) error {
	f, err := os.Create(filepath.Join(dir, "explain.json"))
	if err != nil {
		return err
	}
	defer f.Close()
	return diagfmt.WriteJSON(f, bag, files)
}

type issueDoc struct {
	Code         string         `json:"code"`
	Message      string         `json:"message"`
	Stage        string         `json:"stage"`
	CapabilityID string         `json:"capability_id,omitempty"`
	Detail       map[string]any `json:"detail,omitempty"`
}

type selectionDoc struct {
	Runtime string `json:"runtime"`
	Backend string `json:"backend"`
}

type capabilityReportDoc struct {
	Supported            bool                               `json:"supported"`
	Selection            selectionDoc                       `json:"selection"`
	RequiredCapabilities []string                           `json:"required_capabilities"`
	BackendCapabilities  map[string]target.CapabilityStatus `json:"backend_capabilities"`
	RuntimeCapabilities  map[string]target.CapabilityStatus `json:"runtime_capabilities"`
	ModelSummary         map[string]any                     `json:"model_summary"`
	Issues               []issueDoc                         `json:"issues"`
}

// WriteCapabilityReport writes capability_report.json, spec.md §6's
// `{supported, selection, required_capabilities, backend_capabilities,
// runtime_capabilities, model_summary, issues}` shape.
func WriteCapabilityReport(dir string, report target.Report) error {
	doc := capabilityReportDoc{
		Supported:            report.Supported,
		Selection:            selectionDoc{Runtime: report.Selection.RuntimeID, Backend: report.Selection.BackendID},
		RequiredCapabilities: report.RequiredCapabilities,
		BackendCapabilities:  report.BackendCapabilities,
		RuntimeCapabilities:  report.RuntimeCapabilities,
		ModelSummary:         report.ModelSummary,
	}
	for _, iss := range report.Issues {
		doc.Issues = append(doc.Issues, issueDoc{
			Code: string(iss.Code), Message: iss.Message, Stage: string(iss.Stage),
			CapabilityID: iss.CapabilityID, Detail: iss.Detail,
		})
	}
	return writeJSON(filepath.Join(dir, "capability_report.json"), doc)
}

type selectedAssignmentDoc struct {
	Variable string `json:"label"`
	Meaning  string `json:"meaning"`
	Value    int    `json:"value"`
}

type rankedSolutionDoc struct {
	Rank                int                     `json:"rank"`
	Energy              float64                 `json:"energy"`
	NumOccurrences      int                     `json:"num_occurrences"`
	Sample              map[string]int          `json:"sample"`
	SelectedAssignments []selectedAssignmentDoc `json:"selected_assignments"`
}

type standardRunResultDoc struct {
	SchemaVersion        string                  `json:"schema_version"`
	Runtime              string                  `json:"runtime"`
	Backend              string                  `json:"backend"`
	Status               string                  `json:"status"`
	Energy               float64                 `json:"energy"`
	Reads                int                     `json:"reads"`
	BestSample           map[string]int          `json:"best_sample"`
	SelectedAssignments  []selectedAssignmentDoc `json:"selected_assignments"`
	TimingMS             float64                 `json:"timing_ms"`
	CapabilityReportPath string                  `json:"capability_report_path"`
	Extensions           map[string]any          `json:"extensions,omitempty"`
}

// WriteRunResult writes run.json, spec.md §3's StandardRunResult shape.
// capabilityReportPath is relative to the same output directory, so a
// caller reading run.json can locate capability_report.json without
// assuming a fixed layout.
func WriteRunResult(dir string, result *target.StandardRunResult, capabilityReportPath string) error {
	doc := standardRunResultDoc{
		SchemaVersion:        result.SchemaVersion,
		Runtime:              result.Runtime,
		Backend:              result.Backend,
		Status:               result.Status,
		Energy:               result.Energy,
		Reads:                result.Reads,
		BestSample:           result.BestSample,
		TimingMS:             result.TimingMS,
		CapabilityReportPath: capabilityReportPath,
	}
	for _, sa := range result.Selected {
		doc.SelectedAssignments = append(doc.SelectedAssignments, selectedAssignmentDoc{Variable: sa.Variable, Meaning: sa.Meaning, Value: sa.Value})
	}
	extensions := make(map[string]any, len(result.Extensions)+1)
	for k, v := range result.Extensions {
		extensions[k] = v
	}
	var solutions []rankedSolutionDoc
	for _, sol := range result.Solutions {
		sd := rankedSolutionDoc{Rank: sol.Rank, Energy: sol.Energy, NumOccurrences: sol.NumOccurrences, Sample: sol.Sample}
		for _, sa := range sol.SelectedAssignments {
			sd.SelectedAssignments = append(sd.SelectedAssignments, selectedAssignmentDoc{Variable: sa.Variable, Meaning: sa.Meaning, Value: sa.Value})
		}
		solutions = append(solutions, sd)
	}
	extensions["solutions"] = solutions
	doc.Extensions = extensions
	return writeJSON(filepath.Join(dir, "run.json"), doc)
}

// WriteLog writes qsol.log: every diagnostic rendered through
// internal/diagfmt (color auto-disables against a regular file) followed
// by its error/warning summary line.
func WriteLog(dir string, bag *diag.Bag, files *source.FileSet) error {
	f, err := os.Create(filepath.Join(dir, "qsol.log"))
	if err != nil {
		return err
	}
	defer f.Close()
	r := diagfmt.NewRenderer(files, f)
	for _, d := range bag.Items() {
		r.Render(d)
	}
	r.Summary(bag)
	return nil
}

// EnsureDir creates dir (and parents) if missing.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create output directory %q: %w", dir, err)
	}
	return nil
}
