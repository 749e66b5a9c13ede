// Package local implements QSOL's builtin runtime plugin: a sampler
// that runs entirely in-process against the compiled BQM, with no
// external solver dependency. Grounded on
// original_source/targeting/plugins.py's LocalDimodRuntimePlugin, which
// wraps dimod.ExactSolver/SimulatedAnnealingSampler — reimplemented from
// scratch because no QUBO/annealing library exists anywhere in the
// retrieved example pack (see DESIGN.md).
package local

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"qsol/internal/codegen"
	"qsol/internal/diag"
	"qsol/internal/target"
)

// exactThreshold is the variable count above which Sampler switches from
// exhaustive enumeration to simulated annealing, mirroring the tradeoff
// dimod.ExactSolver documents (2^n samples becomes impractical quickly).
const exactThreshold = 20

// Sampler is QSOL's local runtime plugin.
type Sampler struct{}

func NewSampler() *Sampler { return &Sampler{} }

func (*Sampler) PluginID() string    { return "local-sampler-v1" }
func (*Sampler) DisplayName() string { return "QSOL local sampler (exact/simulated-annealing)" }

func (*Sampler) CapabilityCatalog() map[string]target.CapabilityStatus {
	return map[string]target.CapabilityStatus{
		"model.kind.cqm.v1": target.CapFull,
	}
}

func (*Sampler) CompatibleBackendIDs() []string {
	return []string{"dimod-cqm-v1"}
}

func (*Sampler) CheckSupport(model *target.CompiledModel, sel target.Selection) []target.Issue {
	var issues []target.Issue
	if model == nil {
		issues = append(issues, target.Issue{
			Code:    diag.CodeUnsupportedCap,
			Message: "runtime `local-sampler-v1` received no compiled model",
			Stage:   target.StageRuntime,
		})
		return issues
	}
	if _, ok := model.BQM.(*codegen.BQM); !ok {
		issues = append(issues, target.Issue{
			Code:    diag.CodeUnsupportedCap,
			Message: "runtime `local-sampler-v1` requires a compiled BQM",
			Stage:   target.StageRuntime,
		})
	}
	return issues
}

// RunModel samples the compiled model's BQM and ranks the results,
// grounded on plugins.py's LocalDimodRuntimePlugin.run_model.
func (s *Sampler) RunModel(model *target.CompiledModel, sel target.Selection, opts target.RunOptions) (*target.StandardRunResult, error) {
	bqm, ok := model.BQM.(*codegen.BQM)
	if !ok || bqm == nil {
		return nil, fmt.Errorf("local sampler: compiled model has no BQM")
	}
	cqm, ok := model.CQM.(*codegen.CQM)
	if !ok || cqm == nil {
		return nil, fmt.Errorf("local sampler: compiled model has no CQM")
	}

	samplerName, err := asStrOption(opts.Params, "sampler", "simulated-annealing")
	if err != nil {
		return nil, err
	}
	numReads, err := asIntOption(opts.Params, "num_reads", 100)
	if err != nil {
		return nil, err
	}
	seed, hasSeed, err := asOptionalIntOption(opts.Params, "seed")
	if err != nil {
		return nil, err
	}
	requestedSolutions, err := asIntOption(opts.Params, "solutions", 1)
	if err != nil {
		return nil, err
	}
	energyMin, hasMin, err := asOptionalFloatOption(opts.Params, "energy_min")
	if err != nil {
		return nil, err
	}
	energyMax, hasMax, err := asOptionalFloatOption(opts.Params, "energy_max")
	if err != nil {
		return nil, err
	}
	if hasMin && hasMax && energyMin > energyMax {
		return nil, fmt.Errorf("runtime options `energy_min` and `energy_max` must satisfy energy_min <= energy_max")
	}

	rng := rand.New(rand.NewSource(1))
	if hasSeed {
		rng = rand.New(rand.NewSource(int64(seed)))
	}

	var samples []sampleRow
	switch {
	case len(bqm.VarOrder) <= exactThreshold:
		samples = sampleExact(bqm)
	case samplerName == "exact":
		return nil, fmt.Errorf("runtime option `sampler=exact` is not usable with %d variables (limit %d)", len(bqm.VarOrder), exactThreshold)
	default:
		samples = sampleAnnealing(bqm, rng, numReads)
	}

	feasible := filterFeasible(cqm, samples)
	if len(feasible) == 0 {
		return nil, fmt.Errorf("local sampler found no sample satisfying every hard constraint of the model")
	}

	ranked := rankSolutions(feasible, model.VarMap, requestedSolutions)
	if len(ranked) == 0 {
		return nil, fmt.Errorf("local sampler produced no solutions")
	}

	ok2, violations := evaluateEnergyThresholds(ranked, hasMin, energyMin, hasMax, energyMax)
	status := "ok"
	if !ok2 {
		status = "threshold_failed"
	}

	best := ranked[0]
	result := &target.StandardRunResult{
		SchemaVersion: "1",
		Runtime:       sel.RuntimeID,
		Backend:       sel.BackendID,
		Status:        status,
		Energy:        best.Energy,
		Reads:         numReads,
		BestSample:    best.Sample,
		Selected:      best.SelectedAssignments,
		Solutions:     ranked,
		Extensions: map[string]any{
			"sampler":             samplerName,
			"num_reads":           numReads,
			"requested_solutions": requestedSolutions,
			"energy_thresholds": map[string]any{
				"min": optionalFloat(hasMin, energyMin),
				"max": optionalFloat(hasMax, energyMax),
			},
			"threshold_violations": violations,
		},
	}
	return result, nil
}

func optionalFloat(has bool, v float64) any {
	if !has {
		return nil
	}
	return v
}

type sampleRow struct {
	Sample map[string]int
	Energy float64
}

// energy evaluates a BQM at a 0/1 assignment.
func energy(bqm *codegen.BQM, sample map[string]int) float64 {
	e := bqm.Offset
	for v, coeff := range bqm.Linear {
		e += coeff * float64(sample[v])
	}
	for k, coeff := range bqm.Quadratic {
		e += coeff * float64(sample[k.U]) * float64(sample[k.V])
	}
	return e
}

// sampleExact enumerates every assignment, mirroring dimod.ExactSolver.
func sampleExact(bqm *codegen.BQM) []sampleRow {
	n := len(bqm.VarOrder)
	total := 1 << uint(n)
	rows := make([]sampleRow, 0, total)
	for mask := 0; mask < total; mask++ {
		sample := make(map[string]int, n)
		for i, v := range bqm.VarOrder {
			if mask&(1<<uint(i)) != 0 {
				sample[v] = 1
			} else {
				sample[v] = 0
			}
		}
		rows = append(rows, sampleRow{Sample: sample, Energy: energy(bqm, sample)})
	}
	return rows
}

// sampleAnnealing runs numReads independent simulated-annealing chains,
// mirroring dimod.SimulatedAnnealingSampler's num_reads semantics.
func sampleAnnealing(bqm *codegen.BQM, rng *rand.Rand, numReads int) []sampleRow {
	n := len(bqm.VarOrder)
	const sweeps = 1000
	rows := make([]sampleRow, 0, numReads)
	for r := 0; r < numReads; r++ {
		sample := make(map[string]int, n)
		for _, v := range bqm.VarOrder {
			sample[v] = rng.Intn(2)
		}
		cur := energy(bqm, sample)
		for sweep := 0; sweep < sweeps; sweep++ {
			temp := annealTemperature(sweep, sweeps)
			for _, v := range bqm.VarOrder {
				sample[v] ^= 1
				next := energy(bqm, sample)
				delta := next - cur
				if delta <= 0 || rng.Float64() < math.Exp(-delta/temp) {
					cur = next
				} else {
					sample[v] ^= 1
				}
			}
		}
		rows = append(rows, sampleRow{Sample: copySample(sample), Energy: cur})
	}
	return rows
}

func annealTemperature(sweep, sweeps int) float64 {
	const tStart, tEnd = 10.0, 0.01
	frac := float64(sweep) / float64(sweeps)
	return tStart * math.Pow(tEnd/tStart, frac)
}

func copySample(sample map[string]int) map[string]int {
	out := make(map[string]int, len(sample))
	for k, v := range sample {
		out[k] = v
	}
	return out
}

func sampleSignature(sample map[string]int) string {
	keys := make([]string, 0, len(sample))
	for k := range sample {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%d;", k, sample[k])
	}
	return b.String()
}

func isInternalVariable(label string) bool {
	return strings.HasPrefix(label, "aux:") || strings.HasPrefix(label, "slack_")
}

func selectedAssignments(sample map[string]int, varmap map[string]string) []target.SelectedAssignment {
	labels := make([]string, 0, len(sample))
	for k := range sample {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	var out []target.SelectedAssignment
	for _, label := range labels {
		if sample[label] != 1 || isInternalVariable(label) {
			continue
		}
		meaning, ok := varmap[label]
		if !ok {
			continue
		}
		out = append(out, target.SelectedAssignment{Variable: label, Meaning: meaning, Value: 1})
	}
	return out
}

// filterFeasible drops samples violating any hard constraint of the
// original CQM (including structural laws lowered alongside user
// constraints), spec.md §4.12's post-processing step 1. A sample can
// reach a locally-low BQM penalty energy without actually satisfying
// every hard constraint, especially from an annealing chain that hasn't
// fully converged, so this runs before ranking rather than relying on
// penalty weight alone to exclude infeasible samples.
func filterFeasible(cqm *codegen.CQM, rows []sampleRow) []sampleRow {
	out := make([]sampleRow, 0, len(rows))
	for _, row := range rows {
		if cqm.Feasible(row.Sample) {
			out = append(out, row)
		}
	}
	return out
}

// rankSolutions aggregates identical samples, sorts by (energy, sample
// signature) per DESIGN.md's Open Question decision #3, and truncates to
// requestedSolutions, grounded on _collect_ranked_solutions.
func rankSolutions(rows []sampleRow, varmap map[string]string, requestedSolutions int) []target.RankedSolution {
	type agg struct {
		sample      map[string]int
		energy      float64
		occurrences int
	}
	byKey := map[string]*agg{}
	order := make([]string, 0, len(rows))
	for _, row := range rows {
		key := sampleSignature(row.Sample)
		if a, ok := byKey[key]; ok {
			a.occurrences++
			continue
		}
		byKey[key] = &agg{sample: row.Sample, energy: row.Energy, occurrences: 1}
		order = append(order, key)
	}
	sort.Slice(order, func(i, j int) bool {
		ai, aj := byKey[order[i]], byKey[order[j]]
		if ai.energy != aj.energy {
			return ai.energy < aj.energy
		}
		return order[i] < order[j]
	})

	limit := requestedSolutions
	if limit > len(order) {
		limit = len(order)
	}
	out := make([]target.RankedSolution, 0, limit)
	for i := 0; i < limit; i++ {
		a := byKey[order[i]]
		out = append(out, target.RankedSolution{
			Rank:                i + 1,
			Energy:              a.energy,
			NumOccurrences:      a.occurrences,
			Sample:              a.sample,
			SelectedAssignments: selectedAssignments(a.sample, varmap),
		})
	}
	return out
}

// evaluateEnergyThresholds mirrors _evaluate_energy_thresholds.
func evaluateEnergyThresholds(ranked []target.RankedSolution, hasMin bool, energyMin float64, hasMax bool, energyMax float64) (bool, []map[string]any) {
	var violations []map[string]any
	for _, sol := range ranked {
		var reasons []string
		if hasMin && sol.Energy < energyMin {
			reasons = append(reasons, fmt.Sprintf("energy %g is lower than minimum %g", sol.Energy, energyMin))
		}
		if hasMax && sol.Energy > energyMax {
			reasons = append(reasons, fmt.Sprintf("energy %g is higher than maximum %g", sol.Energy, energyMax))
		}
		if len(reasons) > 0 {
			violations = append(violations, map[string]any{
				"rank":    sol.Rank,
				"energy":  sol.Energy,
				"reasons": reasons,
			})
		}
	}
	return len(violations) == 0, violations
}

func asStrOption(params map[string]any, key, def string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("runtime option `%s` must be a non-empty string", key)
	}
	return s, nil
}

func asIntOption(params map[string]any, key string, def int) (int, error) {
	raw, ok := params[key]
	if !ok {
		return def, nil
	}
	n, err := coerceInt(raw)
	if err != nil {
		return 0, fmt.Errorf("runtime option `%s` must be an integer", key)
	}
	if n < 1 {
		return 0, fmt.Errorf("runtime option `%s` must be >= 1", key)
	}
	return n, nil
}

func asOptionalIntOption(params map[string]any, key string) (int, bool, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	n, err := coerceInt(raw)
	if err != nil {
		return 0, false, fmt.Errorf("runtime option `%s` must be an integer when provided", key)
	}
	return n, true, nil
}

func asOptionalFloatOption(params map[string]any, key string) (float64, bool, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, true, nil
	case int:
		return float64(v), true, nil
	default:
		return 0, false, fmt.Errorf("runtime option `%s` must be a number when provided", key)
	}
}

func coerceInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("not an integer")
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("not an integer")
	}
}
