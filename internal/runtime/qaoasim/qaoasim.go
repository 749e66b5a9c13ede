// Package qaoasim implements QSOL's second runtime plugin: a
// QAOA-flavored random-restart sampler that stands in for the original's
// Qiskit-backed runtime without requiring a quantum-circuit SDK, per
// SPEC_FULL.md's supplemented-feature #4. Grounded on
// original_source/targeting/plugins.py's QiskitRuntimePlugin (a reduced
// capability catalog, a `p`/`shots`-shaped option surface, a hard
// variable-count ceiling standing in for a real simulator's qubit limit)
// and internal/runtime/local's Sampler for the surrounding
// RunModel/rank/threshold machinery, which this plugin reuses the shape
// of rather than the code of (a real QAOA circuit has no exact-solver
// fallback local's does, and its "shots" replace local's "num_reads").
package qaoasim

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

// qubitLimit stands in for a real simulator's exponential state-vector
// blowup: original_source's QiskitRuntimePlugin refuses problems above a
// configured qubit count rather than let a local simulation run out of
// memory, and this plugin enforces the same ceiling for the same reason
// even though it never builds a state vector.
const qubitLimit = 24

// Sampler is QSOL's QAOA-flavored runtime plugin: p rounds of biased
// random bitstrings (standing in for a cost/mixer Hamiltonian's angle
// schedule) per restart, then greedy single-flip descent on each
// restart's best draw until no single flip lowers its energy.
type Sampler struct{}

func NewSampler() *Sampler { return &Sampler{} }

func (*Sampler) PluginID() string    { return "qaoa-sim-v1" }
func (*Sampler) DisplayName() string { return "QSOL QAOA-flavored simulator (random-restart)" }

// CapabilityCatalog is deliberately narrower than local-sampler-v1's:
// this plugin only ever claims partial support for the base model kind,
// mirroring QiskitRuntimePlugin's own "not every dimod ConstrainedQuadraticModel
// maps cleanly onto a circuit" caveat, and it never advertises the
// if_then_else objective shape local-sampler-v1 can still brute-force.
func (*Sampler) CapabilityCatalog() map[string]target.CapabilityStatus {
	return map[string]target.CapabilityStatus{
		"model.kind.cqm.v1": target.CapPartial,
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
			Message: "runtime `qaoa-sim-v1` received no compiled model",
			Stage:   target.StageRuntime,
		})
		return issues
	}
	bqm, ok := model.BQM.(*codegen.BQM)
	if !ok {
		issues = append(issues, target.Issue{
			Code:    diag.CodeUnsupportedCap,
			Message: "runtime `qaoa-sim-v1` requires a compiled BQM",
			Stage:   target.StageRuntime,
		})
		return issues
	}
	if len(bqm.VarOrder) > qubitLimit {
		issues = append(issues, target.Issue{
			Code: diag.CodeUnsupportedCap,
			Message: fmt.Sprintf("runtime `qaoa-sim-v1` supports at most %d variables, model has %d",
				qubitLimit, len(bqm.VarOrder)),
			Stage:        target.StageRuntime,
			CapabilityID: "model.kind.cqm.v1",
		})
	}
	return issues
}

// RunModel runs restarts independent random-restart passes over the
// compiled BQM: each restart draws a bitstring biased by a simulated
// "rotation angle" per QAOA layer, then greedily polishes it one
// variable flip at a time, mirroring QiskitRuntimePlugin.run_model's
// shots-then-postselect shape without an actual circuit underneath.
func (s *Sampler) RunModel(model *target.CompiledModel, sel target.Selection, opts target.RunOptions) (*target.StandardRunResult, error) {
	bqm, ok := model.BQM.(*codegen.BQM)
	if !ok || bqm == nil {
		return nil, fmt.Errorf("qaoa-sim: compiled model has no BQM")
	}
	cqm, ok := model.CQM.(*codegen.CQM)
	if !ok || cqm == nil {
		return nil, fmt.Errorf("qaoa-sim: compiled model has no CQM")
	}
	if len(bqm.VarOrder) > qubitLimit {
		return nil, fmt.Errorf("qaoa-sim: model has %d variables, exceeds simulated qubit limit %d", len(bqm.VarOrder), qubitLimit)
	}

	layers, err := asIntOption(opts.Params, "p", 2)
	if err != nil {
		return nil, err
	}
	shots, err := asIntOption(opts.Params, "shots", 200)
	if err != nil {
		return nil, err
	}
	restarts, err := asIntOption(opts.Params, "restarts", 8)
	if err != nil {
		return nil, err
	}
	requestedSolutions, err := asIntOption(opts.Params, "solutions", 1)
	if err != nil {
		return nil, err
	}
	seed, hasSeed, err := asOptionalIntOption(opts.Params, "seed")
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

	rows := runRestarts(bqm, rng, layers, shots, restarts)
	feasible := filterFeasible(cqm, rows)
	if len(feasible) == 0 {
		return nil, fmt.Errorf("qaoa-sim found no sample satisfying every hard constraint of the model")
	}

	ranked := rankSolutions(feasible, model.VarMap, requestedSolutions)
	if len(ranked) == 0 {
		return nil, fmt.Errorf("qaoa-sim produced no solutions")
	}

	feasibleFlag, violations := evaluateEnergyThresholds(ranked, hasMin, energyMin, hasMax, energyMax)
	status := "ok"
	if !feasibleFlag {
		status = "threshold_failed"
	}

	best := ranked[0]
	result := &target.StandardRunResult{
		SchemaVersion: "1",
		Runtime:       sel.RuntimeID,
		Backend:       sel.BackendID,
		Status:        status,
		Energy:        best.Energy,
		Reads:         shots * restarts,
		BestSample:    best.Sample,
		Selected:      best.SelectedAssignments,
		Solutions:     ranked,
		Extensions: map[string]any{
			"p":                   layers,
			"shots":               shots,
			"restarts":            restarts,
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

// runRestarts performs restarts independent trials, each drawing shots
// biased bitstrings across layers simulated "angle" schedules and
// keeping the lowest-energy draw, then polishing it with greedy
// single-flip passes until no flip improves it — a stand-in for a real QAOA circuit's
// parameter optimization loop, which this package has no simulator
// backend to actually run.
func runRestarts(bqm *codegen.BQM, rng *rand.Rand, layers, shots, restarts int) []sampleRow {
	rows := make([]sampleRow, 0, restarts)
	for r := 0; r < restarts; r++ {
		bias := layerBias(rng, layers)
		best := drawBest(bqm, rng, bias, shots)
		best = polish(bqm, best)
		rows = append(rows, sampleRow{Sample: best.Sample, Energy: best.Energy})
	}
	return rows
}

// layerBias returns a single probability-of-one shared by every
// variable, standing in for a QAOA mixer angle: each layer nudges the bias by a
// random walk step so successive restarts explore different regions of
// the bitstring space, the same role angle randomization plays in a real
// variational loop.
func layerBias(rng *rand.Rand, layers int) float64 {
	bias := 0.5
	for l := 0; l < layers; l++ {
		step := (rng.Float64() - 0.5) * 0.3
		bias += step
		if bias < 0.05 {
			bias = 0.05
		}
		if bias > 0.95 {
			bias = 0.95
		}
	}
	return bias
}

func drawBest(bqm *codegen.BQM, rng *rand.Rand, bias float64, shots int) sampleRow {
	var best sampleRow
	best.Energy = math.Inf(1)
	for shot := 0; shot < shots; shot++ {
		sample := make(map[string]int, len(bqm.VarOrder))
		for _, v := range bqm.VarOrder {
			if rng.Float64() < bias {
				sample[v] = 1
			} else {
				sample[v] = 0
			}
		}
		e := energy(bqm, sample)
		if e < best.Energy {
			best = sampleRow{Sample: sample, Energy: e}
		}
	}
	return best
}

func polish(bqm *codegen.BQM, row sampleRow) sampleRow {
	sample := copySample(row.Sample)
	cur := row.Energy
	improved := true
	for improved {
		improved = false
		for _, v := range bqm.VarOrder {
			sample[v] ^= 1
			next := energy(bqm, sample)
			if next < cur {
				cur = next
				improved = true
			} else {
				sample[v] ^= 1
			}
		}
	}
	return sampleRow{Sample: sample, Energy: cur}
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

func filterFeasible(cqm *codegen.CQM, rows []sampleRow) []sampleRow {
	out := make([]sampleRow, 0, len(rows))
	for _, row := range rows {
		if cqm.Feasible(row.Sample) {
			out = append(out, row)
		}
	}
	return out
}

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
