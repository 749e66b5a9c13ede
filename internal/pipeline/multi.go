package pipeline

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"qsol/internal/kernel"
	qsolruntime "qsol/internal/runtime"
	"qsol/internal/target"
)

// MergeMode names spec.md's two multi-scenario merge strategies.
type MergeMode string

const (
	MergeIntersection MergeMode = "intersection"
	MergeUnion        MergeMode = "union"
)

// MultiResult is the outcome of running several scenarios, in
// declaration order, plus their merged decoded solutions per problem
// name (only populated for problem names that appear in at least two
// scenario results — a single-scenario run has nothing to merge).
type MultiResult struct {
	Scenarios []*ScenarioResult
	Merged    map[string][]target.RankedSolution
}

// RunScenarios runs every spec independently — grounding, targeting,
// and running each as its own pipeline — with up to jobs running
// concurrently, and merges same-named problems' decoded solutions
// afterward. Grounded on internal/driver/parallel.go's TokenizeDir/
// ParseDir: errgroup.WithContext, SetLimit(min(jobs, len(items))), and
// indexed result slices so completion order never affects the returned
// order, matching spec.md §5's "per-scenario results must be
// deterministically ordered by scenario declaration order regardless of
// completion order".
func RunScenarios(ctx context.Context, ir *kernel.IR, reg *target.Registry, specs []ScenarioSpec, jobs int, mode MergeMode) (*MultiResult, error) {
	if len(specs) == 0 {
		return &MultiResult{}, nil
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	results := make([]*ScenarioResult, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(specs)))

	for i, spec := range specs {
		g.Go(func(i int, spec ScenarioSpec) func() error {
			return func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				results[i] = RunScenario(gctx, ir, reg, spec)
				return nil
			}
		}(i, spec))
	}

	if err := g.Wait(); err != nil {
		return &MultiResult{Scenarios: results}, err
	}

	return &MultiResult{Scenarios: results, Merged: mergeByProblem(results, mode)}, nil
}

// mergeByProblem groups every scenario's per-problem ranked solutions by
// problem name and applies mode's merge rule, per spec.md's REDESIGN
// FLAGS "Multi-scenario execution" strategy: intersection keeps only
// solutions appearing in every scenario's top-K for that problem, union
// keeps the union, both in deterministic order.
func mergeByProblem(results []*ScenarioResult, mode MergeMode) map[string][]target.RankedSolution {
	byProblem := map[string][][]target.RankedSolution{}
	for _, sr := range results {
		if sr == nil || sr.Err != nil {
			continue
		}
		for _, pr := range sr.Problems {
			if pr.Run == nil {
				continue
			}
			byProblem[pr.Problem] = append(byProblem[pr.Problem], pr.Run.Solutions)
		}
	}

	merged := map[string][]target.RankedSolution{}
	for problem, lists := range byProblem {
		if len(lists) < 2 {
			continue
		}
		switch mode {
		case MergeIntersection:
			merged[problem] = intersectSolutions(lists)
		default:
			merged[problem] = unionSolutions(lists)
		}
	}
	return merged
}

func intersectSolutions(lists [][]target.RankedSolution) []target.RankedSolution {
	counts := map[string]int{}
	first := map[string]target.RankedSolution{}
	for _, list := range lists {
		seen := map[string]bool{}
		for _, sol := range list {
			key := qsolruntime.CanonicalSampleKey(sol.Sample)
			if seen[key] {
				continue
			}
			seen[key] = true
			counts[key]++
			if _, ok := first[key]; !ok {
				first[key] = sol
			}
		}
	}
	var out []target.RankedSolution
	for _, sol := range lists[0] {
		key := qsolruntime.CanonicalSampleKey(sol.Sample)
		if counts[key] == len(lists) {
			out = append(out, first[key])
		}
	}
	sortSolutions(out)
	return out
}

func unionSolutions(lists [][]target.RankedSolution) []target.RankedSolution {
	seen := map[string]bool{}
	var out []target.RankedSolution
	for _, list := range lists {
		for _, sol := range list {
			key := qsolruntime.CanonicalSampleKey(sol.Sample)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, sol)
		}
	}
	sortSolutions(out)
	return out
}

// sortSolutions applies spec.md §4.12 step 3's ordering rule (energy
// ascending, ties broken by canonical sample order) to a merged list, so
// merging doesn't leave union/intersection output in scenario-arrival
// order.
func sortSolutions(sols []target.RankedSolution) {
	sort.SliceStable(sols, func(i, j int) bool {
		if sols[i].Energy != sols[j].Energy {
			return sols[i].Energy < sols[j].Energy
		}
		return qsolruntime.CanonicalSampleKey(sols[i].Sample) < qsolruntime.CanonicalSampleKey(sols[j].Sample)
	})
}
