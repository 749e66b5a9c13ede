package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"qsol/internal/artifacts"
	"qsol/internal/config"
	"qsol/internal/diag"
	"qsol/internal/observ"
	"qsol/internal/pipeline"
	"qsol/internal/scenario"
	"qsol/internal/target"
)

var runCmd = &cobra.Command{
	Use:   "run [path]",
	Short: "Compile a program and run one or more scenarios against it",
	Long: "Compile a program, ground each --scenario against it, resolve a runtime/backend pair, " +
		"dispatch to the runtime, and write every result artifact under --out.",
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArray("scenario", nil, "scenario JSON file path, or a name from qsol.toml's [scenarios] table (repeatable)")
	runCmd.Flags().String("runtime", "", "runtime plugin id (CLI tier of target-selection precedence)")
	runCmd.Flags().String("backend", "", "backend plugin id (CLI tier of target-selection precedence)")
	runCmd.Flags().StringArray("runtime-option", nil, "runtime option KEY=VALUE (CLI tier, repeatable, highest precedence)")
	runCmd.Flags().String("runtime-options-file", "", "JSON file of runtime option overrides (second-highest precedence)")
	runCmd.Flags().String("out", "qsol-out", "directory to write per-scenario result artifacts into")
	runCmd.Flags().Int("jobs", 0, "max concurrent scenarios (0=GOMAXPROCS)")
	runCmd.Flags().String("merge", "union", "multi-scenario solution merge strategy (union|intersection)")
}

func runRun(cmd *cobra.Command, args []string) error {
	pathArg := ""
	if len(args) == 1 {
		pathArg = args[0]
	}
	scenarioArgs, err := cmd.Flags().GetStringArray("scenario")
	if err != nil {
		return err
	}
	if len(scenarioArgs) == 0 {
		return fmt.Errorf("at least one --scenario is required")
	}
	cliRuntime, err := cmd.Flags().GetString("runtime")
	if err != nil {
		return err
	}
	cliBackend, err := cmd.Flags().GetString("backend")
	if err != nil {
		return err
	}
	cliOptionPairs, err := cmd.Flags().GetStringArray("runtime-option")
	if err != nil {
		return err
	}
	optionsFilePath, err := cmd.Flags().GetString("runtime-options-file")
	if err != nil {
		return err
	}
	outDir, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	mergeStr, err := cmd.Flags().GetString("merge")
	if err != nil {
		return err
	}
	mergeMode := pipeline.MergeUnion
	if mergeStr == string(pipeline.MergeIntersection) {
		mergeMode = pipeline.MergeIntersection
	} else if mergeStr != string(pipeline.MergeUnion) {
		return fmt.Errorf("--merge must be `union` or `intersection`, got %q", mergeStr)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}

	rootPath, manifest, manifestPath, err := resolveRoot(pathArg)
	if err != nil {
		return err
	}

	cliOptions, err := parseRuntimeOptionPairs(cliOptionPairs)
	if err != nil {
		return err
	}
	fileOptions, err := loadRuntimeOptionsFile(optionsFilePath)
	if err != nil {
		return err
	}

	pluginBag := diag.NewBag()
	reg := builtinRegistry(manifest, pluginBag)
	if pluginBag.HasErrors() {
		renderer, err := newRenderer(cmd, nil)
		if err != nil {
			return err
		}
		renderDiagnostics(cmd, renderer, pluginBag.Items())
		renderer.Summary(pluginBag)
		if err := artifacts.EnsureDir(outDir); err != nil {
			return err
		}
		if err := artifacts.WriteExplain(outDir, pluginBag, nil); err != nil {
			return err
		}
		if err := artifacts.WriteLog(outDir, pluginBag, nil); err != nil {
			return err
		}
		return fmt.Errorf("plugin registry setup failed")
	}

	timer := observ.NewTimer()
	compileIdx := timer.Begin("compile")
	front := pipeline.Compile(cmd.Context(), rootPath)
	timer.End(compileIdx, "")

	renderer, err := newRenderer(cmd, front.Files)
	if err != nil {
		return err
	}
	renderDiagnostics(cmd, renderer, front.Bag.Items())
	renderer.Summary(front.Bag)
	if front.IR == nil {
		return fmt.Errorf("compilation failed")
	}

	specs := make([]pipeline.ScenarioSpec, len(scenarioArgs))
	for i, raw := range scenarioArgs {
		spec, err := buildScenarioSpec(raw, manifest, manifestPath, outDir, cliRuntime, cliBackend, fileOptions, cliOptions)
		if err != nil {
			return fmt.Errorf("--scenario %q: %w", raw, err)
		}
		specs[i] = spec
	}

	runIdx := timer.Begin("run")
	var results []*pipeline.ScenarioResult
	var merged map[string][]target.RankedSolution
	if len(specs) == 1 {
		results = []*pipeline.ScenarioResult{pipeline.RunScenario(cmd.Context(), front.IR, reg, specs[0])}
	} else {
		multi, err := pipeline.RunScenarios(cmd.Context(), front.IR, reg, specs, jobs, mergeMode)
		if err != nil {
			timer.End(runIdx, "")
			return err
		}
		results = multi.Scenarios
		merged = multi.Merged
	}
	timer.End(runIdx, "")

	failed := false
	for _, res := range results {
		if res == nil {
			continue
		}
		renderDiagnostics(cmd, renderer, res.Bag.Items())
		reportDir := filepath.Join(outDir, res.Name)
		if err := pipeline.FinishScenario(reportDir, res, front.Files); err != nil {
			return err
		}
		if res.Err != nil {
			failed = true
		}
		for _, pr := range res.Problems {
			printProblemResult(cmd, res.Name, pr)
			if pr.Run == nil || pr.Run.Status != "ok" {
				failed = true
			}
		}
	}

	if len(merged) > 0 {
		printMergedSolutions(cmd, string(mergeMode), merged)
	}

	if showTimings {
		fmt.Fprint(cmd.OutOrStdout(), timer.Summary())
	}
	if failed {
		return fmt.Errorf("run did not fully succeed")
	}
	return nil
}

// buildScenarioSpec resolves one --scenario argument (a manifest name or
// a literal path) into a pipeline.ScenarioSpec, applying spec.md
// §4.12's runtime-option precedence chain and §4.11's execution-config
// tiers.
func buildScenarioSpec(raw string, manifest *config.Manifest, manifestPath, outDir, cliRuntime, cliBackend string, fileOptions, cliOptions map[string]any) (pipeline.ScenarioSpec, error) {
	label := scenarioLabel(raw)
	scenarioPath := raw
	var scenarioSolve map[string]any
	var entrypoint *target.ExecutionConfig

	if manifest != nil {
		if entry, ok := manifest.Scenarios[raw]; ok {
			scenarioPath = filepath.Join(filepath.Dir(manifestPath), filepath.FromSlash(entry.Path))
			opts, err := manifest.ScenarioOptions(raw)
			if err != nil {
				return pipeline.ScenarioSpec{}, err
			}
			scenarioSolve = opts
			exec, err := manifest.ScenarioExecution(raw)
			if err != nil {
				return pipeline.ScenarioSpec{}, err
			}
			entrypoint = exec
		} else {
			scenarioSolve = manifest.RuntimeOptionDefaults()
		}
		if entrypoint == nil {
			entrypoint = manifest.EntrypointSelection()
		}
	}

	data, err := os.ReadFile(scenarioPath)
	if err != nil {
		return pipeline.ScenarioSpec{}, fmt.Errorf("cannot read scenario file %q: %w", scenarioPath, err)
	}
	payload, err := scenario.Decode(data)
	if err != nil {
		return pipeline.ScenarioSpec{}, err
	}

	runtimeOptions := target.ResolveRuntimeOptions(nil, scenarioSolve, fileOptions, cliOptions)

	return pipeline.ScenarioSpec{
		Name:           label,
		Payload:        payload,
		CLIRuntime:     cliRuntime,
		CLIBackend:     cliBackend,
		Entrypoint:     entrypoint,
		RuntimeOptions: runtimeOptions,
		OutDir:         filepath.Join(outDir, label),
	}, nil
}

func printProblemResult(cmd *cobra.Command, scenarioName string, pr pipeline.ProblemResult) {
	out := cmd.OutOrStdout()
	if pr.Run == nil {
		fmt.Fprintf(out, "%s/%s: no run result\n", scenarioName, pr.Problem)
		return
	}
	fmt.Fprintf(out, "%s/%s: status=%s energy=%g reads=%d -> %s\n",
		scenarioName, pr.Problem, pr.Run.Status, pr.Run.Energy, pr.Run.Reads, pr.OutDir)
}

func printMergedSolutions(cmd *cobra.Command, mode string, merged map[string][]target.RankedSolution) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "merged solutions (%s):\n", mode)
	for problem, sols := range merged {
		fmt.Fprintf(out, "  %s: %d solution(s)\n", problem, len(sols))
	}
}
