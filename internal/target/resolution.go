package target

import (
	"strings"

	"qsol/internal/diag"
)

// DefaultBackendID is the backend spec.md §4.11 names as the last-resort
// default when nothing else — CLI, scenario execution, or config
// entrypoint — supplies one.
const DefaultBackendID = "dimod-cqm-v1"

// ResolveSelection picks the runtime/backend pair to run against, in
// spec.md §4.11's precedence order: CLI > scenario execution > config
// entrypoint > default (backend only), grounded on resolution.py's
// resolve_target_selection.
func ResolveSelection(execution *ExecutionConfig, entrypoint *ExecutionConfig, cliRuntime, cliBackend string) (Selection, []Issue) {
	var scenarioRuntime, scenarioBackend string
	if execution != nil {
		scenarioRuntime = strings.TrimSpace(execution.Runtime)
		scenarioBackend = strings.TrimSpace(execution.Backend)
	}
	var configRuntime, configBackend string
	if entrypoint != nil {
		configRuntime = strings.TrimSpace(entrypoint.Runtime)
		configBackend = strings.TrimSpace(entrypoint.Backend)
	}

	runtime := firstNonEmpty(cliRuntime, scenarioRuntime, configRuntime)
	// Backend always has a last-resort default (DefaultBackendID), so unlike
	// runtime it can never end up empty here; only runtime's absence is a
	// possible QSOL4006, per spec.md §4.11 ("Backend defaults to
	// dimod-cqm-v1" names no equivalent default for runtime).
	backend := firstNonEmpty(cliBackend, scenarioBackend, configBackend, DefaultBackendID)

	if runtime == "" {
		return Selection{}, []Issue{{
			Code: diag.CodeSelectionUnresolved,
			Message: "runtime is required; provide `--runtime` or set `execution.runtime` " +
				"in the scenario",
			Stage: StageResolution,
		}}
	}
	return Selection{RuntimeID: runtime, BackendID: backend}, nil
}

// ResolveRuntimeOptions merges the four tiers of spec.md §4.12's runtime
// option precedence (CLI `--runtime-option` pairs > `--runtime-options-file`
// > config scenario solve > config defaults) into one option map, later
// tiers overriding earlier ones key-by-key rather than wholesale, so a
// caller can set most options in qsol.toml and override just one from the
// command line.
func ResolveRuntimeOptions(configDefaults, scenarioSolve, optionsFile, cliPairs map[string]any) map[string]any {
	merged := make(map[string]any, len(configDefaults)+len(scenarioSolve)+len(optionsFile)+len(cliPairs))
	for _, tier := range []map[string]any{configDefaults, scenarioSolve, optionsFile, cliPairs} {
		for k, v := range tier {
			merged[k] = v
		}
	}
	return merged
}

// ExecutionConfig is the scenario payload's optional `execution` block
// (spec.md §6's supplemented field, see internal/scenario).
type ExecutionConfig struct {
	Runtime string
	Backend string
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
