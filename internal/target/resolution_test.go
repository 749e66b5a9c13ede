package target

import (
	"testing"

	"qsol/internal/diag"
)

func TestResolveSelection_Precedence(t *testing.T) {
	entrypoint := &ExecutionConfig{Runtime: "config-runtime", Backend: "config-backend"}
	execution := &ExecutionConfig{Runtime: "scenario-runtime", Backend: "scenario-backend"}

	tests := []struct {
		name       string
		execution  *ExecutionConfig
		entrypoint *ExecutionConfig
		cliRuntime string
		cliBackend string
		wantSel    Selection
		wantIssue  bool
	}{
		{
			name:       "cli wins over everything",
			execution:  execution,
			entrypoint: entrypoint,
			cliRuntime: "cli-runtime",
			cliBackend: "cli-backend",
			wantSel:    Selection{RuntimeID: "cli-runtime", BackendID: "cli-backend"},
		},
		{
			name:       "scenario wins over config when cli absent",
			execution:  execution,
			entrypoint: entrypoint,
			wantSel:    Selection{RuntimeID: "scenario-runtime", BackendID: "scenario-backend"},
		},
		{
			name:       "config wins when cli and scenario absent",
			entrypoint: entrypoint,
			wantSel:    Selection{RuntimeID: "config-runtime", BackendID: "config-backend"},
		},
		{
			name:      "backend falls back to DefaultBackendID, runtime does not",
			wantIssue: true,
		},
		{
			name:       "backend falls back to default even with a runtime resolved",
			cliRuntime: "cli-runtime",
			wantSel:    Selection{RuntimeID: "cli-runtime", BackendID: DefaultBackendID},
		},
		{
			name:       "whitespace-only overrides are treated as absent",
			execution:  &ExecutionConfig{Runtime: "  ", Backend: "  "},
			entrypoint: entrypoint,
			wantSel:    Selection{RuntimeID: "config-runtime", BackendID: "config-backend"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sel, issues := ResolveSelection(tc.execution, tc.entrypoint, tc.cliRuntime, tc.cliBackend)
			if tc.wantIssue {
				if len(issues) == 0 {
					t.Fatalf("expected an issue, got none (selection=%+v)", sel)
				}
				if issues[0].Code != diag.CodeSelectionUnresolved {
					t.Fatalf("unexpected issue code: %v", issues[0].Code)
				}
				return
			}
			if len(issues) != 0 {
				t.Fatalf("unexpected issues: %+v", issues)
			}
			if sel != tc.wantSel {
				t.Fatalf("got %+v, want %+v", sel, tc.wantSel)
			}
		})
	}
}

func TestResolveRuntimeOptions_KeyByKeyOverride(t *testing.T) {
	configDefaults := map[string]any{"num_reads": 100.0, "sampler": "default"}
	scenarioSolve := map[string]any{"num_reads": 200.0}
	optionsFile := map[string]any{"sampler": "exact"}
	cliPairs := map[string]any{"num_reads": 500.0}

	got := ResolveRuntimeOptions(configDefaults, scenarioSolve, optionsFile, cliPairs)

	want := map[string]any{"num_reads": 500.0, "sampler": "exact"}
	if len(got) != len(want) {
		t.Fatalf("got %d keys, want %d: %+v", len(got), len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("key %q: got %v, want %v", k, got[k], v)
		}
	}
}

func TestResolveRuntimeOptions_LowerTierSurvivesWhenNotOverridden(t *testing.T) {
	configDefaults := map[string]any{"shots": 1000.0}
	got := ResolveRuntimeOptions(configDefaults, nil, nil, nil)
	if got["shots"] != 1000.0 {
		t.Fatalf("expected config default to survive untouched, got %+v", got)
	}
}
