package scenario_test

import (
	"testing"

	"qsol/internal/scenario"
)

func TestDecode_And_Ground_FullPayload(t *testing.T) {
	data := []byte(`{
		"problem": "P",
		"sets": {"S": ["a", "b", "c"]},
		"params": {
			"budget": 3,
			"active": true,
			"label": "x",
			"weights": {"a": 1, "b": 2}
		},
		"execution": {"runtime": "local-sampler-v1", "backend": "dimod-cqm-v1"}
	}`)

	p, err := scenario.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Problem != "P" {
		t.Fatalf("got problem %q, want P", p.Problem)
	}
	if len(p.Sets["S"]) != 3 {
		t.Fatalf("expected 3 elements in set S, got %+v", p.Sets["S"])
	}

	g, err := p.Ground()
	if err != nil {
		t.Fatalf("Ground: %v", err)
	}
	if g.Problem != "P" {
		t.Fatalf("got %q, want P", g.Problem)
	}
	if g.Params["budget"].(float64) != 3 {
		t.Fatalf("expected budget=3, got %+v", g.Params["budget"])
	}
	if g.Params["active"].(bool) != true {
		t.Fatalf("expected active=true, got %+v", g.Params["active"])
	}
	if g.Params["label"].(string) != "x" {
		t.Fatalf("expected label=x, got %+v", g.Params["label"])
	}
	weights, ok := g.Params["weights"].(map[string]any)
	if !ok || weights["a"].(float64) != 1 || weights["b"].(float64) != 2 {
		t.Fatalf("unexpected weights: %+v", g.Params["weights"])
	}

	exec := p.Execution()
	if exec == nil || exec.Runtime != "local-sampler-v1" || exec.Backend != "dimod-cqm-v1" {
		t.Fatalf("unexpected execution defaults: %+v", exec)
	}
}

func TestPayload_Execution_NilWhenAbsent(t *testing.T) {
	p, err := scenario.Decode([]byte(`{"problem": "P", "sets": {}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Execution() != nil {
		t.Fatalf("expected nil execution defaults, got %+v", p.Execution())
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	if _, err := scenario.Decode([]byte(`{not json`)); err == nil {
		t.Fatal("expected an error decoding malformed JSON")
	}
}

func TestPayload_Ground_RejectsUnsupportedParamShape(t *testing.T) {
	p, err := scenario.Decode([]byte(`{"problem": "P", "sets": {}, "params": {"bad": [1,2,3]}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, err := p.Ground(); err == nil {
		t.Fatal("expected an error grounding a param whose JSON value is an array")
	}
}
