// Package scenario decodes spec.md §6's scenario payload — the JSON
// document a caller feeds the pipeline alongside a compiled program —
// into internal/ground.Scenario plus the supplemented `execution`
// target-selection defaults. Grounded on
// original_source/targeting/resolution.py's `_instance_defaults`, which
// reads the same `execution.runtime`/`execution.backend` fields out of
// the instance JSON payload original_source calls "instance" and
// spec.md calls "scenario".
package scenario

import (
	"encoding/json"
	"fmt"

	"qsol/internal/ground"
	"qsol/internal/target"
)

// Payload is the raw wire shape of a scenario document.
type Payload struct {
	Problem           string                     `json:"problem,omitempty"`
	Sets              map[string][]string        `json:"sets"`
	Params            map[string]json.RawMessage `json:"params"`
	ExecutionDefaults *executionPayload          `json:"execution,omitempty"`
}

type executionPayload struct {
	Runtime string `json:"runtime,omitempty"`
	Backend string `json:"backend,omitempty"`
}

// Decode parses raw scenario JSON into a Payload.
func Decode(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	return &p, nil
}

// Ground converts the payload into internal/ground's grounding input,
// decoding each param's arbitrary JSON shape into the scalar/nested-map
// tree ground.Program expects.
func (p *Payload) Ground() (ground.Scenario, error) {
	params := make(map[string]any, len(p.Params))
	for name, raw := range p.Params {
		v, err := decodeParamValue(raw)
		if err != nil {
			return ground.Scenario{}, fmt.Errorf("param `%s`: %w", name, err)
		}
		params[name] = v
	}
	return ground.Scenario{Problem: p.Problem, Sets: p.Sets, Params: params}, nil
}

// decodeParamValue turns arbitrary param JSON into either a leaf
// (float64, bool, or string element id) or a map[string]any of the
// same, matching the shapes internal/ground.bindParam accepts.
func decodeParamValue(raw json.RawMessage) (any, error) {
	var leaf any
	if err := json.Unmarshal(raw, &leaf); err != nil {
		return nil, err
	}
	return normalizeParamValue(leaf)
}

func normalizeParamValue(v any) (any, error) {
	switch val := v.(type) {
	case float64, bool, string:
		return val, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			nc, err := normalizeParamValue(child)
			if err != nil {
				return nil, err
			}
			out[k] = nc
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported param value shape %T", v)
	}
}

// Execution returns the payload's target-selection defaults, or nil if
// the scenario carries none.
func (p *Payload) Execution() *target.ExecutionConfig {
	if p.ExecutionDefaults == nil {
		return nil
	}
	return &target.ExecutionConfig{Runtime: p.ExecutionDefaults.Runtime, Backend: p.ExecutionDefaults.Backend}
}
