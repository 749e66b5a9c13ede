package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// parseRuntimeOptionPairs turns repeated `--runtime-option KEY=VALUE`
// flags into the CLI tier of spec.md §4.12's runtime-option precedence
// chain. VALUE is parsed as JSON first (so `5`, `true`, `"exact"` all
// come through as their natural Go type) and falls back to the raw
// string when it isn't valid JSON, so `--runtime-option sampler=exact`
// still works without requiring the user to quote it.
func parseRuntimeOptionPairs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--runtime-option %q must be in KEY=VALUE form", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			v = value
		}
		out[key] = v
	}
	return out, nil
}

// loadRuntimeOptionsFile reads the --runtime-options-file tier: a flat
// JSON object of runtime option overrides.
func loadRuntimeOptionsFile(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("--runtime-options-file: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("--runtime-options-file %s: %w", path, err)
	}
	return out, nil
}
