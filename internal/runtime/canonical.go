package runtime

import (
	"fmt"
	"sort"
	"strings"
)

// CanonicalSampleKey renders a decoded sample as a stable string —
// sorted `label=value;` pairs — so callers outside internal/runtime/local
// (internal/pipeline's multi-scenario intersection/union merge) can
// compare two RankedSolution.Sample maps for identity without depending
// on map iteration order. Grounded on original_source/util/stable_hash.py,
// which SPEC_FULL.md's supplemented-feature #5 motivates as the answer
// to spec.md §4.12/§9's "canonical sample-string order" open tie-break
// question; internal/runtime/local's own sampleSignature applies the same
// rule locally for dedup before this package's copy ever runs.
func CanonicalSampleKey(sample map[string]int) string {
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
