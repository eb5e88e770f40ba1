package quorum

import (
	"encoding/json"
	"fmt"
)

// stableJSON serializes a value with deterministic key ordering (encoding/json
// sorts map keys). Unserializable values degrade to their Go representation
// instead of failing.
func stableJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}

// truncate shortens s to at most max characters, keeping a suffix that notes
// the original length. max <= 0 means unlimited.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	keep := max - 24
	if keep < 0 {
		keep = 0
	}
	return s[:keep] + fmt.Sprintf("... [truncated %d chars]", len(s))
}

// renderObservation formats a tool result for the observation log.
func renderObservation(toolName string, result any, limit int) string {
	return fmt.Sprintf("%s => %s", toolName, truncate(stableJSON(result), limit))
}
