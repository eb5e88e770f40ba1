package quorum

import (
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// ExtractObject interprets free-form model output as a single JSON object.
// Models wrap JSON in markdown code fences or surrounding prose even when told
// not to, so the parser strips a leading/trailing fence (optional language
// tag) and otherwise falls back to the first top-level `{...}` substring.
func ExtractObject(text string) (map[string]any, error) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return nil, goerr.Wrap(ErrNotObject, "empty model output")
	}

	cleaned = stripCodeFence(cleaned)

	if !strings.HasPrefix(cleaned, "{") {
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start < 0 || end <= start {
			return nil, goerr.Wrap(ErrNotObject, "no JSON object found", goerr.V("output", truncate(text, 200)))
		}
		cleaned = strings.TrimSpace(cleaned[start : end+1])
	}

	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, goerr.Wrap(ErrNotObject, "failed to parse JSON", goerr.V("output", truncate(cleaned, 200)))
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, goerr.Wrap(ErrNotObject, "JSON value is not an object")
	}
	return obj, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	lines := strings.Split(s, "\n")
	if len(lines) < 3 || strings.TrimSpace(lines[len(lines)-1]) != "```" {
		return s
	}

	inner := strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
	// The opening fence may carry the language tag on its own line instead.
	if strings.HasPrefix(strings.ToLower(inner), "json") {
		inner = strings.TrimSpace(inner[4:])
	}
	return inner
}
