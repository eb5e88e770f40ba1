package quorum

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultToolAliases maps tool names that upstream models are known to invent
// onto the canonical registered names.
var DefaultToolAliases = map[string]string{
	"search.run": "simple_search",
}

// NormalizeProposed repairs known upstream deviations in a proposed-action
// object so validation can succeed. The function is pure (the input map is not
// mutated) and idempotent. nil aliases falls back to DefaultToolAliases.
func NormalizeProposed(obj map[string]any, aliases map[string]string) map[string]any {
	out := cloneMap(obj)

	normalizeKindTag(out)
	normalizeEmptyStrings(out, "tool_name", "final_answer", "expected_signal")
	rewriteToolAlias(out, aliases)
	applyKindInvariant(out)

	rationale, _ := out["rationale"].(string)
	if isPlaceholder(rationale) {
		if kindOf(out) == KindToolCall {
			out["rationale"] = fmt.Sprintf("Use %s to gather the missing information needed to proceed.", toolNameOr(out, "a tool"))
		} else {
			out["rationale"] = "We have enough information from observations to answer now."
		}
	}

	stringifyFinalAnswer(out)

	return out
}

// NormalizeCommitted repairs known upstream deviations in a committed-action
// object. Pure and idempotent, like NormalizeProposed.
func NormalizeCommitted(obj map[string]any, aliases map[string]string) map[string]any {
	out := cloneMap(obj)

	// Some models nest the actual decision under a "decision" key with extra
	// commentary around it. Flatten one level, keeping a top-level
	// selected_index/justification when present.
	if nested, ok := out["decision"].(map[string]any); ok {
		flattened := map[string]any{}
		if v, ok := out["selected_index"]; ok {
			flattened["selected_index"] = v
		}
		if v, ok := out["justification"]; ok {
			flattened["justification"] = v
		}
		for k, v := range nested {
			flattened[k] = v
		}
		out = flattened
	}

	normalizeKindTag(out)

	if sel, ok := out["selected_index"]; ok {
		out["selected_index"] = coerceIndex(sel)
	}

	normalizeEmptyStrings(out, "tool_name", "final_answer")
	rewriteToolAlias(out, aliases)
	applyKindInvariant(out)

	justification, _ := out["justification"].(string)
	if isPlaceholder(justification) {
		// Some models put the reasoning under "rationale" instead.
		if rationale, ok := out["rationale"].(string); ok && strings.TrimSpace(rationale) != "" && !isPlaceholder(rationale) {
			out["justification"] = strings.TrimSpace(rationale)
		} else if kindOf(out) == KindToolCall {
			out["justification"] = fmt.Sprintf("Select %s because it is the most direct next action to reduce uncertainty.", toolNameOr(out, "a tool"))
		} else {
			out["justification"] = "Select FINAL because the observations are sufficient to answer."
		}
	}

	stringifyFinalAnswer(out)

	return out
}

func cloneMap(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}

func kindOf(obj map[string]any) DecisionKind {
	if s, ok := obj["decision_kind"].(string); ok {
		return DecisionKind(s)
	}
	return ""
}

// normalizeKindTag folds case and spacing variants of the decision tag.
func normalizeKindTag(obj map[string]any) {
	s, ok := obj["decision_kind"].(string)
	if !ok {
		return
	}
	folded := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "_")
	switch folded {
	case "TOOL", "TOOLCALL", "TOOL_CALL":
		obj["decision_kind"] = string(KindToolCall)
	case "FINAL", "ANSWER":
		obj["decision_kind"] = string(KindFinal)
	}
}

// normalizeEmptyStrings converts empty-string nullable fields to null. Some
// structured-output backends emit "" where the schema means absent.
func normalizeEmptyStrings(obj map[string]any, keys ...string) {
	for _, key := range keys {
		if v, ok := obj[key]; ok && v == "" {
			obj[key] = nil
		}
	}
}

func rewriteToolAlias(obj map[string]any, aliases map[string]string) {
	if aliases == nil {
		aliases = DefaultToolAliases
	}
	if name, ok := obj["tool_name"].(string); ok {
		if canonical, ok := aliases[name]; ok {
			obj["tool_name"] = canonical
		}
	}
}

// applyKindInvariant re-applies the mutual-exclusion invariant after the other
// repairs: a tool call carries no final answer, a final answer carries no tool.
func applyKindInvariant(obj map[string]any) {
	switch kindOf(obj) {
	case KindToolCall:
		if v, ok := obj["final_answer"]; ok && v != nil {
			obj["final_answer"] = nil
		}
	case KindFinal:
		if v, ok := obj["tool_name"]; ok && v != nil {
			obj["tool_name"] = nil
		}
		if v, ok := obj["tool_args"]; ok && v != nil {
			obj["tool_args"] = nil
		}
	}
}

func isPlaceholder(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "N/A", "NA", "NONE":
		return true
	}
	return false
}

func toolNameOr(obj map[string]any, fallback string) string {
	if name, ok := obj["tool_name"].(string); ok && name != "" {
		return name
	}
	return fallback
}

// coerceIndex converts selected_index variants (numeric string, integral
// float, null-like string) to int, and anything unusable to nil. Booleans are
// explicitly unusable even though some runtimes treat them as integers.
func coerceIndex(v any) any {
	switch sel := v.(type) {
	case nil:
		return nil
	case bool:
		return nil
	case int:
		return sel
	case int64:
		return int(sel)
	case float64:
		if math.IsNaN(sel) || math.IsInf(sel, 0) || sel != math.Trunc(sel) {
			return nil
		}
		return int(sel)
	case string:
		stripped := strings.TrimSpace(sel)
		switch strings.ToLower(stripped) {
		case "", "null", "none":
			return nil
		}
		if n, err := strconv.Atoi(stripped); err == nil {
			return n
		}
		return nil
	default:
		return nil
	}
}

// stringifyFinalAnswer converts a non-string final answer on a FINAL decision
// (models emit numbers or objects) into its JSON text.
func stringifyFinalAnswer(obj map[string]any) {
	if kindOf(obj) != KindFinal {
		return
	}
	fa, ok := obj["final_answer"]
	if !ok || fa == nil {
		return
	}
	if _, isString := fa.(string); isString {
		return
	}
	obj["final_answer"] = stableJSON(fa)
}
