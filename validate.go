package quorum

import (
	"encoding/json"
	"fmt"
	"math"
)

// ValidateProposed checks an untrusted object against the ProposedAction
// shape. It returns either a well-typed record or a non-empty error list, and
// never panics. Validation collects every violation rather than stopping at
// the first.
func ValidateProposed(obj map[string]any) (*ProposedAction, []string) {
	if obj == nil {
		return nil, []string{"ProposedAction must be an object"}
	}

	var errs []string

	kind := kindOf(obj)
	if kind != KindToolCall && kind != KindFinal {
		errs = append(errs, "decision_kind must be TOOL_CALL or FINAL")
	}

	rationale, ok := obj["rationale"].(string)
	if !ok || isBlank(rationale) {
		errs = append(errs, "rationale must be a non-empty string")
	}

	toolName, toolNameIsString := obj["tool_name"].(string)
	toolArgs, toolArgsIsMap := obj["tool_args"].(map[string]any)
	finalAnswer, finalIsString := obj["final_answer"].(string)

	switch kind {
	case KindToolCall:
		if !toolNameIsString || toolName == "" {
			errs = append(errs, "tool_name must be a non-empty string for TOOL_CALL")
		}
		if v, ok := obj["tool_args"]; ok && v != nil && !toolArgsIsMap {
			errs = append(errs, "tool_args must be an object if provided")
		}
		if v, ok := obj["final_answer"]; ok && v != nil {
			errs = append(errs, "final_answer must be null for TOOL_CALL")
		}
	case KindFinal:
		if !finalIsString || isBlank(finalAnswer) {
			errs = append(errs, "final_answer must be a non-empty string for FINAL")
		}
		if isSet(obj, "tool_name") || isSet(obj, "tool_args") {
			errs = append(errs, "tool_name/tool_args must be null for FINAL")
		}
	}

	expectedSignal, signalIsString := obj["expected_signal"].(string)
	if v, ok := obj["expected_signal"]; ok && v != nil && !signalIsString {
		errs = append(errs, "expected_signal must be a string or null")
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &ProposedAction{
		Kind:           kind,
		ToolName:       toolName,
		ToolArgs:       toolArgs,
		FinalAnswer:    finalAnswer,
		Rationale:      rationale,
		ExpectedSignal: expectedSignal,
	}, nil
}

// ValidateCommitted checks an untrusted object against the CommittedAction
// shape. Bounds of SelectedIndex against the candidate list are the judge's
// responsibility; here only the integer-or-null constraint applies.
func ValidateCommitted(obj map[string]any) (*CommittedAction, []string) {
	if obj == nil {
		return nil, []string{"CommittedAction must be an object"}
	}

	var errs []string

	kind := kindOf(obj)
	if kind != KindToolCall && kind != KindFinal {
		errs = append(errs, "decision_kind must be TOOL_CALL or FINAL")
	}

	justification, ok := obj["justification"].(string)
	if !ok || isBlank(justification) {
		errs = append(errs, "justification must be a non-empty string")
	}

	var selected *int
	if v, ok := obj["selected_index"]; ok && v != nil {
		if n, ok := asInt(v); ok {
			selected = &n
		} else {
			errs = append(errs, "selected_index must be an integer or null")
		}
	}

	toolName, toolNameIsString := obj["tool_name"].(string)
	toolArgs, toolArgsIsMap := obj["tool_args"].(map[string]any)
	finalAnswer, finalIsString := obj["final_answer"].(string)

	switch kind {
	case KindToolCall:
		if v, ok := obj["tool_name"]; ok && v != nil && !toolNameIsString {
			errs = append(errs, "tool_name must be string or null")
		}
		if v, ok := obj["tool_args"]; ok && v != nil && !toolArgsIsMap {
			errs = append(errs, "tool_args must be object or null")
		}
		if v, ok := obj["final_answer"]; ok && v != nil {
			errs = append(errs, "final_answer must be null for TOOL_CALL")
		}
	case KindFinal:
		if !finalIsString || isBlank(finalAnswer) {
			errs = append(errs, "final_answer must be a non-empty string for FINAL")
		}
		if isSet(obj, "tool_name") || isSet(obj, "tool_args") {
			errs = append(errs, "tool_name/tool_args must be null for FINAL")
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &CommittedAction{
		Kind:          kind,
		SelectedIndex: selected,
		ToolName:      toolName,
		ToolArgs:      toolArgs,
		FinalAnswer:   finalAnswer,
		Justification: justification,
	}, nil
}

// ValidateArgs checks a value against a tool's input schema: every missing
// required key and every primitive type mismatch is reported. Keys without a
// declared type, and declared types outside the known set, are accepted for
// forward compatibility.
func ValidateArgs(args any, spec *ToolSpec) []string {
	if spec == nil {
		return nil
	}

	obj, ok := args.(map[string]any)
	if !ok {
		return []string{fmt.Sprintf("Expected object, got %s", typeName(args))}
	}

	var errs []string
	for _, key := range spec.Required {
		if _, ok := obj[key]; !ok {
			errs = append(errs, fmt.Sprintf("Missing required key: %s", key))
		}
	}

	for key, param := range spec.Parameters {
		v, ok := obj[key]
		if !ok || param == nil {
			continue
		}
		if !typeMatches(v, param.Type) {
			errs = append(errs, fmt.Sprintf("Key '%s' expected type %s, got %s", key, param.Type, typeName(v)))
		}
	}

	return errs
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

func isSet(obj map[string]any, key string) bool {
	v, ok := obj[key]
	return ok && v != nil
}

// asInt reports whether v is a genuine integer. Booleans are rejected
// explicitly; float64 is accepted only when integral, because encoding/json
// decodes every JSON number to float64.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case bool:
		return 0, false
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case bool:
		return false
	case int, int64, float64, json.Number:
		return true
	default:
		return false
	}
}

func typeMatches(v any, t ParameterType) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		return isNumber(v)
	case TypeInteger:
		_, ok := asInt(v)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	case TypeNull:
		return v == nil
	default:
		// Unknown declared type: accept to keep the checker lightweight.
		return true
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case int, int64, float64, json.Number:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
