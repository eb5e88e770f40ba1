package quorum

import (
	"fmt"
	"strings"
)

// proposedSchema is the structured-output target for reasoner calls. It is a
// JSON-schema-like map rather than a typed schema object: cross-field
// constraints (tool_name required for TOOL_CALL and so on) are enforced by the
// validators, and provider structured modes vary too much to trust with more.
func proposedSchema() map[string]any {
	return map[string]any{
		"title":       "ProposedAction",
		"description": "Single next-step decision: either call one tool with JSON args, or return a final answer.",
		"type":        "object",
		"required":    []string{"decision_kind", "rationale"},
		"properties": map[string]any{
			"decision_kind":   map[string]any{"type": "string", "enum": []string{"TOOL_CALL", "FINAL"}},
			"tool_name":       map[string]any{"type": "string"},
			"tool_args":       map[string]any{"type": "object"},
			"final_answer":    map[string]any{"type": "string"},
			"rationale":       map[string]any{"type": "string"},
			"expected_signal": map[string]any{"type": "string"},
		},
	}
}

func committedSchema() map[string]any {
	return map[string]any{
		"title":       "CommittedAction",
		"description": "Judge decision: select or synthesize one candidate, either calling one tool or returning a final answer.",
		"type":        "object",
		"required":    []string{"decision_kind", "justification"},
		"properties": map[string]any{
			"decision_kind":  map[string]any{"type": "string", "enum": []string{"TOOL_CALL", "FINAL"}},
			"selected_index": map[string]any{"type": "integer"},
			"tool_name":      map[string]any{"type": "string"},
			"tool_args":      map[string]any{"type": "object"},
			"final_answer":   map[string]any{"type": "string"},
			"justification":  map[string]any{"type": "string"},
		},
	}
}

func reflectionSchema() map[string]any {
	return map[string]any{
		"title":       "ReflectionVerdict",
		"description": "Classification of a failed tool call: retry with fixed args, wait and retry, or abort.",
		"type":        "object",
		"required":    []string{"analysis", "verdict"},
		"properties": map[string]any{
			"analysis":         map[string]any{"type": "string", "description": "Brief thought process debugging the error."},
			"verdict":          map[string]any{"type": "string", "enum": []string{"RETRY", "WAIT", "ABORT"}},
			"retry_args":       map[string]any{"type": "object", "description": "Corrected arguments if verdict is RETRY. Ignored otherwise."},
			"abort_suggestion": map[string]any{"type": "string", "description": "Explanation for the agent why this tool is wrong if verdict is ABORT."},
		},
	}
}

func buildToolsBlock(specs []*ToolSpec) string {
	parts := make([]string, 0, len(specs))
	for _, spec := range specs {
		parts = append(parts, strings.Join([]string{
			fmt.Sprintf("- name: %s", spec.Name),
			fmt.Sprintf("  description: %s", spec.Description),
			fmt.Sprintf("  input_schema: %s", spec.SchemaJSON()),
		}, "\n"))
	}
	return strings.Join(parts, "\n")
}

func buildReasonerPrompt(systemPrompt, query, stateSummary string, specs []*ToolSpec, pathID int) (string, string) {
	system := strings.Join([]string{
		"You are a REASONER model inside a ReAct-style agent.",
		"Follow the agent system instructions, then decide the single best next action.",
		"Return ONLY a JSON object matching the ProposedAction schema.",
		"Never include extra keys.",
	}, "\n")

	user := strings.Join([]string{
		"REASONER INSTRUCTIONS:",
		strings.TrimSpace(systemPrompt),
		"",
		fmt.Sprintf("PATH_ID: %d", pathID),
		"",
		"ORIGINAL_USER_QUERY:",
		strings.TrimSpace(query),
		"",
		"CURRENT_STATE_SUMMARY:",
		stateSummary,
		"",
		"AVAILABLE_TOOLS:",
		buildToolsBlock(specs),
		"",
		"OUTPUT_FORMAT:",
		"Return ONLY a JSON object that matches ProposedAction with either:",
		`- decision_kind="TOOL_CALL" and tool_name/tool_args set, final_answer null; OR`,
		`- decision_kind="FINAL" and final_answer set, tool_name/tool_args null.`,
		"Do NOT wrap the JSON in markdown fences (no ```json).",
		"rationale is REQUIRED: write 1-2 short sentences explaining why this is the best next step.",
		"Do NOT use placeholders like 'N/A'.",
		"",
		"JSON_ONLY:",
	}, "\n")

	return system, user
}

func buildJudgePrompt(query, stateSummary string, candidates []*ProposedAction, strategy SelectionStrategy, allowToolSynthesis bool) (string, string) {
	system := strings.Join([]string{
		"You are the JUDGE model for a self-consistency agent.",
		"You must pick the single best next decision from multiple candidates, or synthesize one.",
		"Return ONLY a JSON object matching the CommittedAction schema.",
	}, "\n")

	user := strings.Join([]string{
		"JUDGE INSTRUCTIONS:",
		"",
		"ORIGINAL_USER_QUERY:",
		strings.TrimSpace(query),
		"",
		"CURRENT_STATE_SUMMARY:",
		stateSummary,
		"",
		fmt.Sprintf("SELECTION_STRATEGY: %s", strategy),
		fmt.Sprintf("ALLOW_TOOL_SYNTHESIS: %t", allowToolSynthesis),
		"",
		"CANDIDATES:",
		stableJSON(candidates),
		"",
		"RUBRIC (score high on these):",
		"- query alignment",
		"- consistency with observations",
		"- tool appropriateness/minimality",
		"- safety/policy compliance (basic)",
		"- expected value for reducing uncertainty",
		"",
		"DECISION_RULES:",
		`- If selection_strategy="select_one": set selected_index to the chosen candidate index and copy its decision.`,
		`- If selection_strategy="synthesize_one": selected_index must be null; you may synthesize a better single decision.`,
		"- If allow_tool_synthesis=false: do not invent a tool call that is not present among candidates.",
		"",
		"OUTPUT_FORMAT:",
		"Return ONLY a JSON object matching CommittedAction.",
		"Do NOT wrap the JSON in markdown fences (no ```json).",
		"Do NOT nest the decision under a 'decision' key. Do NOT include extra keys like 'comment'.",
		"justification is REQUIRED: write 1-2 short sentences explaining why this is the best single next step.",
		"Do NOT use placeholders like 'N/A'.",
		"",
		"JSON_ONLY:",
	}, "\n")

	return system, user
}

func buildReflectionPrompt(query string, spec *ToolSpec, args map[string]any, errMsg string, specs []*ToolSpec) (string, string) {
	system := strings.Join([]string{
		"You are a TOOL-FAILURE REFLECTION model inside an agent.",
		"A tool call failed. Decide whether to RETRY with corrected arguments, WAIT and retry unchanged, or ABORT.",
		"RETRY only when the error indicates fixable arguments. WAIT only for transient errors (timeouts, 5xx, overload).",
		"ABORT for permission errors, unsupported operations, or anything a retry cannot fix.",
		"Return ONLY a JSON object matching the ReflectionVerdict schema.",
	}, "\n")

	user := strings.Join([]string{
		"ORIGINAL_USER_QUERY:",
		strings.TrimSpace(query),
		"",
		fmt.Sprintf("FAILED_TOOL: %s", spec.Name),
		"",
		"TOOL_SCHEMA:",
		spec.SchemaJSON(),
		"",
		"TOOL_ARGS_JSON:",
		stableJSON(args),
		"",
		"ERROR:",
		errMsg,
		"",
		"AVAILABLE_TOOLS:",
		buildToolsBlock(specs),
		"",
		"JSON_ONLY:",
	}, "\n")

	return system, user
}

func buildBestEffortFinalPrompt(query, stateSummary string) (string, string) {
	system := strings.Join([]string{
		"You are the JUDGE model for a self-consistency agent.",
		"The agent has reached its step limit. Produce the best possible final answer.",
		"Return ONLY JSON.",
	}, "\n")

	user := strings.Join([]string{
		"ORIGINAL_USER_QUERY:",
		strings.TrimSpace(query),
		"",
		"CURRENT_STATE_SUMMARY:",
		stateSummary,
		"",
		"Return a FINAL answer as JSON with keys: decision_kind, final_answer, justification.",
	}, "\n")

	return system, user
}
