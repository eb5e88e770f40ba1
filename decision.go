package quorum

// DecisionKind is the tag of the two-armed decision union: call one tool, or
// answer. The tag plus the kind-specific field invariants are enforced by the
// validators in validate.go, not by subtyping.
type DecisionKind string

const (
	// KindToolCall means the decision requests execution of exactly one tool.
	KindToolCall DecisionKind = "TOOL_CALL"

	// KindFinal means the decision terminates the run with a final answer.
	KindFinal DecisionKind = "FINAL"
)

// SelectionStrategy controls how the judge resolves the candidate set.
type SelectionStrategy string

const (
	// SelectOne instructs the judge to pick one candidate by index and mirror it.
	SelectOne SelectionStrategy = "select_one"

	// SynthesizeOne instructs the judge to produce a single decision of its own,
	// informed by the candidates.
	SynthesizeOne SelectionStrategy = "synthesize_one"
)

// ProposedAction is one candidate next step from a reasoning path. Instances
// are produced per fan-out call, are immutable, and live only for one step.
//
// Invariant: KindToolCall requires ToolName to be set and FinalAnswer empty;
// KindFinal requires FinalAnswer to be set and ToolName/ToolArgs empty.
type ProposedAction struct {
	Kind           DecisionKind   `json:"decision_kind"`
	ToolName       string         `json:"tool_name,omitempty"`
	ToolArgs       map[string]any `json:"tool_args,omitempty"`
	FinalAnswer    string         `json:"final_answer,omitempty"`
	Rationale      string         `json:"rationale"`
	ExpectedSignal string         `json:"expected_signal,omitempty"`
}

// CommittedAction is the single action chosen or synthesized by the judge for
// one step. It obeys the same mutual-exclusion invariant as ProposedAction.
// SelectedIndex, when non-nil, must index the step's valid-proposal list.
type CommittedAction struct {
	Kind          DecisionKind   `json:"decision_kind"`
	SelectedIndex *int           `json:"selected_index,omitempty"`
	ToolName      string         `json:"tool_name,omitempty"`
	ToolArgs      map[string]any `json:"tool_args,omitempty"`
	FinalAnswer   string         `json:"final_answer,omitempty"`
	Justification string         `json:"justification"`
}

// Verdict is the outcome of one reflection classification for a failed tool call.
type Verdict string

const (
	// VerdictRetry re-attempts the tool with replacement arguments.
	VerdictRetry Verdict = "RETRY"

	// VerdictWait sleeps with exponential backoff and re-attempts unchanged.
	VerdictWait Verdict = "WAIT"

	// VerdictAbort gives up on the tool and surfaces an explanatory observation.
	VerdictAbort Verdict = "ABORT"
)

// ReflectionVerdict is the classifier's decision for one failed attempt.
// It is ephemeral and never outlives the attempt that produced it.
type ReflectionVerdict struct {
	Verdict         Verdict        `json:"verdict"`
	RetryArgs       map[string]any `json:"retry_args,omitempty"`
	AbortSuggestion string         `json:"abort_suggestion,omitempty"`
	Analysis        string         `json:"analysis,omitempty"`
}
