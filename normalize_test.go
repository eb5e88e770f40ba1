package quorum_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/quorum"
)

func TestNormalizeProposed(t *testing.T) {
	t.Run("folds kind tag variants", func(t *testing.T) {
		for _, raw := range []string{"tool_call", "TOOL CALL", " toolcall ", "TOOL"} {
			obj := quorum.NormalizeProposed(map[string]any{
				"decision_kind": raw,
				"tool_name":     "calculator",
				"rationale":     "compute it",
			}, nil)
			gt.Equal(t, obj["decision_kind"], "TOOL_CALL")
		}
		for _, raw := range []string{"final", "ANSWER", " Final "} {
			obj := quorum.NormalizeProposed(map[string]any{
				"decision_kind": raw,
				"final_answer":  "42",
				"rationale":     "done",
			}, nil)
			gt.Equal(t, obj["decision_kind"], "FINAL")
		}
	})

	t.Run("empty strings become null", func(t *testing.T) {
		obj := quorum.NormalizeProposed(map[string]any{
			"decision_kind":   "FINAL",
			"final_answer":    "42",
			"tool_name":       "",
			"expected_signal": "",
			"rationale":       "done",
		}, nil)
		gt.Value(t, obj["tool_name"]).Nil()
		gt.Value(t, obj["expected_signal"]).Nil()
	})

	t.Run("rewrites tool aliases", func(t *testing.T) {
		obj := quorum.NormalizeProposed(map[string]any{
			"decision_kind": "TOOL_CALL",
			"tool_name":     "search.run",
			"tool_args":     map[string]any{"query": "usc"},
			"rationale":     "look it up",
		}, nil)
		gt.Equal(t, obj["tool_name"], "simple_search")
	})

	t.Run("kind invariant clears the other arm", func(t *testing.T) {
		toolCall := quorum.NormalizeProposed(map[string]any{
			"decision_kind": "TOOL_CALL",
			"tool_name":     "calculator",
			"final_answer":  "premature",
			"rationale":     "compute",
		}, nil)
		gt.Value(t, toolCall["final_answer"]).Nil()

		final := quorum.NormalizeProposed(map[string]any{
			"decision_kind": "FINAL",
			"final_answer":  "42",
			"tool_name":     "calculator",
			"tool_args":     map[string]any{"expression": "2+2"},
			"rationale":     "done",
		}, nil)
		gt.Value(t, final["tool_name"]).Nil()
		gt.Value(t, final["tool_args"]).Nil()
	})

	t.Run("placeholder rationale is replaced", func(t *testing.T) {
		obj := quorum.NormalizeProposed(map[string]any{
			"decision_kind": "TOOL_CALL",
			"tool_name":     "calculator",
			"rationale":     "N/A",
		}, nil)
		gt.Equal(t, obj["rationale"], "Use calculator to gather the missing information needed to proceed.")

		final := quorum.NormalizeProposed(map[string]any{
			"decision_kind": "FINAL",
			"final_answer":  "42",
			"rationale":     "",
		}, nil)
		gt.Equal(t, final["rationale"], "We have enough information from observations to answer now.")
	})

	t.Run("non-string final answer is stringified", func(t *testing.T) {
		obj := quorum.NormalizeProposed(map[string]any{
			"decision_kind": "FINAL",
			"final_answer":  float64(42),
			"rationale":     "done",
		}, nil)
		gt.Equal(t, obj["final_answer"], "42")

		nested := quorum.NormalizeProposed(map[string]any{
			"decision_kind": "FINAL",
			"final_answer":  map[string]any{"answer": "42"},
			"rationale":     "done",
		}, nil)
		gt.Equal(t, nested["final_answer"], `{"answer":"42"}`)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		in := map[string]any{
			"decision_kind": "final",
			"final_answer":  "42",
			"rationale":     "done",
		}
		_ = quorum.NormalizeProposed(in, nil)
		gt.Equal(t, in["decision_kind"], "final")
	})

	t.Run("idempotent", func(t *testing.T) {
		in := map[string]any{
			"decision_kind": "tool call",
			"tool_name":     "search.run",
			"tool_args":     map[string]any{"query": "usc"},
			"final_answer":  "",
			"rationale":     "N/A",
		}
		once := quorum.NormalizeProposed(in, nil)
		twice := quorum.NormalizeProposed(once, nil)
		gt.Equal(t, once, twice)
	})
}

func TestNormalizeCommitted(t *testing.T) {
	t.Run("flattens nested decision wrapper", func(t *testing.T) {
		obj := quorum.NormalizeCommitted(map[string]any{
			"selected_index": float64(1),
			"justification":  "outer wins",
			"decision": map[string]any{
				"decision_kind": "TOOL_CALL",
				"tool_name":     "calculator",
				"tool_args":     map[string]any{"expression": "2+2"},
			},
		}, nil)
		gt.Equal(t, obj["decision_kind"], "TOOL_CALL")
		gt.Equal(t, obj["tool_name"], "calculator")
		gt.Equal(t, obj["selected_index"], 1)
		gt.Equal(t, obj["justification"], "outer wins")
	})

	t.Run("coerces selected_index variants", func(t *testing.T) {
		cases := map[string]struct {
			in   any
			want any
		}{
			"numeric string": {in: "2", want: 2},
			"integral float": {in: float64(3), want: 3},
			"null string":    {in: "null", want: nil},
			"none string":    {in: "none", want: nil},
			"empty string":   {in: "", want: nil},
			"boolean":        {in: true, want: nil},
			"fractional":     {in: 2.5, want: nil},
			"garbage string": {in: "first", want: nil},
			"actual null":    {in: nil, want: nil},
		}
		for name, tc := range cases {
			t.Run(name, func(t *testing.T) {
				obj := quorum.NormalizeCommitted(map[string]any{
					"decision_kind":  "FINAL",
					"final_answer":   "42",
					"justification":  "done",
					"selected_index": tc.in,
				}, nil)
				gt.Equal(t, obj["selected_index"], tc.want)
			})
		}
	})

	t.Run("placeholder justification falls back to rationale", func(t *testing.T) {
		obj := quorum.NormalizeCommitted(map[string]any{
			"decision_kind": "FINAL",
			"final_answer":  "42",
			"justification": "N/A",
			"rationale":     "the observations already contain the answer",
		}, nil)
		gt.Equal(t, obj["justification"], "the observations already contain the answer")
	})

	t.Run("placeholder justification uses template when no rationale", func(t *testing.T) {
		obj := quorum.NormalizeCommitted(map[string]any{
			"decision_kind": "TOOL_CALL",
			"tool_name":     "calculator",
			"justification": "",
		}, nil)
		gt.Equal(t, obj["justification"], "Select calculator because it is the most direct next action to reduce uncertainty.")

		final := quorum.NormalizeCommitted(map[string]any{
			"decision_kind": "FINAL",
			"final_answer":  "42",
			"justification": "none",
		}, nil)
		gt.Equal(t, final["justification"], "Select FINAL because the observations are sufficient to answer.")
	})

	t.Run("idempotent", func(t *testing.T) {
		in := map[string]any{
			"decision_kind":  "tool call",
			"selected_index": "1",
			"tool_name":      "search.run",
			"tool_args":      map[string]any{"query": "usc"},
			"justification":  "",
		}
		once := quorum.NormalizeCommitted(in, nil)
		twice := quorum.NormalizeCommitted(once, nil)
		gt.Equal(t, once, twice)
	})
}
