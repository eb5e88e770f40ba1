package quorum_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/quorum"
)

func sampleCandidates() []*quorum.ProposedAction {
	return []*quorum.ProposedAction{
		{
			Kind:        quorum.KindFinal,
			FinalAnswer: "42",
			Rationale:   "answer directly",
		},
		{
			Kind:      quorum.KindToolCall,
			ToolName:  "calculator",
			ToolArgs:  map[string]any{"expression": "2+2"},
			Rationale: "verify with arithmetic",
		},
	}
}

func TestJudgeDecision(t *testing.T) {
	ctx := context.Background()

	t.Run("select_one mirrors the chosen candidate", func(t *testing.T) {
		inv := textInvoker(`{"decision_kind": "TOOL_CALL", "selected_index": 1, "tool_name": "calculator", "tool_args": {"expression": "2+2"}, "justification": "verification is cheap"}`)

		committed := quorum.JudgeDecision(ctx, inv, false, "what is 2+2", "step: 1/6", sampleCandidates(), quorum.SelectOne, true, nil)
		gt.Equal(t, committed.Kind, quorum.KindToolCall)
		gt.Value(t, committed.SelectedIndex).NotNil()
		gt.Equal(t, *committed.SelectedIndex, 1)
		gt.Equal(t, committed.ToolName, "calculator")
	})

	t.Run("out-of-range index becomes diagnostic final", func(t *testing.T) {
		inv := textInvoker(`{"decision_kind": "TOOL_CALL", "selected_index": 7, "tool_name": "calculator", "justification": "bad index"}`)

		committed := quorum.JudgeDecision(ctx, inv, false, "q", "step: 1/6", sampleCandidates(), quorum.SelectOne, true, nil)
		gt.Equal(t, committed.Kind, quorum.KindFinal)
		gt.Equal(t, committed.FinalAnswer, "Judge selected an out-of-range candidate; cannot continue.")
		gt.S(t, committed.Justification).Contains("selected_index 7 out of range for 2 candidates")
	})

	t.Run("synthesize_one drops the index", func(t *testing.T) {
		inv := textInvoker(`{"decision_kind": "FINAL", "selected_index": 0, "final_answer": "42", "justification": "both candidates agree"}`)

		committed := quorum.JudgeDecision(ctx, inv, false, "q", "step: 1/6", sampleCandidates(), quorum.SynthesizeOne, true, nil)
		gt.Equal(t, committed.Kind, quorum.KindFinal)
		gt.Value(t, committed.SelectedIndex).Nil()
		gt.Equal(t, committed.FinalAnswer, "42")
	})

	t.Run("judge call failure becomes diagnostic final", func(t *testing.T) {
		inv := &mockInvoker{
			fn: func(ctx context.Context, req quorum.Request) (*quorum.Reply, error) {
				return nil, goerr.New("judge backend down")
			},
		}

		committed := quorum.JudgeDecision(ctx, inv, false, "q", "step: 1/6", sampleCandidates(), quorum.SelectOne, true, nil)
		gt.Equal(t, committed.Kind, quorum.KindFinal)
		gt.Equal(t, committed.FinalAnswer, "Judge failed to produce a valid JSON decision; stopping.")
		gt.S(t, committed.Justification).Contains("Judge call failed")
	})

	t.Run("invalid judge output becomes diagnostic final", func(t *testing.T) {
		inv := textInvoker(`{"decision_kind": "TOOL_CALL", "final_answer": "contradiction", "tool_name": 3}`)

		committed := quorum.JudgeDecision(ctx, inv, false, "q", "step: 1/6", sampleCandidates(), quorum.SelectOne, true, nil)
		gt.Equal(t, committed.Kind, quorum.KindFinal)
		gt.Equal(t, committed.FinalAnswer, "Judge produced invalid output; cannot continue.")
		gt.S(t, committed.Justification).Contains("invalid judge output:")
	})

	t.Run("empty candidate set short-circuits", func(t *testing.T) {
		inv := textInvoker(`unused`)

		committed := quorum.JudgeDecision(ctx, inv, false, "q", "step: 1/6", nil, quorum.SelectOne, true, nil)
		gt.Equal(t, committed.Kind, quorum.KindFinal)
		gt.Equal(t, committed.FinalAnswer, "No valid candidate decisions were produced; cannot continue.")
		gt.Equal(t, inv.callCount(), 0)
	})

	t.Run("nested decision wrapper is repaired", func(t *testing.T) {
		inv := textInvoker(`{"selected_index": 0, "justification": "direct answer wins", "decision": {"decision_kind": "FINAL", "final_answer": "42"}}`)

		committed := quorum.JudgeDecision(ctx, inv, false, "q", "step: 1/6", sampleCandidates(), quorum.SelectOne, true, nil)
		gt.Equal(t, committed.Kind, quorum.KindFinal)
		gt.Equal(t, committed.FinalAnswer, "42")
		gt.Value(t, committed.SelectedIndex).NotNil()
		gt.Equal(t, *committed.SelectedIndex, 0)
	})
}
