package quorum

import (
	"context"
	"fmt"
)

// judgeDecision asks the judge model to commit to exactly one action from the
// screened candidates. It never returns an error: any failure mode collapses
// to a diagnostic FINAL decision so the loop can terminate with an
// explanation instead of an exception.
func judgeDecision(ctx context.Context, inv Invoker, structured bool, query, stateSummary string, candidates []*ProposedAction, strategy SelectionStrategy, allowToolSynthesis bool, aliases map[string]string) *CommittedAction {
	logger := LoggerFromContext(ctx)

	if len(candidates) == 0 {
		return &CommittedAction{
			Kind:          KindFinal,
			FinalAnswer:   "No valid candidate decisions were produced; cannot continue.",
			Justification: "All candidates were rejected during screening.",
		}
	}

	system, user := buildJudgePrompt(query, stateSummary, candidates, strategy, allowToolSynthesis)
	obj, err := invokeObject(ctx, inv, Request{System: system, User: user, Schema: committedSchema()}, structured)
	if err != nil {
		logger.Warn("judge call failed", "error", err)
		return &CommittedAction{
			Kind:          KindFinal,
			FinalAnswer:   "Judge failed to produce a valid JSON decision; stopping.",
			Justification: fmt.Sprintf("Judge call failed: %v", err),
		}
	}

	normalized := NormalizeCommitted(obj, aliases)
	committed, errs := ValidateCommitted(normalized)
	if len(errs) > 0 {
		logger.Warn("judge output invalid", "errors", errs)
		return &CommittedAction{
			Kind:          KindFinal,
			FinalAnswer:   "Judge produced invalid output; cannot continue.",
			Justification: fmt.Sprintf("invalid judge output: %s", joinReasons(errs)),
		}
	}

	switch strategy {
	case SelectOne:
		if committed.SelectedIndex != nil {
			idx := *committed.SelectedIndex
			if idx < 0 || idx >= len(candidates) {
				return &CommittedAction{
					Kind:          KindFinal,
					FinalAnswer:   "Judge selected an out-of-range candidate; cannot continue.",
					Justification: fmt.Sprintf("selected_index %d out of range for %d candidates", idx, len(candidates)),
				}
			}
		}
	case SynthesizeOne:
		// Synthesis carries no provenance index even when the judge emits one.
		committed.SelectedIndex = nil
	}

	return committed
}
