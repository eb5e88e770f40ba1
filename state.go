package quorum

import (
	"fmt"
	"strings"
)

// maxSummaryObservations caps how many trailing observations are replayed to
// the reasoner and judge prompts each step.
const maxSummaryObservations = 10

// LoopState is the mutable state of one run. It is created at run start,
// mutated only by the controller goroutine between steps (step increment plus
// at most one appended observation), and discarded when the run ends.
type LoopState struct {
	Query         string
	Observations  []string
	Step          int
	LastCommitted *CommittedAction
}

// Summary renders the state for prompt consumption: current step over budget,
// and the most recent observations in order.
func (x *LoopState) Summary(maxSteps int) string {
	obs := x.Observations
	if len(obs) > maxSummaryObservations {
		obs = obs[len(obs)-maxSummaryObservations:]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "step: %d/%d\n", x.Step, maxSteps)
	sb.WriteString("observations (most recent last):")
	if len(obs) == 0 {
		sb.WriteString("\n- (none)")
	} else {
		for _, o := range obs {
			sb.WriteString("\n- ")
			sb.WriteString(o)
		}
	}
	return sb.String()
}
