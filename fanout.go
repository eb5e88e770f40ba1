package quorum

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

// maxFanoutWorkers bounds concurrent reasoner calls regardless of how many
// paths are requested.
const maxFanoutWorkers = 32

type proposalResult struct {
	path int
	obj  map[string]any
}

// fanOut runs the reasoner over `paths` independent sampling paths under one
// shared deadline and returns exactly `paths` raw decision objects, in path
// order. A path that fails or misses the deadline contributes a sentinel FINAL
// object instead of an error, so downstream screening sees a uniform shape.
func fanOut(ctx context.Context, inv Invoker, structured bool, paths int, timeout time.Duration, build func(path int) Request) []map[string]any {
	results := make([]map[string]any, paths)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	workers := int64(paths)
	if workers > maxFanoutWorkers {
		workers = maxFanoutWorkers
	}
	sem := semaphore.NewWeighted(workers)

	// Buffered to capacity so an abandoned worker never blocks on send.
	ch := make(chan proposalResult, paths)

	for i := 0; i < paths; i++ {
		go func(path int) {
			if err := sem.Acquire(runCtx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			obj, err := invokeObject(runCtx, inv, build(path), structured)
			if err != nil {
				obj = failedProposal(err)
			}
			ch <- proposalResult{path: path, obj: obj}
		}(i)
	}

	received := 0
	for received < paths {
		select {
		case r := <-ch:
			results[r.path] = r.obj
			received++
		case <-runCtx.Done():
			// Collect whatever already finished, then fill the rest.
			for {
				select {
				case r := <-ch:
					results[r.path] = r.obj
				default:
					for i := range results {
						if results[i] == nil {
							results[i] = timedOutProposal(timeout)
						}
					}
					return results
				}
			}
		}
	}

	return results
}

func failedProposal(err error) map[string]any {
	return map[string]any{
		"decision_kind": string(KindFinal),
		"final_answer":  "Reasoner failed to produce a valid JSON decision.",
		"rationale":     fmt.Sprintf("Reasoner call failed: %v", err),
	}
}

func timedOutProposal(timeout time.Duration) map[string]any {
	return map[string]any{
		"decision_kind": string(KindFinal),
		"final_answer":  "Reasoner timed out before producing a decision.",
		"rationale":     fmt.Sprintf("Reasoner call timed out after %s.", timeout),
	}
}

// screenCandidates normalizes and validates raw proposals, dropping any that
// cannot be repaired. Tool calls must also name a registered tool and pass the
// argument checker. Rejections come back as human-readable reasons keyed by
// the raw path index.
func screenCandidates(raw []map[string]any, aliases map[string]string, reg *toolRegistry) ([]*ProposedAction, []string) {
	candidates := make([]*ProposedAction, 0, len(raw))
	var rejected []string

	for i, obj := range raw {
		normalized := NormalizeProposed(obj, aliases)
		proposal, errs := ValidateProposed(normalized)
		if len(errs) > 0 {
			rejected = append(rejected, fmt.Sprintf("[%d] invalid decision: %s; raw=%s", i, joinReasons(errs), truncate(stableJSON(obj), 200)))
			continue
		}

		if proposal.Kind == KindToolCall {
			tool, ok := reg.get(proposal.ToolName)
			if !ok {
				rejected = append(rejected, fmt.Sprintf("[%d] unknown tool '%s'", i, proposal.ToolName))
				continue
			}
			if errs := ValidateArgs(argsOrEmpty(proposal.ToolArgs), tool.Spec()); len(errs) > 0 {
				rejected = append(rejected, fmt.Sprintf("[%d] invalid tool args: %s", i, joinReasons(errs)))
				continue
			}
		}

		candidates = append(candidates, proposal)
	}

	return candidates, rejected
}

func argsOrEmpty(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return args
}

func joinReasons(reasons []string) string {
	return strings.Join(reasons, "; ")
}
