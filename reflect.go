package quorum

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const (
	defaultMaxRetries  = 3
	defaultBaseBackoff = time.Second
)

// Reflector executes tool calls with a failure-recovery loop. When a tool
// errors, a classifier model inspects the error and picks one of three
// verdicts: RETRY with corrected arguments, WAIT with exponential backoff and
// the same arguments, or ABORT with a suggestion the agent sees as an
// observation. Up to maxRetries re-attempts follow the initial one.
type Reflector struct {
	inv         Invoker
	structured  bool
	maxRetries  int
	baseBackoff time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

type ReflectorOption func(*Reflector)

// WithMaxRetries sets how many re-attempts follow the initial call.
func WithMaxRetries(n int) ReflectorOption {
	return func(r *Reflector) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithBaseBackoff sets the backoff base for WAIT verdicts. Attempt n sleeps
// base * 2^n.
func WithBaseBackoff(d time.Duration) ReflectorOption {
	return func(r *Reflector) {
		if d > 0 {
			r.baseBackoff = d
		}
	}
}

// WithReflectorStructuredOutput makes the classifier use the invoker's
// structured mode instead of free text plus extraction.
func WithReflectorStructuredOutput(enabled bool) ReflectorOption {
	return func(r *Reflector) {
		r.structured = enabled
	}
}

// NewReflector builds a Reflector backed by the given classifier model.
func NewReflector(inv Invoker, opts ...ReflectorOption) *Reflector {
	r := &Reflector{
		inv:         inv,
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
		sleep:       ctxSleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs the tool, classifying each failure until it succeeds, aborts,
// or exhausts retries. An ABORT verdict produces a string result rather than
// an error so the loop treats it as a regular observation. Exhaustion returns
// an error wrapping ErrRetryExhausted.
func (r *Reflector) Execute(ctx context.Context, tool Tool, args map[string]any, query string, allSpecs []*ToolSpec) (any, error) {
	logger := LoggerFromContext(ctx)
	spec := tool.Spec()
	currentArgs := args

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		result, err := tool.Run(ctx, currentArgs)
		if err == nil {
			return result, nil
		}

		if attempt == r.maxRetries {
			return nil, goerr.Wrap(ErrRetryExhausted, "tool failed after all attempts",
				goerr.V("tool", spec.Name),
				goerr.V("attempts", r.maxRetries+1),
				goerr.V("lastError", err.Error()),
			)
		}

		verdict := r.classify(ctx, query, spec, currentArgs, err.Error(), allSpecs)
		logger.Debug("reflection verdict",
			"tool", spec.Name,
			"attempt", attempt,
			"verdict", verdict.Verdict,
			"analysis", verdict.Analysis,
		)

		switch verdict.Verdict {
		case VerdictAbort:
			suggestion := verdict.AbortSuggestion
			if suggestion == "" {
				suggestion = "Tool execution aborted by reflection."
			}
			return fmt.Sprintf("Reflection Error: The tool '%s' failed and reflection decided to abort. Suggestion: %s", spec.Name, suggestion), nil

		case VerdictWait:
			wait := r.baseBackoff * (1 << attempt)
			if sleepErr := r.sleep(ctx, wait); sleepErr != nil {
				return nil, goerr.Wrap(sleepErr, "canceled while waiting to retry tool", goerr.V("tool", spec.Name))
			}

		case VerdictRetry:
			if argErrs := ValidateArgs(argsOrEmpty(verdict.RetryArgs), spec); len(argErrs) > 0 {
				// The corrected arguments are unusable. Burn the attempt with
				// the arguments we already have rather than giving up.
				logger.Debug("reflection produced invalid retry args", "tool", spec.Name, "errors", argErrs)
			} else {
				currentArgs = verdict.RetryArgs
			}

		default:
			return nil, goerr.Wrap(err, "tool failed and reflection verdict was unusable",
				goerr.V("tool", spec.Name),
				goerr.V("verdict", string(verdict.Verdict)),
			)
		}
	}

	// Unreachable: the attempt == maxRetries branch returns first.
	return nil, goerr.Wrap(ErrRetryExhausted, "tool failed after all attempts", goerr.V("tool", spec.Name))
}

// classify asks the model for a verdict on one failed attempt. A classifier
// failure maps to ABORT so a broken classifier cannot cause a retry storm.
func (r *Reflector) classify(ctx context.Context, query string, spec *ToolSpec, args map[string]any, errMsg string, allSpecs []*ToolSpec) *ReflectionVerdict {
	system, user := buildReflectionPrompt(query, spec, args, errMsg, allSpecs)
	obj, err := invokeObject(ctx, r.inv, Request{System: system, User: user, Schema: reflectionSchema()}, r.structured)
	if err != nil {
		return &ReflectionVerdict{
			Verdict:         VerdictAbort,
			AbortSuggestion: fmt.Sprintf("Reflection mechanism failed: %v", err),
		}
	}
	return parseReflection(obj)
}

func parseReflection(obj map[string]any) *ReflectionVerdict {
	out := &ReflectionVerdict{}
	if s, ok := obj["verdict"].(string); ok {
		out.Verdict = Verdict(strings.ToUpper(strings.TrimSpace(s)))
	}
	if m, ok := obj["retry_args"].(map[string]any); ok {
		out.RetryArgs = m
	}
	if s, ok := obj["abort_suggestion"].(string); ok {
		out.AbortSuggestion = s
	}
	if s, ok := obj["analysis"].(string); ok {
		out.Analysis = s
	}
	return out
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
