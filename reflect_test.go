package quorum_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/quorum"
)

// flakyTool fails with failMsg until failures attempts have happened, then
// succeeds. It also records the arguments of every attempt.
type flakyTool struct {
	spec     *quorum.ToolSpec
	failMsg  string
	failures int

	mu       sync.Mutex
	attempts int
	argLog   []map[string]any
}

func (x *flakyTool) Spec() *quorum.ToolSpec {
	return x.spec
}

func (x *flakyTool) Run(ctx context.Context, args map[string]any) (any, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.attempts++
	x.argLog = append(x.argLog, args)
	if x.attempts <= x.failures {
		return nil, goerr.New(x.failMsg)
	}
	return map[string]any{"status": "ok", "attempt": x.attempts}, nil
}

func probeSpec() *quorum.ToolSpec {
	return &quorum.ToolSpec{
		Name:        "probe",
		Description: "test fixture",
		Parameters: map[string]*quorum.Parameter{
			"target": {Type: quorum.TypeString},
		},
		Required: []string{"target"},
	}
}

func verdictInvoker(verdictJSON string) *mockInvoker {
	return textInvoker(verdictJSON)
}

func TestReflector(t *testing.T) {
	ctx := context.Background()

	t.Run("success needs no classification", func(t *testing.T) {
		tool := &flakyTool{spec: probeSpec()}
		inv := verdictInvoker(`unused`)
		r := quorum.NewReflector(inv)

		result, err := r.Execute(ctx, tool, map[string]any{"target": "a"}, "q", []*quorum.ToolSpec{tool.Spec()})
		gt.NoError(t, err)
		gt.Equal(t, result.(map[string]any)["status"], "ok")
		gt.Equal(t, inv.callCount(), 0)
	})

	t.Run("wait retries same args with exponential backoff", func(t *testing.T) {
		tool := &flakyTool{spec: probeSpec(), failMsg: "503 Service Unavailable", failures: 2}
		inv := verdictInvoker(`{"analysis": "transient overload", "verdict": "WAIT"}`)
		r := quorum.NewReflector(inv, quorum.WithMaxRetries(3), quorum.WithBaseBackoff(time.Second))

		var slept []time.Duration
		r.SetSleepForTest(func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		})

		args := map[string]any{"target": "sync"}
		result, err := r.Execute(ctx, tool, args, "q", []*quorum.ToolSpec{tool.Spec()})
		gt.NoError(t, err)
		gt.Equal(t, result.(map[string]any)["attempt"], 3)

		gt.Equal(t, tool.attempts, 3)
		gt.Equal(t, inv.callCount(), 2)
		gt.Equal(t, slept, []time.Duration{time.Second, 2 * time.Second})
		for _, logged := range tool.argLog {
			gt.Equal(t, logged["target"], "sync")
		}
	})

	t.Run("retry swaps in corrected args", func(t *testing.T) {
		tool := &flakyTool{spec: probeSpec(), failMsg: "400 Bad Request", failures: 1}
		inv := verdictInvoker(`{"analysis": "wrong target", "verdict": "RETRY", "retry_args": {"target": "fixed"}}`)
		r := quorum.NewReflector(inv, quorum.WithMaxRetries(2))

		result, err := r.Execute(ctx, tool, map[string]any{"target": "broken"}, "q", []*quorum.ToolSpec{tool.Spec()})
		gt.NoError(t, err)
		gt.Equal(t, result.(map[string]any)["attempt"], 2)
		gt.Equal(t, tool.argLog[0]["target"], "broken")
		gt.Equal(t, tool.argLog[1]["target"], "fixed")
	})

	t.Run("invalid retry args keep the stale ones", func(t *testing.T) {
		tool := &flakyTool{spec: probeSpec(), failMsg: "400 Bad Request", failures: 10}
		inv := verdictInvoker(`{"analysis": "bad fix", "verdict": "RETRY", "retry_args": {"wrong_key": true}}`)
		r := quorum.NewReflector(inv, quorum.WithMaxRetries(2))

		_, err := r.Execute(ctx, tool, map[string]any{"target": "x"}, "q", []*quorum.ToolSpec{tool.Spec()})
		gt.Error(t, err)
		gt.True(t, errors.Is(err, quorum.ErrRetryExhausted))
		gt.Equal(t, tool.attempts, 3)
		for _, logged := range tool.argLog {
			gt.Equal(t, logged["target"], "x")
		}
	})

	t.Run("abort returns an observation string", func(t *testing.T) {
		tool := &flakyTool{spec: probeSpec(), failMsg: "403 Forbidden", failures: 10}
		inv := verdictInvoker(`{"analysis": "permissions", "verdict": "ABORT", "abort_suggestion": "Use a read-only endpoint instead."}`)
		r := quorum.NewReflector(inv, quorum.WithMaxRetries(3))

		result, err := r.Execute(ctx, tool, map[string]any{"target": "x"}, "q", []*quorum.ToolSpec{tool.Spec()})
		gt.NoError(t, err)
		gt.Equal(t, result, "Reflection Error: The tool 'probe' failed and reflection decided to abort. Suggestion: Use a read-only endpoint instead.")
		gt.Equal(t, tool.attempts, 1)
		gt.Equal(t, inv.callCount(), 1)
	})

	t.Run("classifier failure maps to abort", func(t *testing.T) {
		tool := &flakyTool{spec: probeSpec(), failMsg: "boom", failures: 10}
		inv := &mockInvoker{
			fn: func(ctx context.Context, req quorum.Request) (*quorum.Reply, error) {
				return nil, goerr.New("classifier offline")
			},
		}
		r := quorum.NewReflector(inv)

		result, err := r.Execute(ctx, tool, map[string]any{"target": "x"}, "q", []*quorum.ToolSpec{tool.Spec()})
		gt.NoError(t, err)
		gt.S(t, result.(string)).Contains("Reflection mechanism failed:")
		gt.Equal(t, tool.attempts, 1)
	})

	t.Run("unusable verdict surfaces the original error", func(t *testing.T) {
		tool := &flakyTool{spec: probeSpec(), failMsg: "boom", failures: 10}
		inv := verdictInvoker(`{"analysis": "confused", "verdict": "SHRUG"}`)
		r := quorum.NewReflector(inv, quorum.WithMaxRetries(2))

		_, err := r.Execute(ctx, tool, map[string]any{"target": "x"}, "q", []*quorum.ToolSpec{tool.Spec()})
		gt.Error(t, err)
		gt.S(t, err.Error()).Contains("tool failed and reflection verdict was unusable")
		gt.Equal(t, tool.attempts, 1)
	})

	t.Run("exhaustion wraps the sentinel", func(t *testing.T) {
		tool := &flakyTool{spec: probeSpec(), failMsg: "503", failures: 10}
		inv := verdictInvoker(`{"analysis": "transient", "verdict": "WAIT"}`)
		r := quorum.NewReflector(inv, quorum.WithMaxRetries(1), quorum.WithBaseBackoff(time.Millisecond))
		r.SetSleepForTest(func(ctx context.Context, d time.Duration) error { return nil })

		_, err := r.Execute(ctx, tool, map[string]any{"target": "x"}, "q", []*quorum.ToolSpec{tool.Spec()})
		gt.Error(t, err)
		gt.True(t, errors.Is(err, quorum.ErrRetryExhausted))
		gt.Equal(t, tool.attempts, 2)
		gt.Equal(t, inv.callCount(), 1)
	})
}
