package quorum_test

import (
	"context"
	"sync"

	"github.com/m-mizutani/quorum"
)

type mockInvoker struct {
	fn func(ctx context.Context, req quorum.Request) (*quorum.Reply, error)

	mu    sync.Mutex
	calls int
}

func (m *mockInvoker) Invoke(ctx context.Context, req quorum.Request) (*quorum.Reply, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.fn(ctx, req)
}

func (m *mockInvoker) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func textInvoker(text string) *mockInvoker {
	return &mockInvoker{
		fn: func(ctx context.Context, req quorum.Request) (*quorum.Reply, error) {
			return &quorum.Reply{Text: text}, nil
		},
	}
}

type stubTool struct {
	spec *quorum.ToolSpec
	run  func(ctx context.Context, args map[string]any) (any, error)
}

func (x *stubTool) Spec() *quorum.ToolSpec {
	return x.spec
}

func (x *stubTool) Run(ctx context.Context, args map[string]any) (any, error) {
	return x.run(ctx, args)
}

func echoTool(name string) *stubTool {
	return &stubTool{
		spec: &quorum.ToolSpec{
			Name:        name,
			Description: "echoes its input back",
			Parameters: map[string]*quorum.Parameter{
				"input": {Type: quorum.TypeString},
			},
			Required: []string{"input"},
		},
		run: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"echo": args["input"]}, nil
		},
	}
}
