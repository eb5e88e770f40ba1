package quorum

import (
	"context"
)

// Request is one capability call: system instructions plus user content.
// Schema, when non-nil, asks the backend for structured output conforming to
// the given JSON-schema-like shape. Backends without a structured mode may
// ignore it and return text.
type Request struct {
	System string
	User   string
	Schema map[string]any
}

// Reply is the outcome of a capability call. Object is set when the backend
// produced structured output directly; otherwise Text carries the raw output
// for the caller to parse.
type Reply struct {
	Text   string
	Object map[string]any
}

// Invoker is the single injected interface for every opaque capability call
// (reasoning, judging, reflection). The core never depends on a concrete
// provider; adapters under llm/ implement this per backend.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Reply, error)
}

// invokeObject performs one capability call and returns the decision object.
// When structured mode is enabled it is tried first; any failure of that mode
// falls back to a plain text call parsed with ExtractObject.
func invokeObject(ctx context.Context, inv Invoker, req Request, structured bool) (map[string]any, error) {
	if structured && req.Schema != nil {
		if reply, err := inv.Invoke(ctx, req); err == nil {
			if reply.Object != nil {
				return reply.Object, nil
			}
			if obj, perr := ExtractObject(reply.Text); perr == nil {
				return obj, nil
			}
		}
	}

	reply, err := inv.Invoke(ctx, Request{System: req.System, User: req.User})
	if err != nil {
		return nil, err
	}
	if reply.Object != nil {
		return reply.Object, nil
	}
	return ExtractObject(reply.Text)
}
