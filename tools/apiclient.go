package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/quorum"
)

// APIClient returns a simulated HTTP client tool with deliberate failure
// modes, used to exercise the reflection verdicts end to end:
//
//   - GET /api/v1/users/{id} fails with 400 unless params.include_profile is
//     true (argument-fix scenario, RETRY)
//   - POST /api/v1/sync/data fails twice with 503, then succeeds
//     (transient scenario, WAIT)
//   - DELETE paths under /admin/system always fail with 403
//     (fatal scenario, ABORT)
//   - GET /health succeeds immediately
//
// Each instance carries its own attempt counter, so tests and runs do not
// interfere with each other.
func APIClient() quorum.Tool {
	return &apiClientTool{}
}

type apiClientTool struct {
	mu           sync.Mutex
	syncAttempts int
}

func (x *apiClientTool) Spec() *quorum.ToolSpec {
	return &quorum.ToolSpec{
		Name:        "api_client",
		Description: "A generic HTTP API client for internal services. Supports GET, POST, DELETE.",
		Parameters: map[string]*quorum.Parameter{
			"endpoint": {
				Type:        quorum.TypeString,
				Description: "API endpoint path (e.g. /api/v1/users/123)",
			},
			"method": {
				Type: quorum.TypeString,
				Enum: []string{"GET", "POST", "DELETE"},
			},
			"params": {
				Type:        quorum.TypeObject,
				Description: "Query parameters or body data",
			},
		},
		Required: []string{"endpoint", "method"},
	}
}

func (x *apiClientTool) Run(ctx context.Context, args map[string]any) (any, error) {
	endpoint := strings.TrimSpace(stringArg(args, "endpoint"))
	method := strings.ToUpper(stringArg(args, "method"))
	if method == "" {
		method = "GET"
	}
	params, _ := args["params"].(map[string]any)

	switch {
	case method == "GET" && strings.Contains(endpoint, "/api/v1/users/"):
		if params["include_profile"] == true {
			return map[string]any{
				"status": 200,
				"data":   map[string]any{"id": "123", "name": "Alice", "profile": "active"},
			}, nil
		}
		return nil, goerr.New("400 Bad Request: Missing required query parameter 'include_profile' for user fetch.")

	case method == "POST" && endpoint == "/api/v1/sync/data":
		x.mu.Lock()
		x.syncAttempts++
		attempts := x.syncAttempts
		x.mu.Unlock()
		if attempts < 3 {
			return nil, goerr.New("503 Service Unavailable: Upstream data sync service is overloaded. Retry-After: 1s")
		}
		return map[string]any{
			"status":  201,
			"message": fmt.Sprintf("Data synced successfully on attempt %d", attempts),
		}, nil

	case method == "DELETE" && strings.Contains(endpoint, "/admin/system"):
		return nil, goerr.New("403 Forbidden: API credentials lack 'system.delete' scope. This action is not allowed.")

	case endpoint == "/health":
		return map[string]any{"status": "ok"}, nil
	}

	return map[string]any{
		"status": 404,
		"error":  fmt.Sprintf("Endpoint not found: %s %s", method, endpoint),
	}, nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
