package quorum

import (
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrToolNameConflict is returned when two registered tools share a name.
	ErrToolNameConflict = goerr.New("tool name conflict")

	// ErrInvalidTool is returned when a tool specification does not describe a usable tool.
	ErrInvalidTool = goerr.New("invalid tool specification")

	// ErrNotObject is returned when model output cannot be interpreted as a JSON object.
	ErrNotObject = goerr.New("model output is not a JSON object")

	// ErrRetryExhausted wraps the last tool error once all reflection-driven
	// attempts are used up.
	ErrRetryExhausted = goerr.New("tool retries exhausted")
)
