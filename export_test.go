package quorum

import (
	"context"
	"time"
)

var (
	FanOut           = fanOut
	ScreenCandidates = screenCandidates
	JudgeDecision    = judgeDecision
	NewToolRegistry  = newToolRegistry
	Truncate         = truncate
	StableJSON       = stableJSON
)

func (r *Reflector) SetSleepForTest(fn func(ctx context.Context, d time.Duration) error) {
	r.sleep = fn
}
