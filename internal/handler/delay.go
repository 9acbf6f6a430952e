package handler

import (
	"context"
	"time"
)

// DelayFunc blocks the failing request for d. It must return early when ctx
// is cancelled.
type DelayFunc func(ctx context.Context, d time.Duration)

// SleepDelay is the default DelayFunc.
func SleepDelay(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
