package strategy_test

import (
	"context"

	"github.com/ecomarket/purchase-pipeline/internal/strategy"
)

// fakeClock advances instantly, recording every requested wait so tests
// can assert on the schedule without real wall-clock delay.
type fakeClock struct {
	waits []strategy.Duration
}

func (f *fakeClock) Sleep(_ context.Context, d strategy.Duration) strategy.Duration {
	f.waits = append(f.waits, d)
	return d
}

// cancelAfterClock wraps a fakeClock and calls cancel once the given
// number of Sleep calls has been reached, used to exercise mid-retry
// cancellation deterministically.
type cancelAfterClock struct {
	inner     *fakeClock
	cancel    context.CancelFunc
	ctx       context.Context
	afterCall int
	calls     int
}

func newCancelAfterClock(ctx context.Context, cancel context.CancelFunc, afterCall int) *cancelAfterClock {
	return &cancelAfterClock{inner: &fakeClock{}, cancel: cancel, ctx: ctx, afterCall: afterCall}
}

func (c *cancelAfterClock) Sleep(ctx context.Context, d strategy.Duration) strategy.Duration {
	c.calls++
	out := c.inner.Sleep(ctx, d)
	if c.calls >= c.afterCall {
		c.cancel()
	}
	return out
}
