package clock

import (
	"context"
	"time"
)

type FakeClock struct {
	now    time.Time
	Slept  []time.Duration
	Ticked int
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// Sleep records the requested duration and advances the fake time instead of
// blocking.
func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Slept = append(c.Slept, d)
	c.Ticked++
	c.now = c.now.Add(d)
	return nil
}
