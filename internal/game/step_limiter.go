package game

import (
	"context"
	"time"
)

// StepLimiter paces the simulation loop to a fixed step rate.
type StepLimiter struct {
	interval time.Duration // 0 disables limiting
	next     time.Time
}

// NewStepLimiter creates a limiter for rate steps per second.
func NewStepLimiter(rate int) *StepLimiter {
	l := &StepLimiter{}
	l.SetRate(rate)
	return l
}

// SetRate changes the step rate; 0 or less disables limiting.
func (l *StepLimiter) SetRate(rate int) {
	l.interval = 0
	if rate > 0 {
		l.interval = time.Second / time.Duration(rate)
	}
	l.next = time.Time{}
}

// Wait blocks until the next step is due or ctx is done. Deadlines are
// scheduled from the previous one, so short waits do not accumulate drift;
// after a stall longer than one interval the schedule restarts from now.
func (l *StepLimiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}

	now := time.Now()
	if l.next.IsZero() || now.Sub(l.next) > l.interval {
		l.next = now
	}
	l.next = l.next.Add(l.interval)

	d := time.Until(l.next)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
