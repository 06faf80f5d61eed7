package reconcile

import (
	"context"
	"time"
)

// Pacer spaces out gateway work between items. The gateway rate-limits
// without documenting it and the client does not retry 429s.
type Pacer interface {
	Wait(ctx context.Context) error
}

type sleepPacer struct {
	delay time.Duration
}

func NewPacer(delay time.Duration) Pacer {
	return sleepPacer{delay: delay}
}

func (p sleepPacer) Wait(ctx context.Context) error {
	if p.delay <= 0 {
		return nil
	}

	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
