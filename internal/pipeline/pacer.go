package pipeline

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces navigations out to avoid tripping the target site's
// anti-bot defences. A token bucket with burst one yields exactly one
// navigation per delay window; the first call passes immediately.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer builds a pacer enforcing the given delay between navigations.
// A non-positive delay disables pacing.
func NewPacer(delay time.Duration) *Pacer {
	if delay <= 0 {
		return &Pacer{}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next navigation may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}
