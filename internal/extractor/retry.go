package extractor

import (
	"context"
	"math/rand/v2"
	"time"
)

// Backoff computes retry delays as min(cap, base*2^attempt*(1+jitter*r)) with
// r in [0,1). Jitter is clamped to [0,1], which keeps the sequence
// non-decreasing: each uncapped step at least doubles before jitter.
type Backoff struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter float64

	rand func() float64
}

// NewBackoff returns a backoff using math/rand for jitter.
func NewBackoff(base, ceiling time.Duration, jitter float64) Backoff {
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	if ceiling < base {
		ceiling = base
	}
	return Backoff{Base: base, Cap: ceiling, Jitter: jitter, rand: rand.Float64}
}

// Delay returns the wait before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}

	d := b.Base
	for i := 0; i < attempt && d < b.Cap; i++ {
		d *= 2
	}

	r := 0.0
	if b.rand != nil && b.Jitter > 0 {
		r = b.rand()
	}
	d = time.Duration(float64(d) * (1 + b.Jitter*r))

	if b.Cap > 0 && d > b.Cap {
		d = b.Cap
	}
	return d
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
