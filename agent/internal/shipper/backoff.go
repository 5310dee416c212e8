package shipper

import (
	"math/rand"
	"time"
)

const (
	backoffInitial = 1 * time.Second
	backoffMax     = 60 * time.Second
	backoffFactor  = 2
	backoffJitter  = 0.25
)

// backoff is a truncated exponential backoff with symmetric jitter.
type backoff struct {
	current time.Duration
	rnd     func() float64 // [0,1), injectable
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial, rnd: rand.Float64} //nolint:gosec // not crypto
}

// next returns the wait before the next attempt and doubles the base, up to
// backoffMax.
func (b *backoff) next() time.Duration {
	spread := float64(b.current) * backoffJitter
	d := b.current + time.Duration(spread*(2*b.rnd()-1))
	if d < 0 {
		d = 0
	}

	b.current *= backoffFactor
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
