package feed

import (
	"math/rand"
	"time"
)

// Backoff produces exponentially increasing reconnect delays: base doubling
// per consecutive failure, capped at max, with a uniform jitter fraction
// added on top. The pre-jitter sequence is strictly increasing up to the
// cap and then holds there.
type Backoff struct {
	base    time.Duration
	max     time.Duration
	jitter  float64 // fraction of the delay added uniformly at random
	attempt int
}

// NewBackoff creates a backoff schedule.
func NewBackoff(base, max time.Duration, jitter float64) *Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	return &Backoff{base: base, max: max, jitter: jitter}
}

// Next returns the delay for the current attempt and advances the schedule.
func (b *Backoff) Next() time.Duration {
	delay := b.Delay(b.attempt)
	b.attempt++
	if b.jitter > 0 {
		delay += time.Duration(rand.Float64() * b.jitter * float64(delay))
	}
	return delay
}

// Delay returns the pre-jitter delay for a given attempt number.
func (b *Backoff) Delay(attempt int) time.Duration {
	delay := b.base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= b.max {
			return b.max
		}
	}
	if delay > b.max {
		return b.max
	}
	return delay
}

// Reset rewinds the schedule after a successful connection.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt returns the number of consecutive failures so far.
func (b *Backoff) Attempt() int {
	return b.attempt
}
