package resilience

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes exponential delays. The zero value yields no delay.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter applies "full jitter": a random delay between 0 and the computed value.
	Jitter bool
}

// DefaultBackoff returns the delays used for reconnects and offline resends.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    1 * time.Second,
		Max:        30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Delay returns the wait before the given attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 || b.Initial <= 0 {
		return 0
	}

	multiplier := b.Multiplier
	if multiplier < 1 {
		multiplier = 2.0
	}

	// Exponential backoff: initial * (multiplier ^ (attempt - 1))
	delay := float64(b.Initial) * math.Pow(multiplier, float64(attempt-1))
	if b.Max > 0 && delay > float64(b.Max) {
		delay = float64(b.Max)
	}

	duration := time.Duration(delay)
	if b.Jitter {
		duration = addJitter(duration)
	}
	return duration
}

func addJitter(duration time.Duration) time.Duration {
	if duration <= 0 {
		return duration
	}
	return time.Duration(rand.Int63n(int64(duration)))
}
