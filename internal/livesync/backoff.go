package livesync

import "time"

// Default reconnect delays.
const (
	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// Backoff tracks consecutive connection failures and produces the delay
// before the next attempt. It is not safe for concurrent use; the client
// guards it with its own mutex.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	failures int
}

// NewBackoff returns a Backoff, substituting defaults for non-positive
// values. A max below initial is raised to initial.
func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	if max <= 0 {
		max = DefaultMaxBackoff
	}
	if max < initial {
		max = initial
	}
	return &Backoff{Initial: initial, Max: max}
}

// Next records a failure and returns the delay to wait before retrying.
func (b *Backoff) Next() time.Duration {
	b.failures++
	return Delay(b.failures, b.Initial, b.Max)
}

// Reset forgets all failures. Call it only after a successful connection.
func (b *Backoff) Reset() {
	b.failures = 0
}

// Failures returns the number of consecutive failures recorded.
func (b *Backoff) Failures() int {
	return b.failures
}

// Delay returns the delay after the attempt-th consecutive failure:
// initial * 2^(attempt-1), capped at max.
func Delay(attempt int, initial, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max || delay <= 0 {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
