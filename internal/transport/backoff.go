package transport

import "time"

// Backoff is the reconnection schedule: attempt n waits
// min(Base * 2^n, Cap), and after MaxAttempts consecutive failures the
// schedule gives up until Reset is called.
type Backoff struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int

	attempt int
	gaveUp  bool
}

// NewBackoff returns a schedule in its initial state.
func NewBackoff(base, cap time.Duration, maxAttempts int) *Backoff {
	return &Backoff{Base: base, Cap: cap, MaxAttempts: maxAttempts}
}

// Delay returns the wait before attempt n (zero based).
func (b *Backoff) Delay(n int) time.Duration {
	d := b.Base
	for i := 0; i < n; i++ {
		d *= 2
		if d >= b.Cap {
			return b.Cap
		}
	}
	if d > b.Cap {
		return b.Cap
	}
	return d
}

// Next consumes one attempt and returns its delay. ok is false once
// MaxAttempts attempts have been consumed; the schedule then stays in the
// gave-up state.
func (b *Backoff) Next() (delay time.Duration, ok bool) {
	if b.gaveUp {
		return 0, false
	}
	if b.MaxAttempts > 0 && b.attempt >= b.MaxAttempts {
		b.gaveUp = true
		return 0, false
	}
	delay = b.Delay(b.attempt)
	b.attempt++
	return delay, true
}

// Reset returns the schedule to attempt zero after a successful open.
func (b *Backoff) Reset() {
	b.attempt = 0
	b.gaveUp = false
}

// Attempt is the number of attempts consumed since the last Reset.
func (b *Backoff) Attempt() int { return b.attempt }

// GaveUp reports whether the schedule is exhausted.
func (b *Backoff) GaveUp() bool { return b.gaveUp }
