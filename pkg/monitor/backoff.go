package monitor

import "time"

// Backoff is the retry policy applied after failed remount attempts.
//
// The delay after the n-th consecutive failure is min(Max, Base*2^(n-1)):
// the first retry comes quickly, later ones slow down so an SMB server that
// is down is not hammered.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff returns the policy used when nothing is configured.
func DefaultBackoff() Backoff {
	return Backoff{Base: 2 * time.Second, Max: 5 * time.Minute}
}

// Delay returns the wait after n consecutive failures. n < 1 yields 0.
// The result is non-decreasing in n and never exceeds Max.
func (b Backoff) Delay(n int) time.Duration {
	if n < 1 || b.Base <= 0 {
		return 0
	}
	limit := b.Max
	if limit <= 0 {
		limit = b.Base
	}

	d := b.Base
	for i := 1; i < n; i++ {
		if d >= limit/2 {
			return limit
		}
		d *= 2
	}
	if d > limit {
		return limit
	}
	return d
}
