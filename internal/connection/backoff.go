package connection

import "time"

// BackoffPolicy maps a reconnect attempt count to a wait duration:
// min(Base * 2^attempt, Cap). DelayFor is pure and has no failure modes;
// doubling overflow is absorbed by the cap.
type BackoffPolicy struct {
	Base time.Duration
	Cap  time.Duration
}

// DelayFor returns the wait before reconnect attempt n (0-based).
func (p BackoffPolicy) DelayFor(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Cap || d < 0 {
			return p.Cap
		}
	}
	if p.Cap > 0 && d > p.Cap {
		return p.Cap
	}
	return d
}
