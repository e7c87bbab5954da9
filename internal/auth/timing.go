package auth

import "time"

// AttemptDelay applies a constant artificial delay after credential-
// adjacent work so success, bad-password and unknown-user paths take
// the same time. The earliest gate checks (token, honeypot) skip it:
// they fail before anything credential-adjacent runs, and delaying
// obvious bot traffic just wastes capacity.
type AttemptDelay struct {
	target time.Duration
}

// NewAttemptDelay creates a delay with the given target duration.
func NewAttemptDelay(target time.Duration) *AttemptDelay {
	return &AttemptDelay{target: target}
}

// WaitFrom sleeps until at least the target duration has passed since
// startTime. Work already done counts toward the target.
func (d *AttemptDelay) WaitFrom(startTime time.Time) {
	if d.target <= 0 {
		return
	}
	elapsed := time.Since(startTime)
	if elapsed < d.target {
		time.Sleep(d.target - elapsed)
	}
}
