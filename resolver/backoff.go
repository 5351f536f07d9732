package resolver

import "time"

// Policy is the retry policy of the resolution queue.
type Policy struct {
	// Backoffs is the delay before the next attempt, indexed by the number of
	// attempts already made minus one. The last one repeats.
	Backoffs []time.Duration
	// MaxAttempts is the number of failed attempts after which an item is
	// failed.
	MaxAttempts int
	// VisibilityTimeout is how long a claimed item stays processing before it
	// can be claimed again.
	VisibilityTimeout time.Duration
}

// DefaultPolicy returns the queue policy: 5 attempts, 30s, 60s, 5m, 15m and
// 30m apart, claims expire after 5 minutes.
func DefaultPolicy() Policy {
	return Policy{
		Backoffs:          []time.Duration{30 * time.Second, time.Minute, 5 * time.Minute, 15 * time.Minute, 30 * time.Minute},
		MaxAttempts:       5,
		VisibilityTimeout: 5 * time.Minute,
	}
}

// Backoff returns the delay to wait after 'attempts' failed attempts.
func (p Policy) Backoff(attempts int) time.Duration {
	if attempts <= 0 || len(p.Backoffs) == 0 {
		return 0
	}
	if attempts > len(p.Backoffs) {
		return p.Backoffs[len(p.Backoffs)-1]
	}
	return p.Backoffs[attempts-1]
}

// Eligible reports whether 'it' can be claimed at 'now'.
func (p Policy) Eligible(it Item, now time.Time) bool {
	switch it.Status {
	case Pending:
		return it.Attempts == 0 || now.Sub(it.LastAttemptAt) >= p.Backoff(it.Attempts)
	case Processing:
		return now.Sub(it.ClaimedAt) >= p.VisibilityTimeout
	}
	return false
}
