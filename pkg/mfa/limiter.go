package mfa

import (
	"sync"
	"sync/atomic"
)

// DefaultLockThreshold is the number of failed attempts that locks a
// challenge session.
const DefaultLockThreshold = 5

// AttemptLimiter counts verification failures per challenge session. It is
// purely observational: a failure path costs one atomic increment and
// never blocks verification. When the threshold is reached the caller
// force-expires the session.
type AttemptLimiter struct {
	threshold int32
	counts    sync.Map // session id -> *int32
}

// NewAttemptLimiter creates a limiter. A threshold <= 0 falls back to
// DefaultLockThreshold.
func NewAttemptLimiter(threshold int) *AttemptLimiter {
	if threshold <= 0 {
		threshold = DefaultLockThreshold
	}
	return &AttemptLimiter{threshold: int32(threshold)}
}

// Fail records one failed attempt and reports the running count and
// whether the session just hit the lock threshold.
func (l *AttemptLimiter) Fail(sessionID string) (count int, locked bool) {
	v, _ := l.counts.LoadOrStore(sessionID, new(int32))
	n := atomic.AddInt32(v.(*int32), 1)
	return int(n), n >= l.threshold
}

// Remaining returns how many attempts are left before lockout.
func (l *AttemptLimiter) Remaining(sessionID string) int {
	v, ok := l.counts.Load(sessionID)
	if !ok {
		return int(l.threshold)
	}
	left := l.threshold - atomic.LoadInt32(v.(*int32))
	if left < 0 {
		return 0
	}
	return int(left)
}

// Reset drops the counter for a session, on completion or expiry.
func (l *AttemptLimiter) Reset(sessionID string) {
	l.counts.Delete(sessionID)
}
