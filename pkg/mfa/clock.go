package mfa

import "time"

// Clock supplies the current time. Every time-bounded decision in the core
// goes through a Clock so expiry, drift windows and replay behavior are
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock implementation used in production.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
