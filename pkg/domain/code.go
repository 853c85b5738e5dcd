package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxCodeAttempts caps brute-force guesses against a single out-of-band
// code. Once exceeded the code is forcibly marked used.
const MaxCodeAttempts = 3

// OneTimeCode is a short-lived out-of-band code delivered over SMS or
// email. Only the most recently created unused code of a kind is ever
// eligible for verification; older codes become unreachable and age out.
type OneTimeCode struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Kind      FactorKind
	Code      string
	Channel   string
	CreatedAt time.Time
	ExpiresAt time.Time
	Attempts  int
	Used      bool
}

// Expired reports whether the code's validity window has elapsed.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
