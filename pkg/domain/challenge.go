package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChallengeSession is the short-lived record marking "primary credential
// verified, second factor pending". It binds one login attempt to one
// verification window and is single-use: completing it removes it from the
// active set in the same operation.
type ChallengeSession struct {
	ID               string
	UserID           uuid.UUID
	PasswordVerified bool
	MFAVerified      bool
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// Expired reports whether the session's verification window has elapsed.
func (s *ChallengeSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
