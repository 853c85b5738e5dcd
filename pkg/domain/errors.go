package domain

import "errors"

// Challenge errors
var (
	// ErrChallengeNotFound covers both an unknown challenge id and an
	// expired or locked one. The cases are deliberately indistinguishable
	// to callers; the audit trail keeps the distinction.
	ErrChallengeNotFound = errors.New("challenge not found or expired")
	ErrNoFactorsEnrolled = errors.New("no enabled factors enrolled")
)

// Verification errors
var (
	ErrInvalidProof    = errors.New("invalid verification code")
	ErrReplayedCode    = errors.New("code already used within its time window")
	ErrTooManyAttempts = errors.New("too many attempts for this code")
	ErrCodeNotFound    = errors.New("no active code for this user")
	ErrCodeExpired     = errors.New("code expired")
)

// Enrollment errors
var (
	ErrFactorNotFound    = errors.New("factor not enrolled")
	ErrUnsupportedFactor = errors.New("unsupported factor kind")
)
