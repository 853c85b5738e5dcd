package mfa

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/factorgate/factorgate/pkg/domain"
	"github.com/factorgate/factorgate/pkg/store"
)

const (
	totpDigits = 6
	totpPeriod = 30
	// totpSkew accepts counter-1, counter and counter+1, a 90-second
	// window absorbing client clock drift.
	totpSkew = 1
)

// TOTPEnrollment is returned once when a TOTP factor is enrolled. The
// secret cannot be recovered later.
type TOTPEnrollment struct {
	FactorID uuid.UUID
	Secret   string // base32, for manual entry
	URL      string // otpauth:// provisioning URL
}

// TOTPVerifier checks RFC 6238 time-based codes against a user's enrolled
// shared secret. It keeps a per-user cache of the last consumed time-step
// counter so a captured code cannot be replayed inside the drift window.
// The cache is global per user, not per challenge session: a code must not
// work twice regardless of which login attempt consumed it.
type TOTPVerifier struct {
	issuer  string
	clock   Clock
	factors store.FactorStore

	mu           sync.Mutex
	lastConsumed map[uuid.UUID]int64
}

// NewTOTPVerifier creates a TOTP verifier reading secrets from factors.
func NewTOTPVerifier(issuer string, clock Clock, factors store.FactorStore) *TOTPVerifier {
	return &TOTPVerifier{
		issuer:       issuer,
		clock:        clock,
		factors:      factors,
		lastConsumed: make(map[uuid.UUID]int64),
	}
}

// Enroll generates a fresh TOTP key for the user and registers it as an
// enabled factor. The secret and provisioning URL are returned exactly once.
func (v *TOTPVerifier) Enroll(ctx context.Context, userID uuid.UUID, accountName string) (*TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      v.issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	factor := &domain.EnrolledFactor{
		ID:         uuid.New(),
		UserID:     userID,
		Kind:       domain.FactorTOTP,
		Enabled:    true,
		Secret:     key.Secret(),
		EnrolledAt: v.clock.Now(),
	}
	if err := v.factors.Create(ctx, factor); err != nil {
		return nil, fmt.Errorf("failed to store TOTP factor: %w", err)
	}

	return &TOTPEnrollment{
		FactorID: factor.ID,
		Secret:   key.Secret(),
		URL:      key.URL(),
	}, nil
}

// VerifyProof checks a submitted 6-digit code against the user's secret at
// the current time step and its immediate neighbors. The matched offset is
// reported in the returned details for drift diagnostics. A match on a
// counter at or below the last consumed one fails with ErrReplayedCode.
func (v *TOTPVerifier) VerifyProof(ctx context.Context, userID uuid.UUID, proof string) (map[string]string, error) {
	factor, err := v.factors.GetByUserAndKind(ctx, userID, domain.FactorTOTP)
	if err != nil {
		return nil, err
	}

	now := v.clock.Now()
	counter := now.Unix() / totpPeriod

	matched := false
	var matchedCounter int64
	var matchedOffset int
	for offset := -totpSkew; offset <= totpSkew; offset++ {
		at := time.Unix((counter+int64(offset))*totpPeriod, 0)
		expected, err := totp.GenerateCodeCustom(factor.Secret, at, totp.ValidateOpts{
			Period:    totpPeriod,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to compute expected code: %w", err)
		}
		// Compare every offset in constant time, without early exit on
		// match, to keep timing independent of the submitted value.
		if subtle.ConstantTimeCompare([]byte(expected), []byte(proof)) == 1 && !matched {
			matched = true
			matchedCounter = counter + int64(offset)
			matchedOffset = offset
		}
	}

	if !matched {
		return nil, domain.ErrInvalidProof
	}

	v.mu.Lock()
	last, seen := v.lastConsumed[userID]
	if seen && matchedCounter <= last {
		v.mu.Unlock()
		return nil, domain.ErrReplayedCode
	}
	v.lastConsumed[userID] = matchedCounter
	v.mu.Unlock()

	if err := v.factors.Touch(ctx, factor.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record factor use: %w", err)
	}

	return map[string]string{"offset": fmt.Sprintf("%d", matchedOffset)}, nil
}
