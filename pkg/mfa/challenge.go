package mfa

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/factorgate/factorgate/pkg/domain"
	"github.com/factorgate/factorgate/pkg/store"
)

// ChallengeTTL is the verification window opened after the primary
// credential succeeds.
const ChallengeTTL = 5 * time.Minute

// ChallengeService owns challenge session lifetime: open on primary
// credential success, lazy expiry on every read, atomic consumption on
// completion.
type ChallengeService struct {
	clock    Clock
	sessions store.ChallengeStore
	factors  store.FactorStore
}

// NewChallengeService creates a challenge session manager.
func NewChallengeService(clock Clock, sessions store.ChallengeStore, factors store.FactorStore) *ChallengeService {
	return &ChallengeService{clock: clock, sessions: sessions, factors: factors}
}

// Open creates a challenge session for a user whose password has just been
// verified. It fails with ErrNoFactorsEnrolled when the user has no enabled
// factors; the caller should not have initiated MFA in that case. The
// enabled factor kinds are returned alongside the session.
func (s *ChallengeService) Open(ctx context.Context, userID uuid.UUID) (*domain.ChallengeSession, []domain.FactorKind, error) {
	enrolled, err := s.factors.ListEnabled(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list factors: %w", err)
	}
	if len(enrolled) == 0 {
		return nil, nil, domain.ErrNoFactorsEnrolled
	}

	kinds := make([]domain.FactorKind, 0, len(enrolled))
	for _, f := range enrolled {
		kinds = append(kinds, f.Kind)
	}

	now := s.clock.Now()
	session := &domain.ChallengeSession{
		ID:               generateSessionID(),
		UserID:           userID,
		PasswordVerified: true,
		CreatedAt:        now,
		ExpiresAt:        now.Add(ChallengeTTL),
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("failed to store challenge session: %w", err)
	}

	return session, kinds, nil
}

// Get returns the session or ErrChallengeNotFound when it is absent or
// past its expiry. The lookup itself deletes expired sessions, so no
// verification can ever be attempted against a stale session.
func (s *ChallengeService) Get(ctx context.Context, id string) (*domain.ChallengeSession, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.clock.Now()) {
		if err := s.sessions.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to delete expired session: %w", err)
		}
		return nil, domain.ErrChallengeNotFound
	}
	return session, nil
}

// Complete flips the session to verified and removes it from the active
// set in one atomic operation, making it single-use: a concurrent caller
// observes ErrChallengeNotFound, never a completed-but-open session.
func (s *ChallengeService) Complete(ctx context.Context, id string) (*domain.ChallengeSession, error) {
	session, err := s.sessions.Consume(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.clock.Now()) {
		return nil, domain.ErrChallengeNotFound
	}
	session.MFAVerified = true
	return session, nil
}

// Expire force-removes a session ahead of its nominal expiry, used when
// the attempt limiter trips.
func (s *ChallengeService) Expire(ctx context.Context, id string) error {
	return s.sessions.Delete(ctx, id)
}
