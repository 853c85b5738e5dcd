package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/factorgate/factorgate/pkg/domain"
)

// ChallengeStore handles database operations for challenge sessions.
type ChallengeStore struct {
	db *sql.DB
}

// NewChallengeStore creates a new Postgres-backed challenge store.
func NewChallengeStore(db *sql.DB) *ChallengeStore {
	return &ChallengeStore{db: db}
}

func (s *ChallengeStore) Put(ctx context.Context, session *domain.ChallengeSession) error {
	query := `
		INSERT INTO challenge_sessions (id, user_id, password_verified, mfa_verified, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.PasswordVerified,
		session.MFAVerified,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create challenge session: %w", err)
	}
	return nil
}

func (s *ChallengeStore) Get(ctx context.Context, id string) (*domain.ChallengeSession, error) {
	query := `
		SELECT id, user_id, password_verified, mfa_verified, created_at, expires_at
		FROM challenge_sessions
		WHERE id = $1
	`

	session := &domain.ChallengeSession{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.PasswordVerified,
		&session.MFAVerified,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge session: %w", err)
	}
	return session, nil
}

func (s *ChallengeStore) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM challenge_sessions
		WHERE id = $1
	`
	_, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete challenge session: %w", err)
	}
	return nil
}

// Consume deletes the session and returns it in a single statement, so
// concurrent callers cannot both win.
func (s *ChallengeStore) Consume(ctx context.Context, id string) (*domain.ChallengeSession, error) {
	query := `
		DELETE FROM challenge_sessions
		WHERE id = $1
		RETURNING id, user_id, password_verified, mfa_verified, created_at, expires_at
	`

	session := &domain.ChallengeSession{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.PasswordVerified,
		&session.MFAVerified,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume challenge session: %w", err)
	}
	return session, nil
}

func (s *ChallengeStore) DeleteExpired(ctx context.Context, cutoff time.Time) error {
	query := `
		DELETE FROM challenge_sessions
		WHERE expires_at < $1
	`
	_, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete expired challenge sessions: %w", err)
	}
	return nil
}
