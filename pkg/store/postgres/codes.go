package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/factorgate/factorgate/pkg/domain"
)

// CodeStore handles database operations for out-of-band one-time codes.
type CodeStore struct {
	db *sql.DB
}

// NewCodeStore creates a new Postgres-backed one-time code store.
func NewCodeStore(db *sql.DB) *CodeStore {
	return &CodeStore{db: db}
}

func (s *CodeStore) Create(ctx context.Context, code *domain.OneTimeCode) error {
	query := `
		INSERT INTO one_time_codes (id, user_id, kind, code, channel, created_at, expires_at, attempts, used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		code.ID,
		code.UserID,
		code.Kind,
		code.Code,
		code.Channel,
		code.CreatedAt,
		code.ExpiresAt,
		code.Attempts,
		code.Used,
	)
	if err != nil {
		return fmt.Errorf("failed to create one-time code: %w", err)
	}
	return nil
}

func (s *CodeStore) LatestUnused(ctx context.Context, userID uuid.UUID, kind domain.FactorKind) (*domain.OneTimeCode, error) {
	query := `
		SELECT id, user_id, kind, code, channel, created_at, expires_at, attempts, used
		FROM one_time_codes
		WHERE user_id = $1 AND kind = $2 AND used = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`

	code := &domain.OneTimeCode{}
	err := s.db.QueryRowContext(ctx, query, userID, kind).Scan(
		&code.ID,
		&code.UserID,
		&code.Kind,
		&code.Code,
		&code.Channel,
		&code.CreatedAt,
		&code.ExpiresAt,
		&code.Attempts,
		&code.Used,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get one-time code: %w", err)
	}
	return code, nil
}

func (s *CodeStore) Update(ctx context.Context, code *domain.OneTimeCode) error {
	query := `
		UPDATE one_time_codes
		SET attempts = $2, used = $3
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, code.ID, code.Attempts, code.Used)
	if err != nil {
		return fmt.Errorf("failed to update one-time code: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrCodeNotFound
	}
	return nil
}

func (s *CodeStore) DeleteExpired(ctx context.Context, cutoff time.Time) error {
	query := `
		DELETE FROM one_time_codes
		WHERE expires_at < $1
	`
	_, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete expired one-time codes: %w", err)
	}
	return nil
}
