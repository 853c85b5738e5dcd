package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/factorgate/factorgate/pkg/domain"
)

// FactorStore handles database operations for enrolled factors.
type FactorStore struct {
	db *sql.DB
}

// NewFactorStore creates a new Postgres-backed factor store.
func NewFactorStore(db *sql.DB) *FactorStore {
	return &FactorStore{db: db}
}

func (s *FactorStore) Create(ctx context.Context, factor *domain.EnrolledFactor) error {
	query := `
		INSERT INTO enrolled_factors (id, user_id, kind, enabled, secret, enrolled_at, last_used_at, usage_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		factor.ID,
		factor.UserID,
		factor.Kind,
		factor.Enabled,
		factor.Secret,
		factor.EnrolledAt,
		factor.LastUsedAt,
		factor.UsageCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create factor: %w", err)
	}
	return nil
}

func (s *FactorStore) GetByUserAndKind(ctx context.Context, userID uuid.UUID, kind domain.FactorKind) (*domain.EnrolledFactor, error) {
	query := `
		SELECT id, user_id, kind, enabled, secret, enrolled_at, last_used_at, usage_count
		FROM enrolled_factors
		WHERE user_id = $1 AND kind = $2 AND enabled = TRUE
		ORDER BY enrolled_at DESC
		LIMIT 1
	`

	factor := &domain.EnrolledFactor{}
	err := s.db.QueryRowContext(ctx, query, userID, kind).Scan(
		&factor.ID,
		&factor.UserID,
		&factor.Kind,
		&factor.Enabled,
		&factor.Secret,
		&factor.EnrolledAt,
		&factor.LastUsedAt,
		&factor.UsageCount,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrFactorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get factor: %w", err)
	}
	return factor, nil
}

func (s *FactorStore) ListEnabled(ctx context.Context, userID uuid.UUID) ([]*domain.EnrolledFactor, error) {
	query := `
		SELECT id, user_id, kind, enabled, secret, enrolled_at, last_used_at, usage_count
		FROM enrolled_factors
		WHERE user_id = $1 AND enabled = TRUE
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list factors: %w", err)
	}
	defer rows.Close()

	var out []*domain.EnrolledFactor
	for rows.Next() {
		factor := &domain.EnrolledFactor{}
		if err := rows.Scan(
			&factor.ID,
			&factor.UserID,
			&factor.Kind,
			&factor.Enabled,
			&factor.Secret,
			&factor.EnrolledAt,
			&factor.LastUsedAt,
			&factor.UsageCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan factor: %w", err)
		}
		out = append(out, factor)
	}
	return out, rows.Err()
}

func (s *FactorStore) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE enrolled_factors
		SET last_used_at = $2, usage_count = usage_count + 1
		WHERE id = $1
	`
	_, err := s.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch factor: %w", err)
	}
	return nil
}

func (s *FactorStore) Disable(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE enrolled_factors
		SET enabled = FALSE
		WHERE id = $1
	`
	_, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to disable factor: %w", err)
	}
	return nil
}
