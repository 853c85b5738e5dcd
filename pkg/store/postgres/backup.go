package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/factorgate/factorgate/pkg/domain"
)

// BackupCodeStore handles database operations for backup codes.
type BackupCodeStore struct {
	db *sql.DB
}

// NewBackupCodeStore creates a new Postgres-backed backup code store.
func NewBackupCodeStore(db *sql.DB) *BackupCodeStore {
	return &BackupCodeStore{db: db}
}

// CreateBatch inserts a generation of backup codes in one transaction.
func (s *BackupCodeStore) CreateBatch(ctx context.Context, codes []*domain.BackupCode) error {
	if len(codes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO backup_codes (id, user_id, code_hash, used, revoked, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, code := range codes {
		_, err := stmt.ExecContext(ctx,
			code.ID,
			code.UserID,
			code.CodeHash,
			code.Used,
			code.Revoked,
			code.UsedAt,
			code.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert backup code: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *BackupCodeStore) ListLive(ctx context.Context, userID uuid.UUID) ([]*domain.BackupCode, error) {
	query := `
		SELECT id, user_id, code_hash, used, revoked, used_at, created_at
		FROM backup_codes
		WHERE user_id = $1 AND used = FALSE AND revoked = FALSE
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup codes: %w", err)
	}
	defer rows.Close()

	var out []*domain.BackupCode
	for rows.Next() {
		code := &domain.BackupCode{}
		if err := rows.Scan(
			&code.ID,
			&code.UserID,
			&code.CodeHash,
			&code.Used,
			&code.Revoked,
			&code.UsedAt,
			&code.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan backup code: %w", err)
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

// MarkUsed consumes a code. The used/revoked guard in the WHERE clause
// makes consumption single-winner under concurrency.
func (s *BackupCodeStore) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE backup_codes
		SET used = TRUE, used_at = $2
		WHERE id = $1 AND used = FALSE AND revoked = FALSE
	`
	result, err := s.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark backup code as used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrInvalidProof
	}
	return nil
}

func (s *BackupCodeStore) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE backup_codes
		SET revoked = TRUE
		WHERE user_id = $1 AND used = FALSE AND revoked = FALSE
	`
	_, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke backup codes: %w", err)
	}
	return nil
}

func (s *BackupCodeStore) CountLive(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM backup_codes
		WHERE user_id = $1 AND used = FALSE AND revoked = FALSE
	`

	var count int
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count backup codes: %w", err)
	}
	return count, nil
}
