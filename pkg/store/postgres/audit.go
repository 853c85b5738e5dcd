package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/factorgate/factorgate/pkg/domain"
)

// AuditStore appends audit events to an audit_events table. Events are
// inserted only; there are no update or delete paths.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore creates a new Postgres-backed audit store.
func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, event *domain.AuditEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_events (id, action, user_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		event.Action,
		event.UserID,
		details,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

func (s *AuditStore) Recent(ctx context.Context, limit int) ([]*domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, action, user_id, details, created_at
		FROM audit_events
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var out []*domain.AuditEvent
	for rows.Next() {
		event := &domain.AuditEvent{}
		var details []byte
		if err := rows.Scan(
			&event.ID,
			&event.Action,
			&event.UserID,
			&details,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}
