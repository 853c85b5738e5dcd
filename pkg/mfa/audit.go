package mfa

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/factorgate/factorgate/pkg/domain"
	"github.com/factorgate/factorgate/pkg/store"
)

// AuditTrail appends immutable security events. Recording never fails the
// verification path: a store error is logged and swallowed. Raw codes,
// secrets and backup values must never appear in details.
type AuditTrail struct {
	logger *slog.Logger
	clock  Clock
	store  store.AuditStore
}

// NewAuditTrail creates an audit trail writing to the given store.
func NewAuditTrail(logger *slog.Logger, clock Clock, auditStore store.AuditStore) *AuditTrail {
	return &AuditTrail{logger: logger, clock: clock, store: auditStore}
}

// Record appends one event.
func (t *AuditTrail) Record(ctx context.Context, action string, userID uuid.UUID, details map[string]string) {
	event := &domain.AuditEvent{
		ID:        uuid.New(),
		Action:    action,
		UserID:    userID,
		Details:   details,
		Timestamp: t.clock.Now(),
	}
	if err := t.store.Append(ctx, event); err != nil {
		t.logger.Warn("failed to append audit event", "action", action, "error", err)
	}
}

// Recent returns the newest events, for diagnostics.
func (t *AuditTrail) Recent(ctx context.Context, limit int) ([]*domain.AuditEvent, error) {
	return t.store.Recent(ctx, limit)
}
