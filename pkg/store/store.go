// Package store defines the persistence interfaces consumed by the
// verification core. The memory subpackage backs them for tests and
// single-process deployments; the postgres subpackage backs them with a
// real datastore.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/factorgate/factorgate/pkg/domain"
)

// FactorStore persists enrolled second factors. Factors are disabled on
// revocation, never hard-deleted, to preserve audit continuity.
type FactorStore interface {
	Create(ctx context.Context, factor *domain.EnrolledFactor) error
	GetByUserAndKind(ctx context.Context, userID uuid.UUID, kind domain.FactorKind) (*domain.EnrolledFactor, error)
	ListEnabled(ctx context.Context, userID uuid.UUID) ([]*domain.EnrolledFactor, error)
	// Touch records a successful use: sets lastUsedAt and increments usageCount.
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	Disable(ctx context.Context, id uuid.UUID) error
}

// ChallengeStore persists challenge sessions keyed by opaque session id.
type ChallengeStore interface {
	Put(ctx context.Context, session *domain.ChallengeSession) error
	Get(ctx context.Context, id string) (*domain.ChallengeSession, error)
	Delete(ctx context.Context, id string) error
	// Consume atomically removes and returns the session, so no second
	// reader can observe a completed session as still open. Returns
	// ErrChallengeNotFound if the session is already gone.
	Consume(ctx context.Context, id string) (*domain.ChallengeSession, error)
	// DeleteExpired reclaims sessions whose expiry precedes the cutoff.
	// Correctness never depends on it; expiry is enforced at read time.
	DeleteExpired(ctx context.Context, cutoff time.Time) error
}

// CodeStore persists out-of-band one-time codes.
type CodeStore interface {
	Create(ctx context.Context, code *domain.OneTimeCode) error
	// LatestUnused returns the most recently created unused code of the
	// kind for the user, or ErrCodeNotFound. Older unused codes are
	// unreachable by construction.
	LatestUnused(ctx context.Context, userID uuid.UUID, kind domain.FactorKind) (*domain.OneTimeCode, error)
	Update(ctx context.Context, code *domain.OneTimeCode) error
	DeleteExpired(ctx context.Context, cutoff time.Time) error
}

// BackupCodeStore persists hashed backup codes.
type BackupCodeStore interface {
	CreateBatch(ctx context.Context, codes []*domain.BackupCode) error
	// ListLive returns codes that are neither used nor revoked.
	ListLive(ctx context.Context, userID uuid.UUID) ([]*domain.BackupCode, error)
	MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) error
	RevokeAll(ctx context.Context, userID uuid.UUID) error
	CountLive(ctx context.Context, userID uuid.UUID) (int, error)
}

// AuditStore is append-only. Implementations may bound retention (ring
// buffer in memory, table in postgres) but never mutate stored events.
type AuditStore interface {
	Append(ctx context.Context, event *domain.AuditEvent) error
	Recent(ctx context.Context, limit int) ([]*domain.AuditEvent, error)
}
