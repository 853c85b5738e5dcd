package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/factorgate/factorgate/pkg/domain"
)

// BackupCodeStore is an in-memory implementation of store.BackupCodeStore.
type BackupCodeStore struct {
	mu    sync.Mutex
	codes map[uuid.UUID]*domain.BackupCode
}

// NewBackupCodeStore creates an empty in-memory backup code store.
func NewBackupCodeStore() *BackupCodeStore {
	return &BackupCodeStore{codes: make(map[uuid.UUID]*domain.BackupCode)}
}

func (s *BackupCodeStore) CreateBatch(ctx context.Context, codes []*domain.BackupCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range codes {
		cp := *c
		s.codes[c.ID] = &cp
	}
	return nil
}

func (s *BackupCodeStore) ListLive(ctx context.Context, userID uuid.UUID) ([]*domain.BackupCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.BackupCode
	for _, c := range s.codes {
		if c.UserID == userID && c.Live() {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *BackupCodeStore) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[id]
	if !ok || !c.Live() {
		return domain.ErrInvalidProof
	}
	t := at
	c.Used = true
	c.UsedAt = &t
	return nil
}

func (s *BackupCodeStore) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.codes {
		if c.UserID == userID && c.Live() {
			c.Revoked = true
		}
	}
	return nil
}

func (s *BackupCodeStore) CountLive(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.codes {
		if c.UserID == userID && c.Live() {
			n++
		}
	}
	return n, nil
}
