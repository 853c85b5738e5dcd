package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/factorgate/factorgate/pkg/domain"
)

// CodeStore is an in-memory implementation of store.CodeStore.
type CodeStore struct {
	mu    sync.Mutex
	codes map[uuid.UUID]*domain.OneTimeCode
}

// NewCodeStore creates an empty in-memory one-time code store.
func NewCodeStore() *CodeStore {
	return &CodeStore{codes: make(map[uuid.UUID]*domain.OneTimeCode)}
}

func (s *CodeStore) Create(ctx context.Context, code *domain.OneTimeCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *code
	s.codes[code.ID] = &cp
	return nil
}

func (s *CodeStore) LatestUnused(ctx context.Context, userID uuid.UUID, kind domain.FactorKind) (*domain.OneTimeCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.OneTimeCode
	for _, c := range s.codes {
		if c.UserID != userID || c.Kind != kind || c.Used {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, domain.ErrCodeNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *CodeStore) Update(ctx context.Context, code *domain.OneTimeCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[code.ID]; !ok {
		return domain.ErrCodeNotFound
	}
	cp := *code
	s.codes[code.ID] = &cp
	return nil
}

func (s *CodeStore) DeleteExpired(ctx context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.codes {
		if c.ExpiresAt.Before(cutoff) {
			delete(s.codes, id)
		}
	}
	return nil
}
