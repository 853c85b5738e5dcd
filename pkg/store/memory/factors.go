// Package memory provides in-memory store implementations. They are safe
// for concurrent use and are the default backend for tests and
// single-process deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/factorgate/factorgate/pkg/domain"
)

// FactorStore is an in-memory implementation of store.FactorStore.
type FactorStore struct {
	mu      sync.RWMutex
	factors map[uuid.UUID]*domain.EnrolledFactor
}

// NewFactorStore creates an empty in-memory factor store.
func NewFactorStore() *FactorStore {
	return &FactorStore{factors: make(map[uuid.UUID]*domain.EnrolledFactor)}
}

func (s *FactorStore) Create(ctx context.Context, factor *domain.EnrolledFactor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *factor
	s.factors[factor.ID] = &cp
	return nil
}

func (s *FactorStore) GetByUserAndKind(ctx context.Context, userID uuid.UUID, kind domain.FactorKind) (*domain.EnrolledFactor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.factors {
		if f.UserID == userID && f.Kind == kind && f.Enabled {
			cp := *f
			return &cp, nil
		}
	}
	return nil, domain.ErrFactorNotFound
}

func (s *FactorStore) ListEnabled(ctx context.Context, userID uuid.UUID) ([]*domain.EnrolledFactor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.EnrolledFactor
	for _, f := range s.factors {
		if f.UserID == userID && f.Enabled {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *FactorStore) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.factors[id]
	if !ok {
		return domain.ErrFactorNotFound
	}
	t := at
	f.LastUsedAt = &t
	f.UsageCount++
	return nil
}

func (s *FactorStore) Disable(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.factors[id]
	if !ok {
		return domain.ErrFactorNotFound
	}
	f.Enabled = false
	return nil
}
