package memory

import (
	"context"
	"sync"
	"time"

	"github.com/factorgate/factorgate/pkg/domain"
)

// ChallengeStore is an in-memory implementation of store.ChallengeStore.
type ChallengeStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.ChallengeSession
}

// NewChallengeStore creates an empty in-memory challenge store.
func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{sessions: make(map[string]*domain.ChallengeSession)}
}

func (s *ChallengeStore) Put(ctx context.Context, session *domain.ChallengeSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *ChallengeStore) Get(ctx context.Context, id string) (*domain.ChallengeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrChallengeNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *ChallengeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Consume removes and returns the session under a single lock, so two
// concurrent callers cannot both observe it as open.
func (s *ChallengeStore) Consume(ctx context.Context, id string) (*domain.ChallengeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrChallengeNotFound
	}
	delete(s.sessions, id)
	cp := *sess
	return &cp, nil
}

func (s *ChallengeStore) DeleteExpired(ctx context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.ExpiresAt.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
	return nil
}
