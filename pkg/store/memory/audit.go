package memory

import (
	"context"
	"sync"

	"github.com/factorgate/factorgate/pkg/domain"
)

// DefaultAuditCapacity bounds the in-memory audit ring.
const DefaultAuditCapacity = 1024

// AuditStore is an append-only bounded ring buffer of audit events. Once
// the ring is full the oldest events are overwritten; events are never
// mutated.
type AuditStore struct {
	mu     sync.Mutex
	events []*domain.AuditEvent
	next   int
	filled bool
}

// NewAuditStore creates a ring buffer holding up to capacity events.
// A capacity <= 0 falls back to DefaultAuditCapacity.
func NewAuditStore(capacity int) *AuditStore {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &AuditStore{events: make([]*domain.AuditEvent, capacity)}
}

func (s *AuditStore) Append(ctx context.Context, event *domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *event
	s.events[s.next] = &cp
	s.next++
	if s.next == len(s.events) {
		s.next = 0
		s.filled = true
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *AuditStore) Recent(ctx context.Context, limit int) ([]*domain.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := s.next
	if s.filled {
		size = len(s.events)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]*domain.AuditEvent, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.next - i + len(s.events)) % len(s.events)
		cp := *s.events[idx]
		out = append(out, &cp)
	}
	return out, nil
}
