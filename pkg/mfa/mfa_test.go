package mfa

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/factorgate/factorgate/pkg/domain"
)

// fakeClock is a controllable time source for deterministic expiry, drift
// and replay tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock {
	return &fakeClock{now: at}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testTime is mid-step of a TOTP period to keep drift tests unambiguous.
var testTime = time.Unix(1700000015, 0)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSender captures codes handed to the delivery gateway.
type recordingSender struct {
	mu    sync.Mutex
	kinds []domain.FactorKind
	codes []string
}

func (s *recordingSender) SendCode(ctx context.Context, kind domain.FactorKind, channel, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
	s.codes = append(s.codes, code)
	return nil
}

func (s *recordingSender) last() (domain.FactorKind, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.codes) == 0 {
		return "", "", false
	}
	return s.kinds[len(s.kinds)-1], s.codes[len(s.codes)-1], true
}
