package mfa

import (
	"context"
	"log/slog"
	"time"

	"github.com/factorgate/factorgate/pkg/store"
)

// DefaultSweepInterval is how often expired records are reclaimed.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically reclaims expired challenge sessions and one-time
// codes for memory hygiene. Correctness never depends on it running:
// expiry is enforced lazily at read time.
type Sweeper struct {
	logger   *slog.Logger
	clock    Clock
	interval time.Duration
	sessions store.ChallengeStore
	codes    store.CodeStore
}

// NewSweeper creates a sweeper. An interval <= 0 falls back to
// DefaultSweepInterval.
func NewSweeper(logger *slog.Logger, clock Clock, interval time.Duration, sessions store.ChallengeStore, codes store.CodeStore) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		logger:   logger,
		clock:    clock,
		interval: interval,
		sessions: sessions,
		codes:    codes,
	}
}

// Run sweeps on a ticker until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := s.clock.Now()
	if err := s.sessions.DeleteExpired(ctx, cutoff); err != nil {
		s.logger.Warn("failed to sweep challenge sessions", "error", err)
	}
	if err := s.codes.DeleteExpired(ctx, cutoff); err != nil {
		s.logger.Warn("failed to sweep one-time codes", "error", err)
	}
}
