package mfa

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/factorgate/factorgate/pkg/domain"
	"github.com/factorgate/factorgate/pkg/store"
)

const (
	backupCodeLength = 12
	// DefaultBackupCodeCount is the size of a freshly generated set.
	DefaultBackupCodeCount = 10
	// No ambiguous chars (0/O, 1/I/L)
	backupCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// BackupService manages single-use recovery codes. Codes are stored only
// as Argon2id hashes; generating a new set revokes every live code from the
// previous generation.
type BackupService struct {
	clock   Clock
	codes   store.BackupCodeStore
	factors store.FactorStore
}

// NewBackupService creates a backup code service.
func NewBackupService(clock Clock, codes store.BackupCodeStore, factors store.FactorStore) *BackupService {
	return &BackupService{clock: clock, codes: codes, factors: factors}
}

// Generate revokes the user's previous generation and creates count fresh
// codes, returning the plaintexts exactly once. A count <= 0 falls back to
// DefaultBackupCodeCount. The backup factor is registered for the user if
// it was not already.
func (s *BackupService) Generate(ctx context.Context, userID uuid.UUID, count int) ([]string, error) {
	if count <= 0 {
		count = DefaultBackupCodeCount
	}

	if err := s.codes.RevokeAll(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to revoke previous codes: %w", err)
	}

	now := s.clock.Now()
	plaintexts := make([]string, count)
	hashed := make([]*domain.BackupCode, count)
	for i := 0; i < count; i++ {
		code, err := generateBackupCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		plaintexts[i] = code

		hash, err := HashCode(normalizeBackupCode(code))
		if err != nil {
			return nil, fmt.Errorf("failed to hash backup code: %w", err)
		}

		hashed[i] = &domain.BackupCode{
			ID:        uuid.New(),
			UserID:    userID,
			CodeHash:  hash,
			CreatedAt: now,
		}
	}

	if err := s.codes.CreateBatch(ctx, hashed); err != nil {
		return nil, fmt.Errorf("failed to store backup codes: %w", err)
	}

	if _, err := s.factors.GetByUserAndKind(ctx, userID, domain.FactorBackup); err == domain.ErrFactorNotFound {
		factor := &domain.EnrolledFactor{
			ID:         uuid.New(),
			UserID:     userID,
			Kind:       domain.FactorBackup,
			Enabled:    true,
			EnrolledAt: now,
		}
		if err := s.factors.Create(ctx, factor); err != nil {
			return nil, fmt.Errorf("failed to register backup factor: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	return plaintexts, nil
}

// VerifyProof consumes a backup code. The submission is hashed and checked
// against every live code of the user; each code verifies at most once. No
// per-code attempt cap applies since codes are single-use, but the
// session-level attempt limiter still counts failures.
func (s *BackupService) VerifyProof(ctx context.Context, userID uuid.UUID, proof string) (map[string]string, error) {
	normalized := normalizeBackupCode(proof)

	live, err := s.codes.ListLive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup codes: %w", err)
	}

	for _, code := range live {
		if !VerifyCode(normalized, code.CodeHash) {
			continue
		}
		now := s.clock.Now()
		if err := s.codes.MarkUsed(ctx, code.ID, now); err != nil {
			// Lost the race to another consumer of the same code.
			return nil, domain.ErrInvalidProof
		}
		if factor, err := s.factors.GetByUserAndKind(ctx, userID, domain.FactorBackup); err == nil {
			if err := s.factors.Touch(ctx, factor.ID, now); err != nil {
				return nil, fmt.Errorf("failed to record factor use: %w", err)
			}
		}
		return nil, nil
	}

	return nil, domain.ErrInvalidProof
}

// Revoke invalidates every live code without issuing replacements.
func (s *BackupService) Revoke(ctx context.Context, userID uuid.UUID) error {
	return s.codes.RevokeAll(ctx, userID)
}

// Remaining returns the number of live codes so callers can warn users to
// regenerate when the set runs low.
func (s *BackupService) Remaining(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.codes.CountLive(ctx, userID)
}

// generateBackupCode generates a random code in format XXXX-XXXX-XXXX.
func generateBackupCode() (string, error) {
	chars := make([]byte, backupCodeLength)
	if _, err := rand.Read(chars); err != nil {
		return "", err
	}

	for i := range chars {
		chars[i] = backupCodeChars[int(chars[i])%len(backupCodeChars)]
	}

	return fmt.Sprintf("%s-%s-%s",
		string(chars[0:4]),
		string(chars[4:8]),
		string(chars[8:12]),
	), nil
}

// normalizeBackupCode strips separators and uppercases user input.
func normalizeBackupCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(code, "-", ""), " ", ""))
}
