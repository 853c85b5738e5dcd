package mfa

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/factorgate/factorgate/pkg/domain"
	"github.com/factorgate/factorgate/pkg/store"
)

const (
	otpCodeDigits = 6
	// OTPCodeTTL is the validity window of an out-of-band code.
	OTPCodeTTL = 5 * time.Minute
)

// CodeSender delivers a one-time code over an external channel. Delivery
// is fire-and-forget: the core does not depend on confirmation for
// correctness, only for UX, and the verification path never waits on it.
type CodeSender interface {
	SendCode(ctx context.Context, kind domain.FactorKind, channel, code string) error
}

// OTPService generates and verifies short-lived out-of-band codes
// delivered over SMS or email. Only the most recently created code of a
// kind is ever eligible; a cap of domain.MaxCodeAttempts guesses burns the
// code regardless of remaining lifetime.
type OTPService struct {
	logger  *slog.Logger
	clock   Clock
	codes   store.CodeStore
	factors store.FactorStore
	sender  CodeSender
}

// NewOTPService creates an OTP service. sender may be nil, in which case
// codes are stored but not delivered (useful in tests).
func NewOTPService(logger *slog.Logger, clock Clock, codes store.CodeStore, factors store.FactorStore, sender CodeSender) *OTPService {
	return &OTPService{
		logger:  logger,
		clock:   clock,
		codes:   codes,
		factors: factors,
		sender:  sender,
	}
}

// Create issues a fresh code for the user's enrolled channel of the given
// kind and hands it to the sender. The previous code of that kind becomes
// unreachable by the most-recent selection rule; no deletion is needed.
func (s *OTPService) Create(ctx context.Context, userID uuid.UUID, kind domain.FactorKind) (*domain.OneTimeCode, error) {
	if !kind.OutOfBand() {
		return nil, domain.ErrUnsupportedFactor
	}

	factor, err := s.factors.GetByUserAndKind(ctx, userID, kind)
	if err != nil {
		return nil, err
	}

	value, err := randomDigits(otpCodeDigits)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	code := &domain.OneTimeCode{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		Code:      value,
		Channel:   factor.Secret,
		CreatedAt: now,
		ExpiresAt: now.Add(OTPCodeTTL),
	}
	if err := s.codes.Create(ctx, code); err != nil {
		return nil, fmt.Errorf("failed to store one-time code: %w", err)
	}

	if s.sender != nil {
		if err := s.sender.SendCode(ctx, kind, code.Channel, value); err != nil {
			// Delivery failure does not invalidate the issued code.
			s.logger.Warn("one-time code delivery failed", "kind", kind, "error", err)
		}
	}

	return code, nil
}

// VerifyProof checks a submitted code against the most recent unused code
// of the kind. Expired codes and codes past the attempt cap are burned in
// place so no further guesses can land.
func (s *OTPService) verify(ctx context.Context, userID uuid.UUID, kind domain.FactorKind, proof string) error {
	code, err := s.codes.LatestUnused(ctx, userID, kind)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if code.Expired(now) {
		code.Used = true
		if err := s.codes.Update(ctx, code); err != nil {
			return fmt.Errorf("failed to burn expired code: %w", err)
		}
		return domain.ErrCodeExpired
	}

	code.Attempts++
	if code.Attempts > domain.MaxCodeAttempts {
		code.Used = true
		if err := s.codes.Update(ctx, code); err != nil {
			return fmt.Errorf("failed to burn code: %w", err)
		}
		return domain.ErrTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(code.Code), []byte(proof)) != 1 {
		// The code stays live for its remaining attempts.
		if err := s.codes.Update(ctx, code); err != nil {
			return fmt.Errorf("failed to record attempt: %w", err)
		}
		return domain.ErrInvalidProof
	}

	code.Used = true
	if err := s.codes.Update(ctx, code); err != nil {
		return fmt.Errorf("failed to consume code: %w", err)
	}

	if factor, err := s.factors.GetByUserAndKind(ctx, userID, kind); err == nil {
		if err := s.factors.Touch(ctx, factor.ID, now); err != nil {
			return fmt.Errorf("failed to record factor use: %w", err)
		}
	}

	return nil
}

// KindVerifier adapts the service to a single factor kind for the
// orchestrator's dispatch table.
func (s *OTPService) KindVerifier(kind domain.FactorKind) *otpKindVerifier {
	return &otpKindVerifier{service: s, kind: kind}
}

type otpKindVerifier struct {
	service *OTPService
	kind    domain.FactorKind
}

func (v *otpKindVerifier) VerifyProof(ctx context.Context, userID uuid.UUID, proof string) (map[string]string, error) {
	if err := v.service.verify(ctx, userID, v.kind, proof); err != nil {
		return nil, err
	}
	return nil, nil
}
