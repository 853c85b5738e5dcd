package mfa

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/factorgate/factorgate/pkg/domain"
)

// ProofVerifier checks one factor kind's proof for a user. Expected
// failures (wrong code, replay, attempt cap) come back as the sentinel
// errors in pkg/domain; anything else is a storage or programmer fault.
// Details, when non-nil, are diagnostic key/values for the audit trail.
type ProofVerifier interface {
	VerifyProof(ctx context.Context, userID uuid.UUID, proof string) (details map[string]string, err error)
}

// Verification result reasons surfaced to callers. Deliberately coarse:
// the audit trail keeps the precise failure cause.
const (
	ReasonInvalid         = "invalid"
	ReasonNotFound        = "not_found"
	ReasonTooManyAttempts = "too_many_attempts"
	ReasonLocked          = "locked"
)

// OpenResult is returned when a challenge session is opened.
type OpenResult struct {
	ChallengeID      string
	AvailableFactors []domain.FactorKind
	ExpiresAt        int64
}

// VerifyResult is the outcome of one verification attempt. Err-free calls
// with Success == false are expected failures; the session may remain open
// for further attempts.
type VerifyResult struct {
	Success           bool
	Reason            string
	AttemptsRemaining int
	UserID            uuid.UUID
	Grant             string
}

// Orchestrator is the public entry point of the verification core. It owns
// the challenge state machine: open a session after the primary credential
// succeeds, dispatch proofs to the verifier registered for the factor
// kind, count failures, and on success atomically consume the session and
// issue the MFA grant.
type Orchestrator struct {
	logger     *slog.Logger
	clock      Clock
	challenges *ChallengeService
	limiter    *AttemptLimiter
	audit      *AuditTrail
	grants     *GrantIssuer
	otp        *OTPService
	totp       *TOTPVerifier
	backup     *BackupService
	verifiers  map[domain.FactorKind]ProofVerifier

	// Attempts against one session are serialized through a striped
	// lock so two concurrent requests cannot both observe it open.
	stripes [64]sync.Mutex
}

// NewOrchestrator wires the verifiers into a typed dispatch table, one per
// factor kind.
func NewOrchestrator(
	logger *slog.Logger,
	clock Clock,
	challenges *ChallengeService,
	limiter *AttemptLimiter,
	audit *AuditTrail,
	grants *GrantIssuer,
	totp *TOTPVerifier,
	otp *OTPService,
	backup *BackupService,
) *Orchestrator {
	return &Orchestrator{
		logger:     logger,
		clock:      clock,
		challenges: challenges,
		limiter:    limiter,
		audit:      audit,
		grants:     grants,
		otp:        otp,
		totp:       totp,
		backup:     backup,
		verifiers: map[domain.FactorKind]ProofVerifier{
			domain.FactorTOTP:     totp,
			domain.FactorSMSOTP:   otp.KindVerifier(domain.FactorSMSOTP),
			domain.FactorEmailOTP: otp.KindVerifier(domain.FactorEmailOTP),
			domain.FactorBackup:   backup,
		},
	}
}

func (o *Orchestrator) sessionLock(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &o.stripes[h.Sum32()%uint32(len(o.stripes))]
}

// OpenChallenge opens a challenge session for a user whose primary
// credential was just verified by the external password subsystem.
func (o *Orchestrator) OpenChallenge(ctx context.Context, userID uuid.UUID) (*OpenResult, error) {
	session, kinds, err := o.challenges.Open(ctx, userID)
	if err != nil {
		return nil, err
	}

	o.audit.Record(ctx, domain.AuditChallengeOpened, userID, nil)
	o.logger.Info("challenge opened", "user_id", userID, "factors", len(kinds))

	return &OpenResult{
		ChallengeID:      session.ID,
		AvailableFactors: kinds,
		ExpiresAt:        session.ExpiresAt.Unix(),
	}, nil
}

// RequestCode issues a fresh out-of-band code for the challenge's user and
// hands it to the delivery gateway.
func (o *Orchestrator) RequestCode(ctx context.Context, challengeID string, kind domain.FactorKind) error {
	if !kind.OutOfBand() {
		return domain.ErrUnsupportedFactor
	}

	session, err := o.challenges.Get(ctx, challengeID)
	if err != nil {
		return err
	}

	if _, err := o.otp.Create(ctx, session.UserID, kind); err != nil {
		if errors.Is(err, domain.ErrFactorNotFound) {
			return err
		}
		return fmt.Errorf("failed to create one-time code: %w", err)
	}

	o.audit.Record(ctx, domain.AuditCodeRequested, session.UserID, map[string]string{"kind": string(kind)})
	return nil
}

// VerifyFactor runs one attempt of the challenge state machine. Expected
// failures land in the result with a coarse reason; only storage and
// programmer faults surface as errors.
func (o *Orchestrator) VerifyFactor(ctx context.Context, challengeID string, kind domain.FactorKind, proof string) (*VerifyResult, error) {
	lock := o.sessionLock(challengeID)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.challenges.Get(ctx, challengeID)
	if err != nil {
		if errors.Is(err, domain.ErrChallengeNotFound) {
			return &VerifyResult{Reason: ReasonNotFound}, nil
		}
		return nil, err
	}

	verifier, ok := o.verifiers[kind]
	if !ok {
		return &VerifyResult{Reason: ReasonInvalid, AttemptsRemaining: o.limiter.Remaining(challengeID)}, nil
	}

	details, verr := verifier.VerifyProof(ctx, session.UserID, proof)
	if verr != nil {
		if !expectedVerifyError(verr) {
			return nil, verr
		}
		return o.failAttempt(ctx, session, challengeID, kind, verr), nil
	}

	// Consume the session atomically with declaring success so it cannot
	// be replayed to verify a second time.
	if _, err := o.challenges.Complete(ctx, challengeID); err != nil {
		if errors.Is(err, domain.ErrChallengeNotFound) {
			return &VerifyResult{Reason: ReasonNotFound}, nil
		}
		return nil, err
	}
	o.limiter.Reset(challengeID)

	if details == nil {
		details = map[string]string{}
	}
	details["kind"] = string(kind)
	details["outcome"] = "success"
	o.audit.Record(ctx, domain.AuditVerifySucceeded, session.UserID, details)
	o.logger.Info("factor verified", "user_id", session.UserID, "kind", kind)

	grant, err := o.grants.Issue(session.UserID, string(kind))
	if err != nil {
		return nil, err
	}

	return &VerifyResult{Success: true, UserID: session.UserID, Grant: grant}, nil
}

func (o *Orchestrator) failAttempt(ctx context.Context, session *domain.ChallengeSession, challengeID string, kind domain.FactorKind, verr error) *VerifyResult {
	count, locked := o.limiter.Fail(challengeID)

	o.audit.Record(ctx, domain.AuditVerifyFailed, session.UserID, map[string]string{
		"kind":    string(kind),
		"outcome": auditReason(verr),
	})

	if locked {
		// Force-expire regardless of remaining nominal lifetime.
		if err := o.challenges.Expire(ctx, challengeID); err != nil {
			o.logger.Error("failed to expire locked session", "error", err)
		}
		o.limiter.Reset(challengeID)
		o.audit.Record(ctx, domain.AuditSessionLocked, session.UserID, map[string]string{
			"failures": fmt.Sprintf("%d", count),
		})
		o.logger.Warn("challenge locked", "user_id", session.UserID, "failures", count)
		return &VerifyResult{Reason: ReasonLocked}
	}

	return &VerifyResult{
		Reason:            resultReason(verr),
		AttemptsRemaining: o.limiter.Remaining(challengeID),
	}
}

// FactorStatus reports a user's enabled factor kinds and live backup code
// count.
func (o *Orchestrator) FactorStatus(ctx context.Context, userID uuid.UUID) ([]domain.FactorKind, int, error) {
	enrolled, err := o.challenges.factors.ListEnabled(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	kinds := make([]domain.FactorKind, 0, len(enrolled))
	for _, f := range enrolled {
		kinds = append(kinds, f.Kind)
	}

	remaining, err := o.backup.Remaining(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return kinds, remaining, nil
}

// GenerateBackupCodes rotates the user's backup code set and records the
// rotation in the audit trail. The plaintext codes are shown exactly once.
func (o *Orchestrator) GenerateBackupCodes(ctx context.Context, userID uuid.UUID, count int) ([]string, error) {
	codes, err := o.backup.Generate(ctx, userID, count)
	if err != nil {
		return nil, err
	}
	o.audit.Record(ctx, domain.AuditBackupGenerated, userID, map[string]string{
		"count": fmt.Sprintf("%d", len(codes)),
	})
	return codes, nil
}

// EnrollTOTP enrolls a TOTP factor for the user and records the
// enrollment.
func (o *Orchestrator) EnrollTOTP(ctx context.Context, userID uuid.UUID, accountName string) (*TOTPEnrollment, error) {
	enrollment, err := o.totp.Enroll(ctx, userID, accountName)
	if err != nil {
		return nil, err
	}
	o.audit.Record(ctx, domain.AuditFactorEnrolled, userID, map[string]string{
		"kind": string(domain.FactorTOTP),
	})
	return enrollment, nil
}

// DisableFactor turns off one of the user's enrolled factors. Backup codes
// are additionally revoked so a disabled backup factor leaves no live
// codes behind.
func (o *Orchestrator) DisableFactor(ctx context.Context, userID uuid.UUID, kind domain.FactorKind) error {
	factor, err := o.challenges.factors.GetByUserAndKind(ctx, userID, kind)
	if err != nil {
		return err
	}
	if err := o.challenges.factors.Disable(ctx, factor.ID); err != nil {
		return fmt.Errorf("failed to disable factor: %w", err)
	}
	if kind == domain.FactorBackup {
		if err := o.backup.Revoke(ctx, userID); err != nil {
			return fmt.Errorf("failed to revoke backup codes: %w", err)
		}
	}
	o.audit.Record(ctx, domain.AuditFactorDisabled, userID, map[string]string{
		"kind": string(kind),
	})
	o.logger.Info("factor disabled", "user_id", userID, "kind", kind)
	return nil
}

// expectedVerifyError reports whether the error is an anticipated
// verification failure rather than a fault.
func expectedVerifyError(err error) bool {
	return errors.Is(err, domain.ErrInvalidProof) ||
		errors.Is(err, domain.ErrReplayedCode) ||
		errors.Is(err, domain.ErrTooManyAttempts) ||
		errors.Is(err, domain.ErrCodeNotFound) ||
		errors.Is(err, domain.ErrCodeExpired) ||
		errors.Is(err, domain.ErrFactorNotFound)
}

// resultReason maps a verification failure onto the coarse caller-visible
// taxonomy. Replay, expiry and missing enrollment all collapse into
// "invalid" so callers learn nothing about why a proof was rejected.
func resultReason(err error) string {
	if errors.Is(err, domain.ErrTooManyAttempts) {
		return ReasonTooManyAttempts
	}
	return ReasonInvalid
}

// auditReason keeps the precise cause for the security timeline.
func auditReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrReplayedCode):
		return "replayed_code"
	case errors.Is(err, domain.ErrTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, domain.ErrCodeNotFound):
		return "code_not_found"
	case errors.Is(err, domain.ErrCodeExpired):
		return "code_expired"
	case errors.Is(err, domain.ErrFactorNotFound):
		return "factor_not_enrolled"
	default:
		return "invalid_code"
	}
}
