package mfa

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/factorgate/factorgate/pkg/domain"
	"github.com/factorgate/factorgate/pkg/store/memory"
)

// testCore wires a full verification core over in-memory stores.
type testCore struct {
	orch    *Orchestrator
	clock   *fakeClock
	sender  *recordingSender
	totp    *TOTPVerifier
	otp     *OTPService
	backup  *BackupService
	grants  *GrantIssuer
	audit   *memory.AuditStore
	factors *memory.FactorStore
}

func newTestCore(t *testing.T) *testCore {
	t.Helper()
	logger := testLogger()
	clock := newFakeClock(testTime)
	sender := &recordingSender{}

	factors := memory.NewFactorStore()
	auditStore := memory.NewAuditStore(memory.DefaultAuditCapacity)

	totpVerifier := NewTOTPVerifier("factorgate-test", clock, factors)
	otpService := NewOTPService(logger, clock, memory.NewCodeStore(), factors, sender)
	backupService := NewBackupService(clock, memory.NewBackupCodeStore(), factors)
	challenges := NewChallengeService(clock, memory.NewChallengeStore(), factors)
	limiter := NewAttemptLimiter(DefaultLockThreshold)
	trail := NewAuditTrail(logger, clock, auditStore)
	grants := NewGrantIssuer(GrantConfig{
		Secret: testGrantSecret,
		Issuer: "factorgate-test",
	}, clock)

	return &testCore{
		orch:    NewOrchestrator(logger, clock, challenges, limiter, trail, grants, totpVerifier, otpService, backupService),
		clock:   clock,
		sender:  sender,
		totp:    totpVerifier,
		otp:     otpService,
		backup:  backupService,
		grants:  grants,
		audit:   auditStore,
		factors: factors,
	}
}

func (c *testCore) hasAuditEvent(t *testing.T, action string, detail map[string]string) bool {
	t.Helper()
	events, err := c.audit.Recent(context.Background(), memory.DefaultAuditCapacity)
	if err != nil {
		t.Fatalf("failed to read audit trail: %v", err)
	}
outer:
	for _, e := range events {
		if e.Action != action {
			continue
		}
		for k, v := range detail {
			if e.Details[k] != v {
				continue outer
			}
		}
		return true
	}
	return false
}

// TestOrchestratorBackupRecovery walks a user through a lost-phone login:
// open a challenge, fumble one backup code, then recover with a valid one.
func TestOrchestratorBackupRecovery(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	userID := uuid.New()

	codes, err := core.orch.GenerateBackupCodes(ctx, userID, DefaultBackupCodeCount)
	if err != nil {
		t.Fatalf("GenerateBackupCodes failed: %v", err)
	}

	open, err := core.orch.OpenChallenge(ctx, userID)
	if err != nil {
		t.Fatalf("OpenChallenge failed: %v", err)
	}
	if len(open.AvailableFactors) != 1 || open.AvailableFactors[0] != domain.FactorBackup {
		t.Fatalf("AvailableFactors = %v, want [backup]", open.AvailableFactors)
	}

	// Mistyped code: expected failure, session stays open.
	result, err := core.orch.VerifyFactor(ctx, open.ChallengeID, domain.FactorBackup, "XXXX-XXXX-XXXX")
	if err != nil {
		t.Fatalf("VerifyFactor failed: %v", err)
	}
	if result.Success {
		t.Fatal("wrong code must not succeed")
	}
	if result.Reason != ReasonInvalid {
		t.Errorf("Reason = %q, want %q", result.Reason, ReasonInvalid)
	}
	if result.AttemptsRemaining != DefaultLockThreshold-1 {
		t.Errorf("AttemptsRemaining = %d, want %d", result.AttemptsRemaining, DefaultLockThreshold-1)
	}

	// Valid code completes the challenge and issues a grant.
	result, err = core.orch.VerifyFactor(ctx, open.ChallengeID, domain.FactorBackup, codes[0])
	if err != nil {
		t.Fatalf("VerifyFactor failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got reason %q", result.Reason)
	}
	if result.UserID != userID {
		t.Errorf("UserID = %s, want %s", result.UserID, userID)
	}
	grantee, err := core.grants.Verify(result.Grant)
	if err != nil {
		t.Fatalf("grant did not verify: %v", err)
	}
	if grantee != userID {
		t.Errorf("grant certifies %s, want %s", grantee, userID)
	}

	// The session was consumed; another attempt finds nothing.
	result, err = core.orch.VerifyFactor(ctx, open.ChallengeID, domain.FactorBackup, codes[1])
	if err != nil {
		t.Fatalf("VerifyFactor failed: %v", err)
	}
	if result.Success || result.Reason != ReasonNotFound {
		t.Fatalf("expected not_found for consumed session, got %+v", result)
	}

	remaining, err := core.backup.Remaining(ctx, userID)
	if err != nil {
		t.Fatalf("Remaining failed: %v", err)
	}
	if remaining != DefaultBackupCodeCount-1 {
		t.Errorf("remaining codes = %d, want %d", remaining, DefaultBackupCodeCount-1)
	}
}

func TestOrchestratorTOTPFlow(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := core.orch.EnrollTOTP(ctx, userID, "alice@example.com"); err != nil {
		t.Fatalf("EnrollTOTP failed: %v", err)
	}

	open, err := core.orch.OpenChallenge(ctx, userID)
	if err != nil {
		t.Fatalf("OpenChallenge failed: %v", err)
	}

	code := codeAt(t, ctx, core.totp, userID, core.clock.Now())
	result, err := core.orch.VerifyFactor(ctx, open.ChallengeID, domain.FactorTOTP, code)
	if err != nil {
		t.Fatalf("VerifyFactor failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got reason %q", result.Reason)
	}

	// The same code in a fresh challenge is a replay. Externally that is
	// just "invalid"; the audit trail keeps the real cause.
	second, err := core.orch.OpenChallenge(ctx, userID)
	if err != nil {
		t.Fatalf("OpenChallenge failed: %v", err)
	}
	result, err = core.orch.VerifyFactor(ctx, second.ChallengeID, domain.FactorTOTP, code)
	if err != nil {
		t.Fatalf("VerifyFactor failed: %v", err)
	}
	if result.Success || result.Reason != ReasonInvalid {
		t.Fatalf("expected invalid for replayed code, got %+v", result)
	}
	if !core.hasAuditEvent(t, domain.AuditVerifyFailed, map[string]string{"outcome": "replayed_code"}) {
		t.Error("expected replayed_code in audit trail")
	}
}

func TestOrchestratorOutOfBandFlow(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	userID := uuid.New()

	factor := &domain.EnrolledFactor{
		ID:         uuid.New(),
		UserID:     userID,
		Kind:       domain.FactorSMSOTP,
		Enabled:    true,
		Secret:     "+15551234567",
		EnrolledAt: core.clock.Now(),
	}
	if err := core.factors.Create(ctx, factor); err != nil {
		t.Fatalf("failed to enroll factor: %v", err)
	}

	open, err := core.orch.OpenChallenge(ctx, userID)
	if err != nil {
		t.Fatalf("OpenChallenge failed: %v", err)
	}

	if err := core.orch.RequestCode(ctx, open.ChallengeID, domain.FactorSMSOTP); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	_, code, ok := core.sender.last()
	if !ok {
		t.Fatal("expected a delivered code")
	}

	result, err := core.orch.VerifyFactor(ctx, open.ChallengeID, domain.FactorSMSOTP, code)
	if err != nil {
		t.Fatalf("VerifyFactor failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got reason %q", result.Reason)
	}
}

func TestOrchestratorRequestCodeValidation(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := core.orch.EnrollTOTP(ctx, userID, "alice@example.com"); err != nil {
		t.Fatalf("EnrollTOTP failed: %v", err)
	}
	open, err := core.orch.OpenChallenge(ctx, userID)
	if err != nil {
		t.Fatalf("OpenChallenge failed: %v", err)
	}

	if err := core.orch.RequestCode(ctx, open.ChallengeID, domain.FactorTOTP); err != domain.ErrUnsupportedFactor {
		t.Errorf("expected ErrUnsupportedFactor for in-band kind, got %v", err)
	}
	if err := core.orch.RequestCode(ctx, open.ChallengeID, domain.FactorSMSOTP); err != domain.ErrFactorNotFound {
		t.Errorf("expected ErrFactorNotFound for unenrolled kind, got %v", err)
	}
	if err := core.orch.RequestCode(ctx, "no-such-challenge", domain.FactorSMSOTP); err != domain.ErrChallengeNotFound {
		t.Errorf("expected ErrChallengeNotFound, got %v", err)
	}
}

func TestOrchestratorLockout(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	userID := uuid.New()

	codes, err := core.orch.GenerateBackupCodes(ctx, userID, 3)
	if err != nil {
		t.Fatalf("GenerateBackupCodes failed: %v", err)
	}

	open, err := core.orch.OpenChallenge(ctx, userID)
	if err != nil {
		t.Fatalf("OpenChallenge failed: %v", err)
	}

	for i := 0; i < DefaultLockThreshold-1; i++ {
		result, err := core.orch.VerifyFactor(ctx, open.ChallengeID, domain.FactorBackup, "XXXX-XXXX-XXXX")
		if err != nil {
			t.Fatalf("VerifyFactor failed: %v", err)
		}
		if result.Success || result.Reason != ReasonInvalid {
			t.Fatalf("attempt %d: got %+v", i+1, result)
		}
	}

	// The final failure trips the limiter and force-expires the session.
	result, err := core.orch.VerifyFactor(ctx, open.ChallengeID, domain.FactorBackup, "XXXX-XXXX-XXXX")
	if err != nil {
		t.Fatalf("VerifyFactor failed: %v", err)
	}
	if result.Reason != ReasonLocked {
		t.Fatalf("Reason = %q, want %q", result.Reason, ReasonLocked)
	}
	if !core.hasAuditEvent(t, domain.AuditSessionLocked, nil) {
		t.Error("expected mfa_session_locked in audit trail")
	}

	// Even a valid code cannot land on the dead session.
	result, err = core.orch.VerifyFactor(ctx, open.ChallengeID, domain.FactorBackup, codes[0])
	if err != nil {
		t.Fatalf("VerifyFactor failed: %v", err)
	}
	if result.Success || result.Reason != ReasonNotFound {
		t.Fatalf("expected not_found after lockout, got %+v", result)
	}

	// The user is not locked out, only the session: a fresh challenge works.
	reopened, err := core.orch.OpenChallenge(ctx, userID)
	if err != nil {
		t.Fatalf("OpenChallenge failed: %v", err)
	}
	result, err = core.orch.VerifyFactor(ctx, reopened.ChallengeID, domain.FactorBackup, codes[0])
	if err != nil {
		t.Fatalf("VerifyFactor failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success on fresh challenge, got %+v", result)
	}
}

func TestOrchestratorExpiredChallenge(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	userID := uuid.New()

	codes, err := core.orch.GenerateBackupCodes(ctx, userID, 2)
	if err != nil {
		t.Fatalf("GenerateBackupCodes failed: %v", err)
	}
	open, err := core.orch.OpenChallenge(ctx, userID)
	if err != nil {
		t.Fatalf("OpenChallenge failed: %v", err)
	}

	core.clock.Advance(ChallengeTTL + time.Second)
	result, err := core.orch.VerifyFactor(ctx, open.ChallengeID, domain.FactorBackup, codes[0])
	if err != nil {
		t.Fatalf("VerifyFactor failed: %v", err)
	}
	if result.Success || result.Reason != ReasonNotFound {
		t.Fatalf("expected not_found for expired challenge, got %+v", result)
	}
}

func TestOrchestratorOpenChallengeNoFactors(t *testing.T) {
	core := newTestCore(t)

	if _, err := core.orch.OpenChallenge(context.Background(), uuid.New()); err != domain.ErrNoFactorsEnrolled {
		t.Fatalf("expected ErrNoFactorsEnrolled, got %v", err)
	}
}

func TestOrchestratorUnknownFactorKind(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := core.orch.GenerateBackupCodes(ctx, userID, 2); err != nil {
		t.Fatalf("GenerateBackupCodes failed: %v", err)
	}
	open, err := core.orch.OpenChallenge(ctx, userID)
	if err != nil {
		t.Fatalf("OpenChallenge failed: %v", err)
	}

	result, err := core.orch.VerifyFactor(ctx, open.ChallengeID, domain.FactorKind("carrier_pigeon"), "coo")
	if err != nil {
		t.Fatalf("VerifyFactor failed: %v", err)
	}
	if result.Success || result.Reason != ReasonInvalid {
		t.Fatalf("expected invalid for unknown kind, got %+v", result)
	}
}

func TestOrchestratorSingleUseUnderConcurrency(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	userID := uuid.New()

	codes, err := core.orch.GenerateBackupCodes(ctx, userID, 2)
	if err != nil {
		t.Fatalf("GenerateBackupCodes failed: %v", err)
	}
	open, err := core.orch.OpenChallenge(ctx, userID)
	if err != nil {
		t.Fatalf("OpenChallenge failed: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	successes := make(chan *VerifyResult, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := core.orch.VerifyFactor(ctx, open.ChallengeID, domain.FactorBackup, codes[0])
			if err != nil {
				t.Errorf("VerifyFactor failed: %v", err)
				return
			}
			if result.Success {
				successes <- result
			}
		}()
	}
	wg.Wait()
	close(successes)

	if got := len(successes); got != 1 {
		t.Fatalf("%d concurrent verifications succeeded, want exactly 1", got)
	}
}

func TestOrchestratorFactorStatus(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := core.orch.EnrollTOTP(ctx, userID, "alice@example.com"); err != nil {
		t.Fatalf("EnrollTOTP failed: %v", err)
	}
	if _, err := core.orch.GenerateBackupCodes(ctx, userID, 4); err != nil {
		t.Fatalf("GenerateBackupCodes failed: %v", err)
	}

	kinds, remaining, err := core.orch.FactorStatus(ctx, userID)
	if err != nil {
		t.Fatalf("FactorStatus failed: %v", err)
	}
	if len(kinds) != 2 {
		t.Errorf("got %d kinds, want 2 (totp, backup)", len(kinds))
	}
	if remaining != 4 {
		t.Errorf("remaining = %d, want 4", remaining)
	}
}

func TestOrchestratorDisableFactor(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := core.orch.EnrollTOTP(ctx, userID, "alice@example.com"); err != nil {
		t.Fatalf("EnrollTOTP failed: %v", err)
	}
	if err := core.orch.DisableFactor(ctx, userID, domain.FactorTOTP); err != nil {
		t.Fatalf("DisableFactor failed: %v", err)
	}

	// The user is back to zero factors: no challenge can open.
	if _, err := core.orch.OpenChallenge(ctx, userID); err != domain.ErrNoFactorsEnrolled {
		t.Fatalf("expected ErrNoFactorsEnrolled after disable, got %v", err)
	}
	if !core.hasAuditEvent(t, domain.AuditFactorDisabled, map[string]string{"kind": "totp"}) {
		t.Error("expected mfa_factor_disabled in audit trail")
	}

	if err := core.orch.DisableFactor(ctx, userID, domain.FactorTOTP); err != domain.ErrFactorNotFound {
		t.Fatalf("expected ErrFactorNotFound for already-disabled factor, got %v", err)
	}
}

func TestOrchestratorDisableBackupRevokesCodes(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := core.orch.GenerateBackupCodes(ctx, userID, 3); err != nil {
		t.Fatalf("GenerateBackupCodes failed: %v", err)
	}
	if err := core.orch.DisableFactor(ctx, userID, domain.FactorBackup); err != nil {
		t.Fatalf("DisableFactor failed: %v", err)
	}

	remaining, err := core.backup.Remaining(ctx, userID)
	if err != nil {
		t.Fatalf("Remaining failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("remaining = %d after disable, want 0", remaining)
	}
}

func TestOrchestratorAuditTimeline(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()
	userID := uuid.New()

	codes, err := core.orch.GenerateBackupCodes(ctx, userID, 2)
	if err != nil {
		t.Fatalf("GenerateBackupCodes failed: %v", err)
	}
	open, err := core.orch.OpenChallenge(ctx, userID)
	if err != nil {
		t.Fatalf("OpenChallenge failed: %v", err)
	}
	if _, err := core.orch.VerifyFactor(ctx, open.ChallengeID, domain.FactorBackup, "XXXX-XXXX-XXXX"); err != nil {
		t.Fatalf("VerifyFactor failed: %v", err)
	}
	if _, err := core.orch.VerifyFactor(ctx, open.ChallengeID, domain.FactorBackup, codes[0]); err != nil {
		t.Fatalf("VerifyFactor failed: %v", err)
	}

	for _, action := range []string{
		domain.AuditBackupGenerated,
		domain.AuditChallengeOpened,
		domain.AuditVerifyFailed,
		domain.AuditVerifySucceeded,
	} {
		if !core.hasAuditEvent(t, action, nil) {
			t.Errorf("expected %s in audit trail", action)
		}
	}

	// The trail never records submitted values.
	events, err := core.audit.Recent(ctx, memory.DefaultAuditCapacity)
	if err != nil {
		t.Fatalf("failed to read audit trail: %v", err)
	}
	for _, e := range events {
		for _, v := range e.Details {
			if v == codes[0] || v == "XXXX-XXXX-XXXX" {
				t.Fatalf("audit event %s leaks a submitted code", e.Action)
			}
		}
	}
}
