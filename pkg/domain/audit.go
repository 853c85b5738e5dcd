package domain

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions emitted by the verification core. The details map carries
// factor kind and outcome; raw codes and secrets are never recorded.
const (
	AuditChallengeOpened = "mfa_challenge_opened"
	AuditSessionLocked   = "mfa_session_locked"
	AuditCodeRequested   = "mfa_code_requested"
	AuditVerifySucceeded = "mfa_verify_succeeded"
	AuditVerifyFailed    = "mfa_verify_failed"
	AuditBackupGenerated = "mfa_backup_codes_generated"
	AuditFactorEnrolled  = "mfa_factor_enrolled"
	AuditFactorDisabled  = "mfa_factor_disabled"
)

// AuditEvent is an append-only record of a security-relevant action.
type AuditEvent struct {
	ID        uuid.UUID
	Action    string
	UserID    uuid.UUID
	Details   map[string]string
	Timestamp time.Time
}
