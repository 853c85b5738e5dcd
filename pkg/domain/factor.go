package domain

import (
	"time"

	"github.com/google/uuid"
)

// FactorKind identifies a second-factor verification method.
type FactorKind string

const (
	// FactorTOTP represents Time-based One-Time Password authentication
	FactorTOTP FactorKind = "totp"
	// FactorSMSOTP represents a one-time code delivered over SMS
	FactorSMSOTP FactorKind = "sms_otp"
	// FactorEmailOTP represents a one-time code delivered over email
	FactorEmailOTP FactorKind = "email_otp"
	// FactorBackup represents single-use backup recovery codes
	FactorBackup FactorKind = "backup"
)

// Kinds lists every supported factor kind.
func Kinds() []FactorKind {
	return []FactorKind{FactorTOTP, FactorSMSOTP, FactorEmailOTP, FactorBackup}
}

// ParseFactorKind validates a wire-level kind string.
func ParseFactorKind(s string) (FactorKind, error) {
	switch FactorKind(s) {
	case FactorTOTP, FactorSMSOTP, FactorEmailOTP, FactorBackup:
		return FactorKind(s), nil
	}
	return "", ErrUnsupportedFactor
}

// OutOfBand reports whether the kind is delivered over an external channel.
func (k FactorKind) OutOfBand() bool {
	return k == FactorSMSOTP || k == FactorEmailOTP
}

// EnrolledFactor is a second factor registered for a user. For TOTP the
// Secret field holds the shared base32 secret; for out-of-band kinds it
// holds the delivery channel (phone number or email address). Backup codes
// are tracked separately as a BackupCode set, but an EnrolledFactor row of
// kind FactorBackup marks the set as an available factor.
type EnrolledFactor struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Kind       FactorKind
	Enabled    bool
	Secret     string
	EnrolledAt time.Time
	LastUsedAt *time.Time
	UsageCount int
}
