package domain

import (
	"time"

	"github.com/google/uuid"
)

// BackupCode is a single entry in a user's backup code set. Only the
// Argon2id hash of the code is stored; the plaintext is shown exactly once
// at generation time. Generating a new set revokes all prior unused codes,
// so at most one generation is live at a time.
type BackupCode struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CodeHash  string
	Used      bool
	Revoked   bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Live reports whether the code can still be consumed.
func (c *BackupCode) Live() bool {
	return !c.Used && !c.Revoked
}
