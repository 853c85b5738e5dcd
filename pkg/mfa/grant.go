package mfa

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultGrantTTL bounds how long the external session manager has to
// exchange a grant for a full session.
const DefaultGrantTTL = 2 * time.Minute

// GrantConfig holds configuration for the MFA grant issuer.
type GrantConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// GrantClaims are the claims in an MFA grant token.
type GrantClaims struct {
	jwt.RegisteredClaims
	MFAVerified bool   `json:"mfa"`
	Method      string `json:"amr,omitempty"`
}

// GrantIssuer signs the short-lived capability returned when a challenge
// reaches MFA_VERIFIED. The external full-session manager verifies the
// grant and exchanges it for a long-lived session.
type GrantIssuer struct {
	config GrantConfig
	clock  Clock
}

// NewGrantIssuer creates a grant issuer.
func NewGrantIssuer(config GrantConfig, clock Clock) *GrantIssuer {
	if config.TTL == 0 {
		config.TTL = DefaultGrantTTL
	}
	return &GrantIssuer{config: config, clock: clock}
}

// Issue signs a grant for a user whose second factor just verified.
func (g *GrantIssuer) Issue(userID uuid.UUID, method string) (string, error) {
	now := g.clock.Now()
	claims := GrantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    g.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.config.TTL)),
			ID:        uuid.NewString(),
		},
		MFAVerified: true,
		Method:      method,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.config.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign grant: %w", err)
	}
	return signed, nil
}

// Verify parses a grant and returns the user it certifies. Intended for
// the session manager side of the exchange and for tests.
func (g *GrantIssuer) Verify(tokenString string) (uuid.UUID, error) {
	claims := &GrantClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return g.config.Secret, nil
	}, jwt.WithTimeFunc(g.clock.Now), jwt.WithIssuer(g.config.Issuer))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid grant: %w", err)
	}
	if !token.Valid || !claims.MFAVerified {
		return uuid.Nil, fmt.Errorf("invalid grant")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid grant subject: %w", err)
	}
	return userID, nil
}
