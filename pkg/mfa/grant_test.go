package mfa

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

var testGrantSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestGrantIssuer(clock Clock) *GrantIssuer {
	return NewGrantIssuer(GrantConfig{
		Secret: testGrantSecret,
		Issuer: "factorgate-test",
		TTL:    DefaultGrantTTL,
	}, clock)
}

func TestGrantRoundTrip(t *testing.T) {
	clock := newFakeClock(testTime)
	issuer := newTestGrantIssuer(clock)
	userID := uuid.New()

	grant, err := issuer.Issue(userID, "totp")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	got, err := issuer.Verify(grant)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got != userID {
		t.Errorf("Verify returned %s, want %s", got, userID)
	}
}

func TestGrantExpires(t *testing.T) {
	clock := newFakeClock(testTime)
	issuer := newTestGrantIssuer(clock)

	grant, err := issuer.Issue(uuid.New(), "backup")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	clock.Advance(DefaultGrantTTL + time.Second)
	if _, err := issuer.Verify(grant); err == nil {
		t.Fatal("expected expired grant to be rejected")
	}
}

func TestGrantWrongSecret(t *testing.T) {
	clock := newFakeClock(testTime)
	issuer := newTestGrantIssuer(clock)

	grant, err := issuer.Issue(uuid.New(), "totp")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	other := NewGrantIssuer(GrantConfig{
		Secret: []byte("another-secret-another-secret-ab"),
		Issuer: "factorgate-test",
	}, clock)
	if _, err := other.Verify(grant); err == nil {
		t.Fatal("expected grant signed with a different secret to be rejected")
	}
}

func TestGrantWrongIssuer(t *testing.T) {
	clock := newFakeClock(testTime)
	issuer := newTestGrantIssuer(clock)

	grant, err := issuer.Issue(uuid.New(), "totp")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	other := NewGrantIssuer(GrantConfig{
		Secret: testGrantSecret,
		Issuer: "someone-else",
	}, clock)
	if _, err := other.Verify(grant); err == nil {
		t.Fatal("expected grant with mismatched issuer to be rejected")
	}
}

func TestGrantGarbageToken(t *testing.T) {
	issuer := newTestGrantIssuer(newFakeClock(testTime))

	if _, err := issuer.Verify("not.a.jwt"); err == nil {
		t.Fatal("expected malformed token to be rejected")
	}
}
