package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseFactorKind(t *testing.T) {
	tests := []struct {
		input   string
		want    FactorKind
		wantErr bool
	}{
		{"totp", FactorTOTP, false},
		{"sms_otp", FactorSMSOTP, false},
		{"email_otp", FactorEmailOTP, false},
		{"backup", FactorBackup, false},
		{"", "", true},
		{"TOTP", "", true},
		{"push", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFactorKind(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFactor) {
					t.Fatalf("expected ErrUnsupportedFactor, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFactorKind(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFactorKindOutOfBand(t *testing.T) {
	tests := []struct {
		kind FactorKind
		want bool
	}{
		{FactorTOTP, false},
		{FactorSMSOTP, true},
		{FactorEmailOTP, true},
		{FactorBackup, false},
	}
	for _, tt := range tests {
		if got := tt.kind.OutOfBand(); got != tt.want {
			t.Errorf("%s.OutOfBand() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestKindsCoversAllConstants(t *testing.T) {
	kinds := Kinds()
	if len(kinds) != 4 {
		t.Fatalf("Kinds() returned %d kinds, want 4", len(kinds))
	}
	for _, k := range kinds {
		if _, err := ParseFactorKind(string(k)); err != nil {
			t.Errorf("kind %q does not round-trip through ParseFactorKind", k)
		}
	}
}

func TestChallengeSessionExpired(t *testing.T) {
	at := time.Unix(1700000000, 0)
	session := ChallengeSession{ExpiresAt: at}

	if session.Expired(at.Add(-time.Second)) {
		t.Error("session expired before its deadline")
	}
	if !session.Expired(at.Add(time.Second)) {
		t.Error("session still live past its deadline")
	}
}

func TestOneTimeCodeExpired(t *testing.T) {
	at := time.Unix(1700000000, 0)
	code := OneTimeCode{ExpiresAt: at}

	if code.Expired(at.Add(-time.Second)) {
		t.Error("code expired before its deadline")
	}
	if !code.Expired(at.Add(time.Second)) {
		t.Error("code still live past its deadline")
	}
}

func TestBackupCodeLive(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tests := []struct {
		name string
		code BackupCode
		want bool
	}{
		{"fresh", BackupCode{}, true},
		{"used", BackupCode{Used: true, UsedAt: &now}, false},
		{"revoked", BackupCode{Revoked: true}, false},
		{"used and revoked", BackupCode{Used: true, Revoked: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.code.Live(); got != tt.want {
				t.Errorf("Live() = %v, want %v", got, tt.want)
			}
		})
	}
}
