package notification

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/factorgate/factorgate/pkg/domain"
)

func TestSendCodeWithoutEmailConfig(t *testing.T) {
	gateway := NewGateway(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	ctx := context.Background()

	// Unconfigured channels degrade to logging, never to an error.
	if err := gateway.SendCode(ctx, domain.FactorEmailOTP, "alice@example.com", "123456"); err != nil {
		t.Errorf("email without config: %v", err)
	}
	if err := gateway.SendCode(ctx, domain.FactorSMSOTP, "+15551234567", "123456"); err != nil {
		t.Errorf("sms stub: %v", err)
	}

	if err := gateway.SendCode(ctx, domain.FactorTOTP, "", "123456"); err == nil {
		t.Error("expected error for non-deliverable kind")
	}
}

func TestMaskChannel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+15551234567", "****4567"},
		{"alice@example.com", "****.com"},
		{"abc", "****"},
		{"", "****"},
	}
	for _, tt := range tests {
		if got := maskChannel(tt.in); got != tt.want {
			t.Errorf("maskChannel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
