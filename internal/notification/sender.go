package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/factorgate/factorgate/pkg/domain"
)

// EmailConfig holds SMTP configuration for email code delivery.
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

// Gateway delivers one-time codes over external channels. Email codes go
// out over SMTP when configured; SMS delivery is a stub that logs the
// channel (a real deployment plugs an SMS provider in here). Delivery is
// best-effort: the verification core never depends on it for correctness.
type Gateway struct {
	logger *slog.Logger
	email  *EmailConfig
}

// NewGateway creates a delivery gateway. email may be nil, in which case
// email codes are only logged.
func NewGateway(logger *slog.Logger, email *EmailConfig) *Gateway {
	return &Gateway{logger: logger, email: email}
}

// SendCode implements mfa.CodeSender.
func (g *Gateway) SendCode(ctx context.Context, kind domain.FactorKind, channel, code string) error {
	switch kind {
	case domain.FactorEmailOTP:
		if g.email != nil {
			return g.sendEmail(channel, code)
		}
		g.logger.Info("email delivery not configured, code not sent", "channel", maskChannel(channel))
		return nil
	case domain.FactorSMSOTP:
		// SMS provider integration point.
		g.logger.Info("sms code queued", "channel", maskChannel(channel))
		return nil
	default:
		return fmt.Errorf("unsupported delivery kind: %s", kind)
	}
}

func (g *Gateway) sendEmail(to, code string) error {
	subject := "Your verification code"
	body := fmt.Sprintf(`<html><body>
		<h2>Your verification code</h2>
		<p>Enter this code to finish signing in:</p>
		<p style="font-size:24px;letter-spacing:4px"><b>%s</b></p>
		<p>This code expires in 5 minutes. If you did not try to sign in, you can ignore this email.</p>
	</body></html>`, code)

	from := g.email.From
	if g.email.FromName != "" {
		from = fmt.Sprintf("%s <%s>", g.email.FromName, g.email.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	auth := smtp.PlainAuth("", g.email.User, g.email.Password, g.email.Host)
	addr := fmt.Sprintf("%s:%d", g.email.Host, g.email.Port)
	return smtp.SendMail(addr, auth, g.email.From, []string{to}, []byte(msg))
}

// maskChannel hides most of a delivery address in logs.
func maskChannel(channel string) string {
	if len(channel) <= 4 {
		return "****"
	}
	return "****" + channel[len(channel)-4:]
}
