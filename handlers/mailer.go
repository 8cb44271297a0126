package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"

	"campusvote/config"
)

// Mailer delivers password reset codes
type Mailer interface {
	SendResetCode(ctx context.Context, email, code string) error
}

// NewMailer returns an SMTP mailer when SMTP is configured and a logging
// mailer otherwise.
func NewMailer(cfg config.SMTPConfig, logger *slog.Logger) Mailer {
	if cfg.Enabled() {
		return &SMTPMailer{cfg: cfg}
	}
	return &LogMailer{logger: logger}
}

// SMTPMailer sends plain text mail with PLAIN auth
type SMTPMailer struct {
	cfg  config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (m *SMTPMailer) SendResetCode(_ context.Context, email, code string) error {
	send := m.send
	if send == nil {
		send = smtp.SendMail
	}
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	if err := send(addr, auth, m.cfg.Username, []string{email}, resetMessage(m.cfg.Sender, email, code)); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", addr, err)
	}
	return nil
}

func resetMessage(from, to, code string) []byte {
	body := fmt.Sprintf(`Hello,

You have requested to reset your student election account password.
Please use the following verification code to complete the process:

%s

This code will expire in 15 minutes.

If you did not request a password reset, please ignore this email.
`, code)
	return []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: Password Reset Code\r\n"+
		"MIME-version: 1.0;\r\nContent-Type: text/plain; charset=\"UTF-8\";\r\n\r\n"+
		"%s",
		from,
		to,
		body))
}

// LogMailer writes codes to the log. Used when SMTP is not configured.
type LogMailer struct {
	logger *slog.Logger
}

func (m *LogMailer) SendResetCode(_ context.Context, email, code string) error {
	logger := m.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("smtp not configured, logging reset code", "email", email, "code", code)
	return nil
}
