package comms

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"kayo/internal/platform/config"
	dErrors "kayo/pkg/domain-errors"
)

// SMTPMailer sends plain-text mail. It implements the auth package's
// Mailer for OTP delivery and the EmailSender seam for announcements.
type SMTPMailer struct {
	cfg config.SMTP
}

func NewSMTPMailer(cfg config.SMTP) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Configured() bool {
	return m.cfg.Host != ""
}

// Send delivers one message. net/smtp cannot carry the context, so
// cancellation only takes effect between messages.
func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	if !m.Configured() {
		return dErrors.New(dErrors.CodeUnavailable, "smtp is not configured")
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "send mail")
	}
	return nil
}

func (m *SMTPMailer) SendOTP(ctx context.Context, toEmail, toName, code string) error {
	body := fmt.Sprintf(
		"Hello %s,\n\nYour KAYO login verification code is: %s\n\nThe code expires in 10 minutes. If you did not attempt to log in, ignore this message.\n",
		toName, code)
	return m.Send(ctx, toEmail, "KAYO Login Verification Code", body)
}
