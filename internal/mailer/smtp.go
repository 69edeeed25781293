package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/tcglibrary/catalog/internal/config"
	"github.com/tcglibrary/catalog/internal/metrics"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender submits reset mails to an SMTP relay
type SMTPSender struct {
	addr     string
	auth     smtp.Auth
	from     string
	baseURL  string
	logger   *slog.Logger
	sendMail sendMailFunc
}

// NewSMTPSender creates a new SMTPSender instance
func NewSMTPSender(cfg config.MailConfig, baseURL string, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTPSender{
		addr:     net.JoinHostPort(cfg.SMTPHost, cfg.SMTPPort),
		auth:     auth,
		from:     cfg.From,
		baseURL:  baseURL,
		logger:   logger,
		sendMail: smtp.SendMail,
	}
}

// SendPasswordReset renders and submits the reset mail
func (s *SMTPSender) SendPasswordReset(ctx context.Context, to, token, displayName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := BuildResetMessage(s.baseURL, to, token, displayName)
	raw := s.render(msg)

	if err := s.sendMail(s.addr, s.auth, s.from, []string{to}, raw); err != nil {
		metrics.MailSendTotal.WithLabelValues(DriverSMTP, "error").Inc()
		s.logger.Error("SMTP delivery failed", "addr", s.addr, "error", err)
		return fmt.Errorf("smtp send: %w", err)
	}

	metrics.MailSendTotal.WithLabelValues(DriverSMTP, "success").Inc()
	return nil
}

// render builds an RFC 5322 message with CRLF line endings
func (s *SMTPSender) render(msg ResetMessage) []byte {
	var b strings.Builder
	b.WriteString("From: " + s.from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
