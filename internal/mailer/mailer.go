// Package mailer delivers password reset mails. A Sender accepts a recipient,
// the raw reset token and a display name, and reports success or failure.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tcglibrary/catalog/internal/config"
)

// Supported drivers
const (
	DriverSMTP = "smtp"
	DriverAMQP = "amqp"
)

// Sender delivers a password reset mail
type Sender interface {
	SendPasswordReset(ctx context.Context, to, token, displayName string) error
}

// ResetMessage is the rendered content of a reset mail
type ResetMessage struct {
	To          string `json:"to"`
	DisplayName string `json:"display_name"`
	Subject     string `json:"subject"`
	ResetURL    string `json:"reset_url"`
	Body        string `json:"body"`
}

// BuildResetMessage renders the reset mail for a recipient
func BuildResetMessage(baseURL, to, token, displayName string) ResetMessage {
	link := strings.TrimRight(baseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)

	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\n", displayName)
	b.WriteString("Recibimos una solicitud para restablecer tu contraseña.\n")
	b.WriteString("Usa el siguiente enlace para elegir una nueva. El enlace expira en 1 hora.\n\n")
	b.WriteString(link + "\n\n")
	b.WriteString("Si no solicitaste este cambio, ignora este mensaje.\n")

	return ResetMessage{
		To:          to,
		DisplayName: displayName,
		Subject:     "Restablecer contraseña",
		ResetURL:    link,
		Body:        b.String(),
	}
}

// New builds the Sender selected by cfg.Driver. It returns a nil Sender and
// no error when no driver is configured.
func New(cfg config.MailConfig, baseURL string, logger *slog.Logger) (Sender, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Driver {
	case "":
		logger.Warn("Mail driver not configured; password recovery is disabled")
		return nil, nil
	case DriverSMTP:
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("mail driver smtp requires SMTP_HOST")
		}
		return NewSMTPSender(cfg, baseURL, logger), nil
	case DriverAMQP:
		if cfg.AMQPURL == "" {
			return nil, fmt.Errorf("mail driver amqp requires AMQP_URL")
		}
		return NewAMQPSender(cfg, baseURL, logger), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}
