package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tcglibrary/catalog/internal/config"
	"github.com/tcglibrary/catalog/internal/metrics"
)

// AMQPSender publishes reset mails to a durable queue consumed by a separate
// delivery worker. A successful publish counts as a successful send.
type AMQPSender struct {
	url     string
	queue   string
	baseURL string
	logger  *slog.Logger
}

// NewAMQPSender creates a new AMQPSender instance
func NewAMQPSender(cfg config.MailConfig, baseURL string, logger *slog.Logger) *AMQPSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPSender{
		url:     cfg.AMQPURL,
		queue:   cfg.Queue,
		baseURL: baseURL,
		logger:  logger,
	}
}

// SendPasswordReset publishes the rendered reset mail
func (s *AMQPSender) SendPasswordReset(ctx context.Context, to, token, displayName string) error {
	pub, err := s.publishing(BuildResetMessage(s.baseURL, to, token, displayName))
	if err != nil {
		return err
	}

	if err := s.publish(ctx, pub); err != nil {
		metrics.MailSendTotal.WithLabelValues(DriverAMQP, "error").Inc()
		s.logger.Error("AMQP publish failed", "queue", s.queue, "error", err)
		return err
	}

	metrics.MailSendTotal.WithLabelValues(DriverAMQP, "success").Inc()
	return nil
}

func (s *AMQPSender) publishing(msg ResetMessage) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal reset message: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         "password_reset",
		Body:         body,
	}, nil
}

func (s *AMQPSender) publish(ctx context.Context, pub amqp.Publishing) error {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}

	if err := ch.PublishWithContext(ctx, "", s.queue, false, false, pub); err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}
