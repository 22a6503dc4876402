// Command mailer delivers price alert emails queued on RabbitMQ over SMTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Amitrawat12/daily-glam/internal/config"
	"github.com/Amitrawat12/daily-glam/internal/logging"
	"github.com/Amitrawat12/daily-glam/internal/models"
	"github.com/Amitrawat12/daily-glam/internal/notifier"
	"github.com/Amitrawat12/daily-glam/internal/rabbitmq"
	"github.com/Amitrawat12/daily-glam/internal/validator"
)

type sender interface {
	Send(ctx context.Context, msg models.EmailMessage) error
}

func main() {
	_ = godotenv.Load()
	log := logging.Setup(os.Getenv("APP_ENV"))

	cfg, err := config.Load()
	if err != nil {
		logging.Critical("Critical error loading configuration", "error", err)
		os.Exit(1)
	}
	if cfg.AMQP.URL == "" || cfg.Mail.Host == "" {
		logging.Critical("AMQP_URL and SMTP_HOST are required to run the mailer")
		os.Exit(1)
	}

	client, err := rabbitmq.New(cfg.AMQP.URL, cfg.AMQP.Queue)
	if err != nil {
		logging.Critical("Critical error connecting to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := rabbitmq.NewConsumer(client.Channel, log, cfg.AMQP.Queue, cfg.AMQP.WorkerPoolSize)
	done, err := consumer.Consume(ctx, newHandler(notifier.NewSMTPMailer(cfg.Mail), validator.New()))
	if err != nil {
		logging.Critical("Critical error subscribing to mail queue", "queue", cfg.AMQP.Queue, "error", err)
		os.Exit(1)
	}
	slog.Info("Mailer started", "queue", cfg.AMQP.Queue, "workers", cfg.AMQP.WorkerPoolSize)

	<-done
	slog.Info("Mailer stopped")
}

// newHandler decodes one queued message and sends it. Malformed messages
// are dropped; delivery failures are requeued.
func newHandler(s sender, v *validator.Validator) rabbitmq.HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var msg models.EmailMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: decode email: %v", rabbitmq.ErrDrop, err)
		}
		if err := v.ValidateStruct(msg); err != nil {
			return fmt.Errorf("%w: %v", rabbitmq.ErrDrop, err)
		}

		if err := s.Send(ctx, msg); err != nil {
			if errors.Is(err, notifier.ErrMailerDisabled) {
				return fmt.Errorf("%w: %v", rabbitmq.ErrDrop, err)
			}
			return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
		}
		slog.Info("Email delivered", "to", msg.To, "subject", msg.Subject)
		return nil
	}
}
