package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/Amitrawat12/daily-glam/internal/config"
	"github.com/Amitrawat12/daily-glam/internal/models"
	"github.com/Amitrawat12/daily-glam/internal/util"
)

// ErrMailerDisabled is returned by Send when no SMTP host is configured.
var ErrMailerDisabled = errors.New("smtp mailer is not configured")

const defaultRetryDelay = 2 * time.Second

type smtpDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer delivers alert emails directly over SMTP.
type SMTPMailer struct {
	dialer     smtpDialer
	from       string
	retries    int
	retryDelay time.Duration
}

func NewSMTPMailer(cfg config.Mail) *SMTPMailer {
	m := &SMTPMailer{
		from:       cfg.From,
		retries:    cfg.Retries,
		retryDelay: defaultRetryDelay,
	}
	if cfg.Host != "" {
		m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return m
}

// Send builds a plain text message and retries transient SMTP failures with backoff.
func (m *SMTPMailer) Send(ctx context.Context, msg models.EmailMessage) error {
	if m.dialer == nil {
		return ErrMailerDisabled
	}

	message := gomail.NewMessage()
	message.SetHeader("From", m.from)
	message.SetHeader("To", msg.To)
	message.SetHeader("Subject", msg.Subject)
	message.SetBody("text/plain", msg.Body)

	err := util.RetryWithBackoff(ctx, m.retries, m.retryDelay, func(attempt int) error {
		if attempt > 0 {
			slog.Warn("Retrying email delivery", "to", msg.To, "attempt", attempt)
		}
		return m.dialer.DialAndSend(message)
	})
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return nil
}
