package notifier

import (
	"context"
	"fmt"

	"github.com/Amitrawat12/daily-glam/internal/models"
)

// Publisher puts a JSON document on the mail queue.
type Publisher interface {
	PublishJSON(ctx context.Context, msg any) error
}

// QueueMailer hands alert emails to the mailer worker through RabbitMQ.
// A successful publish counts as a confirmed send.
type QueueMailer struct {
	publisher Publisher
}

func NewQueueMailer(p Publisher) *QueueMailer {
	return &QueueMailer{publisher: p}
}

func (q *QueueMailer) Send(ctx context.Context, msg models.EmailMessage) error {
	if err := q.publisher.PublishJSON(ctx, msg); err != nil {
		return fmt.Errorf("failed to queue email to %s: %w", msg.To, err)
	}
	return nil
}
