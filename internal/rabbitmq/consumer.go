package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDrop marks a message that can never be handled. It is rejected
// without requeue instead of being redelivered forever.
var ErrDrop = errors.New("drop message")

type HandlerFunc func(ctx context.Context, body []byte) error

// acknowledger is the part of amqp.Delivery the worker needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type Consumer struct {
	ch             *amqp.Channel
	log            *slog.Logger
	queueName      string
	workerPoolSize int
}

func NewConsumer(ch *amqp.Channel, log *slog.Logger, queueName string, poolSize int) *Consumer {
	if poolSize < 1 {
		poolSize = 1
	}
	return &Consumer{
		ch:             ch,
		log:            log,
		queueName:      queueName,
		workerPoolSize: poolSize,
	}
}

// Consume starts delivering messages to handler on up to workerPoolSize
// goroutines. It returns once the subscription is set up; the returned
// channel is closed after ctx is done and in-flight handlers finish.
func (c *Consumer) Consume(ctx context.Context, handler HandlerFunc) (<-chan struct{}, error) {
	const op = "rabbitmq.Consume"

	if err := c.ch.Qos(c.workerPoolSize, 0, false); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	msgs, err := c.ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.dispatch(ctx, msgs, handler)
	}()
	return done, nil
}

func (c *Consumer) dispatch(ctx context.Context, msgs <-chan amqp.Delivery, handler HandlerFunc) {
	var wg sync.WaitGroup
	defer wg.Wait()
	semaphore := make(chan struct{}, c.workerPoolSize)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			wg.Add(1)
			semaphore <- struct{}{}
			go func(m amqp.Delivery) {
				defer wg.Done()
				defer func() { <-semaphore }()
				c.handle(ctx, m.Body, m, handler)
			}(msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte, ack acknowledger, handler HandlerFunc) {
	const op = "rabbitmq.handle"

	err := handler(ctx, body)
	switch {
	case err == nil:
		if err := ack.Ack(false); err != nil {
			c.log.Error("ack failed", slog.String("op", op), slog.Any("error", err))
		}
	case errors.Is(err, ErrDrop):
		c.log.Warn("dropping message", slog.String("op", op), slog.Any("error", err))
		if err := ack.Nack(false, false); err != nil {
			c.log.Error("nack failed", slog.String("op", op), slog.Any("error", err))
		}
	default:
		c.log.Error("handler failed, requeueing", slog.String("op", op), slog.Any("error", err))
		if err := ack.Nack(false, true); err != nil {
			c.log.Error("nack failed", slog.String("op", op), slog.Any("error", err))
		}
	}
}
