package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/sicko7947/hrflow"
)

// MaxPriority is the x-max-priority declared on every queue
const MaxPriority = 10

// AMQPBus is an hrflow.Bus on RabbitMQ. Each destination maps to a durable
// queue on the default exchange.
type AMQPBus struct {
	conn     *amqp.Connection
	pub      *amqp.Channel
	pubMu    sync.Mutex
	declared map[string]bool
	prefetch int
	logger   zerolog.Logger

	consumers sync.WaitGroup
	closeOnce sync.Once
}

// AMQPOption configures an AMQPBus
type AMQPOption func(*AMQPBus)

// WithAMQPLogger sets the bus logger
func WithAMQPLogger(logger zerolog.Logger) AMQPOption {
	return func(b *AMQPBus) {
		b.logger = logger
	}
}

// WithPrefetch sets the per-consumer prefetch count
func WithPrefetch(n int) AMQPOption {
	return func(b *AMQPBus) {
		b.prefetch = n
	}
}

// DialAMQP connects to the broker at url
func DialAMQP(url string, opts ...AMQPOption) (*AMQPBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}

	b := &AMQPBus{
		conn:     conn,
		pub:      ch,
		declared: make(map[string]bool),
		prefetch: 1,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

var _ hrflow.Bus = (*AMQPBus)(nil)

func queueArgs() amqp.Table {
	return amqp.Table{"x-max-priority": int32(MaxPriority)}
}

func declareQueue(ch *amqp.Channel, destination string) error {
	_, err := ch.QueueDeclare(destination, true, false, false, false, queueArgs())
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", destination, err)
	}
	return nil
}

func newPublishing(body []byte, priority uint8) amqp.Publishing {
	if priority > MaxPriority {
		priority = MaxPriority
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Priority:     priority,
		MessageId:    uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
}

// Publish sends body to the destination queue, declaring it on first use
func (b *AMQPBus) Publish(ctx context.Context, destination string, body []byte, priority uint8) error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	if !b.declared[destination] {
		if err := declareQueue(b.pub, destination); err != nil {
			return err
		}
		b.declared[destination] = true
	}

	if err := b.pub.PublishWithContext(ctx, "", destination, false, false, newPublishing(body, priority)); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", destination, err)
	}
	return nil
}

// Subscribe starts a consumer on its own channel. Deliveries are acked when
// the handler succeeds; a failed first delivery is requeued once, a failed
// redelivery is dropped. The consumer stops when ctx is cancelled.
func (b *AMQPBus) Subscribe(ctx context.Context, destination string, handler hrflow.MessageHandler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}

	if err := ch.Qos(b.prefetch, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("failed to set qos: %w", err)
	}

	if err := declareQueue(ch, destination); err != nil {
		ch.Close()
		return err
	}

	deliveries, err := ch.Consume(destination, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to consume %s: %w", destination, err)
	}

	b.consumers.Add(1)
	go func() {
		defer b.consumers.Done()
		defer ch.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				b.handle(ctx, destination, d, handler)
			}
		}
	}()

	b.logger.Info().Str("destination", destination).Msg("Consumer started")
	return nil
}

func (b *AMQPBus) handle(ctx context.Context, destination string, d amqp.Delivery, handler hrflow.MessageHandler) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panicked: %v", r)
			}
		}()
		return handler(ctx, d.Body)
	}()

	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			b.logger.Warn().Err(ackErr).Str("destination", destination).Msg("Failed to ack message")
		}
		return
	}

	requeue := !d.Redelivered
	b.logger.Warn().
		Err(err).
		Str("destination", destination).
		Str("message_id", d.MessageId).
		Bool("requeue", requeue).
		Msg("Message handler failed")
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		b.logger.Warn().Err(nackErr).Str("destination", destination).Msg("Failed to nack message")
	}
}

// Close closes the connection and waits for consumers to exit
func (b *AMQPBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.pubMu.Lock()
		b.pub.Close()
		b.pubMu.Unlock()
		err = b.conn.Close()
		b.consumers.Wait()
	})
	return err
}
