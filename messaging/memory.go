// Package messaging provides channel implementations for hrflow: an
// in-process bus and a RabbitMQ bus.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sicko7947/hrflow"
)

// ErrBusClosed is returned when publishing to a closed bus
var ErrBusClosed = errors.New("bus is closed")

// DefaultHistoryLimit is how many published messages a MemoryBus keeps
const DefaultHistoryLimit = 1000

// Message is a published message as recorded by the memory bus
type Message struct {
	Destination string
	Body        []byte
	Priority    uint8
	PublishedAt time.Time
}

// MemoryBus is an in-process hrflow.Bus. Each delivery runs in its own
// goroutine so a handler may publish without deadlocking the publisher.
type MemoryBus struct {
	mu        sync.RWMutex
	handlers  map[string][]hrflow.MessageHandler
	published []Message
	limit     int
	closed    bool
	inflight  sync.WaitGroup
	logger    zerolog.Logger
}

// MemoryBusOption configures a MemoryBus
type MemoryBusOption func(*MemoryBus)

// WithMemoryBusLogger sets the logger used for handler failures
func WithMemoryBusLogger(logger zerolog.Logger) MemoryBusOption {
	return func(b *MemoryBus) {
		b.logger = logger
	}
}

// WithHistoryLimit caps how many published messages are kept for
// Published. Zero or less disables recording.
func WithHistoryLimit(n int) MemoryBusOption {
	return func(b *MemoryBus) {
		b.limit = n
	}
}

// NewMemoryBus creates an empty in-process bus
func NewMemoryBus(opts ...MemoryBusOption) *MemoryBus {
	b := &MemoryBus{
		handlers: make(map[string][]hrflow.MessageHandler),
		limit:    DefaultHistoryLimit,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ hrflow.Bus = (*MemoryBus)(nil)

// Publish records the message, within the history limit, and delivers it to every subscriber of destination
func (b *MemoryBus) Publish(ctx context.Context, destination string, body []byte, priority uint8) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	msg := Message{
		Destination: destination,
		Body:        append([]byte(nil), body...),
		Priority:    priority,
		PublishedAt: time.Now(),
	}
	b.record(msg)
	handlers := append([]hrflow.MessageHandler(nil), b.handlers[destination]...)
	b.inflight.Add(len(handlers))
	b.mu.Unlock()

	// Deliveries outlive the publisher's request
	deliverCtx := context.WithoutCancel(ctx)
	for _, h := range handlers {
		go b.deliver(deliverCtx, destination, msg.Body, h)
	}

	return nil
}

// record keeps the newest limit messages. Caller holds mu.
func (b *MemoryBus) record(msg Message) {
	if b.limit <= 0 {
		return
	}
	if len(b.published) >= b.limit {
		drop := len(b.published) - b.limit + 1
		b.published = append(b.published[:0:0], b.published[drop:]...)
	}
	b.published = append(b.published, msg)
}

func (b *MemoryBus) deliver(ctx context.Context, destination string, body []byte, h hrflow.MessageHandler) {
	defer b.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("destination", destination).
				Interface("panic", r).
				Msg("Message handler panicked")
		}
	}()

	if err := h(ctx, body); err != nil {
		b.logger.Warn().
			Err(err).
			Str("destination", destination).
			Msg("Message handler failed")
	}
}

// Subscribe registers handler for destination
func (b *MemoryBus) Subscribe(ctx context.Context, destination string, handler hrflow.MessageHandler) error {
	if handler == nil {
		return fmt.Errorf("nil handler for %s", destination)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	b.handlers[destination] = append(b.handlers[destination], handler)
	return nil
}

// Wait blocks until every delivery started so far, and any it triggered, has finished
func (b *MemoryBus) Wait() {
	b.inflight.Wait()
}

// Published returns the messages sent to destination, oldest first.
// An empty destination returns every message.
func (b *MemoryBus) Published(destination string) []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Message
	for _, m := range b.published {
		if destination == "" || m.Destination == destination {
			out = append(out, m)
		}
	}
	return out
}

// Reset forgets recorded messages; subscriptions are kept
func (b *MemoryBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = nil
}

// Close rejects further publishes and waits for in-flight deliveries
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.inflight.Wait()
	return nil
}
