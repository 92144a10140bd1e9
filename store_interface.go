package hrflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Store is the key-value persistence contract used by the core.
// Implementations live in the store package; the interface is defined here
// to avoid import cycles between hrflow and store.
type Store interface {
	// Get returns ErrKeyNotFound when the key is absent or expired
	Get(ctx context.Context, key string) ([]byte, error)
	// Set overwrites the value; a zero ttl keeps the value until deleted
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Set-membership operations for index keys. Add and remove are atomic
	// per member in every implementation.
	AddMember(ctx context.Context, key, member string) error
	RemoveMember(ctx context.Context, key, member string) error
	Members(ctx context.Context, key string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}

// Publisher is the fire-and-forget side of the message channel
type Publisher interface {
	Publish(ctx context.Context, destination string, body []byte, priority uint8) error
}

// MessageHandler processes one message delivered from a destination
type MessageHandler func(ctx context.Context, body []byte) error

// Subscriber registers handlers for destinations
type Subscriber interface {
	Subscribe(ctx context.Context, destination string, handler MessageHandler) error
}

// Bus is a channel implementation that can both publish and deliver
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// GetJSON loads key and decodes it into v
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}

// PublishJSON encodes v and publishes it
func PublishJSON(ctx context.Context, p Publisher, destination string, v any, priority uint8) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", destination, err)
	}
	return p.Publish(ctx, destination, body, priority)
}
