package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"cross-border-escrow/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

const eventChannel = "escrow.events"

// EventPublisher implements ports.EventPublisher over Redis pub/sub.
// Subscribers (UI feeds, audit consumers) listen on a single channel and
// filter by event type. Delivery is best-effort; there is no replay.
type EventPublisher struct {
	client *goredis.Client
}

// NewEventPublisher creates a new Redis-backed event publisher.
func NewEventPublisher(client *goredis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

// Publish serializes the event as JSON and publishes it on the escrow
// events channel.
func (p *EventPublisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, eventChannel, body).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
