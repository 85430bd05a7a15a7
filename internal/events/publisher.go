// Package events publishes governance events to Redis channels.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const channelPrefix = "crm:governance:"

const (
	DecisionRequested    = "decision.requested"
	DecisionStepApproved = "decision.step_approved"
	DecisionApproved     = "decision.approved"
	DecisionRejected     = "decision.rejected"
	LeadStatusChanged    = "lead.status_changed"
	LeadContacted        = "lead.contacted"
	MutationBlocked      = "mutation.blocked"
)

type Event struct {
	EventType  string                 `json:"event_type"`
	TenantID   string                 `json:"tenant_id"`
	EntityType string                 `json:"entity_type"`
	EntityID   uuid.UUID              `json:"entity_id"`
	ActorID    *uuid.UUID             `json:"actor_id,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// Publisher is what services depend on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Channel is the Redis channel for an event type.
func Channel(eventType string) string {
	return channelPrefix + eventType
}

// RedisPublisher is a no-op when constructed without a client.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.EventType, err)
	}
	return p.rdb.Publish(ctx, Channel(event.EventType), payload).Err()
}

// PublishAsync fires the event without blocking the caller. Failures are logged.
func PublishAsync(pub Publisher, event Event) {
	if pub == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := pub.Publish(ctx, event); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"event_type": event.EventType,
				"entity_id":  event.EntityID,
			}).Warn("Failed to publish governance event")
		}
	}()
}
