package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilPublisherIsNoop(t *testing.T) {
	var p *RedisPublisher
	assert.NoError(t, p.Publish(context.Background(), Event{EventType: DecisionRequested}))
	assert.NoError(t, NewRedisPublisher(nil).Publish(context.Background(), Event{EventType: DecisionRequested}))
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "crm:governance:decision.approved", Channel(DecisionApproved))
}

func TestPublishDeliversEnvelope(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, Channel(MutationBlocked))
	defer func() { _ = sub.Close() }()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	actor := uuid.New()
	event := Event{
		EventType:  MutationBlocked,
		TenantID:   "acme",
		EntityType: "opportunity",
		EntityID:   uuid.New(),
		ActorID:    &actor,
		Data:       map[string]interface{}{"request_id": "r-1"},
	}
	require.NoError(t, NewRedisPublisher(rdb).Publish(ctx, event))

	select {
	case msg := <-sub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, MutationBlocked, got.EventType)
		assert.Equal(t, event.EntityID, got.EntityID)
		assert.Equal(t, actor, *got.ActorID)
		assert.Equal(t, "r-1", got.Data["request_id"])
		assert.False(t, got.OccurredAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

type recorder struct {
	events chan Event
}

func (r *recorder) Publish(_ context.Context, e Event) error {
	r.events <- e
	return nil
}

func TestPublishAsync(t *testing.T) {
	r := &recorder{events: make(chan Event, 1)}
	PublishAsync(r, Event{EventType: LeadContacted})

	select {
	case e := <-r.events:
		assert.Equal(t, LeadContacted, e.EventType)
	case <-time.After(time.Second):
		t.Fatal("async publish did not run")
	}

	PublishAsync(nil, Event{EventType: LeadContacted})
}
