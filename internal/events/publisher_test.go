package events_test

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

	"github.com/Fusionaimcp4/localboxs/internal/events"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPublisher_NewPublisher_RequiresClient(t *testing.T) {
	assert.Nil(t, events.NewPublisher(nil, nil))
}

func TestPublisher_Publish_NilReceiverIsNoOp(t *testing.T) {
	var pub *events.Publisher
	require.NoError(t, pub.Publish(context.Background(), events.DemoEvent{EventType: events.DemoCreated}))
	pub.PublishAsync(events.DemoEvent{EventType: events.DemoCreated})
}

func TestPublisher_Publish_WritesEnvelope(t *testing.T) {
	client := newRedis(t)
	pub := events.NewPublisher(client, nil)

	err := pub.Publish(context.Background(), events.DemoEvent{
		EventType: events.DemoCreated,
		Slug:      "acme",
		Payload:   events.OnboardedPayload{Business: "Acme", InboxID: 7},
	})
	require.NoError(t, err)

	msgs, err := client.XRange(context.Background(), events.StreamName, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var got struct {
		EventID   uuid.UUID      `json:"event_id"`
		EventType string         `json:"event_type"`
		Slug      string         `json:"slug"`
		Timestamp time.Time      `json:"timestamp"`
		Payload   map[string]any `json:"payload"`
	}
	raw, ok := msgs[0].Values["event"].(string)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(raw), &got))

	assert.NotEqual(t, uuid.Nil, got.EventID)
	assert.Equal(t, "DEMO_CREATED", got.EventType)
	assert.Equal(t, "acme", got.Slug)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, "Acme", got.Payload["business"])
	assert.InDelta(t, 7, got.Payload["inbox_id"], 0)
}

func TestPublisher_PublishAsync(t *testing.T) {
	client := newRedis(t)
	pub := events.NewPublisher(client, nil)

	pub.PublishAsync(events.DemoEvent{EventType: events.DemoUpdated, Slug: "acme"})

	assert.Eventually(t, func() bool {
		n, err := client.XLen(context.Background(), events.StreamName).Result()
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)
}
