package audit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStreamSinkRoundTrip(t *testing.T) {
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sink := &RedisStreamSink{Client: client, Stream: "kyc:audit"}
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, sink.Write(ctx, Event{ID: "e1", ActorID: "owner-1", Action: ActionDisclosureApproved, TargetType: "disclosure", TargetID: "req-1", OccurredAt: at}))
	require.NoError(t, sink.Write(ctx, Event{ID: "e2", ActorID: "org-1", Action: ActionAccessAllowed, TargetType: "document", TargetID: "doc-1", OccurredAt: at}))

	n, err := client.XLen(ctx, "kyc:audit").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := sink.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e2", got[0].ID)
	assert.Equal(t, ActionDisclosureApproved, got[1].Action)
	assert.True(t, at.Equal(got[1].OccurredAt))
}

func TestRedisStreamSinkUnavailable(t *testing.T) {
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	m.Close()

	sink := &RedisStreamSink{Client: client, Stream: "kyc:audit"}
	err := sink.Write(context.Background(), Event{ID: "e1"})
	assert.Error(t, err)
}
