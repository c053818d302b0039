package waqueue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestEnqueueAppendsToStream(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	q := NewQueue(client)

	err := q.Enqueue(ctx, "clinic-1", "15551234567@s.whatsapp.net", "hello", "msg-1", nil)
	require.NoError(t, err)

	depth, err := q.QueueDepth(ctx, "clinic-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), depth)
}

func TestEnqueueDeduplicatesMessageID(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	q := NewQueue(client)

	require.NoError(t, q.Enqueue(ctx, "clinic-1", "155", "hello", "dup-1", nil))
	err := q.Enqueue(ctx, "clinic-1", "155", "hello again", "dup-1", nil)
	require.ErrorIs(t, err, ErrIdempotentDuplicate)

	depth, err := q.QueueDepth(ctx, "clinic-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), depth)
}

func TestEnqueueGeneratesMessageIDWhenEmpty(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	q := NewQueue(client)

	require.NoError(t, q.Enqueue(ctx, "clinic-1", "155", "hello", "", nil))
	require.NoError(t, q.Enqueue(ctx, "clinic-1", "155", "hello", "", nil))

	depth, err := q.QueueDepth(ctx, "clinic-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), depth)
}

func TestDLQDepthStartsAtZero(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	q := NewQueue(client)

	depth, err := q.DLQDepth(ctx, "clinic-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), depth)
}
