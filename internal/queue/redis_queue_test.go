package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestRedisQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisQueue(client, "notification:queue"), mr
}

func TestRedisQueuePushPop(t *testing.T) {
	q, _ := newTestRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, "task-1"))

	size, err := q.Size(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, size)

	taskID, err := q.PopBlocking(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, "task-1", taskID)
}

func TestRedisQueuePopTimeoutReturnsEmpty(t *testing.T) {
	q, _ := newTestRedisQueue(t)
	taskID, err := q.PopBlocking(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "", taskID)
}

func TestFailoverQueueFallsBackOnPrimaryError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	primary := NewRedisQueue(client, "notification:queue")
	fallback := NewMemoryQueue(10, zerolog.Nop())
	fq := NewFailoverQueue(primary, fallback, zerolog.Nop())

	ctx := context.Background()
	require.NoError(t, fq.Push(ctx, "task-1"))

	mr.Close() // simulate redis outage

	require.NoError(t, fq.Push(ctx, "task-2"))

	taskID, err := fq.PopBlocking(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, "task-1", taskID)
}
