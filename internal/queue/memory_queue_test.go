package queue

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueuePushPop(t *testing.T) {
	q := NewMemoryQueue(10, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, "task-1"))

	size, err := q.Size(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, size)

	taskID, err := q.PopBlocking(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, "task-1", taskID)
}

func TestMemoryQueuePopTimeout(t *testing.T) {
	q := NewMemoryQueue(10, zerolog.Nop())
	taskID, err := q.PopBlocking(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "", taskID)
}

func TestMemoryQueueDropsWhenFull(t *testing.T) {
	q := NewMemoryQueue(1, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, "task-1"))
	require.NoError(t, q.Push(ctx, "task-2")) // dropped, not an error

	size, err := q.Size(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, size)
}
