package queue_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quote-editor/internal/queue"
)

func TestMoveToDLQAfterMaxAttempts(t *testing.T) {
	client := newRedis(t)

	store := queue.NewRedisDLQ(client, "dlq")
	enq := queue.Enqueuer{R: client, Prefix: "dlq", MaxAttempts: 2}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := zerolog.New(io.Discard)
	worker := queue.Worker{
		R:                 client,
		Prefix:            "dlq",
		Kind:              queue.KindReprice,
		Concurrency:       1,
		VisibilityTimeout: 120 * time.Millisecond,
		RetryBase:         20 * time.Millisecond,
		Store:             store,
		Logger:            &log,
		Handler: func(context.Context, queue.Task) error {
			return errors.New("backend down")
		},
	}

	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()

	_, err := queue.EnqueueReprice(context.Background(), enq, 11)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		count, err := store.Count(context.Background(), queue.KindReprice)
		return err == nil && count == 1
	}, 2*time.Second, 20*time.Millisecond)

	entries, err := store.List(context.Background(), queue.KindReprice, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry := entries[0]
	require.Equal(t, queue.KindReprice, entry.Kind)
	require.Equal(t, "11", entry.IdempotencyKey)
	require.Equal(t, 2, entry.Attempts)
	require.NotNil(t, entry.LastError)
	require.Equal(t, "backend down", *entry.LastError)

	cancel()
	<-done
}

func TestRedisDLQListAndDelete(t *testing.T) {
	client := newRedis(t)
	store := queue.NewRedisDLQ(client, "store")
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	first, err := store.Insert(ctx, queue.DLQEntry{Kind: "a", Payload: []byte("{}"), CreatedAt: base})
	require.NoError(t, err)
	second, err := store.Insert(ctx, queue.DLQEntry{Kind: "a", Payload: []byte("{}"), CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	_, err = store.Insert(ctx, queue.DLQEntry{Kind: "b", Payload: []byte("{}"), CreatedAt: base.Add(2 * time.Minute)})
	require.NoError(t, err)

	all, err := store.Count(ctx, "")
	require.NoError(t, err)
	require.EqualValues(t, 3, all)

	entries, err := store.List(ctx, "a", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, second, entries[0].ID)
	require.Equal(t, first, entries[1].ID)

	require.NoError(t, store.Delete(ctx, first))
	require.NoError(t, store.Delete(ctx, first))
	_, err = store.Get(ctx, first)
	require.ErrorIs(t, err, queue.ErrDLQEntryNotFound)

	n, err := store.Count(ctx, "a")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
