package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSimple(t *testing.T) {
	ch := NewBroadcastChannel[int]()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub1 := ch.Subscribe(ctx, 1)
	sub2 := ch.Subscribe(ctx, 1)

	ch.Publish(1)

	require.Equal(t, 1, <-sub1)
	require.Equal(t, 1, <-sub2)
}

func TestEmpty(t *testing.T) {
	ch := NewBroadcastChannel[int]()
	ch.Publish(2)
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	ch := NewBroadcastChannel[int]()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := ch.Subscribe(ctx, 1)
	ch.Publish(1)
	ch.Publish(2) // Dropped

	require.Equal(t, 1, <-sub)
	select {
	case v := <-sub:
		t.Fatalf("unexpected value %d", v)
	default:
	}
}

func TestCancelUnsubscribes(t *testing.T) {
	ch := NewBroadcastChannel[int]()

	ctx, cancel := context.WithCancel(context.Background())
	sub := ch.Subscribe(ctx, 1)
	require.Equal(t, 1, ch.Subscribers())

	cancel()

	require.Eventually(t, func() bool {
		return ch.Subscribers() == 0
	}, time.Second, time.Millisecond)

	_, ok := <-sub
	require.False(t, ok)
}

func TestClose(t *testing.T) {
	ch := NewBroadcastChannel[int]()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub1 := ch.Subscribe(ctx, 0)
	sub2 := ch.Subscribe(ctx, 0)

	ch.CloseAll()

	_, ok := <-sub1
	require.False(t, ok)
	_, ok = <-sub2
	require.False(t, ok)
	require.Zero(t, ch.Subscribers())
}

func TestSubscribeAfterClose(t *testing.T) {
	ch := NewBroadcastChannel[int]()
	ch.CloseAll()

	sub := ch.Subscribe(context.Background(), 1)
	_, ok := <-sub
	require.False(t, ok)
	require.Zero(t, ch.Subscribers())
}
