package redisfeed

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisFeed_PublishReachesSubscriber(t *testing.T) {
	mr := miniredis.RunT(t)
	f := New(mr.Addr())

	ctx := context.Background()
	sub, err := f.Subscribe(ctx, 7)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, f.Publish(ctx, 7, []byte(`{"id":1}`)))

	select {
	case b := <-sub.Events():
		require.Equal(t, []byte(`{"id":1}`), b)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for feed event")
	}
}

func TestRedisFeed_ScopedByDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	f := New(mr.Addr())

	ctx := context.Background()
	subA, err := f.Subscribe(ctx, 1)
	require.NoError(t, err)
	defer subA.Close()

	// вставка по другой доставке не должна долететь
	require.NoError(t, f.Publish(ctx, 2, []byte("other")))
	require.NoError(t, f.Publish(ctx, 1, []byte("mine")))

	select {
	case b := <-subA.Events():
		require.Equal(t, []byte("mine"), b)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for feed event")
	}
}

func TestRedisFeed_CloseEndsEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	f := New(mr.Addr())

	sub, err := f.Subscribe(context.Background(), 3)
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.Events():
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after Close")
	}
}
