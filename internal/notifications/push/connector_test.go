package push

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/vaultcore/internal/account"
	"github.com/dmitrijs2005/vaultcore/internal/common"
	"github.com/dmitrijs2005/vaultcore/internal/notifications"
)

func setupBroker(t *testing.T) (*miniredis.Miniredis, *Connector) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return srv, NewConnector(nil, client)
}

func TestConnector_NilClientUnsupported(t *testing.T) {
	c := NewConnector(nil, nil)
	id := account.NewUserID()

	cur, _, cancel := c.SubscribeSupport(id)
	defer cancel()
	require.False(t, cur.Supported)
	require.NotEmpty(t, cur.Reason)

	_, err := c.Connect(context.Background(), id)
	require.ErrorIs(t, err, common.ErrNotificationsUnsupported)
}

func TestConnector_DeliversEnvelopes(t *testing.T) {
	srv, c := setupBroker(t)
	id := account.NewUserID()

	stream, err := c.Connect(context.Background(), id)
	require.NoError(t, err)
	defer stream.Close()

	srv.Publish(channelFor(id), `{"contextId":"app-7","type":2,"payload":{"id":"c1"}}`)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	env, err := stream.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, "app-7", env.OriginAppID)
	require.Equal(t, notifications.TypeSyncCipherDelete, env.Type)
	require.Equal(t, "c1", env.Payload.ID)
}

func TestConnector_SkipsMalformedMessages(t *testing.T) {
	srv, c := setupBroker(t)
	id := account.NewUserID()

	stream, err := c.Connect(context.Background(), id)
	require.NoError(t, err)
	defer stream.Close()

	srv.Publish(channelFor(id), `not json`)
	srv.Publish(channelFor(id), `{"type":10}`)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	env, err := stream.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, notifications.TypeLogOut, env.Type)
}

func TestStream_CloseUnblocksReceive(t *testing.T) {
	_, c := setupBroker(t)
	id := account.NewUserID()

	stream, err := c.Connect(context.Background(), id)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := stream.Receive(context.Background())
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, stream.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, common.ErrStreamClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Receive did not unblock on Close")
	}
}

func TestConnector_SupportChangesAreEqualityGated(t *testing.T) {
	_, c := setupBroker(t)
	id := account.NewUserID()

	cur, ch, cancel := c.SubscribeSupport(id)
	defer cancel()
	require.True(t, cur.Supported)

	// Re-recording the same state must not emit.
	c.SetSupport(id, notifications.Support{Supported: true})
	select {
	case s := <-ch:
		t.Fatalf("unexpected support emission %+v", s)
	case <-time.After(100 * time.Millisecond):
	}

	c.SetSupport(id, notifications.Support{Reason: "registration expired"})
	select {
	case s := <-ch:
		require.False(t, s.Supported)
		require.Equal(t, "registration expired", s.Reason)
	case <-time.After(time.Second):
		t.Fatal("expected a support emission")
	}

	// The unsupported state now also blocks Connect.
	_, err := c.Connect(context.Background(), id)
	require.ErrorIs(t, err, common.ErrNotificationsUnsupported)
}
