package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/vaultcore/internal/account"
)

func setupStore(t *testing.T) *Bolt {
	t.Helper()
	b, err := NewBolt(filepath.Join(t.TempDir(), "state.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBolt_RoundTrip(t *testing.T) {
	b := setupStore(t)
	ctx := context.Background()

	u1 := account.NewUserID()
	u2 := account.NewUserID()
	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, b.SaveAccount(ctx, u1, account.Account{
		Status: account.StatusLocked,
		Info:   account.Info{Email: "a@example.com", Name: "A", EmailVerified: true},
	}))
	require.NoError(t, b.SaveAccount(ctx, u2, account.Account{Status: account.StatusLoggedOut}))
	require.NoError(t, b.SaveActivity(ctx, u1, at))
	require.NoError(t, b.SaveActiveUser(ctx, u1))

	snap, err := b.Load(ctx)
	require.NoError(t, err)

	require.Len(t, snap.Accounts, 2)
	require.Equal(t, account.StatusLocked, snap.Accounts[u1].Status)
	require.Equal(t, "a@example.com", snap.Accounts[u1].Info.Email)
	require.True(t, snap.Accounts[u1].Info.EmailVerified)
	require.True(t, snap.Activity[u1].Equal(at))
	require.Equal(t, u1, snap.ActiveUserID)
}

func TestBolt_ClearActiveUser(t *testing.T) {
	b := setupStore(t)
	ctx := context.Background()

	u := account.NewUserID()
	require.NoError(t, b.SaveActiveUser(ctx, u))
	require.NoError(t, b.SaveActiveUser(ctx, ""))

	snap, err := b.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, snap.ActiveUserID)
}

func TestBolt_RemoveActivity(t *testing.T) {
	b := setupStore(t)
	ctx := context.Background()

	u := account.NewUserID()
	require.NoError(t, b.SaveActivity(ctx, u, time.Now()))
	require.NoError(t, b.RemoveActivity(ctx, u))

	snap, err := b.Load(ctx)
	require.NoError(t, err)
	_, ok := snap.Activity[u]
	require.False(t, ok)
}
