package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/vaultcore/internal/account"
)

type resolverFixture struct {
	registry *account.Registry
	tokens   *TokenStore
	keys     *KeyStore
	resolver *Resolver
}

func setupResolver(t *testing.T) *resolverFixture {
	t.Helper()
	registry := account.NewRegistry(nil, nil)
	tokens := NewTokenStore(nil)
	keys := NewKeyStore()
	return &resolverFixture{
		registry: registry,
		tokens:   tokens,
		keys:     keys,
		resolver: NewResolver(registry, tokens, keys),
	}
}

func (f *resolverFixture) signIn(t *testing.T, unlocked bool) account.UserID {
	t.Helper()
	ctx := context.Background()
	id := account.NewUserID()
	require.NoError(t, f.registry.AddAccount(ctx, id, account.Info{}))
	require.NoError(t, f.tokens.SetAccessToken(ctx, id, signedToken(t, time.Hour)))
	status := account.StatusLocked
	if unlocked {
		f.keys.SetUserKey(id, []byte("key"))
		status = account.StatusUnlocked
	}
	require.NoError(t, f.registry.SetAccountStatus(ctx, id, status))
	return id
}

func TestResolver_Derivation(t *testing.T) {
	f := setupResolver(t)

	// Unknown user: no token, logged out.
	require.Equal(t, account.StatusLoggedOut, f.resolver.StatusFor(account.NewUserID()))

	locked := f.signIn(t, false)
	require.Equal(t, account.StatusLocked, f.resolver.StatusFor(locked))

	unlocked := f.signIn(t, true)
	require.Equal(t, account.StatusUnlocked, f.resolver.StatusFor(unlocked))
}

func TestResolver_TokenRemovalMeansLoggedOut(t *testing.T) {
	f := setupResolver(t)
	id := f.signIn(t, true)

	f.tokens.ClearAccessToken(context.Background(), id)
	require.Equal(t, account.StatusLoggedOut, f.resolver.StatusFor(id))
}

func TestResolver_RegistryLogoutWins(t *testing.T) {
	f := setupResolver(t)
	id := f.signIn(t, true)

	// Token still present, but the registry recorded a logout.
	require.NoError(t, f.registry.SetAccountStatus(context.Background(), id, account.StatusLoggedOut))
	require.Equal(t, account.StatusLoggedOut, f.resolver.StatusFor(id))
}

func TestResolver_KeyPresenceSplitsLockedUnlocked(t *testing.T) {
	f := setupResolver(t)
	id := f.signIn(t, true)

	f.keys.ClearUserKey(id)
	require.Equal(t, account.StatusLocked, f.resolver.StatusFor(id))

	f.keys.SetUserKey(id, []byte("key"))
	require.Equal(t, account.StatusUnlocked, f.resolver.StatusFor(id))
}

func TestResolver_SubscribeStatus_EqualityGated(t *testing.T) {
	f := setupResolver(t)
	id := f.signIn(t, true)

	cur, ch, cancel := f.resolver.SubscribeStatus(id)
	defer cancel()
	require.Equal(t, account.StatusUnlocked, cur)

	// A key rewrite that leaves the status Unlocked must not emit.
	f.keys.SetUserKey(id, []byte("rotated"))
	select {
	case got := <-ch:
		t.Fatalf("unexpected emission %v", got)
	default:
	}

	f.keys.ClearUserKey(id)
	select {
	case got := <-ch:
		require.Equal(t, account.StatusLocked, got)
	case <-time.After(time.Second):
		t.Fatal("expected a Locked emission")
	}
}

func TestResolver_ActiveStatusAndAll(t *testing.T) {
	f := setupResolver(t)
	ctx := context.Background()

	_, ok := f.resolver.ActiveStatus()
	require.False(t, ok)

	u1 := f.signIn(t, true)
	u2 := f.signIn(t, false)
	require.NoError(t, f.registry.SwitchAccount(ctx, u1))

	status, ok := f.resolver.ActiveStatus()
	require.True(t, ok)
	require.Equal(t, account.StatusUnlocked, status)

	all := f.resolver.AllStatuses()
	require.Equal(t, account.StatusUnlocked, all[u1])
	require.Equal(t, account.StatusLocked, all[u2])
}
