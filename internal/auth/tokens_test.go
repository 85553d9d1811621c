package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/vaultcore/internal/account"
	"github.com/dmitrijs2005/vaultcore/internal/common"
)

func signedToken(t *testing.T, validity time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestTokenStore_SetAndHas(t *testing.T) {
	s := NewTokenStore(nil)
	ctx := context.Background()
	id := account.NewUserID()

	require.False(t, s.HasAccessToken(id))

	require.NoError(t, s.SetAccessToken(ctx, id, signedToken(t, time.Hour)))
	require.True(t, s.HasAccessToken(id))

	raw, ok := s.AccessToken(id)
	require.True(t, ok)
	require.NotEmpty(t, raw)
}

func TestTokenStore_ExpiredTokenDoesNotCount(t *testing.T) {
	s := NewTokenStore(nil)
	id := account.NewUserID()

	require.NoError(t, s.SetAccessToken(context.Background(), id, signedToken(t, -1*time.Minute)))
	require.False(t, s.HasAccessToken(id))
}

func TestTokenStore_RejectsMalformedToken(t *testing.T) {
	s := NewTokenStore(nil)
	err := s.SetAccessToken(context.Background(), account.NewUserID(), "not.a.jwt")
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestTokenStore_ClearNotifies(t *testing.T) {
	s := NewTokenStore(nil)
	ctx := context.Background()
	id := account.NewUserID()

	var changed []account.UserID
	s.OnChange(func(u account.UserID) { changed = append(changed, u) })

	require.NoError(t, s.SetAccessToken(ctx, id, signedToken(t, time.Hour)))
	s.ClearAccessToken(ctx, id)
	s.ClearAccessToken(ctx, id) // no token present, no notification

	require.Equal(t, []account.UserID{id, id}, changed)
	require.False(t, s.HasAccessToken(id))
}

func TestKeyStore_SetHasClear(t *testing.T) {
	s := NewKeyStore()
	id := account.NewUserID()

	key := []byte{1, 2, 3, 4}
	s.SetUserKey(id, key)
	require.True(t, s.HasUserKey(id))

	// The store must hold its own copy.
	key[0] = 99
	s.ClearUserKey(id)
	require.False(t, s.HasUserKey(id))
}
