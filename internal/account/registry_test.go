package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/vaultcore/internal/common"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(nil, nil)
}

func addTestAccount(t *testing.T, r *Registry, info Info) UserID {
	t.Helper()
	id := NewUserID()
	require.NoError(t, r.AddAccount(context.Background(), id, info))
	return id
}

func drain[T any](ch <-chan T) []T {
	var out []T
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}

func TestAddAccount_EmitsAndStampsActivity(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	id := NewUserID()
	before := time.Now()
	require.NoError(t, r.AddAccount(ctx, id, Info{Email: "e@example.com", Name: "n"}))

	accs := r.Accounts()
	require.Len(t, accs, 1)
	require.Equal(t, "e@example.com", accs[id].Info.Email)
	require.Equal(t, StatusLoggedOut, accs[id].Status)

	at, ok := r.LastActive(id)
	require.True(t, ok)
	require.False(t, at.Before(before))
}

func TestAddAccount_RejectsInvalidUserID(t *testing.T) {
	r := newTestRegistry(t)
	for _, id := range []UserID{"", "not-a-uuid", "123"} {
		err := r.AddAccount(context.Background(), id, Info{})
		require.ErrorIs(t, err, common.ErrInvalidUserID)
	}
	require.Empty(t, r.Accounts())
}

func TestAddAccount_ReplacePreservesStatus(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	id := addTestAccount(t, r, Info{Email: "old"})

	require.NoError(t, r.SetAccountStatus(ctx, id, StatusUnlocked))
	require.NoError(t, r.AddAccount(ctx, id, Info{Email: "new"}))

	accs := r.Accounts()
	require.Equal(t, "new", accs[id].Info.Email)
	require.Equal(t, StatusUnlocked, accs[id].Status)
}

func TestSetAccountStatus_SameStatusEmitsOnce(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	id := addTestAccount(t, r, Info{})

	_, accountsCh, cancel := r.SubscribeAccounts()
	defer cancel()

	require.NoError(t, r.SetAccountStatus(ctx, id, StatusUnlocked))
	require.NoError(t, r.SetAccountStatus(ctx, id, StatusUnlocked))

	emissions := drain(accountsCh)
	require.Len(t, emissions, 1, "duplicate status set must not re-emit")
	require.Equal(t, StatusUnlocked, emissions[0][id].Status)
}

func TestSetAccountStatus_UnknownAccount(t *testing.T) {
	r := newTestRegistry(t)
	err := r.SetAccountStatus(context.Background(), NewUserID(), StatusLocked)
	require.ErrorIs(t, err, common.ErrAccountNotFound)
}

func TestSetAccountStatus_SignalsFireOncePerTransition(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	id := addTestAccount(t, r, Info{})

	lockedCh, cancelLocked := r.LockedEvents()
	defer cancelLocked()
	loggedOutCh, cancelLoggedOut := r.LoggedOutEvents()
	defer cancelLoggedOut()

	require.NoError(t, r.SetAccountStatus(ctx, id, StatusUnlocked))
	require.NoError(t, r.SetAccountStatus(ctx, id, StatusLocked))
	require.NoError(t, r.SetAccountStatus(ctx, id, StatusLocked)) // duplicate, suppressed
	require.NoError(t, r.SetAccountStatus(ctx, id, StatusLoggedOut))

	require.Equal(t, []UserID{id}, drain(lockedCh))
	require.Equal(t, []UserID{id}, drain(loggedOutCh))
}

func TestSwitchAccount_UnknownAccountFailsWithoutMutation(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	id := addTestAccount(t, r, Info{Email: "a"})
	require.NoError(t, r.SwitchAccount(ctx, id))

	err := r.SwitchAccount(ctx, NewUserID())
	require.ErrorIs(t, err, common.ErrAccountNotFound)

	active, ok := r.ActiveAccount()
	require.True(t, ok)
	require.Equal(t, id, active.ID)
}

func TestSwitchAccount_None(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	id := addTestAccount(t, r, Info{})
	require.NoError(t, r.SwitchAccount(ctx, id))

	require.NoError(t, r.SwitchAccount(ctx, ""))
	_, ok := r.ActiveAccount()
	require.False(t, ok)
}

func TestSwitchAccount_BumpsActivityAndDedupsSameTarget(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	id := addTestAccount(t, r, Info{})
	r.SetAccountActivity(ctx, id, time.Unix(1, 0))

	_, activeCh, cancel := r.SubscribeActive()
	defer cancel()

	require.NoError(t, r.SwitchAccount(ctx, id))
	at, ok := r.LastActive(id)
	require.True(t, ok)
	require.True(t, at.After(time.Unix(1, 0)))

	// Switching to the already-active account neither emits nor bumps.
	require.NoError(t, r.SwitchAccount(ctx, id))
	at2, _ := r.LastActive(id)
	require.True(t, at2.Equal(at))
	require.Len(t, drain(activeCh), 1)
}

func TestActiveAccountView_TracksInfoUpdates(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	id := addTestAccount(t, r, Info{Name: "old"})
	require.NoError(t, r.SwitchAccount(ctx, id))

	require.NoError(t, r.SetAccountName(ctx, id, "new"))

	active, ok := r.ActiveAccount()
	require.True(t, ok)
	require.Equal(t, "new", active.Info.Name)
}

func TestPartialUpdates_PreserveOtherFieldsAndDedup(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	id := addTestAccount(t, r, Info{Email: "e", Name: "n", EmailVerified: false})

	_, accountsCh, cancel := r.SubscribeAccounts()
	defer cancel()

	require.NoError(t, r.SetAccountEmail(ctx, id, "e2"))
	require.NoError(t, r.SetAccountEmail(ctx, id, "e2")) // same value, suppressed
	require.NoError(t, r.SetAccountEmailVerified(ctx, id, true))

	accs := r.Accounts()
	require.Equal(t, Info{Email: "e2", Name: "n", EmailVerified: true}, accs[id].Info)
	require.Len(t, drain(accountsCh), 2)

	err := r.SetAccountName(ctx, NewUserID(), "x")
	require.ErrorIs(t, err, common.ErrAccountNotFound)
}

func TestSetAccountActivity(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	id := addTestAccount(t, r, Info{})

	r.SetAccountActivity(ctx, id, time.Unix(42, 0))
	at, ok := r.LastActive(id)
	require.True(t, ok)
	require.True(t, at.Equal(time.Unix(42, 0)))

	// Invalid ids are ignored, not an error.
	r.SetAccountActivity(ctx, "nope", time.Unix(43, 0))
	_, ok = r.LastActive("nope")
	require.False(t, ok)
}

func TestClean_BlanksInfoAndRemovesActivity(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	id := addTestAccount(t, r, Info{Email: "e", Name: "n", EmailVerified: true})

	require.NoError(t, r.Clean(ctx, id))

	accs := r.Accounts()
	require.Equal(t, Info{}, accs[id].Info)
	_, ok := r.LastActive(id)
	require.False(t, ok)
}

func TestSortedUserIDs_MostRecentFirst(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	u1 := addTestAccount(t, r, Info{})
	u2 := addTestAccount(t, r, Info{})
	u3 := addTestAccount(t, r, Info{})

	r.SetAccountActivity(ctx, u1, time.Unix(3, 0))
	r.SetAccountActivity(ctx, u2, time.Unix(2, 0))
	r.SetAccountActivity(ctx, u3, time.Unix(1, 0))

	require.Equal(t, []UserID{u1, u2, u3}, r.SortedUserIDs())
}
