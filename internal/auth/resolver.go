package auth

import (
	"sync"

	"github.com/dmitrijs2005/vaultcore/internal/account"
	"github.com/dmitrijs2005/vaultcore/internal/observe"
)

// Resolver derives the effective authentication status per user. The status
// is computed, never stored: no access token (or a registry-recorded logout)
// means LoggedOut; a token with decryption material in memory means
// Unlocked; a token without it means Locked.
//
// Unlike the registry's recorded status, the locked/unlocked split here
// specifically requires key material to be present, which makes the resolver
// the authority consulted before acting on an account.
type Resolver struct {
	registry *account.Registry
	tokens   *TokenStore
	keys     *KeyStore

	mu       sync.Mutex
	statuses map[account.UserID]*observe.Value[account.Status]
}

// NewResolver wires the resolver to its inputs and starts recomputing on
// every registry status, token, or key change.
func NewResolver(registry *account.Registry, tokens *TokenStore, keys *KeyStore) *Resolver {
	r := &Resolver{
		registry: registry,
		tokens:   tokens,
		keys:     keys,
		statuses: make(map[account.UserID]*observe.Value[account.Status]),
	}
	registry.OnStatusChange(func(id account.UserID, _ account.Status) { r.recompute(id) })
	tokens.OnChange(r.recompute)
	keys.OnChange(r.recompute)
	return r
}

// StatusFor computes the current status of id.
func (r *Resolver) StatusFor(id account.UserID) account.Status {
	if !r.tokens.HasAccessToken(id) {
		return account.StatusLoggedOut
	}
	if recorded, err := r.registry.Status(id); err == nil && recorded == account.StatusLoggedOut {
		return account.StatusLoggedOut
	}
	if r.keys.HasUserKey(id) {
		return account.StatusUnlocked
	}
	return account.StatusLocked
}

// ActiveStatus returns the status of the active account, if one is active.
func (r *Resolver) ActiveStatus() (account.Status, bool) {
	active, ok := r.registry.ActiveAccount()
	if !ok {
		return account.StatusLoggedOut, false
	}
	return r.StatusFor(active.ID), true
}

// AllStatuses computes the status of every known account.
func (r *Resolver) AllStatuses() map[account.UserID]account.Status {
	out := make(map[account.UserID]account.Status)
	for id := range r.registry.Accounts() {
		out[id] = r.StatusFor(id)
	}
	return out
}

// SubscribeStatus returns the current status of id and a channel of future
// changes. Emissions are equality-gated: recomputations that land on the
// same status are suppressed.
func (r *Resolver) SubscribeStatus(id account.UserID) (account.Status, <-chan account.Status, func()) {
	v := r.statusValue(id)
	v.Set(r.StatusFor(id))
	cur, _, ch, cancel := v.Subscribe()
	return cur, ch, cancel
}

func (r *Resolver) statusValue(id account.UserID) *observe.Value[account.Status] {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.statuses[id]
	if !ok {
		v = observe.NewValue(func(a, b account.Status) bool { return a == b })
		r.statuses[id] = v
	}
	return v
}

func (r *Resolver) recompute(id account.UserID) {
	r.statusValue(id).Set(r.StatusFor(id))
}
