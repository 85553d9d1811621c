package account

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultcore/internal/common"
	"github.com/dmitrijs2005/vaultcore/internal/logging"
	"github.com/dmitrijs2005/vaultcore/internal/observe"
)

// Store persists registry state across process restarts. All methods are
// best-effort from the registry's point of view: failures are logged, never
// surfaced to the mutation caller.
type Store interface {
	SaveAccount(ctx context.Context, id UserID, acc Account) error
	SaveActivity(ctx context.Context, id UserID, at time.Time) error
	RemoveActivity(ctx context.Context, id UserID) error
	SaveActiveUser(ctx context.Context, id UserID) error
	Load(ctx context.Context) (Snapshot, error)
}

// Registry tracks the set of known accounts, the active-account pointer and
// per-account activity timestamps. Mutations go through its operations;
// observers receive equality-gated views and one-shot-per-transition lock and
// logout signals.
type Registry struct {
	log   logging.Logger
	store Store // may be nil

	mu       sync.Mutex
	accounts map[UserID]Account
	activity map[UserID]time.Time
	activeID UserID // empty when none active

	accountsView *observe.Value[map[UserID]Account]
	activeView   *observe.Value[Active]
	locked       *observe.Broadcaster[UserID]
	loggedOut    *observe.Broadcaster[UserID]

	statusMu  sync.Mutex
	statusSub []func(UserID, Status)
}

// NewRegistry builds an empty registry. store may be nil for purely
// in-memory use (tests).
func NewRegistry(log logging.Logger, store Store) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{
		log:          log.With("component", "account-registry"),
		store:        store,
		accounts:     make(map[UserID]Account),
		activity:     make(map[UserID]time.Time),
		accountsView: observe.NewValue(maps.Equal[map[UserID]Account]),
		activeView:   observe.NewValue(func(a, b Active) bool { return a == b }),
		locked:       observe.NewBroadcaster[UserID](),
		loggedOut:    observe.NewBroadcaster[UserID](),
	}
}

// Restore loads persisted state from the store into the registry. Intended
// to run once at startup, before any subscribers attach.
func (r *Registry) Restore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	snap, err := r.store.Load(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, acc := range snap.Accounts {
		r.accounts[id] = acc
	}
	for id, at := range snap.Activity {
		r.activity[id] = at
	}
	if snap.ActiveUserID != "" {
		if _, ok := r.accounts[snap.ActiveUserID]; ok {
			r.activeID = snap.ActiveUserID
		}
	}
	r.publishViewsLocked()
	return nil
}

// AddAccount inserts or replaces the account for id and stamps its activity
// to now. A replace keeps the previously recorded status; a fresh insert
// starts as LoggedOut until SetAccountStatus says otherwise.
func (r *Registry) AddAccount(ctx context.Context, id UserID, info Info) error {
	if !id.Valid() {
		return common.ErrInvalidUserID
	}

	r.mu.Lock()
	acc := Account{Info: info, Status: StatusLoggedOut}
	if prev, ok := r.accounts[id]; ok {
		acc.Status = prev.Status
	}
	r.accounts[id] = acc
	r.activity[id] = time.Now()
	r.publishViewsLocked()
	r.mu.Unlock()

	r.persistAccount(ctx, id, acc)
	r.persistActivity(ctx, id)
	return nil
}

// SetAccountStatus records a new status for id. Setting the status an
// account already has is a no-op: no view emission, no signal. Transitions
// into Locked or LoggedOut fire the corresponding one-shot signal exactly
// once.
func (r *Registry) SetAccountStatus(ctx context.Context, id UserID, status Status) error {
	r.mu.Lock()
	acc, ok := r.accounts[id]
	if !ok {
		r.mu.Unlock()
		return common.ErrAccountNotFound
	}
	if acc.Status == status {
		r.mu.Unlock()
		return nil
	}
	acc.Status = status
	r.accounts[id] = acc
	r.publishViewsLocked()
	r.mu.Unlock()

	switch status {
	case StatusLocked:
		r.locked.Publish(id)
	case StatusLoggedOut:
		r.loggedOut.Publish(id)
	}
	r.notifyStatus(id, status)
	r.persistAccount(ctx, id, acc)
	return nil
}

// SwitchAccount moves the active-account pointer to id, or clears it when id
// is empty. Switching to an unknown account fails with ErrAccountNotFound
// and leaves the pointer untouched. Switching to the already-active account
// is a no-op. A successful switch bumps the target account's activity.
func (r *Registry) SwitchAccount(ctx context.Context, id UserID) error {
	r.mu.Lock()
	if id != "" {
		if _, ok := r.accounts[id]; !ok {
			r.mu.Unlock()
			return common.ErrAccountNotFound
		}
	}
	if r.activeID == id {
		r.mu.Unlock()
		return nil
	}
	r.activeID = id
	if id != "" {
		r.activity[id] = time.Now()
	}
	r.publishViewsLocked()
	r.mu.Unlock()

	r.persistActive(ctx)
	if id != "" {
		r.persistActivity(ctx, id)
	}
	return nil
}

// SetAccountName updates only the display name, preserving other fields.
func (r *Registry) SetAccountName(ctx context.Context, id UserID, name string) error {
	return r.updateInfo(ctx, id, func(info *Info) { info.Name = name })
}

// SetAccountEmail updates only the email, preserving other fields.
func (r *Registry) SetAccountEmail(ctx context.Context, id UserID, email string) error {
	return r.updateInfo(ctx, id, func(info *Info) { info.Email = email })
}

// SetAccountEmailVerified updates only the email-verified marker.
func (r *Registry) SetAccountEmailVerified(ctx context.Context, id UserID, verified bool) error {
	return r.updateInfo(ctx, id, func(info *Info) { info.EmailVerified = verified })
}

func (r *Registry) updateInfo(ctx context.Context, id UserID, mutate func(*Info)) error {
	r.mu.Lock()
	acc, ok := r.accounts[id]
	if !ok {
		r.mu.Unlock()
		return common.ErrAccountNotFound
	}
	info := acc.Info
	mutate(&info)
	if info == acc.Info {
		r.mu.Unlock()
		return nil
	}
	acc.Info = info
	r.accounts[id] = acc
	r.publishViewsLocked()
	r.mu.Unlock()

	r.persistAccount(ctx, id, acc)
	return nil
}

// SetAccountActivity records the last-interaction timestamp for id. Invalid
// user ids are ignored; recording the timestamp an account already has does
// not emit or persist anything.
func (r *Registry) SetAccountActivity(ctx context.Context, id UserID, at time.Time) {
	if !id.Valid() {
		return
	}

	r.mu.Lock()
	if prev, ok := r.activity[id]; ok && prev.Equal(at) {
		r.mu.Unlock()
		return
	}
	r.activity[id] = at
	r.mu.Unlock()

	r.persistActivity(ctx, id)
}

// Clean blanks the account's profile info and removes its activity record.
// Run before a full logout so no profile data outlives the session.
func (r *Registry) Clean(ctx context.Context, id UserID) error {
	r.mu.Lock()
	acc, ok := r.accounts[id]
	if !ok {
		r.mu.Unlock()
		return common.ErrAccountNotFound
	}
	acc.Info = Info{}
	r.accounts[id] = acc
	delete(r.activity, id)
	r.publishViewsLocked()
	r.mu.Unlock()

	r.persistAccount(ctx, id, acc)
	if r.store != nil {
		if err := r.store.RemoveActivity(ctx, id); err != nil {
			r.log.Warn(ctx, "failed to remove persisted activity", "user_id", id, "error", err)
		}
	}
	return nil
}

// Accounts returns a copy of the current account set.
func (r *Registry) Accounts() map[UserID]Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.accounts)
}

// Status returns the recorded status for id.
func (r *Registry) Status(id UserID) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return StatusLoggedOut, common.ErrAccountNotFound
	}
	return acc.Status, nil
}

// ActiveAccount returns the active account view, if any account is active.
func (r *Registry) ActiveAccount() (Active, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeLocked()
}

// LastActive returns the last-interaction timestamp for id, if one exists.
func (r *Registry) LastActive(id UserID) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.activity[id]
	return at, ok
}

// SortedUserIDs lists known user ids ordered by activity, most recent first.
// Accounts with no recorded activity sort last.
func (r *Registry) SortedUserIDs() []UserID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]UserID, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, iok := r.activity[ids[i]]
		tj, jok := r.activity[ids[j]]
		if iok != jok {
			return iok
		}
		if ti.Equal(tj) {
			return ids[i] < ids[j]
		}
		return ti.After(tj)
	})
	return ids
}

// SubscribeAccounts returns the current account set and a channel of future
// equality-gated snapshots.
func (r *Registry) SubscribeAccounts() (map[UserID]Account, <-chan map[UserID]Account, func()) {
	cur, _, ch, cancel := r.accountsView.Subscribe()
	return cur, ch, cancel
}

// SubscribeActive returns the current active-account view (zero Active when
// none is active) and a channel of future changes.
func (r *Registry) SubscribeActive() (Active, <-chan Active, func()) {
	cur, _, ch, cancel := r.activeView.Subscribe()
	return cur, ch, cancel
}

// LockedEvents fires once per transition into Locked.
func (r *Registry) LockedEvents() (<-chan UserID, func()) {
	return r.locked.Subscribe()
}

// LoggedOutEvents fires once per transition into LoggedOut.
func (r *Registry) LoggedOutEvents() (<-chan UserID, func()) {
	return r.loggedOut.Subscribe()
}

// OnStatusChange registers a callback invoked after every effective status
// transition. Used by the auth status resolver to recompute derived state.
func (r *Registry) OnStatusChange(fn func(UserID, Status)) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	r.statusSub = append(r.statusSub, fn)
}

func (r *Registry) notifyStatus(id UserID, status Status) {
	r.statusMu.Lock()
	subs := make([]func(UserID, Status), len(r.statusSub))
	copy(subs, r.statusSub)
	r.statusMu.Unlock()
	for _, fn := range subs {
		fn(id, status)
	}
}

func (r *Registry) activeLocked() (Active, bool) {
	if r.activeID == "" {
		return Active{}, false
	}
	acc, ok := r.accounts[r.activeID]
	if !ok {
		return Active{}, false
	}
	return Active{ID: r.activeID, Info: acc.Info}, true
}

// publishViewsLocked refreshes both observable views. Callers hold r.mu.
func (r *Registry) publishViewsLocked() {
	r.accountsView.Set(maps.Clone(r.accounts))
	active, _ := r.activeLocked()
	r.activeView.Set(active)
}

func (r *Registry) persistAccount(ctx context.Context, id UserID, acc Account) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveAccount(ctx, id, acc); err != nil {
		r.log.Warn(ctx, "failed to persist account", "user_id", id, "error", err)
	}
}

func (r *Registry) persistActivity(ctx context.Context, id UserID) {
	if r.store == nil {
		return
	}
	r.mu.Lock()
	at, ok := r.activity[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := r.store.SaveActivity(ctx, id, at); err != nil {
		r.log.Warn(ctx, "failed to persist activity", "user_id", id, "error", err)
	}
}

func (r *Registry) persistActive(ctx context.Context) {
	if r.store == nil {
		return
	}
	r.mu.Lock()
	id := r.activeID
	r.mu.Unlock()
	if err := r.store.SaveActiveUser(ctx, id); err != nil {
		r.log.Warn(ctx, "failed to persist active user", "error", err)
	}
}
