package vaulttimeout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultcore/internal/account"
	"github.com/dmitrijs2005/vaultcore/internal/auth"
	"github.com/dmitrijs2005/vaultcore/internal/common"
	"github.com/dmitrijs2005/vaultcore/internal/logging"
)

// DefaultCheckInterval is how often the monitor scans all accounts.
const DefaultCheckInterval = 10 * time.Second

// CipherCache clears a user's decrypted cipher cache on lock.
type CipherCache interface {
	ClearCache(ctx context.Context, id account.UserID) error
}

// FolderCache clears a user's folder cache on lock; the decrypted state is
// single-instance and only cleared when the locking user is active.
type FolderCache interface {
	ClearCache(ctx context.Context, id account.UserID) error
	ClearDecrypted(ctx context.Context) error
}

// CollectionCache clears a user's collection cache on lock.
type CollectionCache interface {
	ClearCache(ctx context.Context, id account.UserID) error
}

// SearchIndex is the single-instance search index; cleared only when the
// locking user is active.
type SearchIndex interface {
	ClearIndex(ctx context.Context) error
}

// LogoutFunc performs a full logout of id, tagged with a reason.
type LogoutFunc func(ctx context.Context, id account.UserID, reason string) error

// MonitorDeps collects the monitor's collaborators.
type MonitorDeps struct {
	Registry    *account.Registry
	Resolver    *auth.Resolver
	Settings    *Settings
	Keys        *auth.KeyStore
	Ciphers     CipherCache
	Folders     FolderCache
	Collections CollectionCache
	Search      SearchIndex
	Logout      LogoutFunc

	// LockedCallback runs after a user has been locked, for UI notification.
	// Optional.
	LockedCallback func(ctx context.Context, id account.UserID)

	// IsViewOpen reports whether a foreground view is currently open. An
	// open view keeps the active account alive regardless of idle time.
	// Optional; defaults to "not open".
	IsViewOpen func(ctx context.Context) bool

	// CheckInterval overrides DefaultCheckInterval when positive.
	CheckInterval time.Duration
}

// Monitor scans all known accounts on a fixed interval and locks or logs
// out any whose idle time exceeds their configured vault timeout. Failures
// for one account never prevent the others from being processed, and one
// account is never processed twice concurrently.
type Monitor struct {
	log  logging.Logger
	deps MonitorDeps
	now  func() time.Time

	mu       sync.Mutex
	inFlight map[account.UserID]struct{}
}

func NewMonitor(log logging.Logger, deps MonitorDeps) *Monitor {
	if log == nil {
		log = logging.Nop()
	}
	if deps.CheckInterval <= 0 {
		deps.CheckInterval = DefaultCheckInterval
	}
	if deps.IsViewOpen == nil {
		deps.IsViewOpen = func(context.Context) bool { return false }
	}
	return &Monitor{
		log:      log.With("component", "vault-timeout-monitor"),
		deps:     deps,
		now:      time.Now,
		inFlight: make(map[account.UserID]struct{}),
	}
}

// Run ticks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.deps.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckTimeouts(ctx)
		}
	}
}

// CheckTimeouts runs one scan over all known accounts.
func (m *Monitor) CheckTimeouts(ctx context.Context) {
	activeID := m.activeID()
	viewOpen := m.deps.IsViewOpen(ctx)

	for id := range m.deps.Registry.Accounts() {
		if !m.begin(id) {
			continue
		}
		func() {
			defer m.end(id)
			if err := m.checkUser(ctx, id, activeID, viewOpen); err != nil {
				m.log.Error(ctx, "vault timeout action failed", "user_id", id, "error", err)
			}
		}()
	}
}

func (m *Monitor) checkUser(ctx context.Context, id, activeID account.UserID, viewOpen bool) error {
	// An open foreground view counts as ongoing activity, but only for the
	// account actually being viewed.
	if viewOpen && id == activeID {
		return nil
	}

	if m.deps.Resolver.StatusFor(id) != account.StatusUnlocked {
		return nil
	}

	timeout := m.deps.Settings.TimeoutFor(id)
	if !timeout.Expires() {
		return nil
	}

	lastActive, ok := m.deps.Registry.LastActive(id)
	if !ok {
		return nil
	}

	if m.now().Sub(lastActive) < timeout.Duration() {
		return nil
	}

	if m.deps.Settings.ResolvedActionFor(id) == ActionLogOut {
		m.log.Info(ctx, "vault timeout reached, logging out", "user_id", id)
		return m.deps.Logout(ctx, id, common.LogoutReasonVaultTimeout)
	}

	m.log.Info(ctx, "vault timeout reached, locking", "user_id", id)
	return m.lock(ctx, id, activeID)
}

// Lock locks id immediately, outside the tick cycle. An empty id locks the
// active account; with no active account this is a no-op.
func (m *Monitor) Lock(ctx context.Context, id account.UserID) error {
	activeID := m.activeID()
	if id == "" {
		if activeID == "" {
			return nil
		}
		id = activeID
	}
	if !m.begin(id) {
		return nil
	}
	defer m.end(id)
	return m.lock(ctx, id, activeID)
}

func (m *Monitor) lock(ctx context.Context, id, activeID account.UserID) error {
	m.deps.Keys.ClearUserKey(id)

	// Cache clearing is best effort: a failing cache must not leave the
	// account unlocked.
	if err := m.deps.Ciphers.ClearCache(ctx, id); err != nil {
		m.log.Warn(ctx, "failed to clear cipher cache", "user_id", id, "error", err)
	}
	if err := m.deps.Folders.ClearCache(ctx, id); err != nil {
		m.log.Warn(ctx, "failed to clear folder cache", "user_id", id, "error", err)
	}
	if err := m.deps.Collections.ClearCache(ctx, id); err != nil {
		m.log.Warn(ctx, "failed to clear collection cache", "user_id", id, "error", err)
	}

	// Single-instance caches belong to the active account only.
	if id == activeID {
		if err := m.deps.Search.ClearIndex(ctx); err != nil {
			m.log.Warn(ctx, "failed to clear search index", "error", err)
		}
		if err := m.deps.Folders.ClearDecrypted(ctx); err != nil {
			m.log.Warn(ctx, "failed to clear decrypted folders", "error", err)
		}
	}

	if err := m.deps.Registry.SetAccountStatus(ctx, id, account.StatusLocked); err != nil {
		return fmt.Errorf("record locked status: %w", err)
	}
	if m.deps.LockedCallback != nil {
		m.deps.LockedCallback(ctx, id)
	}
	return nil
}

func (m *Monitor) activeID() account.UserID {
	if active, ok := m.deps.Registry.ActiveAccount(); ok {
		return active.ID
	}
	return ""
}

func (m *Monitor) begin(id account.UserID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inFlight[id]; busy {
		return false
	}
	m.inFlight[id] = struct{}{}
	return true
}

func (m *Monitor) end(id account.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, id)
}
