// Package vaulttimeout decides when an idle account's session expires and
// what happens to it: the settings service stores each account's timeout
// policy, and the monitor periodically applies it, locking or logging out
// accounts that have been inactive too long.
package vaulttimeout

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultcore/internal/account"
)

// Action is what happens to an account when its timeout elapses.
type Action int

const (
	ActionLock Action = iota
	ActionLogOut
)

func (a Action) String() string {
	if a == ActionLogOut {
		return "logOut"
	}
	return "lock"
}

// Mode distinguishes a numeric minute timeout from the sentinel modes that
// are triggered externally (restart, OS sleep, idle signal) or never at all.
// The monitor only auto-expires ModeMinutes policies.
type Mode int

const (
	ModeMinutes Mode = iota
	ModeNever
	ModeOnRestart
	ModeOnLocked
	ModeOnSleep
	ModeOnIdle
)

// Timeout is one account's vault timeout: either a non-negative number of
// minutes, or a sentinel mode.
type Timeout struct {
	Mode    Mode
	Minutes int
}

// Minutes builds a numeric timeout. Zero means "expire immediately once any
// idle gap is observed".
func Minutes(m int) Timeout {
	return Timeout{Mode: ModeMinutes, Minutes: m}
}

// Expires reports whether the monitor should ever auto-expire this policy.
func (t Timeout) Expires() bool {
	return t.Mode == ModeMinutes
}

// Duration returns the timeout as a duration. Only meaningful for
// ModeMinutes policies.
func (t Timeout) Duration() time.Duration {
	return time.Duration(t.Minutes) * time.Minute
}

var ErrNegativeTimeout = errors.New("vault timeout cannot be negative")

// Settings stores per-account timeout policy: the timeout itself, the
// configured action, and which actions are available to that account.
type Settings struct {
	defaultTimeout Timeout

	mu        sync.Mutex
	timeouts  map[account.UserID]Timeout
	actions   map[account.UserID]Action
	available map[account.UserID][]Action
}

func NewSettings(defaultTimeout Timeout) *Settings {
	return &Settings{
		defaultTimeout: defaultTimeout,
		timeouts:       make(map[account.UserID]Timeout),
		actions:        make(map[account.UserID]Action),
		available:      make(map[account.UserID][]Action),
	}
}

// SetOptions records the timeout and action for id.
func (s *Settings) SetOptions(_ context.Context, id account.UserID, timeout Timeout, action Action) error {
	if timeout.Mode == ModeMinutes && timeout.Minutes < 0 {
		return ErrNegativeTimeout
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeouts[id] = timeout
	s.actions[id] = action
	return nil
}

// SetAvailableActions constrains which actions id may use. An account with
// no master password, for example, cannot lock.
func (s *Settings) SetAvailableActions(id account.UserID, actions []Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available[id] = slices.Clone(actions)
}

// TimeoutFor returns the timeout policy for id, falling back to the default.
func (s *Settings) TimeoutFor(id account.UserID) Timeout {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timeouts[id]; ok {
		return t
	}
	return s.defaultTimeout
}

// AvailableActionsFor returns the allowed actions for id. Both actions are
// available unless constrained.
func (s *Settings) AvailableActionsFor(id account.UserID) []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.available[id]; ok {
		return slices.Clone(a)
	}
	return []Action{ActionLock, ActionLogOut}
}

// ResolvedActionFor returns the action the monitor should take for id: the
// configured action, downgraded to LogOut when Lock was chosen but is not
// in the available set.
func (s *Settings) ResolvedActionFor(id account.UserID) Action {
	s.mu.Lock()
	configured, ok := s.actions[id]
	s.mu.Unlock()
	if !ok {
		configured = ActionLock
	}
	if configured == ActionLock && !slices.Contains(s.AvailableActionsFor(id), ActionLock) {
		return ActionLogOut
	}
	return configured
}
