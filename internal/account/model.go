// Package account implements the registry of signed-in accounts: which
// accounts exist, their recorded status, which one is active, and when each
// was last interacted with. The registry is the single source of truth for
// this state; every other component reads it through registry operations and
// subscriptions instead of holding private copies.
package account

import (
	"time"

	"github.com/google/uuid"
)

// UserID identifies an account. The registry only accepts UUID-formatted ids.
type UserID string

// NewUserID generates a fresh random UserID.
func NewUserID() UserID {
	return UserID(uuid.NewString())
}

// Valid reports whether the id is a well-formed UUID.
func (id UserID) Valid() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}

func (id UserID) String() string { return string(id) }

// Status is the recorded authentication status of an account.
type Status int

const (
	StatusLoggedOut Status = iota
	StatusLocked
	StatusUnlocked
)

func (s Status) String() string {
	switch s {
	case StatusLoggedOut:
		return "loggedOut"
	case StatusLocked:
		return "locked"
	case StatusUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// Info holds the mutable profile attributes of an account.
type Info struct {
	Email         string
	Name          string
	EmailVerified bool
}

// Account is one registry entry: profile info plus recorded status.
type Account struct {
	Info   Info
	Status Status
}

// Active is the registry's "active account" view: the id of the foreground
// account together with its current info. The zero value means no account
// is active.
type Active struct {
	ID   UserID
	Info Info
}

// Snapshot is the persisted registry state reloaded at startup.
type Snapshot struct {
	Accounts     map[UserID]Account
	Activity     map[UserID]time.Time
	ActiveUserID UserID
}
