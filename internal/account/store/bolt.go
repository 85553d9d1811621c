// Package store persists registry state (accounts, activity, active-user
// slot) in an embedded bbolt database so sessions survive process restarts.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/dmitrijs2005/vaultcore/internal/account"
)

const (
	bucketAccounts = "accounts" // key: user id -> persistedAccount JSON
	bucketActivity = "activity" // key: user id -> RFC3339Nano timestamp
	bucketState    = "state"    // key: "active_user" -> user id
)

const keyActiveUser = "active_user"

// persistedAccount is the on-disk shape of one account entry.
type persistedAccount struct {
	Status        int    `json:"status"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"emailVerified"`
}

type Bolt struct {
	db *bbolt.DB
}

// NewBolt opens (or creates) the state database at path and ensures all
// buckets exist.
func NewBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketAccounts, bucketActivity, bucketState} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init state db: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Close closes the database.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) SaveAccount(_ context.Context, id account.UserID, acc account.Account) error {
	data, err := json.Marshal(persistedAccount{
		Status:        int(acc.Status),
		Email:         acc.Info.Email,
		Name:          acc.Info.Name,
		EmailVerified: acc.Info.EmailVerified,
	})
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketAccounts)).Put([]byte(id), data)
	})
}

func (b *Bolt) SaveActivity(_ context.Context, id account.UserID, at time.Time) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketActivity)).Put([]byte(id), []byte(at.Format(time.RFC3339Nano)))
	})
}

func (b *Bolt) RemoveActivity(_ context.Context, id account.UserID) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketActivity)).Delete([]byte(id))
	})
}

func (b *Bolt) SaveActiveUser(_ context.Context, id account.UserID) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketState))
		if id == "" {
			return bucket.Delete([]byte(keyActiveUser))
		}
		return bucket.Put([]byte(keyActiveUser), []byte(id))
	})
}

// Load reads the full persisted snapshot. Entries that fail to decode are
// skipped rather than failing the whole load; a corrupt activity record
// should not prevent the rest of the state from coming back.
func (b *Bolt) Load(_ context.Context) (account.Snapshot, error) {
	snap := account.Snapshot{
		Accounts: make(map[account.UserID]account.Account),
		Activity: make(map[account.UserID]time.Time),
	}

	err := b.db.View(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(bucketAccounts)).ForEach(func(k, v []byte) error {
			var p persistedAccount
			if err := json.Unmarshal(v, &p); err != nil {
				return nil
			}
			snap.Accounts[account.UserID(k)] = account.Account{
				Status: account.Status(p.Status),
				Info: account.Info{
					Email:         p.Email,
					Name:          p.Name,
					EmailVerified: p.EmailVerified,
				},
			}
			return nil
		}); err != nil {
			return err
		}

		if err := tx.Bucket([]byte(bucketActivity)).ForEach(func(k, v []byte) error {
			at, err := time.Parse(time.RFC3339Nano, string(v))
			if err != nil {
				return nil
			}
			snap.Activity[account.UserID(k)] = at
			return nil
		}); err != nil {
			return err
		}

		if v := tx.Bucket([]byte(bucketState)).Get([]byte(keyActiveUser)); v != nil {
			snap.ActiveUserID = account.UserID(v)
		}
		return nil
	})
	if err != nil {
		return account.Snapshot{}, fmt.Errorf("load state db: %w", err)
	}
	return snap, nil
}
