package auth

import (
	"sync"

	"github.com/dmitrijs2005/vaultcore/internal/account"
)

// KeyStore holds per-user decryption material in memory. Whether a key is
// present is what separates a Locked account from an Unlocked one; locking
// an account means wiping its entry here.
type KeyStore struct {
	mu   sync.Mutex
	keys map[account.UserID][]byte

	changeMu sync.Mutex
	onChange []func(account.UserID)
}

func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[account.UserID][]byte)}
}

// SetUserKey stores a copy of key for id.
func (s *KeyStore) SetUserKey(id account.UserID, key []byte) {
	s.mu.Lock()
	s.keys[id] = append([]byte(nil), key...)
	s.mu.Unlock()
	s.notify(id)
}

// HasUserKey reports whether decryption material for id is in memory.
func (s *KeyStore) HasUserKey(id account.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[id]
	return ok
}

// ClearUserKey wipes and removes the key material for id.
func (s *KeyStore) ClearUserKey(id account.UserID) {
	s.mu.Lock()
	key, had := s.keys[id]
	if had {
		for i := range key {
			key[i] = 0
		}
		delete(s.keys, id)
	}
	s.mu.Unlock()

	if had {
		s.notify(id)
	}
}

// OnChange registers a callback invoked after every key set or clear.
func (s *KeyStore) OnChange(fn func(account.UserID)) {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *KeyStore) notify(id account.UserID) {
	s.changeMu.Lock()
	subs := make([]func(account.UserID), len(s.onChange))
	copy(subs, s.onChange)
	s.changeMu.Unlock()
	for _, fn := range subs {
		fn(id)
	}
}
