// Package vault provides the in-memory caches the session core owns on
// behalf of its sync collaborators: per-user decrypted-item caches keyed by
// user id, and the single-instance search index and decrypted-folder state
// that belong to whichever account is active.
package vault

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/vaultcore/internal/account"
)

// Cache is a per-user item cache. Entries for one user never leak into
// another user's view, and clearing is scoped to a single user id.
type Cache struct {
	mu   sync.Mutex
	data map[account.UserID]map[string]any
}

func NewCache() *Cache {
	return &Cache{data: make(map[account.UserID]map[string]any)}
}

func (c *Cache) Set(id account.UserID, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, ok := c.data[id]
	if !ok {
		items = make(map[string]any)
		c.data[id] = items
	}
	items[key] = value
}

func (c *Cache) Get(id account.UserID, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[id][key]
	return v, ok
}

func (c *Cache) Delete(id account.UserID, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data[id], key)
}

// Count returns the number of cached entries for id.
func (c *Cache) Count(id account.UserID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data[id])
}

// ClearCache drops every cached entry for id, leaving other users untouched.
func (c *Cache) ClearCache(_ context.Context, id account.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, id)
	return nil
}

// FolderCache is the per-user folder cache plus the single-instance
// decrypted-folder state. The decrypted state always belongs to the active
// account; callers must only clear it when the target user is active.
type FolderCache struct {
	Cache

	decMu     sync.Mutex
	decrypted []string
}

func NewFolderCache() *FolderCache {
	return &FolderCache{Cache: *NewCache()}
}

// SetDecrypted replaces the decrypted-folder state.
func (c *FolderCache) SetDecrypted(names []string) {
	c.decMu.Lock()
	defer c.decMu.Unlock()
	c.decrypted = append([]string(nil), names...)
}

// Decrypted returns the current decrypted-folder state.
func (c *FolderCache) Decrypted() []string {
	c.decMu.Lock()
	defer c.decMu.Unlock()
	return append([]string(nil), c.decrypted...)
}

// ClearDecrypted drops the decrypted-folder state.
func (c *FolderCache) ClearDecrypted(_ context.Context) error {
	c.decMu.Lock()
	defer c.decMu.Unlock()
	c.decrypted = nil
	return nil
}

// SearchIndex is the single-instance full-text index over the active
// account's decrypted vault.
type SearchIndex struct {
	mu      sync.Mutex
	entries map[string]string
}

func NewSearchIndex() *SearchIndex {
	return &SearchIndex{entries: make(map[string]string)}
}

func (s *SearchIndex) Index(id, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = text
}

func (s *SearchIndex) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ClearIndex drops the whole index.
func (s *SearchIndex) ClearIndex(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]string)
	return nil
}
