// Package auth holds per-user credential state on the client: access tokens,
// in-memory decryption keys, and the resolver that derives an authentication
// status from both. The resolver is the single authority other components
// consult before acting on an account.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/vaultcore/internal/account"
	"github.com/dmitrijs2005/vaultcore/internal/common"
	"github.com/dmitrijs2005/vaultcore/internal/logging"
)

// TokenStore keeps each user's access token in memory. Tokens are issued and
// refreshed elsewhere; the store only answers "does this user currently hold
// a live credential".
type TokenStore struct {
	log logging.Logger

	mu     sync.Mutex
	tokens map[account.UserID]parsedToken

	changeMu sync.Mutex
	onChange []func(account.UserID)
}

type parsedToken struct {
	raw       string
	expiresAt *time.Time // nil when the token carries no exp claim
}

func NewTokenStore(log logging.Logger) *TokenStore {
	if log == nil {
		log = logging.Nop()
	}
	return &TokenStore{
		log:    log.With("component", "token-store"),
		tokens: make(map[account.UserID]parsedToken),
	}
}

// SetAccessToken stores the access token for id. The token is parsed without
// signature verification (the client holds no signing secret) to extract its
// expiry; a structurally invalid token is rejected.
func (s *TokenStore) SetAccessToken(ctx context.Context, id account.UserID, token string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return common.ErrInvalidToken
	}

	pt := parsedToken{raw: token}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		pt.expiresAt = &t
	}

	s.mu.Lock()
	s.tokens[id] = pt
	s.mu.Unlock()

	s.log.Debug(ctx, "access token stored", "user_id", id)
	s.notify(id)
	return nil
}

// ClearAccessToken drops the access token for id, if any.
func (s *TokenStore) ClearAccessToken(ctx context.Context, id account.UserID) {
	s.mu.Lock()
	_, had := s.tokens[id]
	delete(s.tokens, id)
	s.mu.Unlock()

	if had {
		s.log.Debug(ctx, "access token cleared", "user_id", id)
		s.notify(id)
	}
}

// HasAccessToken reports whether id holds a non-expired access token.
func (s *TokenStore) HasAccessToken(id account.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pt, ok := s.tokens[id]
	if !ok {
		return false
	}
	if pt.expiresAt != nil && !pt.expiresAt.After(time.Now()) {
		return false
	}
	return true
}

// AccessToken returns the raw token for id, for outbound hub authentication.
func (s *TokenStore) AccessToken(id account.UserID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pt, ok := s.tokens[id]
	return pt.raw, ok
}

// OnChange registers a callback invoked after every token set or clear.
func (s *TokenStore) OnChange(fn func(account.UserID)) {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *TokenStore) notify(id account.UserID) {
	s.changeMu.Lock()
	subs := make([]func(account.UserID), len(s.onChange))
	copy(subs, s.onChange)
	s.changeMu.Unlock()
	for _, fn := range subs {
		fn(id)
	}
}
