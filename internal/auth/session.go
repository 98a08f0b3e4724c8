// Package auth holds the agent's session: the bearer token the hubs and the
// pull API authenticate with, plus the tenant identity parsed out of it.
// Lifecycle is explicit — Init on login, Clear on logout — instead of the
// ambient global state the web client kept in localStorage.
package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/OrderPulse/internal/cache"
)

var ErrNoSession = errors.New("no active session")

const sessionKey = "orderpulse:session:current"

// Claims are the platform token claims the agent cares about. The token is
// verified server-side; here we only read identity out of it.
type Claims struct {
	TenantID int64  `json:"tenant_id"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Session struct {
	Token     string    `json:"token"`
	TenantID  int64     `json:"tenantId"`
	Role      string    `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store keeps the current session in memory and mirrors it into the cache so
// an agent restart within the token's lifetime resumes without a re-login.
type Store struct {
	cache cache.BytesCache

	mu  sync.RWMutex
	cur *Session
}

func NewStore(c cache.BytesCache) *Store {
	return &Store{cache: c}
}

// Init parses the token's claims and makes it the current session.
func (s *Store) Init(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, errors.New("token is required")
	}

	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	if claims.TenantID == 0 {
		return nil, errors.New("token has no tenant_id claim")
	}

	sess := &Session{
		Token:    token,
		TenantID: claims.TenantID,
		Role:     claims.Role,
	}
	ttl := time.Hour
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
		ttl = time.Until(sess.ExpiresAt)
		if ttl <= 0 {
			return nil, errors.New("token is expired")
		}
	}

	if s.cache != nil {
		b, _ := json.Marshal(sess)
		if err := s.cache.Set(ctx, sessionKey, b, ttl); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.cur = sess
	s.mu.Unlock()
	return sess, nil
}

// Resume restores a persisted session after a restart.
func (s *Store) Resume(ctx context.Context) (*Session, error) {
	if s.cache == nil {
		return nil, ErrNoSession
	}
	b, ok, err := s.cache.Get(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoSession
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	s.mu.Lock()
	s.cur = &sess
	s.mu.Unlock()
	return &sess, nil
}

// Current returns the active session, if any.
func (s *Store) Current() (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil {
		return nil, false
	}
	cp := *s.cur
	return &cp, true
}

// TenantID is a convenience for wiring group keys.
func (s *Store) TenantID() (int64, bool) {
	sess, ok := s.Current()
	if !ok {
		return 0, false
	}
	return sess.TenantID, true
}

// TokenFactory feeds the hub connection builder; it returns an empty token
// when logged out so anonymous hubs still connect.
func (s *Store) TokenFactory() func() (string, error) {
	return func() (string, error) {
		sess, ok := s.Current()
		if !ok {
			return "", nil
		}
		return sess.Token, nil
	}
}

// Clear drops the session everywhere. Safe to call when logged out.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.cur = nil
	s.mu.Unlock()
	if s.cache != nil {
		return s.cache.Del(ctx, sessionKey)
	}
	return nil
}
