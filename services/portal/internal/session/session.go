package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"qualityportal/internal/util"
	"qualityportal/pkg/auth"
	"qualityportal/pkg/domain"
	"qualityportal/pkg/store"
)

// ErrMissingFields is returned when any login field is blank.
var ErrMissingFields = errors.New("Todos los campos son obligatorios")

// Tokens issues and verifies signed session tokens.
type Tokens interface {
	NewSession(userID string) (string, store.SessionClaims, error)
	Verify(ctx context.Context, token string) (store.SessionClaims, error)
	Revoke(ctx context.Context, token string) error
	TTL() time.Duration
}

// Session is an authenticated browser or API session.
type Session struct {
	ID        string      `json:"-"`
	Token     string      `json:"token"`
	User      domain.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type cached struct {
	user    domain.User
	expires time.Time
}

// Manager logs users in and resolves tokens back to users. Profiles live in
// the ProfileStore so sessions survive restarts; a local cache saves the
// round trip on every request.
type Manager struct {
	identity auth.Provider
	tokens   Tokens
	profiles store.ProfileStore

	mu    sync.RWMutex
	cache map[string]cached
	now   func() time.Time
}

func NewManager(identity auth.Provider, tokens Tokens, profiles store.ProfileStore) *Manager {
	return &Manager{
		identity: identity,
		tokens:   tokens,
		profiles: profiles,
		cache:    make(map[string]cached),
		now:      time.Now,
	}
}

// Login authenticates and opens a session.
func (m *Manager) Login(ctx context.Context, username, password, accessCode string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || strings.TrimSpace(accessCode) == "" {
		return Session{}, ErrMissingFields
	}
	user, err := m.identity.Authenticate(ctx, username, password, strings.TrimSpace(accessCode))
	if err != nil {
		return Session{}, err
	}
	token, claims, err := m.tokens.NewSession(user.ID)
	if err != nil {
		return Session{}, err
	}
	if err := m.profiles.Put(ctx, claims.SessionID, user, m.tokens.TTL()); err != nil {
		return Session{}, fmt.Errorf("store profile: %w", err)
	}
	m.mu.Lock()
	m.cache[claims.SessionID] = cached{user: user, expires: claims.ExpiresAt}
	m.mu.Unlock()
	util.LoggerFromContext(ctx).Info("user logged in", "user_id", user.ID, "role", user.Role)
	return Session{ID: claims.SessionID, Token: token, User: user, ExpiresAt: claims.ExpiresAt}, nil
}

// Current resolves a token. Invalid, expired or revoked tokens and sessions
// whose profile is gone yield false.
func (m *Manager) Current(ctx context.Context, token string) (Session, bool) {
	if strings.TrimSpace(token) == "" {
		return Session{}, false
	}
	claims, err := m.tokens.Verify(ctx, token)
	if err != nil {
		if !errors.Is(err, store.ErrTokenInvalid) && !errors.Is(err, store.ErrTokenRevoked) {
			util.LoggerFromContext(ctx).Warn("session verify failed", "err", err)
		}
		return Session{}, false
	}
	s := Session{ID: claims.SessionID, Token: token, ExpiresAt: claims.ExpiresAt}

	m.mu.RLock()
	c, ok := m.cache[claims.SessionID]
	m.mu.RUnlock()
	if ok && m.now().Before(c.expires) {
		s.User = c.user
		return s, true
	}

	user, ok, err := m.profiles.Get(ctx, claims.SessionID)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("session profile lookup failed", "err", err)
		return Session{}, false
	}
	if !ok || user.ID != claims.Subject {
		return Session{}, false
	}
	m.mu.Lock()
	m.cache[claims.SessionID] = cached{user: user, expires: claims.ExpiresAt}
	m.mu.Unlock()
	s.User = user
	return s, true
}

// CurrentUser is Current without the session details.
func (m *Manager) CurrentUser(ctx context.Context, token string) (domain.User, bool) {
	s, ok := m.Current(ctx, token)
	return s.User, ok
}

// Logout forgets the profile and revokes the token. Unknown tokens are a no-op.
func (m *Manager) Logout(ctx context.Context, token string) error {
	claims, err := m.tokens.Verify(ctx, token)
	if err != nil {
		return nil
	}
	m.mu.Lock()
	delete(m.cache, claims.SessionID)
	m.mu.Unlock()
	var errs []error
	if err := m.profiles.Delete(ctx, claims.SessionID); err != nil {
		errs = append(errs, fmt.Errorf("delete profile: %w", err))
	}
	if err := m.tokens.Revoke(ctx, token); err != nil {
		errs = append(errs, fmt.Errorf("revoke token: %w", err))
	}
	return errors.Join(errs...)
}

// Sweep drops expired entries from the local cache.
func (m *Manager) Sweep() {
	now := m.now()
	m.mu.Lock()
	for id, c := range m.cache {
		if !now.Before(c.expires) {
			delete(m.cache, id)
		}
	}
	m.mu.Unlock()
}
