// Package session keeps the reader's authentication state and supplies the
// bearer token to the API client.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"novapress/internal/api"
	"novapress/internal/logging"
	"novapress/internal/store"
)

// StorageKey is the key the session is persisted under.
const StorageKey = "novapress_auth"

// RefreshWindow is how close to expiry an access token may get before it is
// refreshed.
const RefreshWindow = 30 * time.Second

// ErrNotAuthenticated is returned by calls that need a session when none exists.
var ErrNotAuthenticated = errors.New("not authenticated")

// State is the persisted session.
type State struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	User         *api.User `json:"user,omitempty"`
}

// Manager owns the session. It implements api.TokenSource.
type Manager struct {
	mu     sync.Mutex
	kv     store.KV
	auth   *api.AuthScope
	state  *State
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New loads the persisted session, if any. A corrupt payload is discarded.
func New(kv store.KV, auth *api.AuthScope, opts ...Option) (*Manager, error) {
	m := &Manager{kv: kv, auth: auth, now: time.Now, logger: logging.Discard()}
	for _, o := range opts {
		o(m)
	}
	raw, ok, err := kv.Get(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if ok && len(raw) > 0 {
		var st State
		if err := json.Unmarshal(raw, &st); err != nil || st.AccessToken == "" {
			m.logger.Warn("discarding unreadable session", "error", err)
		} else {
			m.state = &st
		}
	}
	return m, nil
}

// IsAuthenticated reports whether a session is held.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != nil
}

// User returns the cached user, or nil.
func (m *Manager) User() *api.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil || m.state.User == nil {
		return nil
	}
	u := *m.state.User
	return &u
}

// Token returns the access token, refreshing it first when it expires within
// RefreshWindow. Without a session it returns "" and no error.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return "", nil
	}
	if m.state.RefreshToken == "" || !m.expiring(m.state.AccessToken) {
		return m.state.AccessToken, nil
	}
	return m.refreshLocked(ctx)
}

// Refresh exchanges the refresh token for a new pair regardless of expiry.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return ErrNotAuthenticated
	}
	if m.state.RefreshToken == "" {
		return fmt.Errorf("refresh session: no refresh token")
	}
	_, err := m.refreshLocked(ctx)
	return err
}

func (m *Manager) refreshLocked(ctx context.Context) (string, error) {
	m.logger.DebugContext(ctx, "refreshing access token")
	tp, err := m.auth.Refresh(ctx, m.state.RefreshToken)
	if err != nil {
		m.logger.WarnContext(ctx, "token refresh failed, clearing session", "error", err)
		m.clearLocked()
		return "", fmt.Errorf("refresh session: %w", err)
	}
	next := State{AccessToken: tp.AccessToken, RefreshToken: tp.RefreshToken, User: tp.User}
	if next.RefreshToken == "" {
		next.RefreshToken = m.state.RefreshToken
	}
	if next.User == nil {
		next.User = m.state.User
	}
	if err := m.setLocked(&next); err != nil {
		return "", err
	}
	return next.AccessToken, nil
}

// expiring reports whether a JWT access token expires within RefreshWindow.
// Tokens that are not JWTs or carry no exp claim never expire here.
func (m *Manager) expiring(token string) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Sub(m.now()) < RefreshWindow
}

// Login authenticates and stores the session.
func (m *Manager) Login(ctx context.Context, creds api.Credentials) (*api.User, error) {
	tp, err := m.auth.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, tp)
}

// Register creates an account and stores its session.
func (m *Manager) Register(ctx context.Context, reg api.Registration) (*api.User, error) {
	tp, err := m.auth.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, tp)
}

func (m *Manager) establish(ctx context.Context, tp *api.TokenPair) (*api.User, error) {
	if tp.AccessToken == "" {
		return nil, fmt.Errorf("establish session: response carried no access token")
	}
	m.mu.Lock()
	err := m.setLocked(&State{AccessToken: tp.AccessToken, RefreshToken: tp.RefreshToken, User: tp.User})
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if tp.User != nil {
		return tp.User, nil
	}
	u, err := m.Profile(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "load profile after login", "error", err)
		return nil, nil
	}
	return u, nil
}

// Logout revokes the session server-side when possible and always clears
// the local state.
func (m *Manager) Logout(ctx context.Context) error {
	if !m.IsAuthenticated() {
		return nil
	}
	if err := m.auth.Logout(ctx); err != nil {
		m.logger.WarnContext(ctx, "server logout failed", "error", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearLocked()
}

// Profile fetches the user and caches it in the session. A 401 ends the
// session.
func (m *Manager) Profile(ctx context.Context) (*api.User, error) {
	if !m.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	u, err := m.auth.Profile(ctx)
	return m.keepUser(u, err)
}

// UpdateProfile modifies the user and caches the result.
func (m *Manager) UpdateProfile(ctx context.Context, upd api.ProfileUpdate) (*api.User, error) {
	if !m.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	u, err := m.auth.UpdateProfile(ctx, upd)
	return m.keepUser(u, err)
}

func (m *Manager) keepUser(u *api.User, err error) (*api.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		if api.IsUnauthorized(err) {
			m.clearLocked()
		}
		return nil, err
	}
	if m.state == nil {
		return nil, ErrNotAuthenticated
	}
	next := *m.state
	next.User = u
	if err := m.setLocked(&next); err != nil {
		return nil, err
	}
	return u, nil
}

func (m *Manager) setLocked(st *State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("save session: marshal: %w", err)
	}
	if err := m.kv.Put(StorageKey, raw); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	m.state = st
	return nil
}

func (m *Manager) clearLocked() error {
	m.state = nil
	if err := m.kv.Delete(StorageKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
