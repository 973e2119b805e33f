// ABOUTME: Session manager: sign-in, sign-out, credential refresh and subscriptions
// ABOUTME: The only component shared across goroutines, so its state sits behind a mutex

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AsafNachman/file-management-system/internal/errs"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Listener receives the current identity, or nil when signed out
type Listener func(*Identity)

// Session is a snapshot of the signed-in state
type Session struct {
	Identity   Identity
	ObtainedAt time.Time
	Expiry     time.Time
}

type session struct {
	identity   Identity
	username   string
	token      *oauth2.Token
	obtainedAt time.Time
}

// Manager owns the session lifecycle
type Manager struct {
	provider    Provider
	store       *Store
	logger      *slog.Logger
	refreshSkew time.Duration
	now         func() time.Time

	mu        sync.Mutex
	current   *session
	refreshes singleflight.Group

	subMu     sync.Mutex
	listeners map[int]Listener
	nextSub   int
}

// Option configures a Manager
type Option func(*Manager)

// WithStore persists tokens so later invocations share the session
func WithStore(s *Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithRefreshSkew treats credentials expiring within d as stale
func WithRefreshSkew(d time.Duration) Option {
	return func(m *Manager) { m.refreshSkew = d }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a signed-out manager
func NewManager(provider Provider, opts ...Option) *Manager {
	m := &Manager{
		provider:    provider,
		logger:      slog.Default(),
		refreshSkew: time.Minute,
		now:         time.Now,
		listeners:   make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SignIn runs the provider flow and establishes a session. On failure the
// manager stays signed out.
func (m *Manager) SignIn(ctx context.Context, login Login) (Identity, error) {
	tok, err := m.provider.Authenticate(ctx, login)
	if err != nil {
		if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
			return Identity{}, ErrCancelled
		}
		return Identity{}, errs.Wrap(errs.KindAuth, "sign in", err)
	}

	s := &session{
		identity:   identityFromCredential(bearer(tok), login.Username),
		username:   login.Username,
		token:      tok,
		obtainedAt: m.now(),
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	m.persist(tok, login.Username)
	m.logger.Info("signed in", "user_id", s.identity.UserID)
	m.notify()
	return s.identity, nil
}

// Restore re-establishes a session from the token store. It reports whether a
// session was restored.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	if m.store == nil {
		return false, nil
	}
	tok, username, err := m.store.Load()
	if errors.Is(err, ErrNoToken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if m.stale(tok) && tok.RefreshToken == "" {
		m.logger.Debug("saved token expired without refresh token")
		_ = m.store.Clear()
		return false, nil
	}

	s := &session{
		identity:   identityFromCredential(bearer(tok), username),
		username:   username,
		token:      tok,
		obtainedAt: m.now(),
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	m.logger.Debug("session restored", "user_id", s.identity.UserID)
	m.notify()
	return true, nil
}

// SignOut ends the session and notifies every subscriber before returning
func (m *Manager) SignOut() {
	m.mu.Lock()
	had := m.current != nil
	m.current = nil
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Clear(); err != nil {
			m.logger.Warn("failed to clear saved token", "error", err)
		}
	}
	if had {
		m.logger.Info("signed out")
	}
	m.notify()
}

// Identity returns the signed-in identity, or nil
func (m *Manager) Identity() *Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	id := m.current.identity
	return &id
}

// Session returns a snapshot of the current session
func (m *Manager) Session() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Session{}, false
	}
	return Session{
		Identity:   m.current.identity,
		ObtainedAt: m.current.obtainedAt,
		Expiry:     m.current.token.Expiry,
	}, true
}

// Credential returns a valid bearer credential, refreshing it first when the
// cached one is absent or stale. The refresh runs without holding the session
// lock, and concurrent refreshes of one session share a single provider call.
func (m *Manager) Credential(ctx context.Context) (string, error) {
	m.mu.Lock()
	s := m.current
	var tok *oauth2.Token
	if s != nil {
		tok = s.token
	}
	m.mu.Unlock()

	if s == nil {
		return "", errs.New(errs.KindAuth, "credential", "not signed in")
	}
	if bearer(tok) != "" && !m.stale(tok) {
		return bearer(tok), nil
	}

	v, err, _ := m.refreshes.Do(fmt.Sprintf("%p", s), func() (any, error) {
		return m.refresh(ctx, s, tok)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// refresh renews tok and installs the result only while s is still current
func (m *Manager) refresh(ctx context.Context, s *session, tok *oauth2.Token) (string, error) {
	fresh, err := m.provider.Refresh(ctx, tok)
	if err != nil {
		return "", errs.Wrap(errs.KindAuth, "credential", err)
	}
	if bearer(fresh) == "" {
		return "", errs.New(errs.KindAuth, "credential", "identity provider issued an empty credential")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != s {
		return "", errs.New(errs.KindAuth, "credential", "session ended during refresh")
	}
	s.token = fresh
	s.obtainedAt = m.now()
	m.logger.Debug("credential refreshed", "user_id", s.identity.UserID, "expiry", fresh.Expiry)
	m.persist(fresh, s.username)
	return bearer(fresh), nil
}

// Subscribe registers l and calls it immediately with the current identity.
// The returned function unsubscribes and is safe to call more than once.
func (m *Manager) Subscribe(l Listener) func() {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.listeners[id] = l
	m.subMu.Unlock()

	l(m.Identity())

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.listeners, id)
			m.subMu.Unlock()
		})
	}
}

func (m *Manager) notify() {
	m.subMu.Lock()
	ls := make([]Listener, 0, len(m.listeners))
	for i := 0; i < m.nextSub; i++ {
		if l, ok := m.listeners[i]; ok {
			ls = append(ls, l)
		}
	}
	m.subMu.Unlock()

	id := m.Identity()
	for _, l := range ls {
		l(id)
	}
}

func (m *Manager) stale(tok *oauth2.Token) bool {
	if tok == nil {
		return true
	}
	if tok.Expiry.IsZero() {
		return false
	}
	return !m.now().Add(m.refreshSkew).Before(tok.Expiry)
}

func (m *Manager) persist(tok *oauth2.Token, username string) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(tok, username); err != nil {
		m.logger.Warn("failed to save token", "error", err)
	}
}
