// Package session owns the authentication state of one painel "tab": the bearer
// token, its decoded claims, the Authorization header on the shared API client,
// the persisted copy of the token and the logout broadcast to sibling tabs.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/painel-dev/painel/internal/broadcast"
)

const (
	// StorageKey is the key the token is persisted under for an origin
	StorageKey = "authToken"

	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// ErrNotAuthenticated is returned by stores with no token and by guards
var ErrNotAuthenticated = errors.New("not authenticated. Please run 'painel login' first")

// TokenStore persists the raw token per origin
type TokenStore interface {
	SaveToken(origin, token string) error
	LoadToken(origin string) (string, error)
	DeleteToken(origin string) error
}

// APIClient is the HTTP client whose default headers the session manages
type APIClient interface {
	RequestToken(ctx context.Context, username, password string) (string, error)
	SetDefaultHeader(key, value string)
	DeleteDefaultHeader(key string)
	AddResponseInterceptor(fn func(resp *http.Response)) (remove func())
}

// Manager is the single source of truth for authentication state in one tab
type Manager struct {
	origin  string
	store   TokenStore
	api     APIClient
	channel broadcast.Channel
	logger  zerolog.Logger
	now     func() time.Time

	onLogout func()

	mu        sync.Mutex
	token     string
	claims    *Claims
	loggingIn bool

	sub               broadcast.Subscription
	removeInterceptor func()
	closeOnce         sync.Once
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger used for session events
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithClock overrides the wall clock used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogoutHook registers fn to run after every Logout, outside the lock
func WithLogoutHook(fn func()) Option {
	return func(m *Manager) {
		m.onLogout = fn
	}
}

// New hydrates a session from the store, subscribes to logout broadcasts and
// hooks the 401 interceptor into api. It fails only if the channel refuses the
// subscription.
func New(origin string, store TokenStore, api APIClient, channel broadcast.Channel, opts ...Option) (*Manager, error) {
	m := &Manager{
		origin:  origin,
		store:   store,
		api:     api,
		channel: channel,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("origin", origin).Logger()

	m.hydrate()

	sub, err := channel.Subscribe(m.handleMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", broadcast.ChannelName, err)
	}
	m.sub = sub
	m.removeInterceptor = api.AddResponseInterceptor(m.handleResponse)

	return m, nil
}

// hydrate restores a persisted token. Expired or malformed tokens are cleared
// without a broadcast: every tab reaches the same verdict on its own.
func (m *Manager) hydrate() {
	token, err := m.store.LoadToken(m.origin)
	if err != nil {
		if !errors.Is(err, ErrNotAuthenticated) {
			m.logger.Warn().Err(err).Msg("Failed to load persisted token")
		}
		return
	}
	if token == "" {
		return
	}

	claims, err := DecodeToken(token)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Malformed persisted token, clearing session")
		m.Logout(false)
		return
	}
	if claims.Expired(m.now()) {
		m.logger.Info().Msg("Persisted token expired, clearing session")
		m.Logout(false)
		return
	}

	m.mu.Lock()
	m.installLocked(token, claims)
	m.mu.Unlock()

	m.logger.Debug().Str("user", claims.Subject).Msg("Session restored")
}

// IsAuthenticated reports whether a token is installed
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != ""
}

// User returns the claims projection, or nil when logged out or when the token
// could not be decoded.
func (m *Manager) User() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" || m.claims == nil {
		return nil
	}
	return m.claims.user()
}

// Login exchanges credentials for a token. It never returns an error: wrong
// credentials, transport failures and storage failures all yield false and a
// clean logged-out state. A Login started while another is in flight returns
// false without touching the session.
func (m *Manager) Login(ctx context.Context, username, password string) bool {
	m.mu.Lock()
	if m.loggingIn {
		m.mu.Unlock()
		m.logger.Warn().Msg("Login already in progress, ignoring")
		return false
	}
	m.loggingIn = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.loggingIn = false
		m.mu.Unlock()
	}()

	token, err := m.api.RequestToken(ctx, username, password)
	if err != nil {
		m.logger.Warn().Err(err).Str("user", username).Msg("Login failed")
		m.Logout(false)
		return false
	}

	claims, err := DecodeToken(token)
	if err != nil {
		m.logger.Debug().Err(err).Msg("Issued token is not decodable, claims unavailable")
		claims = nil
	}

	m.mu.Lock()
	m.installLocked(token, claims)
	err = m.store.SaveToken(m.origin, token)
	m.mu.Unlock()

	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist token")
		m.Logout(false)
		return false
	}

	m.logger.Info().Str("user", username).Msg("Logged in")
	return true
}

// Logout clears the session in this tab. With broadcast set, sibling tabs are
// told to do the same; reacting to a broadcast or cleaning up at startup must
// pass false so tabs do not echo each other.
func (m *Manager) Logout(broadcast bool) {
	m.mu.Lock()
	m.token = ""
	m.claims = nil
	m.api.DeleteDefaultHeader(authorizationHeader)
	if err := m.store.DeleteToken(m.origin); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to delete persisted token")
	}
	m.mu.Unlock()

	if broadcast {
		m.publishLogout()
	}
	if m.onLogout != nil {
		m.onLogout()
	}
}

// Close releases the channel subscription and the 401 interceptor
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		if m.sub != nil {
			m.sub.Unsubscribe()
		}
		if m.removeInterceptor != nil {
			m.removeInterceptor()
		}
	})
	return nil
}

func (m *Manager) installLocked(token string, claims *Claims) {
	m.token = token
	m.claims = claims
	m.api.SetDefaultHeader(authorizationHeader, bearerPrefix+token)
}

// publishLogout runs outside m.mu: in-process channels deliver synchronously
func (m *Manager) publishLogout() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.channel.Publish(ctx, broadcast.LoggedOut); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to broadcast logout")
		return
	}
	m.logger.Debug().Msg("Broadcast logout to other tabs")
}

func (m *Manager) handleMessage(msg broadcast.Message) {
	if msg != broadcast.LoggedOut {
		return
	}
	m.logger.Info().Msg("Logged out by another tab")
	m.Logout(false)
}

func (m *Manager) handleResponse(resp *http.Response) {
	if resp.StatusCode != http.StatusUnauthorized {
		return
	}
	event := m.logger.Warn()
	if resp.Request != nil {
		event = event.Str("path", resp.Request.URL.Path)
	}
	event.Msg("Unauthorized response, logging out")
	m.Logout(true)
}
