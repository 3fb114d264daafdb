package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sistema-escolar/escuela-backend/internal/model"
)

// Defaults mirror the web client.
const (
	DefaultMaxFailures   = 5
	DefaultLockout       = 5 * time.Minute
	DefaultRestoreWindow = 24 * time.Hour
	DefaultPollInterval  = 5 * time.Minute
)

// Options configures a Manager. Zero values take the defaults above.
type Options struct {
	BaseURL string
	// CachePath is the JSON file holding the cached user, lockout state and
	// session cookie between runs. Empty keeps everything in memory.
	CachePath     string
	Timeout       time.Duration
	MaxFailures   int
	Lockout       time.Duration
	RestoreWindow time.Duration
	Log           zerolog.Logger
	Now           func() time.Time
}

type cachedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type cacheState struct {
	User        *model.PublicUser `json:"user,omitempty"`
	SavedAt     time.Time         `json:"saved_at"`
	Failures    int               `json:"failures"`
	LockedUntil time.Time         `json:"locked_until"`
	Cookies     []cachedCookie    `json:"cookies,omitempty"`
}

// Manager keeps a local mirror of the authentication state. The lockout is
// a courtesy to the user; the server enforces its own.
type Manager struct {
	baseURL string
	base    *url.URL
	http    *http.Client
	jar     http.CookieJar
	opts    Options
	log     zerolog.Logger

	mu    sync.Mutex
	state cacheState
}

// New creates a Manager and restores any cached state from CachePath.
func New(opts Options) (*Manager, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = DefaultMaxFailures
	}
	if opts.Lockout <= 0 {
		opts.Lockout = DefaultLockout
	}
	if opts.RestoreWindow <= 0 {
		opts.RestoreWindow = DefaultRestoreWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		baseURL: base.String(),
		base:    base,
		http:    &http.Client{Timeout: opts.Timeout, Jar: jar},
		jar:     jar,
		opts:    opts,
		log:     opts.Log.With().Str("component", "client").Logger(),
	}

	if err := m.load(); err != nil {
		m.log.Warn().Err(err).Str("path", opts.CachePath).Msg("Ignoring unreadable session cache")
		m.state = cacheState{}
	}
	return m, nil
}

// Login authenticates and caches the returned user. Five consecutive 401s
// lock further attempts for the lockout period; a success clears the count.
func (m *Manager) Login(ctx context.Context, username, password, role string) (*model.PublicUser, error) {
	m.mu.Lock()
	if until := m.state.LockedUntil; m.opts.Now().Before(until) {
		m.mu.Unlock()
		return nil, &LockedError{Until: until}
	}
	m.mu.Unlock()

	var out loginBody
	resp, err := m.do(ctx, http.MethodPost, "/login", map[string]string{
		"usuario":  username,
		"password": password,
		"rol":      role,
	}, &out)

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.opts.Now()

	if err == nil {
		m.state.Failures = 0
		m.state.LockedUntil = time.Time{}
		m.state.User = out.User
		m.state.SavedAt = now
		m.persistLocked()
		return out.User, nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return nil, err
	}

	switch apiErr.Status {
	case http.StatusUnauthorized:
		m.state.Failures++
		if m.state.Failures >= m.opts.MaxFailures {
			m.state.LockedUntil = now.Add(m.opts.Lockout)
			m.state.Failures = 0
			m.log.Warn().Str("username", username).Time("until", m.state.LockedUntil).Msg("Login locked locally")
		}
		m.persistLocked()
		return nil, ErrInvalidCredentials
	case http.StatusTooManyRequests:
		m.state.LockedUntil = now.Add(retryAfter(resp, m.opts.Lockout))
		m.persistLocked()
		return nil, &LockedError{Until: m.state.LockedUntil}
	default:
		return nil, err
	}
}

// Logout ends the server session and forgets the cached user even when the
// server cannot be reached.
func (m *Manager) Logout(ctx context.Context) error {
	_, err := m.do(ctx, http.MethodPost, "/logout", nil, nil)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.User = nil
	m.state.SavedAt = time.Time{}
	m.persistLocked()
	return err
}

// CheckSession asks the server whether the session is alive and updates the
// cached user accordingly.
func (m *Manager) CheckSession(ctx context.Context) (SessionStatus, error) {
	var st SessionStatus
	if _, err := m.do(ctx, http.MethodGet, "/session", nil, &st); err != nil {
		return SessionStatus{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if st.LoggedIn && st.User != nil {
		m.state.User = st.User
		m.state.SavedAt = m.opts.Now()
	} else {
		m.state.User = nil
		m.state.SavedAt = time.Time{}
	}
	m.persistLocked()
	return st, nil
}

// CSRFToken fetches the anti-forgery token of the current session.
func (m *Manager) CSRFToken(ctx context.Context) (CSRFToken, error) {
	var tok CSRFToken
	_, err := m.do(ctx, http.MethodGet, "/csrf-token", nil, &tok)
	return tok, err
}

// CachedUser returns the cached user while it is inside the restore window.
func (m *Manager) CachedUser() *model.PublicUser {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.User == nil || m.opts.Now().Sub(m.state.SavedAt) > m.opts.RestoreWindow {
		return nil
	}
	u := *m.state.User
	return &u
}

// Locked reports whether logins are currently locked, and until when.
func (m *Manager) Locked() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until := m.state.LockedUntil
	return until, m.opts.Now().Before(until)
}

// Failures returns the consecutive failed login count.
func (m *Manager) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Failures
}

// Poll checks the session immediately and then every interval until ctx is
// cancelled. Call in a goroutine.
func (m *Manager) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	check := func() {
		st, err := m.CheckSession(ctx)
		if err != nil {
			if ctx.Err() == nil {
				m.log.Warn().Err(err).Msg("Session check failed")
			}
			return
		}
		if !st.LoggedIn {
			m.log.Debug().Msg("Session no longer active")
		}
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

func (m *Manager) load() error {
	if m.opts.CachePath == "" {
		return nil
	}
	b, err := os.ReadFile(m.opts.CachePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, &m.state); err != nil {
		return err
	}

	cookies := make([]*http.Cookie, 0, len(m.state.Cookies))
	for _, c := range m.state.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	m.jar.SetCookies(m.base, cookies)
	return nil
}

// persistLocked writes the cache file. Callers hold m.mu.
func (m *Manager) persistLocked() {
	if m.opts.CachePath == "" {
		return
	}

	m.state.Cookies = m.state.Cookies[:0]
	for _, c := range m.jar.Cookies(m.base) {
		m.state.Cookies = append(m.state.Cookies, cachedCookie{Name: c.Name, Value: c.Value})
	}

	b, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to encode session cache")
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.opts.CachePath), 0o700); err != nil {
		m.log.Error().Err(err).Msg("Failed to create cache directory")
		return
	}
	tmp := m.opts.CachePath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		m.log.Error().Err(err).Msg("Failed to write session cache")
		return
	}
	if err := os.Rename(tmp, m.opts.CachePath); err != nil {
		m.log.Error().Err(err).Msg("Failed to replace session cache")
	}
}
