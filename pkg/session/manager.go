package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/idctl/pkg/async"
	"github.com/platinummonkey/idctl/pkg/observability"
)

// ProfileFetcher loads the current user's server profile using token
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, token string) (map[string]any, error)
}

// Options configures a Manager
type Options struct {
	Store    Store
	Decoder  *Decoder
	Profiles ProfileFetcher

	IdentityServiceKey string
	AdminRole          string

	// ClearUndecodable removes a persisted token that fails to decode
	ClearUndecodable bool
	HydrationTimeout time.Duration

	Logger  *logrus.Logger
	Metrics *observability.ClientMetrics
	Now     func() time.Time
}

// Snapshot is a consistent view of the session
type Snapshot struct {
	Token    string
	User     *User
	IsAdmin  bool
	LoggedIn bool
}

// Manager owns the process-wide session: the raw token, the user derived
// from it, and the admin flag derived from the user. Create one per process
// and pass it to the components that need it.
type Manager struct {
	opts Options
	log  *logrus.Logger

	mu      sync.RWMutex
	token   string
	claims  *Claims
	user    *User
	isAdmin bool

	// generation increments on every SetToken; hydration results from an
	// older generation are dropped
	generation uint64
	hydration  <-chan struct{}

	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSub     int
}

// NewManager creates a logged-out manager. Call Init to restore a persisted token.
func NewManager(opts Options) *Manager {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Decoder == nil {
		opts.Decoder = NewDecoder(DefaultDecoderCacheSize, 0)
	}
	if opts.IdentityServiceKey == "" {
		opts.IdentityServiceKey = "identity-service"
	}
	if opts.AdminRole == "" {
		opts.AdminRole = "admin"
	}
	if opts.HydrationTimeout <= 0 {
		opts.HydrationTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}

	return &Manager{
		opts:        opts,
		log:         log,
		subscribers: make(map[int]func(Snapshot)),
	}
}

// Init restores the session from the store. It derives the user from the
// stored token's claims without fetching the profile, and is a no-op once a
// user is set.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.RLock()
	hasUser := m.user != nil
	m.mu.RUnlock()
	if hasUser {
		return nil
	}

	token, err := m.opts.Store.Load(ctx)
	if err != nil {
		m.log.WithError(err).Warn("failed to read stored session")
		return nil
	}
	if token == "" {
		return nil
	}

	claims, decodeErr := m.opts.Decoder.Decode(token)

	m.mu.Lock()
	if m.user != nil {
		m.mu.Unlock()
		return nil
	}
	m.token = token
	m.apply(claims)
	m.mu.Unlock()

	if decodeErr != nil {
		m.log.WithError(decodeErr).Debug("stored token is not decodable")
		if err := m.clearUndecodable(ctx); err != nil {
			return err
		}
	}

	m.notify()
	return nil
}

// SetToken replaces the session. An empty token logs out and clears the
// store. A non-empty token is stored, decoded, and the claims user becomes
// current immediately; the server profile is then fetched in the background
// and merged when it arrives.
//
// The in-memory transition always happens; the returned error only reports
// a store failure.
func (m *Manager) SetToken(ctx context.Context, token string) error {
	var storeErr error
	if token == "" {
		storeErr = m.opts.Store.Clear(ctx)
	} else {
		storeErr = m.opts.Store.Save(ctx, token)
	}
	if storeErr != nil {
		m.log.WithError(storeErr).Warn("failed to persist session")
		storeErr = fmt.Errorf("session: persist token: %w", storeErr)
	}

	var claims *Claims
	var decodeErr error
	if token != "" {
		claims, decodeErr = m.opts.Decoder.Decode(token)
	}

	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.token = token
	m.apply(claims)
	hydrate := m.user != nil && m.opts.Profiles != nil
	if hydrate {
		m.hydration = m.startHydration(ctx, gen, token)
	} else {
		m.hydration = nil
	}
	m.mu.Unlock()

	if decodeErr != nil {
		m.log.WithError(decodeErr).Debug("token is not decodable")
		if err := m.clearUndecodable(ctx); err != nil && storeErr == nil {
			storeErr = err
		}
	}

	m.notify()
	return storeErr
}

// Logout clears the session
func (m *Manager) Logout(ctx context.Context) error {
	return m.SetToken(ctx, "")
}

// HydrateNow fetches the profile synchronously and merges it. Unlike the
// background hydration its error is returned.
func (m *Manager) HydrateNow(ctx context.Context) error {
	if m.opts.Profiles == nil {
		return nil
	}

	m.mu.RLock()
	token, gen, hasUser := m.token, m.generation, m.user != nil
	m.mu.RUnlock()
	if !hasUser {
		return ErrNotLoggedIn
	}

	profile, err := m.opts.Profiles.FetchProfile(ctx, token)
	if err != nil {
		return err
	}
	m.merge(gen, profile)
	return nil
}

// WaitHydration blocks until the background hydration started by the last
// SetToken has finished, or ctx is done
func (m *Manager) WaitHydration(ctx context.Context) error {
	m.mu.RLock()
	done := m.hydration
	m.mu.RUnlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Token returns the raw token, or "" when logged out
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// User returns a copy of the current user, or nil
func (m *Manager) User() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.Clone()
}

// Claims returns the decoded claims of the current token, or nil
func (m *Manager) Claims() *Claims {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.claims == nil {
		return nil
	}
	return m.claims.clone()
}

// IsAdmin reports whether the current user holds the admin role in the
// identity service. It is presentation-only; the server enforces access.
func (m *Manager) IsAdmin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isAdmin
}

// LoggedIn reports whether a token is present
func (m *Manager) LoggedIn() bool {
	return m.Token() != ""
}

// RequireToken returns the token for a protected call, or ErrNotLoggedIn /
// ErrSessionExpired when the user has to log in first
func (m *Manager) RequireToken() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == "" || m.user == nil {
		return "", ErrNotLoggedIn
	}
	if m.claims.Expired(m.opts.Now()) {
		return "", ErrSessionExpired
	}
	return m.token, nil
}

// Snapshot returns the current session view
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Subscribe registers fn to be called after every session change. The
// returned func removes the subscription.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = fn

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subscribers, id)
	}
}

// apply sets claims, user and the admin flag. Caller holds mu.
func (m *Manager) apply(claims *Claims) {
	m.claims = claims
	if claims == nil {
		m.user = nil
	} else {
		m.user = UserFromClaims(claims)
	}
	m.recompute()

	state := "logged_out"
	if m.user != nil {
		state = "logged_in"
	}
	m.opts.Metrics.RecordTransition(state)
}

// recompute derives isAdmin from user. Caller holds mu.
func (m *Manager) recompute() {
	m.isAdmin = IsAdmin(m.user, m.opts.IdentityServiceKey, m.opts.AdminRole)
}

// startHydration fetches the profile in the background. Caller holds mu.
func (m *Manager) startHydration(ctx context.Context, gen uint64, token string) <-chan struct{} {
	profiles := m.opts.Profiles
	return async.SafeGo(ctx, m.log, m.opts.HydrationTimeout, "profile hydration", func(ctx context.Context) error {
		profile, err := profiles.FetchProfile(ctx, token)
		if err != nil {
			return err
		}
		m.merge(gen, profile)
		return nil
	})
}

// merge applies a profile if the session has not moved on since gen
func (m *Manager) merge(gen uint64, profile map[string]any) {
	if profile == nil {
		return
	}

	m.mu.Lock()
	if gen != m.generation || m.user == nil {
		m.mu.Unlock()
		m.log.Debug("discarding profile for a replaced session")
		return
	}
	next := m.user.Clone()
	next.Merge(profile)
	m.user = next
	m.recompute()
	m.mu.Unlock()

	m.notify()
}

func (m *Manager) clearUndecodable(ctx context.Context) error {
	if !m.opts.ClearUndecodable {
		return nil
	}
	if err := m.opts.Store.Clear(ctx); err != nil {
		return fmt.Errorf("session: clear undecodable token: %w", err)
	}
	return nil
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		Token:    m.token,
		User:     m.user.Clone(),
		IsAdmin:  m.isAdmin,
		LoggedIn: m.token != "",
	}
}

func (m *Manager) notify() {
	snap := m.Snapshot()

	m.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
