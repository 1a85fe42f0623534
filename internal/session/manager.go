// Package session owns the authentication lifecycle: it is the only writer
// of the credential store, the source of the synchronous token snapshot the
// transport reads, and the reconciler that keeps its in-memory mirror
// converged with out-of-band store changes made by other processes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tuankiet2640/mai-client/internal/api"
	"github.com/tuankiet2640/mai-client/internal/credential"
	"github.com/tuankiet2640/mai-client/internal/domain"
	"github.com/tuankiet2640/mai-client/internal/observability/metrics"
	"github.com/tuankiet2640/mai-client/internal/token"
)

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateAuthenticated
	StateUnauthenticated
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

const defaultPollInterval = 5 * time.Second

// Manager orchestrates login, logout, refresh, and reconciliation. It is
// constructed explicitly and injected wherever session state is needed;
// there is no package-level instance.
type Manager struct {
	store        credential.Store
	api          *api.Client
	logger       *slog.Logger
	pollInterval time.Duration

	mu          sync.RWMutex
	rec         credential.Record // mirror of the store for synchronous reads
	state       State
	initialized bool
	listeners   []func(State)

	refreshGroup singleflight.Group
	reconciling  atomic.Bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithPollInterval overrides the reconciliation interval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// New creates a session manager over the given store and API client.
func New(store credential.Store, apiClient *api.Client, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:        store,
		api:          apiClient,
		logger:       logger,
		pollInterval: defaultPollInterval,
		state:        StateUninitialized,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize performs the startup pass: load the stored record, refresh if
// the access token is expired but refreshable, fetch the profile if it is
// missing, and settle on authenticated or unauthenticated. Storage and
// lifecycle errors resolve to a state transition rather than propagate.
// Initialized() flips to true exactly once, when this returns.
func (m *Manager) Initialize(ctx context.Context) {
	m.setState(StateInitializing)

	rec, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Error("failed to load credentials at startup", slog.String("error", err.Error()))
		m.finishInit(credential.Record{}, StateUnauthenticated)
		return
	}

	// Seed the mirror so the authorized transport and the refresh path can
	// see the stored tokens during initialization itself.
	m.mu.Lock()
	m.rec = rec
	m.mu.Unlock()

	switch {
	case rec.AccessToken != "" && !token.IsExpired(rec.AccessToken):
		if rec.User == nil {
			if user, err := m.api.Profile(ctx); err != nil {
				m.logger.Warn("profile fetch failed during init", slog.String("error", err.Error()))
				m.finishInit(credential.Record{}, StateUnauthenticated)
				return
			} else {
				rec.User = &user
				if err := m.store.SaveUser(ctx, &user); err != nil {
					m.logger.Warn("failed to persist profile", slog.String("error", err.Error()))
				}
			}
		}
		m.finishInit(rec, StateAuthenticated)

	case rec.RefreshToken != "":
		if _, err := m.RefreshAccessToken(ctx); err != nil {
			// RefreshAccessToken already tore the session down.
			m.logger.Info("startup refresh failed", slog.String("error", err.Error()))
			m.finishInit(credential.Record{}, StateUnauthenticated)
			return
		}
		m.mu.RLock()
		rec = m.rec
		m.mu.RUnlock()
		if rec.User == nil {
			if user, err := m.api.Profile(ctx); err != nil {
				m.logger.Warn("profile fetch failed during init", slog.String("error", err.Error()))
				m.teardown(ctx)
				m.finishInit(credential.Record{}, StateUnauthenticated)
				return
			} else {
				rec.User = &user
				if err := m.store.SaveUser(ctx, &user); err != nil {
					m.logger.Warn("failed to persist profile", slog.String("error", err.Error()))
				}
			}
		}
		m.finishInit(rec, StateAuthenticated)

	default:
		// No usable credentials. Clear any leftovers (an expired access
		// token with no refresh token is dead weight) and settle signed out.
		if !rec.Empty() {
			if err := m.store.Clear(ctx); err != nil {
				m.logger.Warn("failed to clear stale credentials", slog.String("error", err.Error()))
			}
		}
		m.finishInit(credential.Record{}, StateUnauthenticated)
	}
}

func (m *Manager) finishInit(rec credential.Record, st State) {
	m.mu.Lock()
	m.rec = rec
	m.initialized = true
	m.mu.Unlock()
	m.setState(st)
	metrics.SetAuthenticated(st == StateAuthenticated)
}

// Login authenticates against the server and persists the credential record.
// The profile is written before the tokens so no reader can observe tokens
// without a user; the mirror swaps under one lock, so callers of the
// synchronous getters see the transition atomically.
func (m *Manager) Login(ctx context.Context, username, password string) (*domain.UserProfile, error) {
	res, err := m.api.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	if err := m.store.SaveUser(ctx, &res.User); err != nil {
		return nil, fmt.Errorf("persist user: %w", err)
	}
	if err := m.store.SaveTokens(ctx, res.AccessToken, res.RefreshToken); err != nil {
		return nil, fmt.Errorf("persist tokens: %w", err)
	}

	m.mu.Lock()
	m.rec = credential.Record{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User:         &res.User,
	}
	m.mu.Unlock()
	m.setState(StateAuthenticated)
	metrics.SetAuthenticated(true)

	m.logger.Info("user logged in",
		slog.String("user_id", res.User.ID),
		slog.String("username", res.User.Username),
	)
	return &res.User, nil
}

// Logout invalidates the remote session best-effort, then always clears the
// local record. A network failure can never leave the process stuck
// authenticated.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.api.Logout(ctx); err != nil {
		m.logger.Warn("remote logout failed, clearing local session anyway",
			slog.String("error", err.Error()),
		)
	}
	m.teardown(ctx)
	m.logger.Info("user logged out")
}

// AccessToken returns the mirrored access token. Synchronous and
// non-blocking; implements transport.TokenSource.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rec.AccessToken
}

// CurrentUser returns the mirrored profile, or nil when signed out.
func (m *Manager) CurrentUser() *domain.UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rec.User
}

// IsAuthenticated is computed on every read rather than cached, so an
// expired token can never report a stale true.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rec.User != nil && m.rec.AccessToken != "" && !token.IsExpired(m.rec.AccessToken)
}

// Initialized reports whether the startup pass has completed.
func (m *Manager) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// OnChange registers a listener invoked after every state transition, e.g.
// so caches can drop authenticated data on sign-out.
func (m *Manager) OnChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// RefreshAccessToken mints a new access token; implements
// transport.Refresher. Concurrent callers coalesce onto a single network
// refresh keyed by the refresh token, so N requests that all hit a 401
// produce exactly one refresh call and share its outcome. Any refresh
// failure is terminal for the session: credentials are cleared and the
// state becomes unauthenticated.
func (m *Manager) RefreshAccessToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	refreshToken := m.rec.RefreshToken
	m.mu.RUnlock()
	if refreshToken == "" {
		return "", domain.ErrNotAuthenticated
	}

	v, err, _ := m.refreshGroup.Do(refreshToken, func() (any, error) {
		newTok, err := m.api.Refresh(ctx, refreshToken)
		if err != nil {
			var apiErr *api.Error
			if errors.As(err, &apiErr) && apiErr.IsRejection() {
				metrics.ObserveTokenRefresh("rejected")
			} else {
				metrics.ObserveTokenRefresh("error")
			}
			m.logger.Warn("token refresh failed, signing out", slog.String("error", err.Error()))
			m.teardown(ctx)
			return nil, fmt.Errorf("%w: %w", domain.ErrSessionExpired, err)
		}

		if err := m.store.SaveTokens(ctx, newTok, refreshToken); err != nil {
			m.logger.Warn("failed to persist refreshed token", slog.String("error", err.Error()))
		}
		m.mu.Lock()
		m.rec.AccessToken = newTok
		m.mu.Unlock()
		m.setState(StateAuthenticated)
		metrics.ObserveTokenRefresh("success")
		metrics.SetAuthenticated(true)
		return newTok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Run drives reconciliation until ctx is cancelled: a fixed-interval poll
// guarantees convergence, and the store's change signal makes it immediate
// when one arrives.
func (m *Manager) Run(ctx context.Context) {
	watch, err := m.store.Watch(ctx)
	if err != nil {
		m.logger.Warn("store watch unavailable, relying on polling only",
			slog.String("error", err.Error()),
		)
		watch = nil
	}

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	m.logger.Info("session reconciler started", slog.Duration("interval", m.pollInterval))
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("session reconciler stopped")
			return
		case <-ticker.C:
			m.Reconcile(ctx)
		case _, ok := <-watch:
			if !ok {
				watch = nil
				continue
			}
			m.Reconcile(ctx)
		}
	}
}

// Reconcile re-reads the store and updates the mirror when another writer
// changed it. It updates only the mirror: no profile refetch, no remote
// calls. A pass that fires while another is still reading is dropped, not
// queued.
func (m *Manager) Reconcile(ctx context.Context) {
	if !m.Initialized() {
		return
	}
	if !m.reconciling.CompareAndSwap(false, true) {
		metrics.ObserveReconcilePass("skipped")
		return
	}
	defer m.reconciling.Store(false)

	rec, err := m.store.Load(ctx)
	if err != nil {
		metrics.ObserveReconcilePass("error")
		m.logger.Warn("reconcile load failed", slog.String("error", err.Error()))
		return
	}

	m.mu.Lock()
	if !recordsDiffer(m.rec, rec) {
		m.mu.Unlock()
		metrics.ObserveReconcilePass("unchanged")
		return
	}
	m.rec = rec
	m.mu.Unlock()

	next := StateUnauthenticated
	if rec.User != nil && rec.AccessToken != "" && !token.IsExpired(rec.AccessToken) {
		next = StateAuthenticated
	}
	m.setState(next)
	metrics.SetAuthenticated(next == StateAuthenticated)
	metrics.ObserveReconcilePass("changed")
	m.logger.Info("session reconciled from store", slog.String("state", next.String()))
}

// teardown clears the store and the mirror. Store failures are logged, not
// surfaced: local sign-out must always complete.
func (m *Manager) teardown(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("failed to clear credential store", slog.String("error", err.Error()))
	}
	m.mu.Lock()
	m.rec = credential.Record{}
	m.mu.Unlock()
	m.setState(StateUnauthenticated)
	metrics.SetAuthenticated(false)
}

// setState transitions and notifies listeners outside the lock.
func (m *Manager) setState(next State) {
	m.mu.Lock()
	if m.state == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	listeners := make([]func(State), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}

func recordsDiffer(a, b credential.Record) bool {
	if a.AccessToken != b.AccessToken || a.RefreshToken != b.RefreshToken {
		return true
	}
	return userID(a.User) != userID(b.User)
}

func userID(u *domain.UserProfile) string {
	if u == nil {
		return ""
	}
	return u.ID
}
