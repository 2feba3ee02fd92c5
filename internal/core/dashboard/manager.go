package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/UjjawalMishra93/civic-issue-system/internal/core/upvotes"
	"github.com/UjjawalMishra93/civic-issue-system/internal/realtime"
)

// refreshConcurrency bounds how many sessions refetch at once after a change
const refreshConcurrency = 8

// DefaultSessionIdleTTL is how long an untouched session is kept
const DefaultSessionIdleTTL = 30 * time.Minute

// openSession is a reconciler plus the last time its owner used it
type openSession struct {
	rec      *Reconciler
	lastSeen time.Time
}

// Manager owns the reconcilers of every open dashboard session.
// Sessions idle for longer than the configured TTL are dropped.
type Manager struct {
	store    IssueStore
	backend  upvotes.Backend
	auth     AuthProvider
	notifier NotificationSink
	logger   *slog.Logger
	now      func() time.Time
	sessions map[string]*openSession
	cfg      Config
	mu       sync.RWMutex
}

// NewManager creates a session manager; reconcilers share its collaborators
func NewManager(store IssueStore, backend upvotes.Backend, auth AuthProvider, notifier NotificationSink, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SessionIdleTTL <= 0 {
		cfg.SessionIdleTTL = DefaultSessionIdleTTL
	}
	return &Manager{
		store:    store,
		backend:  backend,
		auth:     auth,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*openSession),
	}
}

// Open returns the loaded reconciler for sessionID, creating it on dashboard
// load. An existing session owned by the same user is refreshed and reused;
// one owned by someone else is replaced.
func (m *Manager) Open(ctx context.Context, sessionID string) (*Reconciler, error) {
	user := m.auth.CurrentUser(ctx)
	if user == nil {
		return nil, ErrAuthenticationRequired
	}

	existing, _ := m.Get(sessionID)
	if existing != nil && existing.Owner() == user.ID {
		if err := existing.Refresh(ctx); err != nil {
			return nil, err
		}
		return existing, nil
	}

	r := NewReconciler(sessionID, m.store, m.backend, m.auth, m.notifier, m.cfg, m.logger)
	if err := r.Load(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[sessionID] = &openSession{rec: r, lastSeen: m.now()}
	m.mu.Unlock()

	m.logger.Info("dashboard session opened",
		"session", sessionID,
		"user", user.ID)

	return r, nil
}

// Get returns the reconciler for an open session and marks it as used.
// A session past its idle TTL is not found even before the sweeper runs.
func (m *Manager) Get(sessionID string) (*Reconciler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	now := m.now()
	if !ok || m.expired(s, now) {
		return nil, ErrSessionNotFound
	}
	s.lastSeen = now
	return s.rec, nil
}

// Close discards a session's state. Returns false if it wasn't open.
func (m *Manager) Close(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return false
	}
	delete(m.sessions, sessionID)

	m.logger.Info("dashboard session closed", "session", sessionID)
	return true
}

// Len returns the number of open sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EvictIdle drops every session whose idle TTL has passed and returns how many
func (m *Manager) EvictIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	evicted := 0
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			evicted++
		}
	}

	if evicted > 0 {
		m.logger.Info("evicted idle dashboard sessions",
			"count", evicted,
			"remaining", len(m.sessions))
	}
	return evicted
}

// StartSweeper evicts idle sessions every interval until ctx is done
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.cfg.SessionIdleTTL / 2
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.EvictIdle()
			}
		}
	}()
}

func (m *Manager) expired(s *openSession, now time.Time) bool {
	return now.Sub(s.lastSeen) > m.cfg.SessionIdleTTL
}

// HandleChange refreshes every live session after a realtime change.
// Refresh failures are logged; the next change or explicit refetch retries.
func (m *Manager) HandleChange(ctx context.Context, change realtime.Change) {
	m.mu.RLock()
	now := m.now()
	open := make([]*Reconciler, 0, len(m.sessions))
	for _, s := range m.sessions {
		if m.expired(s, now) {
			continue
		}
		open = append(open, s.rec)
	}
	m.mu.RUnlock()

	if len(open) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(refreshConcurrency)
	for _, r := range open {
		g.Go(func() error {
			if err := r.HandleChange(ctx); err != nil {
				m.logger.Warn("failed to refresh dashboard after change",
					"error", err,
					"session", r.SessionID(),
					"table", change.Table,
					"record", change.RecordID)
			}
			return nil
		})
	}
	_ = g.Wait()
}
