package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/ruralcare/carenav/internal/errors"
	"github.com/ruralcare/carenav/internal/finder"
	"github.com/ruralcare/carenav/internal/logger"
	"github.com/ruralcare/carenav/internal/metrics"
	"github.com/ruralcare/carenav/internal/recognition"
	"github.com/ruralcare/carenav/internal/recommend"
)

// Options configure how sessions are assembled.
type Options struct {
	Finder        finder.Deps
	NewEngine     func() recognition.ScoreSource
	Listen        recognition.ListenConfig
	Threshold     float64
	DebounceDelay time.Duration
	// IdleTimeout evicts live sessions from the process; the stored record
	// outlives eviction.
	IdleTimeout time.Duration
	Now         func() time.Time
}

// Manager is the session registry. It keeps live sessions in process and
// writes their records through to the Store.
type Manager struct {
	store  Store
	opts   Options
	logger logger.Logger

	mu   sync.Mutex
	live map[string]*Session
}

func NewManager(store Store, opts Options, log logger.Logger) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store:  store,
		opts:   opts,
		logger: log.With(map[string]interface{}{"component": "sessions"}),
		live:   make(map[string]*Session),
	}
}

// Create starts a new session and persists it.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	now := m.opts.Now()
	s := m.build(uuid.NewString(), now, now)

	if err := m.store.Save(ctx, s.Record(now)); err != nil {
		s.Bridge.Dispose()
		return nil, err
	}
	m.track(s)
	m.logger.Info("session created", map[string]interface{}{"session_id": s.ID})
	return s, nil
}

// Get returns the live session for id, rehydrating it from the store when
// it is not in process.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewSessionNotFoundError(id)
	}
	now := m.opts.Now()

	m.mu.Lock()
	s, ok := m.live[id]
	m.mu.Unlock()
	if ok {
		s.Touch(now)
		return s, nil
	}

	rec, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	s = m.build(rec.ID, rec.CreatedAt, rec.DebounceStart)
	s.Finder.Restore(rec.Finder)
	s.Debouncer.Restore(rec.Recommendation, rec.DebounceStart)
	s.ui = rec.UI
	s.Touch(now)

	m.mu.Lock()
	if existing, ok := m.live[id]; ok {
		m.mu.Unlock()
		s.Bridge.Dispose()
		return existing, nil
	}
	m.live[id] = s
	m.mu.Unlock()
	metrics.ActiveSessions.Inc()

	m.logger.Debug("session restored", map[string]interface{}{"session_id": id})
	return s, nil
}

// Save writes the session's current record to the store.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	return m.store.Save(ctx, s.Record(m.opts.Now()))
}

// Delete disposes and forgets a session. Ids that are neither live nor
// stored yield SESSION_NOT_FOUND.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewSessionNotFoundError(id)
	}
	if !m.evict(id) {
		if _, err := m.store.Load(ctx, id); err != nil {
			return err
		}
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info("session deleted", map[string]interface{}{"session_id": id})
	return nil
}

// Sweep evicts sessions idle for longer than the idle timeout and returns
// how many were evicted.
func (m *Manager) Sweep(now time.Time) int {
	if m.opts.IdleTimeout <= 0 {
		return 0
	}
	m.mu.Lock()
	var stale []string
	for id, s := range m.live {
		if now.Sub(s.idleSince()) > m.opts.IdleTimeout {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		m.evict(id)
	}
	if len(stale) > 0 {
		m.logger.Info("evicted idle sessions", map[string]interface{}{"count": len(stale)})
	}
	if p, ok := m.store.(interface{ Prune() int }); ok {
		p.Prune()
	}
	return len(stale)
}

// Run sweeps on every tick until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.opts.Now())
		}
	}
}

// Close disposes every live session and flushes the store if it keeps a
// disk snapshot.
func (m *Manager) Close() error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.live))
	for id := range m.live {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.evict(id)
	}
	if d, ok := m.store.(interface{ SaveToDisk() error }); ok {
		return d.SaveToDisk()
	}
	return nil
}

// Live reports how many sessions are held in process.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

func (m *Manager) build(id string, createdAt, debounceStart time.Time) *Session {
	log := m.logger.With(map[string]interface{}{"session_id": id})
	engine := m.opts.NewEngine()
	debouncer := recommend.NewDebouncer(m.opts.Threshold, m.opts.DebounceDelay, debounceStart)

	return &Session{
		ID:        id,
		Finder:    finder.NewViewModel(m.opts.Finder, log),
		Debouncer: debouncer,
		Bridge:    recognition.NewBridge(engine, debouncer, m.opts.Listen, m.opts.Now, log),
		engine:    engine,
		createdAt: createdAt,
		touchedAt: createdAt,
	}
}

func (m *Manager) track(s *Session) {
	m.mu.Lock()
	m.live[s.ID] = s
	m.mu.Unlock()
	metrics.ActiveSessions.Inc()
}

// evict disposes the live session for id and reports whether there was one.
func (m *Manager) evict(id string) bool {
	m.mu.Lock()
	s, ok := m.live[id]
	delete(m.live, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Bridge.Dispose()
	metrics.ActiveSessions.Dec()
	return true
}
