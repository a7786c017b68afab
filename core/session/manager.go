package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"

	"github.com/brightwater/swereport/core"
)

type (
	Options struct {
		FetchTimeout time.Duration
		TTL          time.Duration // idle time after which a session is evicted
		MaxSessions  int           // live sessions kept at most; 0 means no limit
		Logger       core.Logger
	}

	entry struct {
		session  *Session
		lastSeen time.Time
	}

	// Manager creates sessions on demand and evicts idle ones lazily, on access.
	Manager struct {
		loader Loader
		opts   Options
		now    func() time.Time

		mu       sync.Mutex
		sessions map[string]*entry
	}
)

func NewManager(loader Loader, opts Options) (*Manager, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(loader, "loader"),
		vala.GreaterThan(int(opts.FetchTimeout), 0, "FetchTimeout"),
		vala.GreaterThan(int(opts.TTL), 0, "TTL"),
		vala.Not(vala.GreaterThan(0, opts.MaxSessions, "MaxSessions")),
	).Check(); err != nil {
		return nil, err
	}

	return &Manager{
		loader:   loader,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}, nil
}

// Get returns the live session `id`, if any.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	expired := m.sweep()
	e, ok := m.sessions[id]
	if ok {
		e.lastSeen = m.now()
	}
	m.mu.Unlock()

	closeAll(expired)
	if !ok {
		return nil, false
	}
	return e.session, true
}

// GetOrCreate returns the live session `id`, or a new session when it is unknown or expired.
func (m *Manager) GetOrCreate(id string) (sess *Session, created bool) {
	if sess, ok := m.Get(id); ok {
		return sess, false
	}
	return m.Create(), true
}

// Create starts a new session on the default project.
// When MaxSessions are live, the least recently seen one is evicted first.
func (m *Manager) Create() *Session {
	id := uuid.New().String()
	sess := newSession(id, m.loader, m.opts.FetchTimeout, m.opts.Logger, m.now)

	m.mu.Lock()
	expired := m.sweep()
	for m.opts.MaxSessions > 0 && len(m.sessions) >= m.opts.MaxSessions {
		expired = append(expired, m.evictOldest())
	}
	m.sessions[id] = &entry{session: sess, lastSeen: m.now()}
	m.mu.Unlock()

	closeAll(expired)
	return sess
}

// Remove closes and forgets session `id`.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		e.session.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, e := range m.sessions {
		sessions = append(sessions, e.session)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	closeAll(sessions)
}

// sweep drops idle sessions; callers close them once the lock is released.
func (m *Manager) sweep() []*Session {
	var expired []*Session
	deadline := m.now().Add(-m.opts.TTL)
	for id, e := range m.sessions {
		if e.lastSeen.Before(deadline) {
			expired = append(expired, e.session)
			delete(m.sessions, id)
		}
	}
	return expired
}

// evictOldest drops the least recently seen session; there must be one.
func (m *Manager) evictOldest() *Session {
	var oldest string
	for id, e := range m.sessions {
		if oldest == "" || e.lastSeen.Before(m.sessions[oldest].lastSeen) {
			oldest = id
		}
	}
	e := m.sessions[oldest]
	delete(m.sessions, oldest)
	if m.opts.Logger != nil {
		m.opts.Logger.Info("evicting least recently seen session", core.Person{ID: oldest})
	}
	return e.session
}

func closeAll(sessions []*Session) {
	for _, s := range sessions {
		s.Close()
	}
}
