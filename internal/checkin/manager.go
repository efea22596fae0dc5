package checkin

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager owns the gateway's open dialogs, one session per kiosk dialog,
// keyed by an opaque session id. Sessions idle past the TTL are swept on
// the next access.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*managed
	factory  func() *Session
	idleTTL  time.Duration
}

type managed struct {
	session  *Session
	lastSeen time.Time
}

// NewManager creates a manager. factory builds a fresh session per dialog.
func NewManager(factory func() *Session, idleTTL time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Manager{
		sessions: make(map[string]*managed),
		factory:  factory,
		idleTTL:  idleTTL,
	}
}

// Open creates a new dialog and returns its id.
func (m *Manager) Open() (string, *Session) {
	s := m.factory()
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(time.Now())
	m.sessions[id] = &managed{session: s, lastSeen: time.Now()}
	return id, s
}

// Get returns the session for an open dialog.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.sweepLocked(now)
	entry, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	entry.lastSeen = now
	return entry.session, true
}

// Close discards a dialog and its in-memory state.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *Manager) sweepLocked(now time.Time) {
	for id, entry := range m.sessions {
		if now.Sub(entry.lastSeen) > m.idleTTL {
			delete(m.sessions, id)
		}
	}
}
