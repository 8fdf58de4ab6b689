package session

import (
	"context"
	"sync"
	"time"

	"github.com/flx-it/assistbot/core/logger"
	"log/slog"

	"github.com/flx-it/assistbot/internal/ai"
)

type entry struct {
	session Session
	touched time.Time
}

// memoryStore keeps sessions in process memory. State is lost on restart,
// which only costs users their chat history.
type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*entry
}

// NewMemoryStore returns an empty in-memory session store.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[int64]*entry)}
}

// ensure returns the live entry for a user, creating it if needed.
// Callers must hold the write lock.
func (m *memoryStore) ensure(userID int64) *entry {
	e, ok := m.sessions[userID]
	if !ok {
		e = &entry{}
		m.sessions[userID] = e
	}
	e.touched = time.Now()
	return e
}

func (m *memoryStore) Load(_ context.Context, userID int64) Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.sessions[userID]
	if !ok {
		return Session{}
	}
	cp := Session{
		Messages: make([]ai.Message, len(e.session.Messages)),
		Pending:  make([]Operation, len(e.session.Pending)),
	}
	copy(cp.Messages, e.session.Messages)
	copy(cp.Pending, e.session.Pending)
	return cp
}

func (m *memoryStore) Reset(_ context.Context, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ensure(userID)
	e.session.Messages = nil
	e.session.Pending = nil
}

func (m *memoryStore) Clear(_ context.Context, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

func (m *memoryStore) AppendTurn(_ context.Context, userID int64, msgs ...ai.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ensure(userID)
	e.session.Messages = append(e.session.Messages, msgs...)
}

func (m *memoryStore) SetHistory(_ context.Context, userID int64, msgs []ai.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ensure(userID)
	e.session.Messages = append([]ai.Message(nil), msgs...)
}

func (m *memoryStore) Push(_ context.Context, userID int64, op Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ensure(userID)
	e.session.Pending = append(e.session.Pending, op)
}

func (m *memoryStore) Pop(_ context.Context, userID int64) (Operation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[userID]
	if !ok || len(e.session.Pending) == 0 {
		return Operation{}, false
	}
	e.touched = time.Now()
	last := len(e.session.Pending) - 1
	op := e.session.Pending[last]
	e.session.Pending = e.session.Pending[:last]
	return op, true
}

func (m *memoryStore) Peek(_ context.Context, userID int64) (Operation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.sessions[userID]
	if !ok || len(e.session.Pending) == 0 {
		return Operation{}, false
	}
	return e.session.Pending[len(e.session.Pending)-1], true
}

func (m *memoryStore) ClearPending(_ context.Context, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[userID]
	if !ok {
		return
	}
	e.touched = time.Now()
	e.session.Pending = nil
}

func (m *memoryStore) InProgress(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[userID]
	return ok && len(e.session.Pending) > 0
}

func (m *memoryStore) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, e := range m.sessions {
		if e.touched.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		logger.SESS.Debug("idle sessions swept",
			slog.String("event", "session.sweep"),
			slog.Int("collapsed", removed),
		)
	}
	return removed
}
