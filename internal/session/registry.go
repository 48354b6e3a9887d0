package session

import (
	"log/slog"
	"sync"
)

// Registry is the process-wide map of live sessions. Its lock guards
// only lookup, insert and remove; all session state is mutated under the
// session's own mutex, so sessions never contend with each other.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger.With("component", "registry"),
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate - returns the session with the given id, creating a fresh
// waiting session on first use.
func (that *Registry) GetOrCreate(id string) *Session {
	that.mu.RLock()
	existing, ok := that.sessions[id]
	that.mu.RUnlock()

	if ok {
		return existing
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	// lost the race to another creator
	if existing, ok = that.sessions[id]; ok {
		return existing
	}

	created := NewSession(that.logger, id)
	that.sessions[id] = created

	that.logger.Info("session created", "sessionID", id)

	return created
}

// Get - returns the session with the given id, or false when it has been
// removed or never existed.
func (that *Registry) Get(id string) (*Session, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	existing, ok := that.sessions[id]

	return existing, ok
}

// Remove - deletes the session from the registry. Holders of an in-flight
// handle finish their operation on the detached session; their next
// lookup simply misses.
func (that *Registry) Remove(id string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, id)
}

// SnapshotIDs - copies the current session ids without holding the lock
// for longer than the copy.
func (that *Registry) SnapshotIDs() []string {
	that.mu.RLock()
	defer that.mu.RUnlock()

	ids := make([]string, 0, len(that.sessions))
	for id := range that.sessions {
		ids = append(ids, id)
	}

	return ids
}

// Len - returns the number of live sessions.
func (that *Registry) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.sessions)
}
