package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/castlegate/castlegate/internal/model"
)

// SessionCache is a per-process, read-through/write-through cache of
// recently-touched sessions in front of a Store. It is never authoritative
// for cross-process decisions: writes always go to the store first, and a
// version conflict there invalidates the cached copy.
type SessionCache struct {
	store  Store
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[model.SessionID]model.Session
}

// NewSessionCache creates a SessionCache backed by the given store
func NewSessionCache(store Store, logger *slog.Logger) *SessionCache {
	return &SessionCache{
		store:    store,
		logger:   logger.With(slog.String("component", "session-cache")),
		sessions: make(map[model.SessionID]model.Session),
	}
}

// Get returns the cached session, falling back to the store on a miss.
// The returned session is a copy; callers mutate it freely and write it
// back via Put after a successful store save.
func (c *SessionCache) Get(ctx context.Context, id model.SessionID) (*model.Session, error) {
	c.mu.RLock()
	session, ok := c.sessions[id]
	c.mu.RUnlock()
	if ok {
		return &session, nil
	}

	loaded, err := c.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	c.Put(loaded)
	c.logger.Debug("session cache miss", slog.String("session_id", string(id)))
	return loaded, nil
}

// Put stores a copy of the session in the cache
func (c *SessionCache) Put(session *model.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[session.ID] = *session
}

// Invalidate drops the cached copy, forcing the next Get to hit the store
func (c *SessionCache) Invalidate(id model.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, id)
}

// Len returns the number of cached sessions
func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}
