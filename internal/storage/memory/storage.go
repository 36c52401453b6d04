package memory

import (
	"context"
	"sync"

	"github.com/castlegate/castlegate/internal/model"
	"github.com/castlegate/castlegate/internal/storage"
)

// Storage is an in-memory implementation of the store interface. It keeps
// the same semantics as the Redis store (value copies, version CAS, FIFO
// queue) so services behave identically under test.
type Storage struct {
	mu sync.RWMutex

	sessions map[model.SessionID]model.Session
	pointers map[model.PlayerID]model.SessionID
	queue    []model.QueueEntry
	accounts map[string]model.Account
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		sessions: make(map[model.SessionID]model.Session),
		pointers: make(map[model.PlayerID]model.SessionID),
		accounts: make(map[string]model.Account),
	}
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

func (s *Storage) SaveSessionCAS(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[session.ID]
	if !ok {
		return model.ErrSessionNotFound
	}
	if current.Version != session.Version {
		return model.ErrVersionConflict
	}

	session.Version++
	s.sessions[session.ID] = *session
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Session pointer operations

func (s *Storage) SetSessionPointer(ctx context.Context, playerID model.PlayerID, sessionID model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointers[playerID] = sessionID
	return nil
}

func (s *Storage) GetSessionPointer(ctx context.Context, playerID model.PlayerID) (model.SessionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessionID, ok := s.pointers[playerID]
	if !ok || sessionID == "" {
		return "", model.ErrNoSessionPointer
	}
	return sessionID, nil
}

func (s *Storage) ClearSessionPointer(ctx context.Context, playerID model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pointers, playerID)
	return nil
}

// Matchmaking queue operations

func (s *Storage) Enqueue(ctx context.Context, entry model.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeQueuedLocked(entry.PlayerID)
	s.queue = append(s.queue, entry)
	return nil
}

func (s *Storage) PopWaiting(ctx context.Context) (*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return nil, model.ErrQueueEmpty
	}

	entry := s.queue[0]
	s.queue = s.queue[1:]
	return &entry, nil
}

func (s *Storage) RequeueFront(ctx context.Context, entry model.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append([]model.QueueEntry{entry}, s.queue...)
	return nil
}

func (s *Storage) RemoveQueued(ctx context.Context, playerID model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeQueuedLocked(playerID)
	return nil
}

func (s *Storage) removeQueuedLocked(playerID model.PlayerID) {
	filtered := s.queue[:0]
	for _, entry := range s.queue {
		if entry.PlayerID != playerID {
			filtered = append(filtered, entry)
		}
	}
	s.queue = filtered
}

func (s *Storage) QueueLength(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.queue)), nil
}

// Pairing operations

func (s *Storage) CreatePairing(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = *session
	s.pointers[session.PlayerA.ID] = session.ID
	s.pointers[session.PlayerB.ID] = session.ID
	return nil
}

func (s *Storage) CompleteSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, session.ID)
	delete(s.pointers, session.PlayerA.ID)
	delete(s.pointers, session.PlayerB.ID)
	return nil
}

// Account operations

func (s *Storage) SaveAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.Username] = *account
	return nil
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[username]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return &account, nil
}
