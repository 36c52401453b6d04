package storage

import (
	"context"

	"github.com/castlegate/castlegate/internal/model"
)

// Store defines the interface for the shared, process-external state:
// session snapshots, per-player session pointers, the matchmaking queue,
// and registered accounts. It is the single source of truth shared by all
// server processes; in-memory caches are never authoritative.
type Store interface {
	// Session operations.
	//
	// SaveSession writes unconditionally. SaveSessionCAS succeeds only if
	// the stored version matches session.Version, then bumps the version;
	// a mismatch returns model.ErrVersionConflict and writes nothing.
	// Loads validate the snapshot and return model.ErrMalformedSnapshot
	// rather than a partially-populated session.
	SaveSession(ctx context.Context, session *model.Session) error
	SaveSessionCAS(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id model.SessionID) (*model.Session, error)
	DeleteSession(ctx context.Context, id model.SessionID) error

	// Session pointer operations: the per-player durable reference used
	// to route reconnects and moves without scanning all sessions.
	SetSessionPointer(ctx context.Context, playerID model.PlayerID, sessionID model.SessionID) error
	GetSessionPointer(ctx context.Context, playerID model.PlayerID) (model.SessionID, error)
	ClearSessionPointer(ctx context.Context, playerID model.PlayerID) error

	// Matchmaking queue operations. PopWaiting must be atomic across
	// processes: two concurrent pops can never return the same entry.
	// Enqueue keeps the at-most-once-per-player invariant. RequeueFront
	// returns a just-popped entry to the front of the queue, undoing a
	// pop whose pairing could not be persisted.
	Enqueue(ctx context.Context, entry model.QueueEntry) error
	PopWaiting(ctx context.Context) (*model.QueueEntry, error)
	RequeueFront(ctx context.Context, entry model.QueueEntry) error
	RemoveQueued(ctx context.Context, playerID model.PlayerID) error
	QueueLength(ctx context.Context) (int64, error)

	// CreatePairing persists a new session and both players' pointers in
	// one logically atomic write.
	CreatePairing(ctx context.Context, session *model.Session) error

	// CompleteSession removes the session's durable records: the snapshot
	// and both players' pointers, in one logically atomic write.
	CompleteSession(ctx context.Context, session *model.Session) error

	// Account operations
	SaveAccount(ctx context.Context, account *model.Account) error
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
}
