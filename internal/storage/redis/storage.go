package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/castlegate/castlegate/internal/model"
	"github.com/castlegate/castlegate/internal/storage"
)

// Storage is a Redis-backed implementation of the store interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

// opCtx bounds a store call so that a stalled Redis fails the operation
// instead of hanging the caller's handler.
func (s *Storage) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.OpTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.OpTimeout)
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, sessionKey(session.ID), data, s.cfg.SessionTTL).Err()
}

func (s *Storage) SaveSessionCAS(ctx context.Context, session *model.Session) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	key := sessionKey(session.ID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrSessionNotFound
			}
			return err
		}

		var current model.Session
		if err := json.Unmarshal(data, &current); err != nil {
			return model.ErrMalformedSnapshot
		}
		if current.Version != session.Version {
			return model.ErrVersionConflict
		}

		next := *session
		next.Version++
		buf, err := json.Marshal(&next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, buf, s.cfg.SessionTTL)
			return nil
		})
		if err == nil {
			session.Version = next.Version
		}
		return err
	}, key)

	// The key changed between WATCH and EXEC: another process won the write
	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrVersionConflict
	}
	return err
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, model.ErrMalformedSnapshot
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.client.Del(ctx, sessionKey(id)).Err()
}

// Session pointer operations

func (s *Storage) SetSessionPointer(ctx context.Context, playerID model.PlayerID, sessionID model.SessionID) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.client.Set(ctx, pointerKey(playerID), string(sessionID), s.cfg.SessionTTL).Err()
}

func (s *Storage) GetSessionPointer(ctx context.Context, playerID model.PlayerID) (model.SessionID, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	val, err := s.client.Get(ctx, pointerKey(playerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", model.ErrNoSessionPointer
		}
		return "", err
	}
	if val == "" {
		return "", model.ErrNoSessionPointer
	}
	return model.SessionID(val), nil
}

func (s *Storage) ClearSessionPointer(ctx context.Context, playerID model.PlayerID) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.client.Del(ctx, pointerKey(playerID)).Err()
}

// Matchmaking queue operations

func (s *Storage) Enqueue(ctx context.Context, entry model.QueueEntry) error {
	// Drop any stale entry for this player first to keep the
	// at-most-once invariant.
	if err := s.RemoveQueued(ctx, entry.PlayerID); err != nil {
		return err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return s.client.LPush(ctx, queueKey(), data).Err()
}

// PopWaiting atomically removes the longest-waiting entry. RPOP is a
// single Redis command, so two processes can never receive the same
// entry. A value that does not decode returns ErrMalformedQueueEntry;
// the broken entry is already off the queue at that point.
func (s *Storage) PopWaiting(ctx context.Context) (*model.QueueEntry, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	data, err := s.client.RPop(ctx, queueKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrQueueEmpty
		}
		return nil, err
	}

	var entry model.QueueEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, model.ErrMalformedQueueEntry
	}
	if entry.PlayerID == "" {
		return nil, model.ErrMalformedQueueEntry
	}
	return &entry, nil
}

// RequeueFront pushes an entry onto the pop end of the queue, restoring
// its place in line. The entry was atomically popped moments before, so
// no dedupe pass is needed.
func (s *Storage) RequeueFront(ctx context.Context, entry model.QueueEntry) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return s.client.RPush(ctx, queueKey(), data).Err()
}

func (s *Storage) RemoveQueued(ctx context.Context, playerID model.PlayerID) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	values, err := s.client.LRange(ctx, queueKey(), 0, -1).Result()
	if err != nil {
		return err
	}

	var toRemove []string
	for _, val := range values {
		var entry model.QueueEntry
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			// Malformed entries are removed too; they can never pair
			toRemove = append(toRemove, val)
			continue
		}
		if entry.PlayerID == playerID {
			toRemove = append(toRemove, val)
		}
	}

	if len(toRemove) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, val := range toRemove {
		pipe.LRem(ctx, queueKey(), 0, val)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) QueueLength(ctx context.Context) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.client.LLen(ctx, queueKey()).Result()
}

// Pairing operations

func (s *Storage) CreatePairing(ctx context.Context, session *model.Session) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	// Session and both pointers land in one transaction so no process can
	// observe a pointer without its session.
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), data, s.cfg.SessionTTL)
		pipe.Set(ctx, pointerKey(session.PlayerA.ID), string(session.ID), s.cfg.SessionTTL)
		pipe.Set(ctx, pointerKey(session.PlayerB.ID), string(session.ID), s.cfg.SessionTTL)
		return nil
	})
	return err
}

func (s *Storage) CompleteSession(ctx context.Context, session *model.Session) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(session.ID))
		pipe.Del(ctx, pointerKey(session.PlayerA.ID))
		pipe.Del(ctx, pointerKey(session.PlayerB.ID))
		return nil
	})
	return err
}

// Account operations

func (s *Storage) SaveAccount(ctx context.Context, account *model.Account) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	data, err := json.Marshal(account)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, accountKey(account.Username), data, 0).Err()
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	data, err := s.client.Get(ctx, accountKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}

	var account model.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}
