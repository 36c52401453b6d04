package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/castlegate/castlegate/internal/connection"
	"github.com/castlegate/castlegate/internal/dependencies/clock"
	"github.com/castlegate/castlegate/internal/model"
	"github.com/castlegate/castlegate/internal/rules"
	"github.com/castlegate/castlegate/internal/storage"
)

// maxCASAttempts bounds retries when another process wins a concurrent
// write to the same session.
const maxCASAttempts = 3

// Rejection reasons reported to the submitter
const (
	RejectSessionOver = "session is over"
	RejectNotYourTurn = "not your turn"
	RejectIllegalMove = "illegal move"
)

// Controller runs the per-session state machine: it applies moves,
// detects termination, and owns the durability contract for session
// mutations. Moves within one session are serialized by a per-session
// mutex in-process and by the store's version check across processes.
type Controller struct {
	store    storage.Store
	cache    *storage.SessionCache
	engine   rules.Engine
	registry *connection.Registry
	clock    clock.Clock
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[model.SessionID]*sync.Mutex
}

// NewController creates a session Controller
func NewController(
	store storage.Store,
	cache *storage.SessionCache,
	engine rules.Engine,
	registry *connection.Registry,
	clock clock.Clock,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		store:    store,
		cache:    cache,
		engine:   engine,
		registry: registry,
		clock:    clock,
		logger:   logger.With(slog.String("component", "session")),
		locks:    make(map[model.SessionID]*sync.Mutex),
	}
}

// MoveOutcome is the result of an ApplyMove call. A rejected move is not
// an error: Applied is false and RejectReason says why, with no mutation
// and nothing for the opponent.
type MoveOutcome struct {
	Session      *model.Session
	Applied      bool
	RejectReason string
	Terminal     bool
	Result       model.Result
}

// lockFor returns the mutex serializing moves for one session
func (c *Controller) lockFor(id model.SessionID) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	return l
}

// releaseLock drops the mutex for a finished session
func (c *Controller) releaseLock(id model.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, id)
}

// Load returns the session via the read-through cache
func (c *Controller) Load(ctx context.Context, id model.SessionID) (*model.Session, error) {
	return c.cache.Get(ctx, id)
}

// ApplyMove validates and applies a move from requester. Turn ownership
// is derived from the position's side to move, never tracked separately.
// The mutated session is persisted before the outcome is returned, so
// callers may notify the opponent only after durable state agrees.
func (c *Controller) ApplyMove(ctx context.Context, sessionID model.SessionID, requesterID model.PlayerID, move model.Move) (*MoveOutcome, error) {
	l := c.lockFor(sessionID)
	l.Lock()
	defer l.Unlock()

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		outcome, err := c.applyMoveOnce(ctx, sessionID, requesterID, move)
		if errors.Is(err, model.ErrVersionConflict) {
			// Another process moved first; reload and re-validate
			c.cache.Invalidate(sessionID)
			continue
		}
		return outcome, err
	}

	return nil, model.ErrVersionConflict
}

func (c *Controller) applyMoveOnce(ctx context.Context, sessionID model.SessionID, requesterID model.PlayerID, move model.Move) (*MoveOutcome, error) {
	session, err := c.cache.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Status == model.SessionOver {
		return &MoveOutcome{Session: session, RejectReason: RejectSessionOver}, nil
	}

	player := session.Participant(requesterID)
	if player == nil {
		return nil, model.ErrNotParticipant
	}

	sideToMove, err := c.engine.SideToMove(session.Position)
	if err != nil {
		return nil, err
	}
	if sideToMove != player.Side {
		return &MoveOutcome{Session: session, RejectReason: RejectNotYourTurn}, nil
	}

	next, err := c.engine.Apply(session.Position, move)
	if err != nil {
		if errors.Is(err, rules.ErrIllegalMove) {
			return &MoveOutcome{Session: session, RejectReason: RejectIllegalMove}, nil
		}
		return nil, err
	}

	outcome, err := c.engine.Outcome(next)
	if err != nil {
		return nil, err
	}

	session.Position = next
	session.UpdatedAt = c.clock.Now()

	result := model.Result("")
	if outcome.Terminal() {
		session.Status = model.SessionOver
		result, err = c.terminalResult(next, outcome)
		if err != nil {
			return nil, err
		}
	}

	if err := c.store.SaveSessionCAS(ctx, session); err != nil {
		return nil, err
	}
	c.cache.Put(session)

	if outcome.Terminal() {
		c.finishSession(ctx, session, result)
	}

	return &MoveOutcome{
		Session:  session,
		Applied:  true,
		Terminal: outcome.Terminal(),
		Result:   result,
	}, nil
}

// terminalResult maps a terminal position to the session result. On
// checkmate the side to move has been mated, so the winner is the
// opposite side; every other terminal condition is a draw.
func (c *Controller) terminalResult(position string, outcome rules.Outcome) (model.Result, error) {
	if outcome.Status == rules.StatusDraw {
		return model.ResultDraw, nil
	}

	matedSide, err := c.engine.SideToMove(position)
	if err != nil {
		return "", err
	}
	return model.WinnerResult(matedSide.Opposite()), nil
}

// finishSession removes the session's durable records. The terminal
// status was already persisted via CAS; if cleanup fails here, reconnect
// handling clears the leftover records on next contact.
func (c *Controller) finishSession(ctx context.Context, session *model.Session, result model.Result) {
	if err := c.store.CompleteSession(ctx, session); err != nil {
		c.logger.Warn("failed to remove finished session records",
			slog.String("session_id", string(session.ID)),
			slog.String("error", err.Error()),
		)
	}
	c.cache.Invalidate(session.ID)
	c.releaseLock(session.ID)

	c.logger.Info("session over",
		slog.String("session_id", string(session.ID)),
		slog.String("result", string(result)),
	)
}

// Abandon removes a session's durable records and cached copy without a
// played-out result, for deployments that end a session when one side
// leaves.
func (c *Controller) Abandon(ctx context.Context, session *model.Session) error {
	err := c.store.CompleteSession(ctx, session)
	c.cache.Invalidate(session.ID)
	c.releaseLock(session.ID)
	return err
}

// ResolveConnections re-binds both participants' connections from the
// process-local registry. Participants without a live connection get an
// empty connection ID; requireLive names the player whose connection
// must exist for the caller to proceed (resuming needs at least the
// reconnecting side reachable).
func (c *Controller) ResolveConnections(session *model.Session, requireLive model.PlayerID) error {
	for _, player := range []*model.Player{&session.PlayerA, &session.PlayerB} {
		if connID, ok := c.registry.ConnectionFor(player.ID); ok {
			player.ConnectionID = connID
		} else {
			player.ConnectionID = ""
			if player.ID == requireLive {
				return model.ErrConnectionNotFound
			}
		}
	}
	return nil
}
