package reconnect

import (
	"context"
	"errors"
	"log/slog"

	"github.com/castlegate/castlegate/internal/model"
	"github.com/castlegate/castlegate/internal/services/session"
	"github.com/castlegate/castlegate/internal/storage"
)

// Coordinator restores a player's session on (re)connect. The player's
// durable session pointer is the only thing consulted: if it leads to a
// live session the player rejoins it, and if it is stale (no snapshot,
// a corrupt snapshot, or a finished session) it is cleared so future
// connects start clean.
type Coordinator struct {
	store      storage.Store
	controller *session.Controller
	logger     *slog.Logger
}

// NewCoordinator creates a reconnect Coordinator
func NewCoordinator(
	store storage.Store,
	controller *session.Controller,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		store:      store,
		controller: controller,
		logger:     logger.With(slog.String("component", "reconnect")),
	}
}

// Resumption describes a restored session: the session itself plus the
// payload to replay to the reconnecting player. A nil Resumption with a
// nil error means there was nothing to resume.
type Resumption struct {
	Session *model.Session
	Payload model.ResumePayload
}

// OnConnect checks whether the connecting player has a session to rejoin
// and, if so, rebinds the session's connection references to the current
// registrations. Safe to call repeatedly for the same player.
func (c *Coordinator) OnConnect(ctx context.Context, playerID model.PlayerID, connID model.ConnectionID) (*Resumption, error) {
	sessionID, err := c.store.GetSessionPointer(ctx, playerID)
	if err != nil {
		if errors.Is(err, model.ErrNoSessionPointer) {
			return nil, nil
		}
		return nil, err
	}

	sess, err := c.controller.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) || errors.Is(err, model.ErrMalformedSnapshot) {
			c.clearStalePointer(ctx, playerID, sessionID, err)
			return nil, nil
		}
		return nil, err
	}

	player := sess.Participant(playerID)
	if player == nil {
		// Pointer leads to a session that does not list this player;
		// treat it like any other stale pointer.
		c.clearStalePointer(ctx, playerID, sessionID, model.ErrNotParticipant)
		return nil, nil
	}

	if sess.Status == model.SessionOver {
		c.clearStalePointer(ctx, playerID, sessionID, model.ErrSessionOver)
		return nil, nil
	}

	if err := c.controller.ResolveConnections(sess, playerID); err != nil {
		return nil, err
	}

	c.logger.Info("session resumed",
		slog.String("player_id", string(playerID)),
		slog.String("connection_id", string(connID)),
		slog.String("session_id", string(sess.ID)),
	)

	return &Resumption{
		Session: sess,
		Payload: model.ResumePayload{Position: sess.Position, Side: player.Side},
	}, nil
}

// clearStalePointer removes a pointer that no longer leads to a live
// session for this player. Failures are logged only: the next connect
// retries the same cleanup.
func (c *Coordinator) clearStalePointer(ctx context.Context, playerID model.PlayerID, sessionID model.SessionID, cause error) {
	c.logger.Info("clearing stale session pointer",
		slog.String("player_id", string(playerID)),
		slog.String("session_id", string(sessionID)),
		slog.String("cause", cause.Error()),
	)
	if err := c.store.ClearSessionPointer(ctx, playerID); err != nil {
		c.logger.Warn("failed to clear stale session pointer",
			slog.String("player_id", string(playerID)),
			slog.String("error", err.Error()),
		)
	}
}
