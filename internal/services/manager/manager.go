package manager

import (
	"context"
	"errors"
	"log/slog"

	"github.com/castlegate/castlegate/internal/connection"
	"github.com/castlegate/castlegate/internal/model"
	"github.com/castlegate/castlegate/internal/services/matchmaker"
	"github.com/castlegate/castlegate/internal/services/reconnect"
	"github.com/castlegate/castlegate/internal/services/session"
	"github.com/castlegate/castlegate/internal/storage"
)

// LeavePolicy controls what happens to an in-progress session when a
// participant disconnects.
type LeavePolicy string

const (
	// LeaveWait keeps the session alive so the player can reconnect
	LeaveWait LeavePolicy = "wait"
	// LeaveNotify ends the session immediately and tells the opponent
	LeaveNotify LeavePolicy = "notify"
)

// Valid reports whether the policy is one of the known values
func (p LeavePolicy) Valid() bool {
	return p == LeaveWait || p == LeaveNotify
}

// Config holds manager configuration
type Config struct {
	LeavePolicy LeavePolicy
}

// DefaultConfig returns the default manager configuration. Waiting for a
// reconnect is the default: a dropped connection is not a forfeit.
func DefaultConfig() Config {
	return Config{LeavePolicy: LeaveWait}
}

// Manager routes the externally-triggered operations (connect, request
// match, submit move, disconnect) to the underlying services. It is the
// only component that talks to the registry, store, matchmaker, and
// session controller together.
type Manager struct {
	config      Config
	store       storage.Store
	registry    *connection.Registry
	matchmaker  *matchmaker.Service
	controller  *session.Controller
	coordinator *reconnect.Coordinator
	logger      *slog.Logger
}

// New creates a new Manager
func New(
	config Config,
	store storage.Store,
	registry *connection.Registry,
	matchmakerService *matchmaker.Service,
	controller *session.Controller,
	coordinator *reconnect.Coordinator,
	logger *slog.Logger,
) *Manager {
	if !config.LeavePolicy.Valid() {
		config.LeavePolicy = LeaveWait
	}
	return &Manager{
		config:      config,
		store:       store,
		registry:    registry,
		matchmaker:  matchmakerService,
		controller:  controller,
		coordinator: coordinator,
		logger:      logger.With(slog.String("component", "manager")),
	}
}

// Connect registers a new connection and resumes the player's session if
// they have one, replaying the current position to them.
func (m *Manager) Connect(ctx context.Context, playerID model.PlayerID, connID model.ConnectionID, sender connection.Sender) error {
	m.registry.Register(playerID, connID, sender)

	resumption, err := m.coordinator.OnConnect(ctx, playerID, connID)
	if err != nil {
		// The caller tears the socket down without a Disconnect on this
		// path; the registration must not outlive it or the player stays
		// live forever and the matchmaker will pair against a dead socket.
		m.registry.Unregister(connID)
		return err
	}
	if resumption != nil {
		m.notify(resumption.Session, model.MessageResume, playerID, resumption.Payload)
	}
	return nil
}

// Disconnect removes the connection and drops the player from the
// matchmaking queue. Under LeaveWait an in-progress session is left
// untouched for a later reconnect; under LeaveNotify it is ended and the
// opponent is told.
func (m *Manager) Disconnect(ctx context.Context, connID model.ConnectionID) {
	playerID, ok := m.registry.Unregister(connID)
	if !ok {
		return
	}

	if err := m.store.RemoveQueued(ctx, playerID); err != nil {
		m.logger.Warn("failed to remove disconnected player from queue",
			slog.String("player_id", string(playerID)),
			slog.String("error", err.Error()),
		)
	}

	if m.config.LeavePolicy == LeaveNotify {
		m.abandonSession(ctx, playerID)
	}
}

// abandonSession ends the leaver's session, if any, and notifies the
// opponent that they left.
func (m *Manager) abandonSession(ctx context.Context, playerID model.PlayerID) {
	sessionID, err := m.store.GetSessionPointer(ctx, playerID)
	if err != nil {
		if !errors.Is(err, model.ErrNoSessionPointer) {
			m.logger.Warn("failed to look up leaver's session",
				slog.String("player_id", string(playerID)),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	sess, err := m.controller.Load(ctx, sessionID)
	if err != nil {
		return
	}

	m.notify(sess, model.MessageOpponentLeft, playerID, nil)
	if err := m.controller.Abandon(ctx, sess); err != nil {
		m.logger.Warn("failed to remove abandoned session records",
			slog.String("session_id", string(sessionID)),
			slog.String("error", err.Error()),
		)
	}

	m.logger.Info("session abandoned",
		slog.String("session_id", string(sessionID)),
		slog.String("player_id", string(playerID)),
	)
}

// RequestMatch pairs the player with a waiting opponent, or enqueues
// them. A player who already has a live session gets it resumed instead
// of being paired a second time.
func (m *Manager) RequestMatch(ctx context.Context, playerID model.PlayerID, connID model.ConnectionID) error {
	resumption, err := m.coordinator.OnConnect(ctx, playerID, connID)
	if err != nil {
		return err
	}
	if resumption != nil {
		m.notify(resumption.Session, model.MessageResume, playerID, resumption.Payload)
		return nil
	}

	result, err := m.matchmaker.TryPair(ctx, playerID, connID)
	if err != nil {
		return err
	}

	if result.Enqueued {
		m.sendToPlayer(playerID, model.MessageQueued, nil)
		return nil
	}

	sess := result.Session

	// Each player is told their own side, so the payload differs per
	// recipient.
	for _, p := range []model.Player{sess.PlayerA, sess.PlayerB} {
		m.sendToPlayer(p.ID, model.MessageSessionStarted, model.SessionStartedPayload{
			SessionID: sess.ID,
			Side:      p.Side,
		})
	}
	return nil
}

// SubmitMove applies the player's move to their current session and
// fans out the outcome: the opponent hears accepted moves, only the
// submitter hears rejections, and both hear the final result.
func (m *Manager) SubmitMove(ctx context.Context, playerID model.PlayerID, move model.Move) error {
	sessionID, err := m.store.GetSessionPointer(ctx, playerID)
	if err != nil {
		if errors.Is(err, model.ErrNoSessionPointer) {
			m.sendToPlayer(playerID, model.MessageError, model.ErrorPayload{Message: "no session in progress"})
			return nil
		}
		return err
	}

	outcome, err := m.controller.ApplyMove(ctx, sessionID, playerID, move)
	if err != nil {
		return err
	}

	if !outcome.Applied {
		m.notify(outcome.Session, model.MessageMoveRejected, playerID, model.MoveRejectedPayload{
			Move:   move,
			Reason: outcome.RejectReason,
		})
		return nil
	}

	m.notify(outcome.Session, model.MessageMoveApplied, playerID, model.MoveAppliedPayload{Move: move})

	if outcome.Terminal {
		m.notify(outcome.Session, model.MessageSessionOver, playerID, model.SessionOverPayload{
			Result: outcome.Result,
		})
	}
	return nil
}

// notify delivers a message to the recipients the session's broadcast
// rules name for this message type. Send failures are logged and
// skipped; an unreachable player catches up via resume.
func (m *Manager) notify(sess *model.Session, msgType model.MessageType, actor model.PlayerID, payload any) {
	for _, recipient := range sess.RecipientsFor(msgType, actor) {
		m.sendToPlayer(recipient, msgType, payload)
	}
}

func (m *Manager) sendToPlayer(playerID model.PlayerID, msgType model.MessageType, payload any) {
	msg, err := model.NewMessage(msgType, payload)
	if err != nil {
		m.logger.Error("failed to build message",
			slog.String("type", string(msgType)),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := m.registry.SendToPlayer(playerID, msg); err != nil {
		m.logger.Warn("failed to deliver message",
			slog.String("type", string(msgType)),
			slog.String("player_id", string(playerID)),
			slog.String("error", err.Error()),
		)
	}
}
