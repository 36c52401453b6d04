// Package connection tracks which players are connected to this process.
// The registry is process-scoped and non-durable: it is created empty at
// startup and rebuilt purely from live connections, never persisted.
package connection

import (
	"log/slog"
	"sync"

	"github.com/castlegate/castlegate/internal/model"
)

// Sender delivers messages to one client connection. The websocket layer
// implements it; tests substitute a recording fake.
type Sender interface {
	Send(msg model.Message) error
}

// Registry is the process-local connection index: player <-> connection
// in both directions, plus the live Sender handles. All delivery routes
// through the player binding, so a reconnecting player's messages follow
// them to their replacement connection.
type Registry struct {
	logger *slog.Logger

	mu           sync.RWMutex
	senders      map[model.ConnectionID]Sender
	connByPlayer map[model.PlayerID]model.ConnectionID
	playerByConn map[model.ConnectionID]model.PlayerID
}

// NewRegistry creates an empty Registry
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:       logger.With(slog.String("component", "connection-registry")),
		senders:      make(map[model.ConnectionID]Sender),
		connByPlayer: make(map[model.PlayerID]model.ConnectionID),
		playerByConn: make(map[model.ConnectionID]model.PlayerID),
	}
}

// Register binds a player to a live connection. A player reconnecting on
// a new connection displaces the old binding; the stale connection keeps
// its Sender until it unregisters but no longer routes for the player.
func (r *Registry) Register(playerID model.PlayerID, connID model.ConnectionID, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.connByPlayer[playerID]; ok && old != connID {
		delete(r.playerByConn, old)
	}

	r.senders[connID] = sender
	r.connByPlayer[playerID] = connID
	r.playerByConn[connID] = playerID

	r.logger.Info("connection registered",
		slog.String("player_id", string(playerID)),
		slog.String("connection_id", string(connID)),
	)
}

// Unregister removes a connection. Returns the player it was bound to,
// if the binding was still current.
func (r *Registry) Unregister(connID model.ConnectionID) (model.PlayerID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.senders, connID)

	playerID, ok := r.playerByConn[connID]
	if !ok {
		return "", false
	}
	delete(r.playerByConn, connID)
	if r.connByPlayer[playerID] == connID {
		delete(r.connByPlayer, playerID)
	}

	r.logger.Info("connection unregistered",
		slog.String("player_id", string(playerID)),
		slog.String("connection_id", string(connID)),
	)
	return playerID, true
}

// ConnectionFor returns the live connection for a player, if any
func (r *Registry) ConnectionFor(playerID model.PlayerID) (model.ConnectionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.connByPlayer[playerID]
	return connID, ok
}

// Send delivers a message to one connection
func (r *Registry) Send(connID model.ConnectionID, msg model.Message) error {
	r.mu.RLock()
	sender, ok := r.senders[connID]
	r.mu.RUnlock()

	if !ok {
		return model.ErrConnectionNotFound
	}
	return sender.Send(msg)
}

// SendToPlayer delivers a message to a player's current connection
func (r *Registry) SendToPlayer(playerID model.PlayerID, msg model.Message) error {
	connID, ok := r.ConnectionFor(playerID)
	if !ok {
		return model.ErrConnectionNotFound
	}
	return r.Send(connID, msg)
}

// ConnectionCount returns the number of live connections
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.senders)
}
