package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/castlegate/castlegate/internal/model"
	"github.com/castlegate/castlegate/internal/services/auth"
	"github.com/castlegate/castlegate/internal/services/manager"
)

// Handler upgrades authenticated HTTP requests to websocket connections
// and routes their messages into the session manager.
type Handler struct {
	auth     *auth.Service
	manager  *manager.Manager
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket Handler
func NewHandler(authService *auth.Service, sessionManager *manager.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		auth:    authService,
		manager: sessionManager,
		logger:  logger.With(slog.String("component", "ws")),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP authenticates the request, upgrades it, and runs the
// connection until the client goes away. Auth happens before the
// upgrade so a bad token costs a plain 401, not a socket.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	connID := model.ConnectionID(uuid.New().String())
	client := newClient(connID, identity.PlayerID, conn, h.logger)

	ctx := r.Context()
	if err := h.manager.Connect(ctx, identity.PlayerID, connID, client); err != nil {
		h.logger.Error("connect failed",
			slog.String("player_id", string(identity.PlayerID)),
			slog.String("error", err.Error()),
		)
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump(func(msg model.Message) {
		h.dispatch(ctx, client, msg)
	})

	// Read pump returned: the connection is gone. Use a fresh context,
	// the request's is already cancelled.
	h.manager.Disconnect(context.WithoutCancel(ctx), connID)
	client.close()
}

// authenticate pulls the bearer token from the Authorization header or,
// for browser clients that cannot set headers on websocket dials, the
// token query parameter.
func (h *Handler) authenticate(r *http.Request) (*auth.Identity, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			return nil, err
		}
		token = header
	}
	return h.auth.VerifyToken(token)
}

// dispatch routes one client message to the manager
func (h *Handler) dispatch(ctx context.Context, client *Client, msg model.Message) {
	switch msg.Type {
	case model.MessageRequestMatch:
		if err := h.manager.RequestMatch(ctx, client.playerID, client.id); err != nil {
			h.sendError(client, "matchmaking failed, try again")
		}

	case model.MessageSubmitMove:
		var payload model.SubmitMovePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.sendError(client, "malformed move")
			return
		}
		if err := h.manager.SubmitMove(ctx, client.playerID, payload.Move); err != nil {
			h.sendError(client, "move failed, try again")
		}

	default:
		h.sendError(client, "unknown message type")
	}
}

func (h *Handler) sendError(client *Client, text string) {
	msg, err := model.NewMessage(model.MessageError, model.ErrorPayload{Message: text})
	if err != nil {
		return
	}
	if err := client.Send(msg); err != nil {
		client.logger.Warn("failed to deliver error message", slog.String("error", err.Error()))
	}
}
