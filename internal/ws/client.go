package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/castlegate/castlegate/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

var (
	// ErrSendBufferFull is returned when a client's outbound buffer is
	// full. The registry logs it and moves on; a client that slow
	// catches up via resume after reconnecting.
	ErrSendBufferFull = errors.New("client send buffer full")

	// ErrConnectionClosed is returned by Send once the connection has
	// shut down. A broadcaster can hold a Sender it fetched just before
	// the connection unregistered; the late send must fail, not panic.
	ErrConnectionClosed = errors.New("connection closed")
)

// Client is one websocket connection. It implements the Sender the
// connection registry routes through: Send enqueues onto a buffered
// channel drained by the write pump, so a stalled socket never blocks
// the services that broadcast.
type Client struct {
	id       model.ConnectionID
	playerID model.PlayerID
	conn     *websocket.Conn
	send     chan model.Message
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
}

func newClient(id model.ConnectionID, playerID model.PlayerID, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		id:       id,
		playerID: playerID,
		conn:     conn,
		send:     make(chan model.Message, sendBufferSize),
		logger: logger.With(
			slog.String("connection_id", string(id)),
			slog.String("player_id", string(playerID)),
		),
	}
}

// Send queues a message for delivery. Never blocks. The closed check and
// the channel send happen under the same lock as close, so a send can
// never race the channel closing.
func (c *Client) Send(msg model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump reads client messages until the connection drops, handing
// each to handle. It runs on the upgrade handler's goroutine and its
// return signals the connection is gone.
func (c *Client) readPump(handle func(model.Message)) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", slog.String("error", err.Error()))
			}
			return
		}

		var msg model.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("dropping unparseable client message", slog.String("error", err.Error()))
			continue
		}
		handle(msg)
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn("websocket write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
