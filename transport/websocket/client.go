package websocket

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/tictactoe-live/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Client binds one live WebSocket connection to at most one seat in one
// session. It is the session's Sink: accepted snapshots flow through the
// buffered send channel so a stalled peer never blocks the session.
type Client struct {
	logger *slog.Logger
	server *Server
	conn   *websocket.Conn
	send   chan []byte

	// set once by a successful join, read only by the reader goroutine
	sess *session.Session
	mark string
}

func newClient(logger *slog.Logger, server *Server, conn *websocket.Conn) *Client {
	return &Client{
		logger: logger,
		server: server,
		conn:   conn,
		send:   make(chan []byte, server.conf.SendBufferSize),
	}
}

// Send implements session.Sink. It never blocks: a full buffer reports
// false and the session drops this connection.
func (that *Client) Send(snapshot *session.Snapshot) bool {
	data, err := newMessage(actionState, ResponsePayload{Game: snapshot})
	if err != nil {
		that.logger.Error("failed to encode snapshot", "error", err)
		return false
	}

	select {
	case that.send <- data:
		return true
	default:
		return false
	}
}

// readPump - reads client messages until the connection dies or stays
// silent past the heartbeat window, then unbinds the seat. Unbind runs on
// every exit path so the session stays valid for a later reconnect.
func (that *Client) readPump() {
	defer func() {
		that.unbind()
		close(that.send)
		_ = that.conn.Close()
	}()

	heartbeat := that.server.conf.HeartbeatInterval

	that.conn.SetReadLimit(maxMessageSize)
	_ = that.conn.SetReadDeadline(time.Now().Add(heartbeat))
	that.conn.SetPongHandler(func(string) error {
		return that.conn.SetReadDeadline(time.Now().Add(heartbeat))
	})

	for {
		_, data, err := that.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				that.logger.Warn("connection lost", "error", err)
			}
			return
		}

		_ = that.conn.SetReadDeadline(time.Now().Add(heartbeat))

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			that.logger.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.server.handlers[message.Action]
		if !ok {
			that.logger.Error("unknown action", "action", message.Action)
			continue
		}

		if err = handler(that, &message); err != nil {
			that.logger.Error("error processing message", "action", message.Action, "error", err)
			return
		}
	}
}

// writePump - drains the send channel to the peer and keeps the
// connection alive with pings. One writer per connection, as the
// underlying connection requires.
func (that *Client) writePump() {
	pingPeriod := that.server.conf.HeartbeatInterval * 9 / 10

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = that.conn.Close()
	}()

	for {
		select {
		case data, ok := <-that.send:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = that.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := that.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// unbind - releases the seat if one was ever bound. After Unbind returns
// the session can no longer reach this client, so closing the send
// channel is safe.
func (that *Client) unbind() {
	if that.sess == nil {
		return
	}

	that.sess.Unbind(that.mark, that)
}

func (that *Client) sendError(action, errorMsg string) error {
	data, err := newMessage(action, ResponsePayload{Error: errorMsg})
	if err != nil {
		return err
	}

	select {
	case that.send <- data:
	default:
		that.logger.Warn("send buffer full, dropping error response", "action", action)
	}

	return nil
}
