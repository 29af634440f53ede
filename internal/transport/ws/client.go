package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"veil/internal/app"
	"veil/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256
)

// Client represents a WebSocket client connection
type Client struct {
	conn      *websocket.Conn
	registry  *app.Registry
	serverKey []byte
	send      chan []byte
	done      chan struct{}
	flushed   chan struct{} // closed when writePump exits
	logger    *slog.Logger

	mu       sync.Mutex
	playerID string
	closing  bool // send closed, writePump is draining
	closed   bool
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, registry *app.Registry, serverKey []byte, logger *slog.Logger) *Client {
	return &Client{
		conn:      conn,
		registry:  registry,
		serverKey: serverKey,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
		flushed:   make(chan struct{}),
		logger:    logger,
	}
}

// GetPlayerID returns the player this connection authenticated as
func (c *Client) GetPlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// Send implements app.ClientConnection interface
func (c *Client) Send(message interface{}) error {
	if event, ok := message.(*domain.RoomEvent); ok {
		message = fromEvent(event)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.closing {
		return nil
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Buffer full, message dropped
		c.logger.Warn("send buffer full, message dropped", "playerID", c.playerID)
		return nil
	}
}

// Close implements app.ClientConnection interface
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	return c.conn.Close()
}

// terminate stops accepting messages and lets writePump flush what is queued
// before it sends a close frame
func (c *Client) terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.closing {
		return
	}

	c.closing = true
	close(c.send)
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()

	c.Send(NewServerMessage(MsgKey, &KeyPayload{PublicKey: c.serverKey}))

	c.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.registry.Disconnect(c)

		// Give writePump a chance to deliver a final error
		select {
		case <-c.flushed:
		case <-time.After(writeWait):
		}
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			c.terminate()
			break
		}

		if stop := c.handleMessage(message); stop {
			c.terminate()
			break
		}
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.flushed)
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming message from the client. It reports
// whether the connection must be terminated.
func (c *Client) handleMessage(data []byte) bool {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(domain.ErrMalformedMessage)
		return true
	}

	if msg.Type == MsgPing {
		c.sendPong()
		return false
	}

	// Nothing but AUTH is accepted from an unauthenticated connection
	if c.GetPlayerID() == "" && msg.Type != MsgAuth {
		c.sendError(domain.ErrUnauthorized)
		return true
	}

	var err error
	switch msg.Type {
	case MsgAuth:
		err = c.handleAuth(msg.Payload)
	case MsgStartVote:
		err = c.withSession(func(b app.Binding, s *app.RoomSession) error {
			return s.StartVoting(b.PlayerID)
		})
	case MsgVote:
		err = c.handleVote(msg.Payload)
	case MsgReset:
		err = c.withSession(func(b app.Binding, s *app.RoomSession) error {
			return s.Reset(b.PlayerID)
		})
	case MsgLeave:
		if err := c.registry.Leave(c); err != nil {
			c.logger.Debug("leave failed", "playerID", c.GetPlayerID(), "error", err)
		}
		return true
	default:
		err = domain.ErrMalformedMessage
	}

	if err == nil {
		return false
	}

	c.sendError(err)

	return errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrMalformedMessage)
}

// handleAuth binds this connection to a room member
func (c *Client) handleAuth(raw json.RawMessage) error {
	var payload AuthPayload
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}

	// The ROOM_STATE reply arrives through the room broadcast
	if _, _, err := c.registry.Authenticate(c, payload.RoomCode, payload.PlayerID); err != nil {
		return err
	}

	c.mu.Lock()
	c.playerID = payload.PlayerID
	c.mu.Unlock()

	return nil
}

// handleVote forwards a sealed vote to the room
func (c *Client) handleVote(raw json.RawMessage) error {
	var payload VotePayload
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}

	vote := payload.SecretVote()
	if vote.IsZero() {
		return domain.ErrMalformedMessage
	}

	return c.withSession(func(b app.Binding, s *app.RoomSession) error {
		return s.CastVote(b.PlayerID, vote)
	})
}

// withSession runs fn against the room this connection is bound to
func (c *Client) withSession(fn func(app.Binding, *app.RoomSession) error) error {
	b, session, err := c.registry.Resolve(c)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return domain.ErrUnauthorized
		}
		return err
	}
	return fn(b, session)
}

// sendError sends a structured error to this connection only
func (c *Client) sendError(err error) {
	code := domain.ErrorCode(err)
	message := err.Error()
	if code == domain.CodeInternalError {
		c.logger.Error("unexpected error", "playerID", c.GetPlayerID(), "error", err)
		message = "internal error"
	}

	c.Send(NewServerMessage(MsgError, &domain.ErrorPayload{
		Code:    code,
		Message: message,
	}))
}

// sendPong sends a pong message in response to ping
func (c *Client) sendPong() {
	c.Send(NewServerMessage(MsgPong, nil))
}
