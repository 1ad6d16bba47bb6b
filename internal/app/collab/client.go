/*
Package collab contains the core logic for room presence, join approval,
and real-time broadcasting of edit events.

This file defines the Client struct, representing an active WebSocket
connection. It manages the connection lifecycle, the read and write pumps,
and dispatch of inbound channel events to the Coordinator.
*/
package collab

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"bitcollab/internal/pkg/errs"
	"bitcollab/internal/pkg/identity"
	"bitcollab/internal/pkg/logx"
	"bitcollab/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of an inbound channel event.
	// File contents travel inside FILE_CHANGED payloads, so this is generous.
	maxMessageSize = 1 << 20

	// sendQueueSize bounds the per-connection outbound queue. Events that
	// arrive while the queue is full are dropped, never buffered elsewhere.
	sendQueueSize = 256
)

// errSendQueueFull reports a dropped outbound event.
var errSendQueueFull = errors.New("client send queue full or closed")

// Client represents one active WebSocket connection. Its identity is empty
// until the connection announces itself with a REGISTER event.
type Client struct {
	coordinator *Coordinator

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// identity is the canonical registered identity. Written only by the
	// read pump goroutine.
	identity string

	// send queues outbound messages for the write pump.
	send chan []byte

	// sendMu guards closed so Send never writes to a closed channel.
	sendMu sync.Mutex
	closed bool

	logger zerolog.Logger
}

// NewClient constructs a Client for an upgraded connection.
func NewClient(coordinator *Coordinator, conn *websocket.Conn) *Client {
	return &Client{
		coordinator: coordinator,
		conn:        conn,
		send:        make(chan []byte, sendQueueSize),
		logger:      logx.Logger().With().Str("component", "Client").Logger(),
	}
}

// Identity returns the connection's registered canonical identity, or "".
func (c *Client) Identity() string {
	return c.identity
}

// Send implements session.Conn. It enqueues without blocking; when the queue
// is full or the connection is closing the event is dropped and an error
// returned so the caller can log the drop.
func (c *Client) Send(data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return errSendQueueFull
	}

	select {
	case c.send <- data:
		return nil
	default:
		return errSendQueueFull
	}
}

// closeSend marks the queue closed and wakes the write pump.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump reads channel events from the WebSocket connection until it
// closes, handling heartbeats and dispatching each event. It performs all
// connection cleanup on exit.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (client close/going away)")
			}
			break
		}

		c.dispatch(messageBytes)
	}
}

// cleanupOnDisconnect tears down the connection's routing. The session
// binding and all channel memberships go away; room records are untouched,
// so a participant who merely disconnects remains a participant.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Str("identity", c.Identity()).Msg("Client connection cleanup starting.")

	c.coordinator.Registry().Unregister(c)
	c.coordinator.DropConn(c)
	c.closeSend()

	if err := c.conn.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Client connection close error")
	}
}

// dispatch routes one inbound event to the coordinator.
func (c *Client) dispatch(messageBytes []byte) {
	var ev Event
	if err := json.Unmarshal(messageBytes, &ev); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		return
	}

	ctx := context.Background()

	switch ev.Type {
	case TypeRegister:
		c.handleRegister(ev)

	case TypeSubscribe:
		if c.requireRoomCode(ev) {
			c.coordinator.Subscribe(c, ev.RoomCode)
		}

	case TypeUnsubscribe:
		if c.requireRoomCode(ev) {
			c.coordinator.Unsubscribe(c, ev.RoomCode)
		}

	case TypeRequestJoin:
		var p RequestJoinPayload
		if c.requireRoomCode(ev) && c.bindPayload(ev, &p) {
			c.coordinator.RequestJoin(ctx, c, ev.RoomCode, p.Identity, p.DisplayName)
		}

	case TypeApproveJoin:
		var p TargetPayload
		if c.requireRoomCode(ev) && c.bindPayload(ev, &p) {
			c.coordinator.Approve(ctx, c, c.identity, ev.RoomCode, p.Identity)
		}

	case TypeDenyJoin:
		var p TargetPayload
		if c.requireRoomCode(ev) && c.bindPayload(ev, &p) {
			c.coordinator.Deny(ctx, c, c.identity, ev.RoomCode, p.Identity, p.Reason)
		}

	case TypeRemoveParticipant:
		var p TargetPayload
		if c.requireRoomCode(ev) && c.bindPayload(ev, &p) {
			c.coordinator.Remove(ctx, c, c.identity, ev.RoomCode, p.Identity)
		}

	case TypeLeaveRoom:
		c.handleLeave(ctx, ev)

	case TypeFileChanged, TypeFileCreated, TypeFileDeleted:
		if c.requireRoomCode(ev) {
			c.coordinator.RelayFile(c, ev)
		}

	default:
		c.logger.Warn().Str("event_type", string(ev.Type)).Msg("Client sent unsupported event type")
	}
}

// handleRegister binds the announced identity to this connection. A second
// device registering the same identity silently steals the routing.
func (c *Client) handleRegister(ev Event) {
	var p RegisterPayload
	if !c.bindPayload(ev, &p) {
		return
	}

	if !identity.IsValid(p.Identity) {
		c.coordinator.sendError(c, "", errs.NewError(errs.ErrInvalidParams))
		return
	}

	c.identity = identity.Normalize(p.Identity)
	c.coordinator.Registry().Register(c.identity, c)
	c.logger = c.logger.With().Str("identity", c.identity).Logger()
	c.logger.Info().Msg("Session identity registered.")
}

// handleLeave drops the channel subscription and removes the registered
// identity from the room's participant list.
func (c *Client) handleLeave(ctx context.Context, ev Event) {
	if !c.requireRoomCode(ev) {
		return
	}

	c.coordinator.Unsubscribe(c, ev.RoomCode)

	if c.identity == "" {
		c.coordinator.sendError(c, ev.RoomCode, errs.NewError(errs.ErrNotRegistered))
		return
	}

	if err := c.coordinator.Leave(ctx, ev.RoomCode, c.identity); err != nil {
		c.coordinator.sendError(c, randx.NormalizeRoomCode(ev.RoomCode), storeError(err))
	}
}

// bindPayload unmarshals the event payload, reporting malformed input.
func (c *Client) bindPayload(ev Event, dst any) bool {
	if err := json.Unmarshal(ev.Payload, dst); err != nil {
		c.logger.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("Client sent invalid payload")
		c.coordinator.sendError(c, ev.RoomCode, errs.NewError(errs.ErrInvalidParams))
		return false
	}
	return true
}

// requireRoomCode validates the envelope's room code.
func (c *Client) requireRoomCode(ev Event) bool {
	if !randx.IsValidRoomCode(ev.RoomCode) {
		c.logger.Warn().Str("event_type", string(ev.Type)).Msg("Client event missing or invalid room code")
		c.coordinator.sendError(c, ev.RoomCode, errs.NewError(errs.ErrInvalidParams))
		return false
	}
	return true
}

// WritePump writes queued messages to the WebSocket connection and keeps the
// heartbeat alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage writes one message pulled from the send queue.
// Returns false when the write pump should terminate.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Error().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message.
// Returns false when the write pump should terminate.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
