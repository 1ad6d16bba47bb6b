/*
Package collab contains the core logic for room presence, join approval,
and real-time broadcasting of edit events.

This file defines the Coordinator, which owns channel membership (which
connections receive events for which room) and fans events out to
subscribers. Delivery is fire-and-forget: a subscriber whose send queue is
full or whose connection died simply misses the event, and recovers on its
next full state refetch.
*/
package collab

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"bitcollab/internal/app/room"
	"bitcollab/internal/app/session"
	"bitcollab/internal/pkg/errs"
	"bitcollab/internal/pkg/logx"
	"bitcollab/internal/pkg/randx"
)

// Coordinator manages channel membership and event fan-out. Channel
// membership is independent of room membership: a connection may subscribe
// while its join request is still pending.
type Coordinator struct {
	store    room.Store
	registry *session.Registry

	// mu protects channels.
	mu sync.RWMutex

	// channels maps a normalized room code to its set of subscribers.
	channels map[string]map[session.Conn]struct{}

	logger zerolog.Logger
}

// NewCoordinator constructs a Coordinator over the given store and registry.
func NewCoordinator(store room.Store, registry *session.Registry) *Coordinator {
	return &Coordinator{
		store:    store,
		registry: registry,
		channels: make(map[string]map[session.Conn]struct{}),
		logger:   logx.Logger().With().Str("component", "Coordinator").Logger(),
	}
}

// Registry exposes the session registry for connection lifecycle handling.
func (co *Coordinator) Registry() *session.Registry {
	return co.registry
}

// Store exposes the room store for the HTTP surface.
func (co *Coordinator) Store() room.Store {
	return co.store
}

// Subscribe adds the connection to the room's channel.
func (co *Coordinator) Subscribe(c session.Conn, roomCode string) {
	code := randx.NormalizeRoomCode(roomCode)
	if code == "" {
		return
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	subs, ok := co.channels[code]
	if !ok {
		subs = make(map[session.Conn]struct{})
		co.channels[code] = subs
	}
	subs[c] = struct{}{}
}

// Unsubscribe removes the connection from the room's channel.
func (co *Coordinator) Unsubscribe(c session.Conn, roomCode string) {
	code := randx.NormalizeRoomCode(roomCode)

	co.mu.Lock()
	defer co.mu.Unlock()

	if subs, ok := co.channels[code]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(co.channels, code)
		}
	}
}

// DropConn removes the connection from every channel. Called on disconnect;
// the connection stops receiving events but room records are untouched.
func (co *Coordinator) DropConn(c session.Conn) {
	co.mu.Lock()
	defer co.mu.Unlock()

	for code, subs := range co.channels {
		delete(subs, c)
		if len(subs) == 0 {
			delete(co.channels, code)
		}
	}
}

// SubscriberCount reports the size of a room's channel.
func (co *Coordinator) SubscriberCount(roomCode string) int {
	co.mu.RLock()
	defer co.mu.RUnlock()

	return len(co.channels[randx.NormalizeRoomCode(roomCode)])
}

// RelayFile forwards a file edit/create/delete event to every subscriber of
// the room's channel except the sender. The payload is forwarded verbatim:
// no ordering beyond arrival, no deduplication, no merge.
func (co *Coordinator) RelayFile(sender session.Conn, ev Event) {
	out := Event{
		ID:        randx.EventID(),
		Type:      ev.Type,
		RoomCode:  randx.NormalizeRoomCode(ev.RoomCode),
		Payload:   ev.Payload,
		Timestamp: ev.Timestamp,
	}
	co.broadcast(out.RoomCode, out, sender)
}

// broadcastRoomUpdated signals every subscriber to refetch room state.
// Pulling the fresh snapshot from the store avoids drift between a pushed
// payload and the authoritative record.
func (co *Coordinator) broadcastRoomUpdated(roomCode string) {
	ev, err := NewEvent(TypeRoomUpdated, roomCode, nil)
	if err != nil {
		co.logger.Error().Err(err).Str("room_code", roomCode).Msg("Failed to build ROOM_UPDATED event.")
		return
	}
	co.broadcast(roomCode, ev, nil)
}

// broadcast fans the event out to the room's subscribers, skipping except.
// Emission order per subscriber is this coordinator's emission order;
// undeliverable events are dropped.
func (co *Coordinator) broadcast(roomCode string, ev Event, except session.Conn) {
	data, err := json.Marshal(ev)
	if err != nil {
		co.logger.Error().Err(err).Str("event_type", string(ev.Type)).Msg("Failed to marshal broadcast event.")
		return
	}

	code := randx.NormalizeRoomCode(roomCode)

	co.mu.RLock()
	subs := make([]session.Conn, 0, len(co.channels[code]))
	for c := range co.channels[code] {
		if c != except {
			subs = append(subs, c)
		}
	}
	co.mu.RUnlock()

	for _, c := range subs {
		if err := c.Send(data); err != nil {
			co.logger.Warn().
				Str("room_code", code).
				Str("event_type", string(ev.Type)).
				Msg("Dropped broadcast event for slow or closed subscriber.")
		}
	}
}

// notify delivers the event to the registered session of the given identity.
// A missing or dead binding is not an error: the event is simply lost and
// the party catches up on its next state refetch.
func (co *Coordinator) notify(id string, ev Event) {
	c, ok := co.registry.Lookup(id)
	if !ok {
		co.logger.Debug().
			Str("identity", id).
			Str("event_type", string(ev.Type)).
			Msg("No live session for identity. Event not delivered.")
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		co.logger.Error().Err(err).Str("event_type", string(ev.Type)).Msg("Failed to marshal targeted event.")
		return
	}

	if err := c.Send(data); err != nil {
		co.logger.Warn().
			Str("identity", id).
			Str("event_type", string(ev.Type)).
			Msg("Dropped targeted event for slow or closed session.")
	}
}

// sendTo delivers an event directly to a connection.
func (co *Coordinator) sendTo(c session.Conn, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		co.logger.Error().Err(err).Str("event_type", string(ev.Type)).Msg("Failed to marshal event.")
		return
	}
	if err := c.Send(data); err != nil {
		co.logger.Warn().Str("event_type", string(ev.Type)).Msg("Dropped event for slow or closed connection.")
	}
}

// sendError reports a failed action back to the invoking connection.
// Failures are surfaced, never swallowed.
func (co *Coordinator) sendError(c session.Conn, roomCode string, customErr *errs.CustomError) {
	ev, err := NewEvent(TypeError, roomCode, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
	if err != nil {
		co.logger.Error().Err(err).Msg("Failed to build ERROR event.")
		return
	}
	co.sendTo(c, ev)
}

// sendAck confirms a no-change outcome to the invoking connection.
func (co *Coordinator) sendAck(c session.Conn, roomCode, message string) {
	ev, err := NewEvent(TypeAck, roomCode, AckPayload{Message: message})
	if err != nil {
		co.logger.Error().Err(err).Msg("Failed to build ACK event.")
		return
	}
	co.sendTo(c, ev)
}
