/*
Package collab contains the core logic for room presence, join approval,
and real-time broadcasting of edit events.

This file defines the channel event envelope and the payload structures
exchanged over the WebSocket connection.
*/
package collab

import (
	"encoding/json"
	"time"

	"bitcollab/internal/pkg/randx"
)

// EventType identifies the kind of a channel event.
type EventType string

// Inbound event types (client to server).
const (
	// TypeRegister announces the connection's user identity.
	TypeRegister EventType = "REGISTER"

	// TypeSubscribe and TypeUnsubscribe manage channel membership for a room.
	TypeSubscribe   EventType = "SUBSCRIBE"
	TypeUnsubscribe EventType = "UNSUBSCRIBE"

	// TypeRequestJoin asks the room's host for entry.
	TypeRequestJoin EventType = "REQUEST_JOIN"

	// TypeApproveJoin, TypeDenyJoin and TypeRemoveParticipant are host-only.
	TypeApproveJoin       EventType = "APPROVE_JOIN"
	TypeDenyJoin          EventType = "DENY_JOIN"
	TypeRemoveParticipant EventType = "REMOVE_PARTICIPANT"

	// TypeLeaveRoom leaves the room and drops the channel subscription.
	TypeLeaveRoom EventType = "LEAVE_ROOM"

	// File events are relayed verbatim to other subscribers, bypassing the store.
	TypeFileChanged EventType = "FILE_CHANGED"
	TypeFileCreated EventType = "FILE_CREATED"
	TypeFileDeleted EventType = "FILE_DELETED"
)

// Outbound event types (server to client).
const (
	// TypeJoinRequest notifies the host of a new pending request.
	TypeJoinRequest EventType = "JOIN_REQUEST"

	TypeJoinApproved EventType = "JOIN_APPROVED"
	TypeJoinDenied   EventType = "JOIN_DENIED"

	// TypeRemovedFromRoom is sent only to the removed identity's session.
	TypeRemovedFromRoom EventType = "REMOVED_FROM_ROOM"

	// TypeRoomUpdated is a payload-free signal telling subscribers to
	// refetch room state over HTTP.
	TypeRoomUpdated EventType = "ROOM_UPDATED"

	TypeParticipantJoined EventType = "PARTICIPANT_JOINED"
	TypeParticipantLeft   EventType = "PARTICIPANT_LEFT"

	// TypeAck confirms an inbound action whose outcome is not a state change
	// (e.g. requesting to join a room you already belong to).
	TypeAck EventType = "ACK"

	// TypeError reports a failed action back to the invoking session.
	TypeError EventType = "ERROR"
)

// Event is the envelope for every channel message in both directions.
type Event struct {
	ID        string          `json:"id,omitempty"`
	Type      EventType       `json:"type"`
	RoomCode  string          `json:"roomCode,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// NewEvent builds an outbound event, marshaling the payload and stamping a
// fresh event ID and timestamp. A nil payload produces a bare signal event.
func NewEvent(t EventType, roomCode string, payload any) (Event, error) {
	ev := Event{
		ID:        randx.EventID(),
		Type:      t,
		RoomCode:  roomCode,
		Timestamp: time.Now().UnixMilli(),
	}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		ev.Payload = raw
	}

	return ev, nil
}

// RegisterPayload carries the identity announcement.
type RegisterPayload struct {
	Identity string `json:"userId"`
}

// RequestJoinPayload carries a join request's identity and display name.
type RequestJoinPayload struct {
	Identity    string `json:"userId"`
	DisplayName string `json:"username"`
}

// TargetPayload names the identity a host action applies to.
type TargetPayload struct {
	Identity string `json:"userId"`
	// Reason is honored by DENY_JOIN only.
	Reason string `json:"reason,omitempty"`
}

// UserEventPayload describes who joined or left.
type UserEventPayload struct {
	Identity    string `json:"userId"`
	DisplayName string `json:"username"`
}

// DeniedPayload carries the denial reason.
type DeniedPayload struct {
	Reason string `json:"reason"`
}

// AckPayload confirms a no-change outcome.
type AckPayload struct {
	Message string `json:"message"`
}

// ErrorPayload reports a failed action with its business code.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
