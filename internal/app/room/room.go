/*
Package room contains the durable room record and the stores that own it.

A Room is the single source of truth for a collaboration session: its code,
its membership, and its pending-entry queue. Rooms are soft-deleted — once a
room deactivates it stops answering lookups, but its code stays reserved
forever so codes are unique across all rooms ever created.
*/
package room

import (
	"time"

	"bitcollab/internal/pkg/identity"
)

const (
	// DefaultMaxParticipants is applied when room creation omits a capacity.
	DefaultMaxParticipants = 10

	// MinParticipants and MaxParticipants bound the allowed room capacity.
	MinParticipants = 1
	MaxParticipants = 50

	// DefaultRoomName is applied when room creation omits a display name.
	DefaultRoomName = "Untitled Room"

	// CodeAttempts is the retry budget for finding a globally unique room code.
	CodeAttempts = 10
)

// Participant is an identity admitted to a room's member list.
type Participant struct {
	// Identity is the canonical (normalized) user identity.
	Identity string `json:"userId"`

	// DisplayName keeps the casing the user supplied.
	DisplayName string `json:"username"`

	JoinedAt time.Time `json:"joinedAt"`
}

// PendingRequest is an identity awaiting host approval to become a participant.
type PendingRequest struct {
	Identity    string    `json:"userId"`
	DisplayName string    `json:"username"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Room is the identity and membership record for one collaboration session.
type Room struct {
	// Code is the 6-character [A-Z0-9] identifier, immutable after creation.
	Code string `json:"roomCode"`

	Name string `json:"roomName"`

	// Creator is the canonical identity of the room's host. Set at creation,
	// never changes, and is the sole authority for approve/deny/remove.
	Creator string `json:"creator"`

	// Participants is ordered by join time. An identity appears at most once,
	// and never simultaneously in PendingRequests.
	Participants []Participant `json:"participants"`

	PendingRequests []PendingRequest `json:"pendingRequests"`

	MaxParticipants int `json:"maxParticipants"`

	// Active is true while the room accepts traffic. It flips to false
	// exactly when the last participant departs.
	Active bool `json:"isActive"`

	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// HasParticipant reports whether the identity is currently a participant,
// compared in canonical form.
func (r *Room) HasParticipant(id string) bool {
	norm := identity.Normalize(id)
	for _, p := range r.Participants {
		if identity.Normalize(p.Identity) == norm {
			return true
		}
	}
	return false
}

// HasPending reports whether the identity is currently awaiting approval.
func (r *Room) HasPending(id string) bool {
	norm := identity.Normalize(id)
	for _, p := range r.PendingRequests {
		if identity.Normalize(p.Identity) == norm {
			return true
		}
	}
	return false
}

// IsCreator reports whether the identity is the room's host.
func (r *Room) IsCreator(id string) bool {
	return identity.Equal(r.Creator, id)
}

// IsFull reports whether the participant list has reached capacity.
func (r *Room) IsFull() bool {
	return r.MaxParticipants > 0 && len(r.Participants) >= r.MaxParticipants
}

// clampCapacity normalizes a requested capacity into the allowed range,
// substituting the default when the request omits it.
func clampCapacity(requested int) int {
	if requested == 0 {
		return DefaultMaxParticipants
	}
	if requested < MinParticipants {
		return MinParticipants
	}
	if requested > MaxParticipants {
		return MaxParticipants
	}
	return requested
}

// addParticipant appends the identity unless already present.
// Returns true when the identity was already a member.
func (r *Room) addParticipant(id, displayName string, now time.Time) (already bool) {
	if r.HasParticipant(id) {
		return true
	}
	r.Participants = append(r.Participants, Participant{
		Identity:    identity.Normalize(id),
		DisplayName: displayName,
		JoinedAt:    now,
	})
	return false
}

// removeParticipant removes the identity from the participant list.
// Returns the removed entry, or nil when the identity was not a member.
// Deactivates the room when the list becomes empty after a departure.
func (r *Room) removeParticipant(id string) *Participant {
	norm := identity.Normalize(id)
	for i, p := range r.Participants {
		if identity.Normalize(p.Identity) == norm {
			removed := p
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			if len(r.Participants) == 0 {
				r.Active = false
			}
			return &removed
		}
	}
	return nil
}

// enqueuePending appends a pending request unless the identity is already
// queued or already a participant, keeping the two lists disjoint.
func (r *Room) enqueuePending(id, displayName string, now time.Time) {
	if r.HasPending(id) || r.HasParticipant(id) {
		return
	}
	r.PendingRequests = append(r.PendingRequests, PendingRequest{
		Identity:    identity.Normalize(id),
		DisplayName: displayName,
		RequestedAt: now,
	})
}

// dequeuePending removes the pending request for the identity.
// Returns the removed entry, or nil when nothing was pending.
func (r *Room) dequeuePending(id string) *PendingRequest {
	norm := identity.Normalize(id)
	for i, p := range r.PendingRequests {
		if identity.Normalize(p.Identity) == norm {
			removed := p
			r.PendingRequests = append(r.PendingRequests[:i], r.PendingRequests[i+1:]...)
			return &removed
		}
	}
	return nil
}

// clone returns a deep copy so callers never alias store-owned state.
func (r *Room) clone() *Room {
	cp := *r
	cp.Participants = append([]Participant(nil), r.Participants...)
	cp.PendingRequests = append([]PendingRequest(nil), r.PendingRequests...)
	return &cp
}
