package room

import "context"

// Store is the durable record of rooms: the single source of truth for
// identity, membership, and the pending-request queue.
//
// Every mutation is serialized per room by the implementation (a row lock in
// postgres, a per-room mutex in memory), so two concurrent operations on the
// same room can never lose each other's update. All returned Room values are
// snapshots owned by the caller.
type Store interface {
	// Create generates a unique 6-character code (retrying up to
	// CodeAttempts times, ErrCodeExhausted on failure) and initializes the
	// room with the creator as its only participant. The capacity is clamped
	// into [MinParticipants, MaxParticipants]; zero selects the default.
	Create(ctx context.Context, name, creator string, maxParticipants int) (*Room, error)

	// GetActive returns the room only if it is active; ErrNotFound otherwise.
	// Code matching is case-insensitive.
	GetActive(ctx context.Context, code string) (*Room, error)

	// ListActive returns up to limit active rooms, newest first.
	ListActive(ctx context.Context, limit int) ([]*Room, error)

	// AddParticipant appends the identity to the participant list.
	// Idempotent: an identity already present reports already=true and
	// changes nothing. ErrRoomFull when the room is at capacity.
	AddParticipant(ctx context.Context, code, id, displayName string) (rm *Room, already bool, err error)

	// RemoveParticipant removes the identity from the participant list
	// (a no-op for non-members) and always bumps lastActivity. The room
	// deactivates when its participant list becomes empty. The removed
	// entry is nil when the identity was not a member.
	RemoveParticipant(ctx context.Context, code, id string) (*Room, *Participant, error)

	// EnqueuePending adds the identity to the pending-request queue.
	// Idempotent: an identity already pending, or already a participant,
	// is left untouched.
	EnqueuePending(ctx context.Context, code, id, displayName string) (*Room, error)

	// DequeuePending removes the identity's pending request. Dequeuing an
	// absent identity is a no-op success with a nil entry.
	DequeuePending(ctx context.Context, code, id string) (*Room, *PendingRequest, error)

	// Approve atomically moves the identity's pending request into the
	// participant list. A nil participant means nothing was pending
	// (already approved, denied, or withdrawn) and nothing changed.
	// ErrRoomFull when the room is at capacity; the request stays queued.
	Approve(ctx context.Context, code, id string) (*Room, *Participant, error)

	// Close releases any resources held by the store.
	Close()
}
