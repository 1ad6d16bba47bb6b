package room

import "errors"

var (
	// ErrNotFound is returned when the code matches no active room.
	ErrNotFound = errors.New("room not found or inactive")

	// ErrRoomFull is returned when a join would exceed the room's capacity.
	ErrRoomFull = errors.New("room is full")

	// ErrCodeExhausted is returned when creation could not find a unique
	// code within the retry budget.
	ErrCodeExhausted = errors.New("failed to generate unique room code")

	// ErrCreatorRequired is returned when creation omits the creator identity.
	ErrCreatorRequired = errors.New("creator identity is required")
)
