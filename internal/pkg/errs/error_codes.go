/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed
	// (e.g., a missing identity or display name).
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Room Business Logic Errors
const (
	// ErrRoomNotFound indicates that the requested room code does not exist
	// or belongs to a deactivated room.
	ErrRoomNotFound = 2101

	// ErrRoomIsFull indicates that the room being joined has reached its maximum participant capacity.
	ErrRoomIsFull = 2102

	// ErrRoomCodeExhausted indicates that room creation could not find a unique code within the retry budget.
	ErrRoomCodeExhausted = 2103
)

// 3xxx: Session and Authorization Errors
const (
	// ErrUnauthorized indicates that a host-only action was invoked by a
	// session whose registered identity is not the room's creator.
	ErrUnauthorized = 3001

	// ErrNotRegistered indicates that a connection attempted a room action
	// before announcing its identity on the channel.
	ErrNotRegistered = 3002
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStoreFailure indicates that a room store read or write failed.
	ErrStoreFailure = 5001
)
