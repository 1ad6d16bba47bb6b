/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Room Business Logic Errors
	ErrRoomNotFound:      {Code: ErrRoomNotFound, Message: "Room not found or inactive.", Status: http.StatusNotFound},
	ErrRoomIsFull:        {Code: ErrRoomIsFull, Message: "Room is full.", Status: http.StatusBadRequest},
	ErrRoomCodeExhausted: {Code: ErrRoomCodeExhausted, Message: "Failed to generate unique room code.", Status: http.StatusInternalServerError},

	// 3xxx: Session and Authorization Errors
	ErrUnauthorized:  {Code: ErrUnauthorized, Message: "Only the room host can do that.", Status: http.StatusForbidden},
	ErrNotRegistered: {Code: ErrNotRegistered, Message: "Register your identity before interacting with rooms."},

	// 5xxx: Internal System Errors
	ErrUnknown:      {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStoreFailure: {Code: ErrStoreFailure, Message: "Room state could not be read or saved. Please try again.", Status: http.StatusInternalServerError},
}
