/*
Package handler provides HTTP handler functions for the room lifecycle:
creation, lookup, the two join paths, and leaving.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bitcollab/internal/app/room"
	"bitcollab/internal/pkg/errs"
	"bitcollab/internal/pkg/identity"
	"bitcollab/internal/pkg/logx"
	"bitcollab/internal/pkg/randx"
	"bitcollab/internal/pkg/req"
	"bitcollab/internal/pkg/resp"
)

// listRoomsLimit caps the active-rooms listing.
const listRoomsLimit = 50

type CreateRoomInput struct {
	// RoomName is optional; a placeholder is applied when omitted.
	RoomName string `json:"roomName,omitempty"`

	// Creator is the host's identity. Required.
	Creator string `json:"creator"`

	// MaxParticipants is optional; zero selects the default capacity.
	MaxParticipants int `json:"maxParticipants,omitempty"`
}

// HandleCreateRoom creates an HTTP HandlerFunc to process room creation requests.
// The creator becomes the room's host and its first participant, with no
// pending-approval step.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CreateRoomInput

		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !identity.IsValid(input.Creator) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		rm, err := deps.Store.Create(r.Context(), input.RoomName, input.Creator, input.MaxParticipants)
		if err != nil {
			logx.Error(err, "Room creation failed", "creator", identity.Normalize(input.Creator))
			resp.RespondError(w, r, mapStoreError(err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"room": rm,
		})
	}
}

// HandleGetRoom returns the active room snapshot for a code, or not-found.
// Codes are matched case-insensitively.
func HandleGetRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if !randx.IsValidRoomCode(code) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		rm, err := deps.Store.GetActive(r.Context(), code)
		if err != nil {
			resp.RespondError(w, r, mapStoreError(err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"room": rm,
		})
	}
}

// HandleListRooms returns the newest active rooms.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := deps.Store.ListActive(r.Context(), listRoomsLimit)
		if err != nil {
			resp.RespondError(w, r, mapStoreError(err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"rooms": rooms,
		})
	}
}

type JoinRoomInput struct {
	RoomCode    string `json:"roomCode"`
	Identity    string `json:"userId"`
	DisplayName string `json:"username"`
}

// HandleJoinRoom processes the request/response side of joining a room.
// Three outcomes, distinguished by the response message: the caller is
// already a member, the caller is the host and joins directly, or the join
// is deferred to the host-approval flow on the channel.
func HandleJoinRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input JoinRoomInput

		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !randx.IsValidRoomCode(input.RoomCode) || !identity.IsValid(input.Identity) || input.DisplayName == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		rm, err := deps.Store.GetActive(r.Context(), input.RoomCode)
		if err != nil {
			resp.RespondError(w, r, mapStoreError(err))
			return
		}

		if rm.HasParticipant(input.Identity) {
			resp.RespondSuccessMessage(w, r, "Already in room", map[string]any{"room": rm})
			return
		}

		if rm.IsFull() {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomIsFull))
			return
		}

		if rm.IsCreator(input.Identity) {
			updated, _, err := deps.Store.AddParticipant(r.Context(), rm.Code, input.Identity, input.DisplayName)
			if err != nil {
				resp.RespondError(w, r, mapStoreError(err))
				return
			}

			resp.RespondSuccessMessage(w, r, "Successfully joined room as host", map[string]any{"room": updated})
			return
		}

		// Non-creators go through the approval state machine on the channel;
		// nothing is mutated here.
		resp.RespondSuccessMessage(w, r, "Join request sent to host", map[string]any{"room": rm})
	}
}

type LeaveRoomInput struct {
	RoomCode string `json:"roomCode"`
	Identity string `json:"userId"`
}

// HandleLeaveRoom removes the identity from the room through the same
// coordinator logic the channel's leave handling uses, so remaining
// subscribers are notified either way.
func HandleLeaveRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LeaveRoomInput

		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !randx.IsValidRoomCode(input.RoomCode) || !identity.IsValid(input.Identity) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if err := deps.Coordinator.Leave(r.Context(), input.RoomCode, input.Identity); err != nil {
			resp.RespondError(w, r, mapStoreError(err))
			return
		}

		resp.RespondSuccessMessage(w, r, "Left room", nil)
	}
}

// mapStoreError converts room store failures to client-facing errors.
func mapStoreError(err error) *errs.CustomError {
	switch {
	case errors.Is(err, room.ErrNotFound):
		return errs.NewError(errs.ErrRoomNotFound)
	case errors.Is(err, room.ErrRoomFull):
		return errs.NewError(errs.ErrRoomIsFull)
	case errors.Is(err, room.ErrCodeExhausted):
		return errs.NewError(errs.ErrRoomCodeExhausted)
	case errors.Is(err, room.ErrCreatorRequired):
		return errs.NewError(errs.ErrInvalidParams)
	default:
		return errs.NewError(errs.ErrStoreFailure)
	}
}
