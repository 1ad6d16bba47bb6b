/*
Package collab contains the core logic for room presence, join approval,
and real-time broadcasting of edit events.

This file implements the join-approval state machine. A candidate moves
NotRequested -> PendingApproval -> Approved or Denied; both outcomes are
terminal for that request instance, and a fresh request after a denial
re-enters PendingApproval. Host authority for approve/deny/remove is checked
against the invoking session's registered identity.
*/
package collab

import (
	"context"
	"errors"

	"bitcollab/internal/app/room"
	"bitcollab/internal/app/session"
	"bitcollab/internal/pkg/errs"
	"bitcollab/internal/pkg/identity"
)

// DeniedByHostReason is the default reason delivered when a host denies a
// request without providing one.
const DeniedByHostReason = "Host denied your request"

// roomMissingReason is delivered when a join request targets an unknown or
// deactivated room; the requester never enters the pending queue.
const roomMissingReason = "Room not found or inactive"

// RequestJoin handles a candidate's request to enter a room. The request is
// enqueued idempotently and the host's registered session is notified; if
// the host has no live session the notification is lost and the request
// waits silently.
func (co *Coordinator) RequestJoin(ctx context.Context, invoker session.Conn, roomCode, id, displayName string) {
	if !identity.IsValid(id) || displayName == "" {
		co.sendError(invoker, roomCode, errs.NewError(errs.ErrInvalidParams))
		return
	}

	rm, err := co.store.GetActive(ctx, roomCode)
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			co.deny(invoker, roomCode, roomMissingReason)
			return
		}
		co.sendError(invoker, roomCode, errs.NewError(errs.ErrStoreFailure))
		return
	}

	if rm.HasParticipant(id) {
		co.sendAck(invoker, rm.Code, "Already a member")
		return
	}

	if _, err := co.store.EnqueuePending(ctx, rm.Code, id, displayName); err != nil {
		co.sendError(invoker, rm.Code, errs.NewError(errs.ErrStoreFailure))
		return
	}

	co.logger.Info().
		Str("room_code", rm.Code).
		Str("identity", identity.Normalize(id)).
		Msg("Join request queued for host approval.")

	ev, err := NewEvent(TypeJoinRequest, rm.Code, RequestJoinPayload{
		Identity:    identity.Normalize(id),
		DisplayName: displayName,
	})
	if err != nil {
		co.logger.Error().Err(err).Msg("Failed to build JOIN_REQUEST event.")
		return
	}
	co.notify(rm.Creator, ev)
}

// Approve moves a pending request into the participant list. Host-only.
// A no-op when the entry is no longer pending (already approved, denied,
// or withdrawn).
func (co *Coordinator) Approve(ctx context.Context, invoker session.Conn, invokerID, roomCode, targetID string) {
	rm, ok := co.authorizeHost(ctx, invoker, invokerID, roomCode)
	if !ok {
		return
	}

	updated, approved, err := co.store.Approve(ctx, rm.Code, targetID)
	if err != nil {
		co.sendError(invoker, rm.Code, storeError(err))
		return
	}

	if approved == nil {
		co.logger.Info().
			Str("room_code", rm.Code).
			Str("identity", identity.Normalize(targetID)).
			Msg("Approve ignored: no matching pending request.")
		return
	}

	approvedEv, err := NewEvent(TypeJoinApproved, updated.Code, nil)
	if err == nil {
		co.notify(approved.Identity, approvedEv)
	}

	co.broadcastRoomUpdated(updated.Code)

	joinedEv, err := NewEvent(TypeParticipantJoined, updated.Code, UserEventPayload{
		Identity:    approved.Identity,
		DisplayName: approved.DisplayName,
	})
	if err == nil {
		co.broadcast(updated.Code, joinedEv, nil)
	}
}

// Deny removes a pending request and informs the requester. Host-only.
// Never touches the participant list. The target's session hears the denial
// even when nothing was pending, so a requester whose entry was already
// withdrawn still learns the outcome.
func (co *Coordinator) Deny(ctx context.Context, invoker session.Conn, invokerID, roomCode, targetID, reason string) {
	rm, ok := co.authorizeHost(ctx, invoker, invokerID, roomCode)
	if !ok {
		return
	}

	if reason == "" {
		reason = DeniedByHostReason
	}

	if _, _, err := co.store.DequeuePending(ctx, rm.Code, targetID); err != nil {
		co.sendError(invoker, rm.Code, storeError(err))
		return
	}

	co.deny(nil, rm.Code, reason, identity.Normalize(targetID))
}

// Remove ejects a participant from the room. Host-only. Only the removed
// identity's session gets the targeted event; everyone else sees the
// membership-changed signal.
func (co *Coordinator) Remove(ctx context.Context, invoker session.Conn, invokerID, roomCode, targetID string) {
	rm, ok := co.authorizeHost(ctx, invoker, invokerID, roomCode)
	if !ok {
		return
	}

	updated, removed, err := co.store.RemoveParticipant(ctx, rm.Code, targetID)
	if err != nil {
		co.sendError(invoker, rm.Code, storeError(err))
		return
	}

	if removed != nil {
		ev, err := NewEvent(TypeRemovedFromRoom, updated.Code, nil)
		if err == nil {
			co.notify(removed.Identity, ev)
		}
	}

	co.broadcastRoomUpdated(updated.Code)
}

// Leave removes the identity from the room and tells the remaining channel
// members. Removing the last participant deactivates the room, after which
// no further broadcast is needed. Shared by the channel handler and the
// HTTP leave route.
func (co *Coordinator) Leave(ctx context.Context, roomCode, id string) error {
	rm, removed, err := co.store.RemoveParticipant(ctx, roomCode, id)
	if err != nil {
		return err
	}

	if removed == nil || !rm.Active {
		return nil
	}

	co.broadcastRoomUpdated(rm.Code)

	ev, err := NewEvent(TypeParticipantLeft, rm.Code, UserEventPayload{
		Identity:    removed.Identity,
		DisplayName: removed.DisplayName,
	})
	if err == nil {
		co.broadcast(rm.Code, ev, nil)
	}
	return nil
}

// authorizeHost loads the active room and verifies the invoking session's
// registered identity is the room's creator. Failures are reported to the
// invoker and (nil, false) is returned.
func (co *Coordinator) authorizeHost(ctx context.Context, invoker session.Conn, invokerID, roomCode string) (*room.Room, bool) {
	if !identity.IsValid(invokerID) {
		co.sendError(invoker, roomCode, errs.NewError(errs.ErrNotRegistered))
		return nil, false
	}

	rm, err := co.store.GetActive(ctx, roomCode)
	if err != nil {
		co.sendError(invoker, roomCode, storeError(err))
		return nil, false
	}

	if !rm.IsCreator(invokerID) {
		co.logger.Warn().
			Str("room_code", rm.Code).
			Str("identity", identity.Normalize(invokerID)).
			Msg("Host-only action rejected for non-creator.")
		co.sendError(invoker, rm.Code, errs.NewError(errs.ErrUnauthorized))
		return nil, false
	}

	return rm, true
}

// deny emits JOIN_DENIED. When target identities are given the event goes to
// their registered sessions; otherwise it goes straight to the invoker.
func (co *Coordinator) deny(invoker session.Conn, roomCode, reason string, targets ...string) {
	ev, err := NewEvent(TypeJoinDenied, roomCode, DeniedPayload{Reason: reason})
	if err != nil {
		co.logger.Error().Err(err).Msg("Failed to build JOIN_DENIED event.")
		return
	}

	if len(targets) == 0 {
		co.sendTo(invoker, ev)
		return
	}
	for _, t := range targets {
		co.notify(t, ev)
	}
}

// storeError maps room store failures onto the client-facing error taxonomy.
func storeError(err error) *errs.CustomError {
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
