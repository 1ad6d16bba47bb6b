package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitcollab/internal/app/collab"
)

// dialWS connects a WebSocket client to the test server's channel endpoint.
func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, eventType collab.EventType, roomCode string, payload any) {
	t.Helper()

	ev := collab.Event{
		Type:     eventType,
		RoomCode: roomCode,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		ev.Payload = raw
	}

	require.NoError(t, conn.WriteJSON(ev))
}

func readEvent(t *testing.T, conn *websocket.Conn) collab.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var ev collab.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

// waitRegistered blocks until the identity's session binding is live, so
// events on other connections cannot outrun the registration.
func waitRegistered(t *testing.T, env *testEnv, id string) {
	t.Helper()

	require.Eventually(t, func() bool {
		_, ok := env.co.Registry().Lookup(id)
		return ok
	}, time.Second, 10*time.Millisecond)
}

// waitSubscribers blocks until the room's channel reaches the given size.
func waitSubscribers(t *testing.T, env *testEnv, roomCode string, n int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return env.co.SubscriberCount(roomCode) == n
	}, time.Second, 10*time.Millisecond)
}

func TestChannelJoinApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	rm, err := env.store.Create(context.Background(), "live", "alice", 0)
	require.NoError(t, err)

	host := dialWS(t, server)
	sendEvent(t, host, collab.TypeRegister, "", collab.RegisterPayload{Identity: "alice"})
	sendEvent(t, host, collab.TypeSubscribe, rm.Code, nil)
	waitRegistered(t, env, "alice")

	cand := dialWS(t, server)
	sendEvent(t, cand, collab.TypeRegister, "", collab.RegisterPayload{Identity: "bob"})
	sendEvent(t, cand, collab.TypeSubscribe, rm.Code, nil)
	sendEvent(t, cand, collab.TypeRequestJoin, rm.Code, collab.RequestJoinPayload{
		Identity:    "bob",
		DisplayName: "Bob",
	})

	// The host's registered session is told about the pending request.
	ev := readEvent(t, host)
	require.Equal(t, collab.TypeJoinRequest, ev.Type)
	assert.Equal(t, rm.Code, ev.RoomCode)

	var reqPayload collab.RequestJoinPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &reqPayload))
	assert.Equal(t, "bob", reqPayload.Identity)

	sendEvent(t, host, collab.TypeApproveJoin, rm.Code, collab.TargetPayload{Identity: "bob"})

	// The candidate hears the approval first, then the channel broadcasts.
	ev = readEvent(t, cand)
	assert.Equal(t, collab.TypeJoinApproved, ev.Type)
	ev = readEvent(t, cand)
	assert.Equal(t, collab.TypeRoomUpdated, ev.Type)
	ev = readEvent(t, cand)
	assert.Equal(t, collab.TypeParticipantJoined, ev.Type)

	// The host's channel sees the same broadcasts.
	ev = readEvent(t, host)
	assert.Equal(t, collab.TypeRoomUpdated, ev.Type)
	ev = readEvent(t, host)
	assert.Equal(t, collab.TypeParticipantJoined, ev.Type)

	got, err := env.store.GetActive(context.Background(), rm.Code)
	require.NoError(t, err)
	assert.True(t, got.HasParticipant("bob"))
}

func TestChannelFileRelay(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	rm, err := env.store.Create(context.Background(), "relay", "alice", 0)
	require.NoError(t, err)

	sender := dialWS(t, server)
	sendEvent(t, sender, collab.TypeRegister, "", collab.RegisterPayload{Identity: "alice"})
	sendEvent(t, sender, collab.TypeSubscribe, rm.Code, nil)
	waitRegistered(t, env, "alice")

	receiver := dialWS(t, server)
	sendEvent(t, receiver, collab.TypeRegister, "", collab.RegisterPayload{Identity: "bob"})
	sendEvent(t, receiver, collab.TypeSubscribe, rm.Code, nil)

	// Force the receiver's subscription to land before the relay: a join
	// request on the same connection is processed after the subscribe, and
	// its JOIN_REQUEST notification proves both were handled.
	sendEvent(t, receiver, collab.TypeRequestJoin, rm.Code, collab.RequestJoinPayload{
		Identity:    "bob",
		DisplayName: "Bob",
	})
	ev := readEvent(t, sender)
	require.Equal(t, collab.TypeJoinRequest, ev.Type)

	payload := map[string]string{"path": "notes.md", "content": "# plan"}
	sendEvent(t, sender, collab.TypeFileChanged, rm.Code, payload)

	ev = readEvent(t, receiver)
	assert.Equal(t, collab.TypeFileChanged, ev.Type)
	assert.Equal(t, rm.Code, ev.RoomCode)

	var relayed map[string]string
	require.NoError(t, json.Unmarshal(ev.Payload, &relayed))
	assert.Equal(t, payload, relayed)

	// The sender never hears its own relay.
	require.NoError(t, sender.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	var stray collab.Event
	assert.Error(t, sender.ReadJSON(&stray))
}

func TestChannelLeaveNotifiesSubscribers(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	ctx := context.Background()
	rm, err := env.store.Create(ctx, "leave", "alice", 0)
	require.NoError(t, err)
	_, _, err = env.store.AddParticipant(ctx, rm.Code, "bob", "Bob")
	require.NoError(t, err)

	host := dialWS(t, server)
	sendEvent(t, host, collab.TypeRegister, "", collab.RegisterPayload{Identity: "alice"})
	sendEvent(t, host, collab.TypeSubscribe, rm.Code, nil)
	waitSubscribers(t, env, rm.Code, 1)

	member := dialWS(t, server)
	sendEvent(t, member, collab.TypeRegister, "", collab.RegisterPayload{Identity: "bob"})
	sendEvent(t, member, collab.TypeLeaveRoom, rm.Code, nil)

	ev := readEvent(t, host)
	assert.Equal(t, collab.TypeRoomUpdated, ev.Type)

	ev = readEvent(t, host)
	require.Equal(t, collab.TypeParticipantLeft, ev.Type)

	var left collab.UserEventPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &left))
	assert.Equal(t, "bob", left.Identity)

	got, err := env.store.GetActive(ctx, rm.Code)
	require.NoError(t, err)
	assert.False(t, got.HasParticipant("bob"))
}

func TestChannelDisconnectKeepsMembership(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	ctx := context.Background()
	rm, err := env.store.Create(ctx, "presence", "alice", 0)
	require.NoError(t, err)

	conn := dialWS(t, server)
	sendEvent(t, conn, collab.TypeRegister, "", collab.RegisterPayload{Identity: "alice"})
	require.NoError(t, conn.Close())

	// Dropping the connection severs routing only; the room record is
	// untouched and alice is still a participant.
	require.Eventually(t, func() bool {
		got, err := env.store.GetActive(ctx, rm.Code)
		return err == nil && got.HasParticipant("alice")
	}, time.Second, 20*time.Millisecond)
}
