package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitcollab/internal/app/collab"
	"bitcollab/internal/app/room"
	"bitcollab/internal/app/session"
	"bitcollab/internal/configs"
	"bitcollab/internal/pkg/errs"
)

type testEnv struct {
	router http.Handler
	store  *room.MemoryStore
	co     *collab.Coordinator
}

// newTestEnv builds the full router over the in-memory store. Each test gets
// its own router so per-IP rate limiter state never leaks between tests.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := room.NewMemoryStore()
	coordinator := collab.NewCoordinator(store, session.NewRegistry())
	cfg := &configs.AppConfig{
		Environment:    "development",
		Port:           8080,
		AllowedOrigins: []string{},
	}

	return &testEnv{
		router: Router(&AppDeps{
			Coordinator: coordinator,
			Store:       store,
			Config:      cfg,
		}),
		store: store,
		co:    coordinator,
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, *envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	var out envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, &out
}

// envelope mirrors the response structure with the data payload kept raw.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (r *envelope) room(t *testing.T) room.Room {
	t.Helper()

	var data struct {
		Room room.Room `json:"room"`
	}
	require.NoError(t, json.Unmarshal(r.Data, &data))
	return data.Room
}

func TestHandleCreateRoom(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodPost, "/api/rooms/create", CreateRoomInput{
		RoomName: "design sync",
		Creator:  "Alice",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, out.Code)

	rm := out.room(t)
	assert.Len(t, rm.Code, 6)
	assert.Equal(t, "design sync", rm.Name)
	assert.Equal(t, "alice", rm.Creator)
	assert.True(t, rm.Active)
	require.Len(t, rm.Participants, 1)
	assert.Equal(t, "alice", rm.Participants[0].Identity)
}

func TestHandleCreateRoomMissingCreator(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodPost, "/api/rooms/create", CreateRoomInput{
		RoomName: "no host",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errs.ErrInvalidParams, out.Code)
}

func TestHandleCreateRoomRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodPost, "/api/rooms/create", map[string]any{
		"creator": "alice",
		"bogus":   true,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEqual(t, 0, out.Code)
}

func TestHandleGetRoom(t *testing.T) {
	env := newTestEnv(t)
	rm, err := env.store.Create(context.Background(), "lookup", "alice", 0)
	require.NoError(t, err)

	rec, out := env.do(t, http.MethodGet, "/api/rooms/"+rm.Code, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, out.Code)
	assert.Equal(t, rm.Code, out.room(t).Code)
}

func TestHandleGetRoomNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodGet, "/api/rooms/ZZZZZZ", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errs.ErrRoomNotFound, out.Code)
}

func TestHandleGetRoomInvalidCode(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodGet, "/api/rooms/not-a-code", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errs.ErrInvalidParams, out.Code)
}

func TestHandleJoinRoomAsHost(t *testing.T) {
	env := newTestEnv(t)
	rm, err := env.store.Create(context.Background(), "host join", "alice", 0)
	require.NoError(t, err)

	// The creator joining their own room bypasses approval.
	rec, out := env.do(t, http.MethodPost, "/api/rooms/join", JoinRoomInput{
		RoomCode:    rm.Code,
		Identity:    "alice",
		DisplayName: "Alice",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, out.Code)
	assert.Equal(t, "Already in room", out.Message)
}

func TestHandleJoinRoomHostRejoins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm, err := env.store.Create(ctx, "rejoin", "alice", 0)
	require.NoError(t, err)

	// Keep the room alive while the host steps out.
	_, _, err = env.store.AddParticipant(ctx, rm.Code, "bob", "Bob")
	require.NoError(t, err)
	_, _, err = env.store.RemoveParticipant(ctx, rm.Code, "alice")
	require.NoError(t, err)

	rec, out := env.do(t, http.MethodPost, "/api/rooms/join", JoinRoomInput{
		RoomCode:    rm.Code,
		Identity:    "Alice",
		DisplayName: "Alice",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, out.Code)
	assert.Equal(t, "Successfully joined room as host", out.Message)
	joined := out.room(t)
	assert.True(t, joined.HasParticipant("alice"))
}

func TestHandleJoinRoomDeferredToApproval(t *testing.T) {
	env := newTestEnv(t)
	rm, err := env.store.Create(context.Background(), "approval", "alice", 0)
	require.NoError(t, err)

	rec, out := env.do(t, http.MethodPost, "/api/rooms/join", JoinRoomInput{
		RoomCode:    rm.Code,
		Identity:    "bob",
		DisplayName: "Bob",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, out.Code)
	assert.Equal(t, "Join request sent to host", out.Message)

	// The HTTP path mutates nothing: bob is neither a member nor pending
	// until the channel-side request goes through.
	got, err := env.store.GetActive(context.Background(), rm.Code)
	require.NoError(t, err)
	assert.False(t, got.HasParticipant("bob"))
	assert.Empty(t, got.PendingRequests)
}

func TestHandleJoinRoomFull(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm, err := env.store.Create(ctx, "tiny", "alice", 1)
	require.NoError(t, err)

	rec, out := env.do(t, http.MethodPost, "/api/rooms/join", JoinRoomInput{
		RoomCode:    rm.Code,
		Identity:    "bob",
		DisplayName: "Bob",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errs.ErrRoomIsFull, out.Code)
}

func TestHandleJoinRoomUnknownCode(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodPost, "/api/rooms/join", JoinRoomInput{
		RoomCode:    "ZZZZZZ",
		Identity:    "bob",
		DisplayName: "Bob",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errs.ErrRoomNotFound, out.Code)
}

func TestHandleLeaveRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm, err := env.store.Create(ctx, "leave", "alice", 0)
	require.NoError(t, err)
	_, _, err = env.store.AddParticipant(ctx, rm.Code, "bob", "Bob")
	require.NoError(t, err)

	rec, out := env.do(t, http.MethodPost, "/api/rooms/leave", LeaveRoomInput{
		RoomCode: rm.Code,
		Identity: "bob",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, out.Code)

	got, err := env.store.GetActive(ctx, rm.Code)
	require.NoError(t, err)
	assert.False(t, got.HasParticipant("bob"))
}

func TestHandleLeaveRoomLastParticipantDeactivates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm, err := env.store.Create(ctx, "leave", "alice", 0)
	require.NoError(t, err)

	rec, out := env.do(t, http.MethodPost, "/api/rooms/leave", LeaveRoomInput{
		RoomCode: rm.Code,
		Identity: "alice",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, out.Code)

	_, err = env.store.GetActive(ctx, rm.Code)
	assert.ErrorIs(t, err, room.ErrNotFound)
}

func TestHandleListRooms(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.store.Create(ctx, "one", "alice", 0)
	require.NoError(t, err)
	_, err = env.store.Create(ctx, "two", "bob", 0)
	require.NoError(t, err)

	rec, out := env.do(t, http.MethodGet, "/api/rooms/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, out.Code)

	var data struct {
		Rooms []room.Room `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &data))
	assert.Len(t, data.Rooms, 2)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, out.Code)
}
