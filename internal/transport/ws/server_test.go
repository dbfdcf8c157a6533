package ws_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partydeck/game-server/internal/broadcast"
	"github.com/partydeck/game-server/internal/domain"
	"github.com/partydeck/game-server/internal/registry"
	"github.com/partydeck/game-server/internal/room"
	"github.com/partydeck/game-server/internal/transport/ws"
)

type noopPersister struct{}

func (noopPersister) Enqueue(domain.Outcome) {}

// wireEvent mirrors the JSON shape clients receive.
type wireEvent struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id"`
	Seq     uint64 `json:"seq"`
	Payload struct {
		Room struct {
			ID           string `json:"id"`
			Status       string `json:"status"`
			Participants []struct {
				DisplayName string `json:"display_name"`
			} `json:"participants"`
		} `json:"room"`
		Code    string `json:"code"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"payload"`
}

type testEnv struct {
	manager *room.Manager
	server  *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := registry.New()
	store := room.NewStore()
	disp := broadcast.NewDispatcher(reg, log)
	manager := room.NewManager(store, reg, disp, noopPersister{}, nil, room.ManagerConfig{}, log)
	disp.OnDrop(manager.Disconnect)

	wsServer := ws.NewServer(reg, manager, 15*time.Second, 32, log)
	srv := httptest.NewServer(http.HandlerFunc(wsServer.HandleWS))
	t.Cleanup(srv.Close)

	return &testEnv{manager: manager, server: srv}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg ws.ClientMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev wireEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func names(ev wireEvent) []string {
	out := make([]string, 0, len(ev.Payload.Room.Participants))
	for _, p := range ev.Payload.Room.Participants {
		out = append(out, p.DisplayName)
	}
	return out
}

func TestServer_JoinBroadcastsState(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.manager.CreateRoom("R1", 2, nil)
	require.NoError(t, err)

	connA := env.dial(t)
	send(t, connA, ws.ClientMessage{Type: ws.TypeJoinRoom, RoomID: "R1", DisplayName: "ann"})

	ev := readEvent(t, connA)
	assert.Equal(t, domain.EventRoomState, ev.Type)
	assert.Equal(t, "R1", ev.RoomID)
	assert.Equal(t, uint64(1), ev.Seq)
	assert.Equal(t, []string{"ann"}, names(ev))

	connB := env.dial(t)
	send(t, connB, ws.ClientMessage{Type: ws.TypeJoinRoom, RoomID: "R1", DisplayName: "bob"})

	// both sockets observe the same second state, in sequence
	for _, conn := range []*websocket.Conn{connA, connB} {
		ev := readEvent(t, conn)
		assert.Equal(t, domain.EventRoomState, ev.Type)
		assert.Equal(t, uint64(2), ev.Seq)
		assert.Equal(t, []string{"ann", "bob"}, names(ev))
	}
}

func TestServer_JoinFullRoomGetsErrorEvent(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.manager.CreateRoom("R1", 1, nil)
	require.NoError(t, err)

	connA := env.dial(t)
	send(t, connA, ws.ClientMessage{Type: ws.TypeJoinRoom, RoomID: "R1", DisplayName: "ann"})
	readEvent(t, connA)

	connB := env.dial(t)
	send(t, connB, ws.ClientMessage{Type: ws.TypeJoinRoom, RoomID: "R1", DisplayName: "bob"})

	ev := readEvent(t, connB)
	assert.Equal(t, domain.EventError, ev.Type)
	assert.Equal(t, "room_full", ev.Payload.Code)
	assert.Zero(t, ev.Seq) // error events are targeted, not part of the room stream
}

func TestServer_DisconnectTriggersLeave(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.manager.CreateRoom("R1", 2, nil)
	require.NoError(t, err)

	connA := env.dial(t)
	send(t, connA, ws.ClientMessage{Type: ws.TypeJoinRoom, RoomID: "R1", DisplayName: "ann"})
	readEvent(t, connA)

	connB := env.dial(t)
	send(t, connB, ws.ClientMessage{Type: ws.TypeJoinRoom, RoomID: "R1", DisplayName: "bob"})
	readEvent(t, connA) // [ann, bob]

	require.NoError(t, connB.Close())

	ev := readEvent(t, connA)
	assert.Equal(t, domain.EventRoomState, ev.Type)
	assert.Equal(t, []string{"ann"}, names(ev))
}

func TestServer_LastLeaveTearsDownRoom(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.manager.CreateRoom("R1", 2, nil)
	require.NoError(t, err)

	conn := env.dial(t)
	send(t, conn, ws.ClientMessage{Type: ws.TypeJoinRoom, RoomID: "R1", DisplayName: "ann"})
	readEvent(t, conn)

	send(t, conn, ws.ClientMessage{Type: ws.TypeLeaveRoom})

	// the leaver hears the shutdown before being detached
	ev := readEvent(t, conn)
	assert.Equal(t, domain.EventRoomClosed, ev.Type)
	assert.Equal(t, "R1", ev.RoomID)
	assert.Equal(t, "empty", ev.Payload.Reason)

	require.Eventually(t, func() bool {
		_, err := env.manager.Room("R1")
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_MalformedMessageGetsErrorEvent(t *testing.T) {
	env := newTestEnv(t)

	conn := env.dial(t)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	ev := readEvent(t, conn)
	assert.Equal(t, domain.EventError, ev.Type)
	assert.Equal(t, "invalid_message", ev.Payload.Code)
}
