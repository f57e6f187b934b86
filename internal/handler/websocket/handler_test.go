package websocket_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/s0ra0000/sushi-go-backend/internal/dto"
	"github.com/s0ra0000/sushi-go-backend/internal/gateway/mocks"
	wshandler "github.com/s0ra0000/sushi-go-backend/internal/handler/websocket"
	"github.com/s0ra0000/sushi-go-backend/internal/hub"
	"github.com/s0ra0000/sushi-go-backend/internal/relay"
	"github.com/s0ra0000/sushi-go-backend/internal/service"
)

const readTimeout = 2 * time.Second

// wsFixture 启动一个带 /ws 端点的测试服务器。
type wsFixture struct {
	hub    *hub.Hub
	caller *mocks.Caller
	server *httptest.Server
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := hub.New()
	caller := new(mocks.Caller)
	handler := wshandler.NewHandler(h, service.NewGame(caller))

	engine := gin.New()
	engine.GET("/ws", handler.HandleConnection)

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	return &wsFixture{hub: h, caller: caller, server: server}
}

func (f *wsFixture) dial(t *testing.T) *gorilla.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *gorilla.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	env := dto.Envelope{Event: event, Data: raw}
	require.NoError(t, conn.WriteJSON(env))
}

func recv(t *testing.T, conn *gorilla.Conn) dto.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	var env dto.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestJoinSessionRoom_PushesPlayersSnapshot(t *testing.T) {
	f := newWSFixture(t)
	f.caller.On("Call", mock.Anything, "get_session_players", "tok", int64(7)).
		Return(json.RawMessage(`{"players":[{"id":1},{"id":2}]}`), nil).Once()

	conn := f.dial(t)
	send(t, conn, dto.EventJoinSessionRoom, dto.SessionRoomPayload{SessionID: 7, Token: "tok"})

	env := recv(t, conn)
	assert.Equal(t, "updatePlayers", env.Event)
	assert.JSONEq(t, `{"players":[{"id":1},{"id":2}]}`, string(env.Data))

	f.caller.AssertExpectations(t)
}

func TestRelayedNotificationReachesSessionRoom(t *testing.T) {
	f := newWSFixture(t)
	f.caller.On("Call", mock.Anything, "get_session_players", "tok", int64(46)).
		Return(json.RawMessage(`{"players":[]}`), nil).Once()

	conn := f.dial(t)
	send(t, conn, dto.EventJoinSessionRoom, dto.SessionRoomPayload{SessionID: 46, Token: "tok"})
	// updatePlayers 回包确认连接已进入房间
	require.Equal(t, "updatePlayers", recv(t, conn).Event)

	router := relay.NewRouter(f.hub)
	// 畸形通知被丢弃，不得影响后续分发
	router.Route([]byte(`{"event":"countdown"}`))
	notification := `{"session_id":46,"event":"countdown","remaining":5}`
	router.Route([]byte(notification))

	env := recv(t, conn)
	assert.Equal(t, "countdown", env.Event)
	assert.JSONEq(t, notification, string(env.Data))
}

func TestSessionListRoomReceivesSessionsChanged(t *testing.T) {
	f := newWSFixture(t)
	f.caller.On("Call", mock.Anything, "get_session_players", "", int64(3)).
		Return(json.RawMessage(`{"players":[]}`), nil).Once()

	conn := f.dial(t)
	send(t, conn, dto.EventSessionList, nil)
	// 同一连接上的事件按序处理：用 joinSessionRoom 的回包确认 session_list 已生效
	send(t, conn, dto.EventJoinSessionRoom, dto.SessionRoomPayload{SessionID: 3})
	require.Equal(t, "updatePlayers", recv(t, conn).Event)

	f.hub.Broadcast(hub.ListRoom, "sessions_changed", json.RawMessage(`{"sessions":[]}`))

	env := recv(t, conn)
	assert.Equal(t, "sessions_changed", env.Event)
	assert.JSONEq(t, `{"sessions":[]}`, string(env.Data))
}

func TestLeaveSession_BroadcastsThenRemovesFromRoom(t *testing.T) {
	f := newWSFixture(t)
	f.caller.On("Call", mock.Anything, "get_session_players", "tok", int64(5)).
		Return(json.RawMessage(`{"players":[{"id":1},{"id":2}]}`), nil).Once()
	f.caller.On("Call", mock.Anything, "leave_session", "tok", int64(5)).
		Return(json.RawMessage(`{"success":true}`), nil).Once()
	f.caller.On("Call", mock.Anything, "get_session_players", "tok", int64(5)).
		Return(json.RawMessage(`{"players":[{"id":1}]}`), nil).Once()

	conn := f.dial(t)
	send(t, conn, dto.EventJoinSessionRoom, dto.SessionRoomPayload{SessionID: 5, Token: "tok"})
	require.Equal(t, "updatePlayers", recv(t, conn).Event)

	send(t, conn, dto.EventLeaveSession, dto.SessionRoomPayload{SessionID: 5, Token: "tok"})

	// 离开前的最后一次快照仍会送达本连接
	env := recv(t, conn)
	assert.Equal(t, "updatePlayers", env.Event)
	assert.JSONEq(t, `{"players":[{"id":1}]}`, string(env.Data))

	f.caller.AssertExpectations(t)
}

func TestMalformedClientMessageKeepsConnectionAlive(t *testing.T) {
	f := newWSFixture(t)
	f.caller.On("Call", mock.Anything, "get_session_players", "", int64(9)).
		Return(json.RawMessage(`{"players":[]}`), nil).Once()

	conn := f.dial(t)
	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, []byte("not json")))
	send(t, conn, "unknownEvent", nil)

	// 连接仍可正常处理后续事件
	send(t, conn, dto.EventJoinSessionRoom, dto.SessionRoomPayload{SessionID: 9})
	assert.Equal(t, "updatePlayers", recv(t, conn).Event)
}
