package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/s0ra0000/sushi-go-backend/internal/dto"
	"github.com/s0ra0000/sushi-go-backend/internal/hub"
	"github.com/s0ra0000/sushi-go-backend/internal/service"
)

// Handler 负责 WebSocket 升级和客户端命令的分发。
// 协议为命名事件信封：客户端发送 session_list / joinSessionRoom /
// leaveSession，服务端推送 sessions_changed / updatePlayers 以及从
// 数据库通知原样转发的任意事件。
type Handler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	game     *service.Game
}

// NewHandler 创建 Handler 实例。
func NewHandler(h *hub.Hub, game *service.Game) *Handler {
	if h == nil {
		panic("Hub cannot be nil for websocket Handler")
	}
	if game == nil {
		panic("Game service cannot be nil for websocket Handler")
	}

	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 与 REST 层一致，跨域放开；令牌校验在数据库侧
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		hub:  h,
		game: game,
	}
}

// HandleConnection 处理 GET /ws 的升级请求。
// 连接建立时不属于任何房间，房间成员资格完全由后续事件驱动。
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时已经写出了 HTTP 错误响应，这里只记录日志
		logrus.WithError(err).Error("WS Handler: failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, h)
	logrus.WithField("conn_id", client.ID()).Info("WS Handler: connection established")
	client.Run()
}

// OnMessage 分发客户端发来的一条事件。
// 在客户端自己的读 goroutine 中同步执行：数据库调用只延迟该连接
// 自身的后续命令，不影响其他连接和通知中继路径。
func (h *Handler) OnMessage(c *hub.Client, data []byte) {
	var env dto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logrus.WithField("conn_id", c.ID()).
			WithError(err).Warn("WS Handler: dropping malformed client message")
		return
	}

	logCtx := logrus.WithFields(logrus.Fields{"conn_id": c.ID(), "event": env.Event})

	switch env.Event {
	case dto.EventSessionList:
		h.hub.Join(c, hub.ListRoom)

	case dto.EventJoinSessionRoom:
		h.joinSessionRoom(c, env.Data, logCtx)

	case dto.EventLeaveSession:
		h.leaveSession(c, env.Data, logCtx)

	default:
		logCtx.Warn("WS Handler: unknown client event")
	}
}

// OnDisconnect 在客户端的房间成员关系清理完成后调用。
// 断开本身不触发成员广播：剩余客户端依靠下一次 leave_session 变更
// 或数据库通知收敛到新的成员快照。
func (h *Handler) OnDisconnect(c *hub.Client) {
	logrus.WithField("conn_id", c.ID()).Info("WS Handler: connection closed")
}

// joinSessionRoom 将连接加入会话房间，并立即向该房间推送当前成员快照。
func (h *Handler) joinSessionRoom(c *hub.Client, data json.RawMessage, logCtx *logrus.Entry) {
	var payload dto.SessionRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.SessionID <= 0 {
		logCtx.WithError(err).Warn("WS Handler: invalid joinSessionRoom payload")
		return
	}

	room := hub.SessionRoom(payload.SessionID)
	h.hub.Join(c, room)

	// 使用后台 context：升级请求的 context 在 HandleConnection 返回后已失效
	players, err := h.game.SessionPlayers(context.Background(), payload.Token, payload.SessionID)
	if err != nil {
		logCtx.WithField("session_id", payload.SessionID).
			WithError(err).Error("WS Handler: failed to fetch players on join")
		return
	}
	h.hub.Broadcast(room, "updatePlayers", dto.PlayersPayload{Players: players})
}

// leaveSession 执行 leave_session 变更，重新查询成员快照并广播，
// 然后让该连接退出会话房间。
func (h *Handler) leaveSession(c *hub.Client, data json.RawMessage, logCtx *logrus.Entry) {
	var payload dto.SessionRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.SessionID <= 0 {
		logCtx.WithError(err).Warn("WS Handler: invalid leaveSession payload")
		return
	}

	ctx := context.Background()
	if _, err := h.game.LeaveSession(ctx, payload.Token, payload.SessionID); err != nil {
		logCtx.WithField("session_id", payload.SessionID).
			WithError(err).Error("WS Handler: leave_session call failed")
		return
	}

	room := hub.SessionRoom(payload.SessionID)
	players, err := h.game.SessionPlayers(ctx, payload.Token, payload.SessionID)
	if err != nil {
		logCtx.WithField("session_id", payload.SessionID).
			WithError(err).Error("WS Handler: failed to fetch players on leave")
	} else {
		h.hub.Broadcast(room, "updatePlayers", dto.PlayersPayload{Players: players})
	}
	h.hub.Leave(c, room)
}
