package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/s0ra0000/sushi-go-backend/internal/dto"
	"github.com/s0ra0000/sushi-go-backend/internal/hub"
	"github.com/s0ra0000/sushi-go-backend/internal/middleware"
	"github.com/s0ra0000/sushi-go-backend/internal/service"
)

// Broadcaster 是变更类端点对房间注册表的最小依赖。
type Broadcaster interface {
	Broadcast(room hub.RoomID, event string, payload any)
}

// SessionHandler 封装会话管理相关的 HTTP 端点。
// 变更类端点在存储过程成功后额外做一次直接广播（sessions_changed /
// updatePlayers）。这条广播路径与通知监听器触发的广播相互独立，两者
// 可能竞争：成员快照的投递语义是至少一次、不保证顺序。
type SessionHandler struct {
	game *service.Game
	hub  Broadcaster
}

// NewSessionHandler 创建 SessionHandler 实例。
func NewSessionHandler(game *service.Game, b Broadcaster) *SessionHandler {
	return &SessionHandler{game: game, hub: b}
}

// List 处理 GET /api/sessions（需要令牌）。
func (h *SessionHandler) List(c *gin.Context) {
	token := middleware.TokenFromContext(c)

	result, err := h.game.Sessions(c.Request.Context(), token)
	if err != nil {
		HandleGatewayError(c, "get_sessions", err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}

// CreateSessionRequest 定义创建会话的请求体。
type CreateSessionRequest struct {
	SessionName  string `json:"sessionName" binding:"required"`
	MoveDuration int    `json:"moveDuration" binding:"required"`
	PlayerCount  int    `json:"playerCount" binding:"required"`
}

// Create 处理 POST /api/sessions（需要令牌）。
// 成功后向列表房间广播 sessions_changed，负载为存储过程的返回值。
func (h *SessionHandler) Create(c *gin.Context) {
	token := middleware.TokenFromContext(c)

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "create_session", err)
		return
	}

	result, err := h.game.CreateSession(c.Request.Context(), token, req.SessionName, req.MoveDuration, req.PlayerCount)
	if err != nil {
		HandleGatewayError(c, "create_session", err)
		return
	}

	h.hub.Broadcast(hub.ListRoom, "sessions_changed", result)
	SuccessResponse(c, http.StatusOK, result)
}

// Delete 处理 DELETE /api/sessions/:id（需要令牌）。
func (h *SessionHandler) Delete(c *gin.Context) {
	token := middleware.TokenFromContext(c)
	sessionID := c.Param("id")

	result, err := h.game.DeleteSession(c.Request.Context(), token, sessionID)
	if err != nil {
		HandleGatewayError(c, "delete_session", err)
		return
	}

	h.hub.Broadcast(hub.ListRoom, "sessions_changed", result)
	SuccessResponse(c, http.StatusOK, result)
}

// Get 处理 GET /api/sessions/:id（需要令牌）。
func (h *SessionHandler) Get(c *gin.Context) {
	token := middleware.TokenFromContext(c)
	sessionID := c.Param("id")

	result, err := h.game.Session(c.Request.Context(), token, sessionID)
	if err != nil {
		HandleGatewayError(c, "get_session", err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}

// SessionRef 定义只携带会话 ID（和可选令牌）的请求体。
type SessionRef struct {
	SessionID int64  `json:"sessionId" binding:"required"`
	Token     string `json:"token"`
}

// Join 处理 POST /api/join-session（需要令牌）。
// 成功后重新查询成员快照并广播 updatePlayers 到会话房间，
// 再向列表房间广播 sessions_changed。
func (h *SessionHandler) Join(c *gin.Context) {
	token := middleware.TokenFromContext(c)

	var req SessionRef
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "join_session", err)
		return
	}

	result, err := h.game.JoinSession(c.Request.Context(), token, req.SessionID)
	if err != nil {
		HandleGatewayError(c, "join_session", err)
		return
	}

	if err := h.broadcastPlayers(c, token, req.SessionID); err != nil {
		HandleGatewayError(c, "join_session", err)
		return
	}
	h.hub.Broadcast(hub.ListRoom, "sessions_changed", result)
	SuccessResponse(c, http.StatusOK, result)
}

// Leave 处理 POST /api/leave-session（令牌可选，缺失时以 NULL 传递）。
func (h *SessionHandler) Leave(c *gin.Context) {
	token := middleware.TokenFromContext(c)

	var req SessionRef
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "leave_session", err)
		return
	}

	result, err := h.game.LeaveSession(c.Request.Context(), token, req.SessionID)
	if err != nil {
		HandleGatewayError(c, "leave_session", err)
		return
	}

	if err := h.broadcastPlayers(c, token, req.SessionID); err != nil {
		HandleGatewayError(c, "leave_session", err)
		return
	}
	h.hub.Broadcast(hub.ListRoom, "sessions_changed", result)
	SuccessResponse(c, http.StatusOK, result)
}

// IsPlayerBelongs 处理 POST /api/is-player-belongs（令牌可选）。
func (h *SessionHandler) IsPlayerBelongs(c *gin.Context) {
	token := middleware.TokenFromContext(c)

	var req SessionRef
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "is_player_belongs", err)
		return
	}

	result, err := h.game.IsPlayerBelongs(c.Request.Context(), token, req.SessionID)
	if err != nil {
		HandleGatewayError(c, "is_player_belongs", err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}

// broadcastPlayers 重新查询成员快照并广播到会话房间。
// 快照查询也是一次网关调用，失败同样视为请求级失败（与其他数据库错误同类）。
func (h *SessionHandler) broadcastPlayers(c *gin.Context, token string, sessionID int64) error {
	players, err := h.game.SessionPlayers(c.Request.Context(), token, sessionID)
	if err != nil {
		logrus.WithField("session_id", sessionID).
			WithError(err).Error("Handler: failed to fetch players for broadcast")
		return err
	}
	h.hub.Broadcast(hub.SessionRoom(sessionID), "updatePlayers", dto.PlayersPayload{Players: players})
	return nil
}
