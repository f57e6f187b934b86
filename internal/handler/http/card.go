package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/s0ra0000/sushi-go-backend/internal/service"
)

// CardHandler 封装卡牌相关的 HTTP 端点。
// 这些端点不经过强制鉴权：令牌直接取自请求体，原样传给存储过程，
// 由数据库侧决定令牌是否有效。
type CardHandler struct {
	game *service.Game
}

// NewCardHandler 创建 CardHandler 实例。
func NewCardHandler(game *service.Game) *CardHandler {
	return &CardHandler{game: game}
}

// PlaceCardRequest 定义出牌请求体。
type PlaceCardRequest struct {
	Token         string `json:"token"`
	SessionID     int64  `json:"sessionId" binding:"required"`
	SessionCardID int64  `json:"sessionCardId" binding:"required"`
}

// PlaceCard 处理 POST /api/place-card。
func (h *CardHandler) PlaceCard(c *gin.Context) {
	var req PlaceCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "place_card", err)
		return
	}

	result, err := h.game.PlaceCard(c.Request.Context(), req.Token, req.SessionID, req.SessionCardID)
	if err != nil {
		HandleGatewayError(c, "place_card", err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}

// CardQueryRequest 定义卡牌查询类请求体。
type CardQueryRequest struct {
	Token     string `json:"token"`
	SessionID int64  `json:"sessionId" binding:"required"`
}

// PlayerCards 处理 POST /api/get-player-cards。
func (h *CardHandler) PlayerCards(c *gin.Context) {
	var req CardQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "get_player_cards", err)
		return
	}

	result, err := h.game.PlayerCards(c.Request.Context(), req.Token, req.SessionID)
	if err != nil {
		HandleGatewayError(c, "get_player_cards", err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}

// PlayerTableCards 处理 POST /api/get-player-table-cards。
func (h *CardHandler) PlayerTableCards(c *gin.Context) {
	var req CardQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "get_player_table_cards", err)
		return
	}

	result, err := h.game.PlayerTableCards(c.Request.Context(), req.Token, req.SessionID)
	if err != nil {
		HandleGatewayError(c, "get_player_table_cards", err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}

// TableCards 处理 POST /api/get-table-cards。
func (h *CardHandler) TableCards(c *gin.Context) {
	var req CardQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "get_table_cards", err)
		return
	}

	result, err := h.game.TableCards(c.Request.Context(), req.Token, req.SessionID)
	if err != nil {
		HandleGatewayError(c, "get_table_cards", err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}
