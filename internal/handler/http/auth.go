package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/s0ra0000/sushi-go-backend/internal/service"
)

// AuthHandler 封装用户认证相关的 HTTP 端点。
// 注册、登录和改密全部委托给数据库侧的存储过程，这里不做密码处理。
type AuthHandler struct {
	game *service.Game
}

// NewAuthHandler 创建 AuthHandler 实例。
func NewAuthHandler(game *service.Game) *AuthHandler {
	return &AuthHandler{game: game}
}

// RegisterRequest 定义注册请求体。
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register 处理 POST /api/register。
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "register", err)
		return
	}

	result, err := h.game.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		HandleGatewayError(c, "register", err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}

// LoginRequest 定义登录请求体。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理 POST /api/login。
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "login", err)
		return
	}

	result, err := h.game.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		HandleGatewayError(c, "login", err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}

// ResetPasswordRequest 定义改密请求体。
type ResetPasswordRequest struct {
	Username    string `json:"username" binding:"required"`
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// ResetPassword 处理 POST /api/reset-password。
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "reset_password", err)
		return
	}

	result, err := h.game.ResetPassword(c.Request.Context(), req.Username, req.OldPassword, req.NewPassword)
	if err != nil {
		HandleGatewayError(c, "reset_password", err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}
