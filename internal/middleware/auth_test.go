package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0ra0000/sushi-go-backend/internal/middleware"
)

func setupEcho(requireAuth bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(middleware.Token())

	handlers := []gin.HandlerFunc{}
	if requireAuth {
		handlers = append(handlers, middleware.Auth())
	}
	handlers = append(handlers, func(c *gin.Context) {
		// 中间件窥探过请求体后，handler 仍应能正常绑定
		var body struct {
			SessionID int64 `json:"sessionId"`
		}
		_ = c.ShouldBindJSON(&body)
		c.JSON(http.StatusOK, gin.H{
			"token":     middleware.TokenFromContext(c),
			"sessionId": body.SessionID,
		})
	})
	engine.POST("/echo", handlers...)
	engine.DELETE("/echo/:id", handlers...)
	return engine
}

func TestToken_BodyTakesPrecedenceOverHeader(t *testing.T) {
	engine := setupEcho(false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString(`{"token":"from-body","sessionId":3}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer from-header")
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"from-body","sessionId":3}`, w.Body.String())
}

func TestToken_HeaderFallbackWhenBodyTokenAbsent(t *testing.T) {
	engine := setupEcho(false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString(`{"sessionId":3}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer from-header")
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"from-header","sessionId":3}`, w.Body.String())
}

func TestToken_MalformedAuthorizationHeaderIgnored(t *testing.T) {
	engine := setupEcho(false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic dXNlcjpwdw==")
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"","sessionId":0}`, w.Body.String())
}

func TestToken_OversizedBodyIsNotBuffered(t *testing.T) {
	engine := setupEcho(false)

	// 超过窥探上限（1MB）的请求体：中间件拒收，不整体读入内存，
	// 令牌回退到请求头，后续绑定拿到的是空请求体
	body := `{"token":"from-body","pad":"` + strings.Repeat("a", 2<<20) + `","sessionId":3}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer from-header")
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"from-header","sessionId":0}`, w.Body.String())
}

func TestAuth_MissingTokenReturns401(t *testing.T) {
	engine := setupEcho(true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/echo/5", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Missing token","code":"auth_missing"}`, w.Body.String())
}

func TestAuth_BearerHeaderOnRequestWithoutBody(t *testing.T) {
	engine := setupEcho(true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/echo/5", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"tok-1","sessionId":0}`, w.Body.String())
}
