package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ContextTokenKey 是认证令牌在 gin Context 中的存储键。
const ContextTokenKey = "token"

// maxBodyBytes 是令牌窥探时允许一次性读入内存的请求体上限。
const maxBodyBytes = 1 << 20

// Token 返回一个提取认证令牌的中间件。
// 令牌来源：请求体的 token 字段，或 Authorization: Bearer 头；
// 请求体优先，仅当请求体中没有令牌时才读取请求头。
// 令牌对本服务是不透明字符串，校验全部在数据库侧的存储过程中完成。
func Token() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractFromBody(c)
		if token == "" {
			token = extractFromHeader(c)
		}
		c.Set(ContextTokenKey, token)
		c.Next()
	}
}

// Auth 返回一个强制要求令牌存在的中间件。
// 必须排在 Token() 之后；令牌缺失时返回 401，且不发起任何数据库调用。
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if TokenFromContext(c) == "" {
			logrus.WithFields(logrus.Fields{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
			}).Warn("Auth middleware: missing token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing token", "code": "auth_missing"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// TokenFromContext 读取 Token() 中间件提取到的令牌，可能为空字符串。
func TokenFromContext(c *gin.Context) string {
	return c.GetString(ContextTokenKey)
}

// extractFromHeader 从 Authorization 头中提取 Bearer 令牌。
func extractFromHeader(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// extractFromBody 窥探 JSON 请求体中的 token 字段。
// 请求体读取后原样放回，保证后续 handler 仍能正常绑定。
// 读取有大小上限：超限的请求体在这里即被拒收，handler 绑定会以 400 报告。
func extractFromBody(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		logrus.WithError(err).Warn("Token middleware: failed to read request body")
		c.Request.Body = io.NopCloser(bytes.NewReader(nil))
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(data))

	if len(data) == 0 {
		return ""
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		// 非 JSON 请求体不是这里的问题，留给 handler 的绑定去报告
		return ""
	}
	return body.Token
}
