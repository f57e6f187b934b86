package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 结构化错误码。客户端只看到错误码和通用消息。
const (
	CodeAuthMissing = "auth_missing"
	CodeBadRequest  = "bad_request"
	CodeRemoteError = "remote_error"
)

// HandleGatewayError 统一处理存储过程调用失败。
// 所有数据库侧失败都归为一类：记录操作名和原因，对客户端返回通用 500。
// 不做重试——错误对单次请求是终结性的。
func HandleGatewayError(c *gin.Context, operation string, err error) {
	logrus.WithField("operation", operation).WithError(err).Error("Handler: gateway call failed")
	ErrorResponse(c, http.StatusInternalServerError, CodeRemoteError, "Internal server error")
}

// HandleBindError 处理请求体绑定/校验失败。
func HandleBindError(c *gin.Context, operation string, err error) {
	logrus.WithField("operation", operation).WithError(err).Warn("Handler: invalid input format")
	ErrorResponse(c, http.StatusBadRequest, CodeBadRequest, "Invalid input")
}
