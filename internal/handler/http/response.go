package http

import "github.com/gin-gonic/gin"

// ErrorResponse 返回统一格式的错误响应体：通用消息加结构化错误码。
// 详细原因只记录在服务端日志中，不暴露给客户端。
func ErrorResponse(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": message, "code": code})
}

// SuccessResponse 按给定状态码返回存储过程的 JSON 结果，形状原样透传。
func SuccessResponse(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}
