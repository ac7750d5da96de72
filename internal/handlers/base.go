package handlers

import (
	"github.com/gin-gonic/gin"
)

// apiError 统一的错误响应体
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondError 输出 {"error":{"code","message"}}，code 供调用方程序化判断
func RespondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": apiError{Code: code, Message: message},
	})
}
