// Package clientlog 接收前端回報的診斷日誌
package clientlog

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pet-food-safety/internal/api/middleware"
	"pet-food-safety/internal/core/normalize"
	"pet-food-safety/internal/pkg/common"
)

const (
	maxMessageLength = 500
	maxContextFields = 20
)

// LogRequest 用戶端日誌請求
type LogRequest struct {
	Level   string                 `json:"level" binding:"required,oneof=debug info warn error"`
	Message string                 `json:"message" binding:"required"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// HandleClientLog 記錄用戶端回報的日誌，成功回傳 204
func HandleClientLog(c *gin.Context) {
	var req LogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if middleware.AbortIfBodyTooLarge(c, err) {
			return
		}
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid log entry"})
		return
	}

	fields := []zap.Field{
		zap.String("source", "client"),
		zap.String("ip", c.ClientIP()),
	}
	n := 0
	for k, v := range req.Context {
		if n == maxContextFields {
			break
		}
		fields = append(fields, zap.Any("ctx_"+normalize.Sanitize(k), v))
		n++
	}

	msg := common.Truncate(strings.TrimSpace(req.Message), maxMessageLength)
	switch req.Level {
	case "error":
		common.LogError(msg, fields...)
	case "warn":
		common.LogWarn(msg, fields...)
	case "debug":
		common.LogDebug(msg, fields...)
	default:
		common.LogInfo(msg, fields...)
	}

	c.Status(http.StatusNoContent)
}
