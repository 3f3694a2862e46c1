package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pet-food-safety/internal/pkg/common"
)

// BodySizeLimit 請求體超過 maxSize 時回應 413，maxSize <= 0 表示不限制
//
// 宣告了 Content-Length 的請求在進入處理器前就被拒絕；分塊傳輸的請求
// 由 MaxBytesReader 在讀取時截斷，處理器綁定失敗後交給 AbortIfBodyTooLarge。
func BodySizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxSize <= 0 {
			c.Next()
			return
		}

		if declared := c.Request.ContentLength; declared > maxSize {
			abortBodyTooLarge(c, declared, maxSize)
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// AbortIfBodyTooLarge 綁定錯誤來自大小限制時以 413 結束請求並回傳 true
func AbortIfBodyTooLarge(c *gin.Context, err error) bool {
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) {
		return false
	}
	abortBodyTooLarge(c, -1, maxErr.Limit)
	return true
}

// abortBodyTooLarge size 未知時為 -1
func abortBodyTooLarge(c *gin.Context, size, maxSize int64) {
	common.LogWarn("請求體過大",
		zap.Int64("size", size),
		zap.Int64("max_size", maxSize),
		zap.String("ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)
	c.AbortWithStatusJSON(common.ErrBodyTooLarge.Status, common.ErrorResponse{
		Error: common.ErrBodyTooLarge.Message,
	})
}
