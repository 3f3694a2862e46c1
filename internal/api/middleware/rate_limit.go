package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pet-food-safety/internal/core/ratelimit"
	"pet-food-safety/internal/pkg/common"
)

// BlockRecorder 記錄被限流的請求
type BlockRecorder interface {
	RecordRateLimited(action string)
}

// RateLimit 固定視窗限流中間件，以 action + 用戶端 IP 計數
func RateLimit(limiter *ratelimit.Limiter, action ratelimit.Action, rec BlockRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if limiter.ShouldBlock(action, ip) {
			retryAfter := retryAfterSeconds(limiter, action, ip)

			common.LogInfo("Rate limit exceeded",
				zap.String("ip", ip),
				zap.String("action", string(action)),
				zap.String("path", c.Request.URL.Path),
				zap.Int("retry_after", retryAfter),
			)
			if rec != nil {
				rec.RecordRateLimited(string(action))
			}

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, common.ErrorResponse{
				Error: common.ErrRateLimited.Message,
			})
			return
		}

		if rule, ok := limiter.Rule(action); ok {
			c.Header("X-RateLimit-Limit", strconv.Itoa(rule.MaxRequests))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(action, ip)))
		}
		c.Next()
	}
}

// retryAfterSeconds 距離視窗重置的秒數，至少 1 秒
func retryAfterSeconds(limiter *ratelimit.Limiter, action ratelimit.Action, subject string) int {
	secs := int(math.Ceil(limiter.ResetIn(action, subject).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
