package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pet-food-safety/internal/pkg/common"
)

// readinessTimeout 就緒檢查的單項逾時
const readinessTimeout = 2 * time.Second

// Check 相依服務的就緒檢查
type Check func(ctx context.Context) error

// CacheStats 快取統計
type CacheStats struct {
	Size       int   `json:"size"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	MaxSize    int   `json:"maxSize"`
	Persistent bool  `json:"persistent"`
}

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Cache     *CacheStats            `json:"cache,omitempty"`
}

// Handler 健康檢查處理器
type Handler struct {
	version    string
	checks     map[string]Check
	cacheStats func() CacheStats
}

// NewHandler 創建健康檢查處理器；checks 用於就緒檢查，cacheStats 可為 nil
func NewHandler(version string, checks map[string]Check, cacheStats func() CacheStats) *Handler {
	return &Handler{
		version:    version,
		checks:     checks,
		cacheStats: cacheStats,
	}
}

// HealthCheck 健康檢查處理器
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.cacheStats != nil {
		stats := h.cacheStats()
		response.Cache = &stats
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查處理器，任一相依服務失敗時回傳 503
func (h *Handler) ReadinessCheck(c *gin.Context) {
	results := make(map[string]string, len(h.checks))
	ready := true

	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		err := check(ctx)
		cancel()

		if err != nil {
			ready = false
			results[name] = "unavailable"
			common.LogWarn("就緒檢查失敗",
				zap.String("dependency", name),
				zap.Error(err),
			)
			continue
		}
		results[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"checks": results,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": results,
	})
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
