package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"pet-food-safety/internal/api/handlers/clientlog"
	"pet-food-safety/internal/api/handlers/health"
	safetyHandler "pet-food-safety/internal/api/handlers/safety"
	"pet-food-safety/internal/api/middleware"
	"pet-food-safety/internal/core/ratelimit"
	"pet-food-safety/internal/infrastructure/config"
	"pet-food-safety/internal/infrastructure/metrics"
	"pet-food-safety/internal/pkg/common"
)

const (
	// 請求超時，須大於 AI 逾時
	timeoutSlack = 5 * time.Second
	// 預設請求體大小限制 (16KB)
	defaultMaxBodySize = 16 << 10
)

// Dependencies 路由所需的服務
type Dependencies struct {
	Config     *config.Config
	Checker    safetyHandler.Checker
	Limiter    *ratelimit.Limiter  // nil 時不限流
	Metrics    *metrics.Collector  // nil 時不記錄指標
	Gatherer   prometheus.Gatherer // nil 時不註冊 /metrics
	Checks     map[string]health.Check
	CacheStats func() health.CacheStats
}

// SetupRouter 設置路由
func SetupRouter(deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Checker == nil {
		return nil, errors.New("checker is required")
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	var (
		statusRec middleware.StatusRecorder
		blockRec  middleware.BlockRecorder
	)
	if deps.Metrics != nil {
		statusRec = deps.Metrics
		blockRec = deps.Metrics
	}

	router := gin.New()

	// 限流以 ClientIP 為鍵，只信任設定中的代理
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	// 註冊基礎中間件
	router.Use(requestid.New())
	router.Use(middleware.Logger(statusRec))
	router.Use(middleware.Recovery())

	// CORS 設置
	router.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	// 請求體大小限制
	maxBodySize := cfg.Server.MaxBodyBytes
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	router.Use(middleware.BodySizeLimit(maxBodySize))

	// 請求超時
	router.Use(requestTimeout(cfg.AI.Timeout + timeoutSlack))

	// 健康檢查路由
	healthHandler := health.NewHandler(cfg.App.Version, deps.Checks, deps.CacheStats)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	limiter := deps.Limiter
	if !cfg.RateLimit.Enabled {
		limiter = nil
	}

	// API 路由組
	api := router.Group("/api/v1")
	{
		checkHandler := safetyHandler.NewHandler(deps.Checker)
		api.POST("/check-food",
			middleware.RateLimit(limiter, ratelimit.ActionSearch, blockRec),
			checkHandler.HandleCheckFood,
		)
		api.POST("/log",
			middleware.RateLimit(limiter, ratelimit.ActionLog, blockRec),
			clientlog.HandleClientLog,
		)
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("rate_limit_enabled", limiter != nil),
		zap.Bool("metrics_enabled", deps.Gatherer != nil),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router, nil
}

// corsConfig CORS 設定；允許所有來源時不送出 credentials
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID", "Retry-After", "X-Cache"},
		MaxAge:        12 * time.Hour,
	}

	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// requestTimeout 設置請求超時
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", d),
			)
		}
	}
}
