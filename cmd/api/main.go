package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"pet-food-safety/internal/api"
	"pet-food-safety/internal/api/handlers/health"
	openaiProvider "pet-food-safety/internal/core/ai/openai"
	"pet-food-safety/internal/core/ai/openrouter"
	"pet-food-safety/internal/core/ai/provider"
	"pet-food-safety/internal/core/ai/service"
	"pet-food-safety/internal/core/cache"
	"pet-food-safety/internal/core/ratelimit"
	"pet-food-safety/internal/core/safety"
	"pet-food-safety/internal/infrastructure/config"
	"pet-food-safety/internal/infrastructure/database"
	"pet-food-safety/internal/infrastructure/metrics"
	"pet-food-safety/internal/pkg/common"
)

func main() {
	// 載入設定（.env 可省略）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	if err := run(cfg); err != nil {
		common.LogError("Server exited with error", zap.Error(err))
		common.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	common.LogInfo("載入設定",
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("openrouter_api_key", common.MaskSecret(cfg.OpenRouter.APIKey)),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("cache_store", cfg.Cache.Store),
	)

	// 指標
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	checks := make(map[string]health.Check)

	// 資料庫
	db, err := setupDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	repo := database.NewFoodRepository(db, cfg.Database.Driver)
	checks["database"] = repo.Ping

	// AI 後援
	var fallback safety.Fallback
	p, err := setupProvider(cfg)
	if err != nil {
		return err
	}
	if p != nil {
		defer p.Close()
		common.LogInfo("AI 後援已啟用",
			zap.String("model", p.GetModel()),
			zap.Duration("provider_timeout", p.GetTimeout()),
			zap.Duration("resolve_timeout", cfg.AI.Timeout),
		)
		fallback = service.NewService(provider.NewThrottled(p, cfg.AI.RequestsPerMinute, cfg.AI.Burst))
	}

	resolver := safety.NewResolver(repo, fallback,
		safety.WithAITimeout(cfg.AI.Timeout),
		safety.WithRecorder(collector),
	)

	// 判定結果快取
	var (
		verdictCache safety.VerdictCache
		cacheStats   func() health.CacheStats
	)
	if cfg.Cache.Enabled {
		c, closeStore, err := setupCache(ctx, cfg, checks)
		if err != nil {
			return err
		}
		defer closeStore()
		defer c.Close()
		verdictCache = c
		cacheStats = func() health.CacheStats {
			return health.CacheStats(c.Stats())
		}
	}
	checkService := safety.NewCheckService(resolver, verdictCache, cache.LocalizedKey, collector)

	// 限流
	limiter := ratelimit.NewLimiter(rateLimitRules(cfg.RateLimit),
		ratelimit.WithCleanupInterval(cfg.RateLimit.CleanupInterval),
	)
	defer limiter.Close()

	// 設置路由
	router, err := api.SetupRouter(api.Dependencies{
		Config:     cfg,
		Checker:    checkService,
		Limiter:    limiter,
		Metrics:    collector,
		Gatherer:   reg,
		Checks:     checks,
		CacheStats: cacheStats,
	})
	if err != nil {
		return fmt.Errorf("failed to setup router: %w", err)
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	common.LogInfo("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	common.LogInfo("Server exited")
	return nil
}

// setupDatabase 開啟資料庫、執行 migration 並匯入種子資料
func setupDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := database.Open(ctx, cfg.Driver, cfg.DSN, cfg.MaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := database.RunMigrations(ctx, db, cfg.Driver); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	repo := database.NewFoodRepository(db, cfg.Driver)
	n, err := repo.Count(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to count foods: %w", err)
	}

	// 指定種子檔時一律匯入；資料表為空時匯入內建清單
	var records []safety.FoodRecord
	switch {
	case cfg.SeedFile != "":
		records, err = database.LoadSeedFile(cfg.SeedFile)
	case n == 0:
		records, err = database.DefaultSeed()
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load seed: %w", err)
	}
	if len(records) > 0 {
		if _, err := database.Seed(ctx, repo, records); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to seed foods: %w", err)
		}
	}

	common.LogInfo("資料庫已就緒",
		zap.String("driver", cfg.Driver),
		zap.Int("existing_rows", n),
	)
	return db, nil
}

// setupProvider 依設定建立 AI 提供者；未設定金鑰時回傳 nil，只使用資料庫
func setupProvider(cfg *config.Config) (provider.Provider, error) {
	switch cfg.AI.Provider {
	case config.ProviderNone:
		common.LogWarn("AI 後援已停用，資料庫未收錄的食物將無法查詢")
		return nil, nil
	case config.ProviderOpenRouter:
		if cfg.OpenRouter.APIKey == "" {
			common.LogWarn("OPENROUTER_API_KEY 未設定，AI 後援已停用")
			return nil, nil
		}
		return openrouter.NewClient(provider.Config{
			APIKey:     cfg.OpenRouter.APIKey,
			Model:      cfg.OpenRouter.Model,
			BaseURL:    cfg.OpenRouter.BaseURL,
			Timeout:    cfg.OpenRouter.Timeout,
			MaxRetries: cfg.OpenRouter.MaxRetries,
			MaxTokens:  cfg.AI.MaxTokens,
			Referer:    cfg.OpenRouter.Referer,
			Title:      cfg.OpenRouter.Title,
		}), nil
	case config.ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			common.LogWarn("OPENAI_API_KEY 未設定，AI 後援已停用")
			return nil, nil
		}
		return openaiProvider.NewClient(provider.Config{
			APIKey:     cfg.OpenAI.APIKey,
			Model:      cfg.OpenAI.Model,
			BaseURL:    cfg.OpenAI.BaseURL,
			Timeout:    cfg.OpenAI.Timeout,
			MaxRetries: cfg.OpenAI.MaxRetries,
			MaxTokens:  cfg.AI.MaxTokens,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.AI.Provider)
	}
}

// setupCache 建立判定結果快取；使用 Redis 時加入就緒檢查
func setupCache(ctx context.Context, cfg *config.Config, checks map[string]health.Check) (*cache.Cache, func(), error) {
	opts := []cache.Option{
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithMaxSize(cfg.Cache.MaxEntries),
		cache.WithCleanupInterval(cfg.Cache.CleanupInterval),
	}
	closeStore := func() {}

	if cfg.Cache.Store == config.CacheStoreRedis {
		store, err := cache.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Cache.RedisKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		checks["redis"] = store.Ping
		opts = append(opts, cache.WithStore(store))
		closeStore = func() {
			if err := store.Close(); err != nil {
				common.LogWarn("關閉 Redis 連線失敗", zap.Error(err))
			}
		}
	}

	return cache.New(opts...), closeStore, nil
}

// rateLimitRules 由設定組出限流規則
func rateLimitRules(cfg config.RateLimitConfig) map[ratelimit.Action]ratelimit.Rule {
	return map[ratelimit.Action]ratelimit.Rule{
		ratelimit.ActionSearch:    {MaxRequests: cfg.Search.Requests, Window: cfg.Search.Window},
		ratelimit.ActionAffiliate: {MaxRequests: cfg.Affiliate.Requests, Window: cfg.Affiliate.Window},
		ratelimit.ActionLog:       {MaxRequests: cfg.Log.Requests, Window: cfg.Log.Window},
	}
}
