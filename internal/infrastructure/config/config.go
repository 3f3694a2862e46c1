package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	AI         AIConfig         `mapstructure:"ai"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Cache      CacheConfig      `mapstructure:"cache"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Client     ClientConfig     `mapstructure:"client"`
	LogLevel   string           `mapstructure:"log_level"`
	LogFile    string           `mapstructure:"log_file"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	// TrustedProxies 允許提供 X-Forwarded-For 的代理，空值表示只使用連線位址
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// DatabaseConfig 資料庫設定
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
	SeedFile     string `mapstructure:"seed_file"`
}

// RedisConfig Redis 設定
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AIConfig AI 後援設定
type AIConfig struct {
	Provider          string        `mapstructure:"provider"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Burst             int           `mapstructure:"burst"`
	MaxTokens         int           `mapstructure:"max_tokens"`
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	Referer    string        `mapstructure:"referer"`
	Title      string        `mapstructure:"title"`
}

// OpenAIConfig OpenAI 配置
type OpenAIConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Store           string        `mapstructure:"store"`
	RedisKey        string        `mapstructure:"redis_key"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxEntries      int           `mapstructure:"max_entries"`
}

// ActionLimit 單一動作的固定視窗限制
type ActionLimit struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Search          ActionLimit   `mapstructure:"search"`
	Affiliate       ActionLimit   `mapstructure:"affiliate"`
	Log             ActionLimit   `mapstructure:"log"`
}

// ClientConfig 命令列客戶端設定
type ClientConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheFile string        `mapstructure:"cache_file"`
}

// 支援的選項
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderNone       = "none"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	CacheStoreMemory = "memory"
	CacheStoreRedis  = "redis"
)

// LoadConfig 從目前目錄的 .env 與環境變數載入設定
func LoadConfig() (*Config, error) {
	return Load(".env")
}

// Load 載入設定；envFile 不存在時只使用環境變數與預設值
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()

	// 設定預設值
	setDefaults(v)

	// 設定環境變數前綴
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定環境變量
	bindings := map[string]string{
		"server.port":            "PORT",
		"database.driver":        "DATABASE_DRIVER",
		"database.dsn":           "DATABASE_DSN",
		"redis.addr":             "REDIS_ADDR",
		"redis.password":         "REDIS_PASSWORD",
		"ai.provider":            "AI_PROVIDER",
		"openrouter.api_key":     "OPENROUTER_API_KEY",
		"openrouter.model":       "OPENROUTER_MODEL",
		"openai.api_key":         "OPENAI_API_KEY",
		"openai.model":           "OPENAI_MODEL",
		"cache.store":            "CACHE_STORE",
		"rate_limit.enabled":     "RATE_LIMIT_ENABLED",
		"client.base_url":        "PETSAFE_API_URL",
		"log_level":              "LOG_LEVEL",
		"log_file":               "LOG_FILE",
		"database.seed_file":     "SEED_FILE",
		"server.max_body_bytes":  "MAX_BODY_BYTES",
		"server.trusted_proxies": "TRUSTED_PROXIES",
		"cache.max_entries":      "CACHE_MAX_ENTRIES",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, "APP_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	// 解析設定
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "pet-food-safety")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 16*1024)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.trusted_proxies", []string{})

	// 資料庫設定
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "petsafe.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.auto_migrate", true)

	// Redis 設定
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// AI 設定
	v.SetDefault("ai.provider", ProviderOpenRouter)
	v.SetDefault("ai.timeout", "15s")
	v.SetDefault("ai.requests_per_minute", 60)
	v.SetDefault("ai.burst", 5)
	v.SetDefault("ai.max_tokens", 800)

	// OpenRouter 設定
	v.SetDefault("openrouter.model", "openai/gpt-4o-mini")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.timeout", "30s")
	v.SetDefault("openrouter.max_retries", 0)
	v.SetDefault("openrouter.title", "Pet Food Safety")

	// OpenAI 設定
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", "30s")
	v.SetDefault("openai.max_retries", 0)

	// 快取設定
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.store", CacheStoreMemory)
	v.SetDefault("cache.redis_key", "petsafe:resolution-cache")
	v.SetDefault("cache.ttl", "168h")
	v.SetDefault("cache.cleanup_interval", "10m")
	v.SetDefault("cache.max_entries", 10000)

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.cleanup_interval", "5m")
	v.SetDefault("rate_limit.search.requests", 20)
	v.SetDefault("rate_limit.search.window", "60s")
	v.SetDefault("rate_limit.affiliate.requests", 10)
	v.SetDefault("rate_limit.affiliate.window", "60s")
	v.SetDefault("rate_limit.log.requests", 30)
	v.SetDefault("rate_limit.log.window", "60s")

	// 客戶端設定
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.timeout", "20s")

	v.SetDefault("log_level", "info")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", config.Server.Port)
	}

	switch config.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	switch config.AI.Provider {
	case ProviderOpenRouter, ProviderOpenAI, ProviderNone:
	default:
		return fmt.Errorf("unsupported ai provider %q", config.AI.Provider)
	}
	if config.AI.Timeout <= 0 {
		return fmt.Errorf("invalid ai timeout")
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.MaxEntries < 0 {
			return fmt.Errorf("invalid cache max entries %d", config.Cache.MaxEntries)
		}
		switch config.Cache.Store {
		case CacheStoreMemory, CacheStoreRedis:
		default:
			return fmt.Errorf("unsupported cache store %q", config.Cache.Store)
		}
	}

	// 驗證限流設定
	if config.RateLimit.Enabled {
		for name, l := range map[string]ActionLimit{
			"search":    config.RateLimit.Search,
			"affiliate": config.RateLimit.Affiliate,
			"log":       config.RateLimit.Log,
		} {
			if l.Requests <= 0 || l.Window <= 0 {
				return fmt.Errorf("invalid rate limit for %s", name)
			}
		}
	}

	return nil
}
