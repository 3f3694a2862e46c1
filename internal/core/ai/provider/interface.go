package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pet-food-safety/internal/pkg/common"
)

// Message 表示與 AI 模型的對話消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// 對話角色
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Request 表示發送到 AI 提供者的請求
type Request struct {
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	JSONMode    bool      `json:"-"`
}

// Usage 使用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response 表示從 AI 提供者收到的響應
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Provider 定義 AI 提供者介面
type Provider interface {
	// Generate 生成 AI 響應；錯誤為 common.CustomError
	Generate(ctx context.Context, req *Request) (*Response, error)

	// GetModel 獲取當前使用的模型名稱
	GetModel() string

	// GetTimeout 獲取請求超時時間
	GetTimeout() time.Duration

	// Close 關閉提供者連接
	Close() error
}

// Config 定義 AI 提供者配置
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	MaxTokens   int
	Temperature float64
	Referer     string
	Title       string
}

// ClassifyStatus 將上游 HTTP 狀態對應到錯誤類型
//
// 429 為速率限制，但帶有 insufficient_quota 時視為額度不足；402 為額度不足；
// 其餘一律為服務不可用。
func ClassifyStatus(status int, body string) error {
	cause := fmt.Errorf("AI provider returned status %d: %s", status, common.Truncate(body, 300))

	lower := strings.ToLower(body)
	quota := strings.Contains(lower, "insufficient_quota") ||
		strings.Contains(lower, "insufficient quota") ||
		strings.Contains(lower, "insufficient credits")

	switch {
	case status == http.StatusPaymentRequired:
		return common.ErrQuotaExceeded.Wrap(cause)
	case status == http.StatusTooManyRequests && quota:
		return common.ErrQuotaExceeded.Wrap(cause)
	case status == http.StatusTooManyRequests:
		return common.ErrRateLimited.Wrap(cause)
	default:
		return common.ErrServiceUnavailable.Wrap(cause)
	}
}
