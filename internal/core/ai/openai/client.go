package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"pet-food-safety/internal/core/ai/provider"
	"pet-food-safety/internal/pkg/common"
)

// DefaultModel 預設模型
const DefaultModel = "gpt-4o-mini"

// Compile-time interface check
var _ provider.Provider = (*Client)(nil)

// ChatCompletionsService 聊天補全 API，抽象出來以便測試
type ChatCompletionsService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client 以 OpenAI API 實作 provider.Provider
type Client struct {
	completions ChatCompletionsService
	config      provider.Config
}

// NewClient 創建 OpenAI 客戶端
func NewClient(cfg provider.Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)
	return &Client{
		completions: client.Chat.Completions,
		config:      cfg,
	}
}

// Generate 實現 provider.Provider
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case provider.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(messages),
		Model:       openai.F(openai.ChatModel(c.config.Model)),
		Temperature: openai.F(req.Temperature),
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.F(int64(maxTokens))
	}

	start := time.Now()
	resp, err := c.completions.New(ctx, params)
	if err != nil {
		classified := classify(err)
		common.LogAICall(c.config.Model, time.Since(start), classified)
		return nil, classified
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		err := errors.New("chat completion returned no content")
		common.LogAICall(c.config.Model, time.Since(start), err)
		return nil, common.ErrServiceUnavailable.Wrap(err)
	}

	common.LogAICall(c.config.Model, time.Since(start), nil)

	model := resp.Model
	if model == "" {
		model = c.config.Model
	}
	return &provider.Response{
		Content: resp.Choices[0].Message.Content,
		Model:   model,
		Usage: provider.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// classify 將 SDK 錯誤對應到錯誤類型
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		body := apiErr.Code + " " + apiErr.Type + " " + apiErr.Message
		return provider.ClassifyStatus(apiErr.StatusCode, body)
	}
	return common.ErrServiceUnavailable.Wrap(fmt.Errorf("chat completion failed: %w", err))
}

// GetModel 實現 provider.Provider
func (c *Client) GetModel() string {
	return c.config.Model
}

// GetTimeout 實現 provider.Provider
func (c *Client) GetTimeout() time.Duration {
	return c.config.Timeout
}

// Close 實現 provider.Provider
func (c *Client) Close() error {
	return nil
}
