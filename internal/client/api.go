// Package client 提供命令列使用的 API 客戶端與查詢 session
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"pet-food-safety/internal/core/safety"
	"pet-food-safety/internal/pkg/common"
)

// DefaultTimeout 預設請求逾時
const DefaultTimeout = 20 * time.Second

// APIClient 食物安全 API 客戶端
type APIClient struct {
	client *resty.Client
}

// NewAPIClient 創建 API 客戶端
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &APIClient{client: client}
}

// CheckFood 呼叫 /api/v1/check-food
func (c *APIClient) CheckFood(ctx context.Context, q safety.Query) (safety.Verdict, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"food":     q.Food,
			"petType":  string(q.PetType),
			"language": q.Language,
		}).
		Post("/api/v1/check-food")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return safety.Verdict{}, ctxErr
		}
		return safety.Verdict{}, common.ErrServiceUnavailable.Wrap(fmt.Errorf("check-food request failed: %w", err))
	}

	if resp.StatusCode() != http.StatusOK {
		return safety.Verdict{}, statusError(resp)
	}

	var v safety.Verdict
	if err := json.Unmarshal(resp.Body(), &v); err != nil {
		return safety.Verdict{}, common.ErrParse.Wrap(err)
	}
	if !v.SafetyLevel.Valid() {
		return safety.Verdict{}, common.ErrParse.Wrap(fmt.Errorf("unexpected safety level %q", v.SafetyLevel))
	}
	return v, nil
}

// SendLog 回報診斷日誌，失敗時只記錄在本地
func (c *APIClient) SendLog(ctx context.Context, level, message string, fields map[string]interface{}) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"level":   level,
			"message": message,
			"context": fields,
		}).
		Post("/api/v1/log")
	if err != nil {
		common.LogDebug("Failed to send client log", zap.Error(err))
		return err
	}
	if resp.StatusCode() != http.StatusNoContent {
		return statusError(resp)
	}
	return nil
}

// statusError 將 HTTP 狀態碼轉換為錯誤類別
func statusError(resp *resty.Response) error {
	var body common.ErrorResponse
	_ = json.Unmarshal(resp.Body(), &body)

	cause := errors.New(resp.Status())
	switch resp.StatusCode() {
	case http.StatusBadRequest:
		if body.Error != "" {
			return common.ErrValidation.WithMessage(body.Error)
		}
		return common.ErrValidation
	case http.StatusTooManyRequests:
		return common.ErrRateLimited.Wrap(cause)
	case http.StatusPaymentRequired:
		return common.ErrQuotaExceeded.Wrap(cause)
	default:
		return common.ErrServiceUnavailable.Wrap(cause)
	}
}
