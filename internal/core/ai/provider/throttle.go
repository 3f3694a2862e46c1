package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"pet-food-safety/internal/pkg/common"
)

// Throttled 以令牌桶限制對上游的請求速率
type Throttled struct {
	Provider
	limiter *rate.Limiter
}

// NewThrottled 每分鐘最多 perMinute 次請求；perMinute <= 0 時直接回傳原提供者
func NewThrottled(p Provider, perMinute, burst int) Provider {
	if perMinute <= 0 {
		return p
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttled{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
	}
}

// Generate 等待令牌後呼叫上游；等待期間 context 結束時視為速率限制
func (t *Throttled) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, common.ErrRateLimited.Wrap(err)
	}
	return t.Provider.Generate(ctx, req)
}
