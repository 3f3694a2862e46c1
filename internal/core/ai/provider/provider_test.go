package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"pet-food-safety/internal/pkg/common"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   *common.CustomError
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, common.ErrRateLimited},
		{"quota via 429", http.StatusTooManyRequests, `{"error":{"code":"insufficient_quota"}}`, common.ErrQuotaExceeded},
		{"payment required", http.StatusPaymentRequired, `{"error":{"message":"Insufficient credits"}}`, common.ErrQuotaExceeded},
		{"server error", http.StatusBadGateway, "bad gateway", common.ErrServiceUnavailable},
		{"unauthorized", http.StatusUnauthorized, "invalid key", common.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClassifyStatus(tt.status, tt.body)
			if !errors.Is(err, tt.want) {
				t.Errorf("ClassifyStatus(%d) = %v, want %s", tt.status, err, tt.want.Code)
			}
		})
	}
}

type countingProvider struct {
	calls int
}

func (p *countingProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	p.calls++
	return &Response{Content: "{}"}, nil
}

func (p *countingProvider) GetModel() string          { return "test-model" }
func (p *countingProvider) GetTimeout() time.Duration { return time.Second }
func (p *countingProvider) Close() error              { return nil }

func TestThrottled_Disabled(t *testing.T) {
	p := &countingProvider{}
	if got := NewThrottled(p, 0, 0); got != Provider(p) {
		t.Error("perMinute <= 0 must return the provider unchanged")
	}
}

func TestThrottled_WaitHonoursContext(t *testing.T) {
	p := &countingProvider{}
	th := NewThrottled(p, 1, 1)

	if _, err := th.Generate(context.Background(), &Request{}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := th.Generate(ctx, &Request{})
	if !errors.Is(err, common.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if p.calls != 1 {
		t.Errorf("upstream calls = %d, want 1", p.calls)
	}
	if th.GetModel() != "test-model" {
		t.Error("embedded provider methods must be promoted")
	}
}
