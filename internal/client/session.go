package client

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"pet-food-safety/internal/core/cache"
	"pet-food-safety/internal/core/normalize"
	"pet-food-safety/internal/core/ratelimit"
	"pet-food-safety/internal/core/safety"
	"pet-food-safety/internal/pkg/common"
)

// ErrSuperseded 查詢已被較新的查詢取代，結果已丟棄
var ErrSuperseded = errors.New("search superseded by a newer query")

// localSubject 本地限流的計數對象
const localSubject = "local"

// FoodChecker 遠端查詢
type FoodChecker interface {
	CheckFood(ctx context.Context, q safety.Query) (safety.Verdict, error)
}

// Result 查詢結果
type Result struct {
	Verdict safety.Verdict
	Cached  bool
}

// Session 一個使用者的查詢 session
//
// 每次 Search 取得新的世代編號並取消前一個尚未完成的查詢；
// 只有最新一次查詢會寫入快取與偏好設定。
type Session struct {
	api     FoodChecker
	cache   *cache.Cache
	limiter *ratelimit.Limiter

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewSession 創建查詢 session；cache 與 limiter 可為 nil
func NewSession(api FoodChecker, c *cache.Cache, limiter *ratelimit.Limiter) *Session {
	return &Session{
		api:     api,
		cache:   c,
		limiter: limiter,
	}
}

// Search 查詢食物安全
func (s *Session) Search(ctx context.Context, q safety.Query) (Result, error) {
	if err := safety.ValidateQuery(q); err != nil {
		return Result{}, err
	}
	q.Food = normalize.Sanitize(q.Food)

	gen, ctx, cancel := s.begin(ctx)
	defer cancel()

	key := cache.LocalizedKey(q.Food, q.PetType, q.Language)
	if s.cache != nil {
		if v, ok := s.cache.GetKey(key); ok {
			v.Food = q.Food
			if !s.commit(gen, key, q, v, false) {
				return Result{}, ErrSuperseded
			}
			return Result{Verdict: v, Cached: true}, nil
		}
	}

	// 本地限流僅為提示，伺服器端才是最終判斷
	if s.limiter != nil && s.limiter.ShouldBlock(ratelimit.ActionSearch, localSubject) {
		common.LogDebug("本地查詢次數已達上限",
			zap.Duration("reset_in", s.limiter.ResetIn(ratelimit.ActionSearch, localSubject)),
		)
		return Result{}, common.ErrRateLimited
	}

	v, err := s.api.CheckFood(ctx, q)
	if !s.isCurrent(gen) {
		return Result{}, ErrSuperseded
	}
	if err != nil {
		return Result{}, err
	}

	if !s.commit(gen, key, q, v, true) {
		return Result{}, ErrSuperseded
	}
	return Result{Verdict: v}, nil
}

// Preferences 目前的偏好設定
func (s *Session) Preferences() cache.Preferences {
	if s.cache == nil {
		return cache.Preferences{}
	}
	return s.cache.Preferences()
}

// Close 取消尚未完成的查詢
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// begin 取得新的世代編號並取消前一個查詢
func (s *Session) begin(parent context.Context) (uint64, context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.cancel = cancel
	return s.gen, ctx, cancel
}

func (s *Session) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// commit 仍為最新查詢時寫入快取與偏好設定
func (s *Session) commit(gen uint64, key string, q safety.Query, v safety.Verdict, store bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return false
	}
	if s.cache == nil {
		return true
	}
	if store {
		s.cache.SetKey(key, v)
	}
	s.cache.SetPreferences(cache.Preferences{PetType: q.PetType, LastFood: q.Food})
	return true
}
