package safety

import (
	"context"

	"go.uber.org/zap"

	"pet-food-safety/internal/core/normalize"
	"pet-food-safety/internal/pkg/common"
)

// VerdictCache 判定結果快取
type VerdictCache interface {
	GetKey(key string) (Verdict, bool)
	SetKey(key string, v Verdict)
}

// KeyFunc 由查詢組出快取鍵
type KeyFunc func(food string, pet PetType, lang string) string

// CheckService 快取 + Resolver 的完整查詢流程
type CheckService struct {
	resolver *Resolver
	cache    VerdictCache
	key      KeyFunc
	recorder Recorder
}

// NewCheckService 創建查詢服務，cache 為 nil 時不使用快取
func NewCheckService(resolver *Resolver, cache VerdictCache, key KeyFunc, rec Recorder) *CheckService {
	return &CheckService{
		resolver: resolver,
		cache:    cache,
		key:      key,
		recorder: rec,
	}
}

// Check 查詢食物安全；cached 表示結果來自快取
func (s *CheckService) Check(ctx context.Context, q Query) (v Verdict, cached bool, err error) {
	if err := ValidateQuery(q); err != nil {
		return Verdict{}, false, err
	}
	q.Food = normalize.Sanitize(q.Food)
	if err := validateSanitized(q.Food); err != nil {
		return Verdict{}, false, err
	}
	q.Language = normalize.NormalizeLanguage(q.Language)

	var key string
	if s.cache != nil && s.key != nil {
		key = s.key(q.Food, q.PetType, q.Language)
		if v, ok := s.cache.GetKey(key); ok {
			s.observeCache(true)
			// 鍵已正規化，回傳時沿用本次請求的寫法
			v.Food = q.Food
			return v, true, nil
		}
		s.observeCache(false)
	}

	v, err = s.resolver.Resolve(ctx, q)
	if err != nil {
		ce := common.AsCustomError(err)
		if !common.IsValidationError(ce) {
			common.LogError("食物安全查詢失敗",
				zap.String("food", q.Food),
				zap.String("pet_type", string(q.PetType)),
				zap.String("code", ce.Code),
				zap.Error(err),
			)
		}
		return Verdict{}, false, ce
	}

	if key != "" {
		s.cache.SetKey(key, v)
	}

	common.LogInfo("食物安全查詢完成",
		zap.String("food", v.Food),
		zap.String("pet_type", string(v.PetType)),
		zap.String("safety_level", string(v.SafetyLevel)),
		zap.String("source", string(v.SourceKind)),
	)
	return v, false, nil
}

func (s *CheckService) observeCache(hit bool) {
	if s.recorder != nil {
		s.recorder.ObserveCache(hit)
	}
}
