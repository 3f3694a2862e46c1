package safety

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"pet-food-safety/internal/core/normalize"
	"pet-food-safety/internal/pkg/common"
)

// DefaultAITimeout AI 查詢的預設超時
const DefaultAITimeout = 15 * time.Second

// PlaceholderRecommendation 資料列沒有建議時使用的預設文字
const PlaceholderRecommendation = "Consult your veterinarian before feeding this to your pet."

// FoodRepository 結構化資料來源（唯讀）
type FoodRepository interface {
	// FindFood 以不分大小寫的名稱查詢，物種為 pet 或 both，找不到時回傳 nil, nil
	FindFood(ctx context.Context, name string, pet PetType) (*FoodRecord, error)
}

// Fallback AI 後援查詢
type Fallback interface {
	Assess(ctx context.Context, q Query) (Verdict, error)
}

// Recorder 判定過程的指標記錄
type Recorder interface {
	ObserveLookup(source SourceKind, outcome string, d time.Duration)
	ObserveCache(hit bool)
}

// Resolver 先查資料庫，未命中再交給 AI
type Resolver struct {
	repo      FoodRepository
	ai        Fallback
	aiTimeout time.Duration
	recorder  Recorder
}

// Option 設定 Resolver
type Option func(*Resolver)

// WithAITimeout 設定 AI 查詢超時，0 表示不限制
func WithAITimeout(d time.Duration) Option {
	return func(r *Resolver) { r.aiTimeout = d }
}

// WithRecorder 設定指標記錄
func WithRecorder(rec Recorder) Option {
	return func(r *Resolver) { r.recorder = rec }
}

// NewResolver 創建 Resolver，repo 或 ai 可為 nil
func NewResolver(repo FoodRepository, ai Fallback, opts ...Option) *Resolver {
	r := &Resolver{
		repo:      repo,
		ai:        ai,
		aiTimeout: DefaultAITimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve 判定食物對寵物是否安全
func (r *Resolver) Resolve(ctx context.Context, q Query) (Verdict, error) {
	if err := ValidateQuery(q); err != nil {
		return Verdict{}, err
	}
	q.Food = normalize.Sanitize(q.Food)
	if err := validateSanitized(q.Food); err != nil {
		return Verdict{}, err
	}
	q.Language = normalize.NormalizeLanguage(q.Language)

	if rec := r.lookup(ctx, q); rec != nil {
		return FromRecord(*rec, q), nil
	}

	return r.assess(ctx, q)
}

// lookup 資料庫查詢；錯誤只記錄，交由 AI 處理
func (r *Resolver) lookup(ctx context.Context, q Query) *FoodRecord {
	if r.repo == nil {
		return nil
	}

	start := time.Now()
	name := normalize.Key(q.Food)

	rec, err := r.repo.FindFood(ctx, name, q.PetType)
	if err == nil && rec == nil {
		prep := normalize.DetectPreparationState(name)
		if prep.State != normalize.StateFresh && prep.CleanedName != name {
			rec, err = r.repo.FindFood(ctx, prep.CleanedName, q.PetType)
		}
	}

	switch {
	case err != nil:
		common.LogWarn("資料庫查詢失敗，改用 AI",
			zap.String("food", name),
			zap.String("pet_type", string(q.PetType)),
			zap.Error(err),
		)
		r.observe(SourceDatabase, "error", start)
		return nil
	case rec == nil:
		r.observe(SourceDatabase, "miss", start)
		return nil
	default:
		r.observe(SourceDatabase, "hit", start)
		return rec
	}
}

// assess AI 查詢
func (r *Resolver) assess(ctx context.Context, q Query) (Verdict, error) {
	if r.ai == nil {
		return Verdict{}, common.ErrServiceUnavailable.Wrap(errors.New("no AI fallback configured"))
	}

	if r.aiTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.aiTimeout)
		defer cancel()
	}

	start := time.Now()
	v, err := r.ai.Assess(ctx, q)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = common.ErrServiceUnavailable.Wrap(err)
		}
		r.observe(SourceAI, common.AsCustomError(err).Code, start)
		return Verdict{}, common.AsCustomError(err)
	}
	r.observe(SourceAI, "ok", start)

	v.Food = q.Food
	v.PetType = q.PetType
	v.SourceKind = SourceAI
	if v.Symptoms == nil {
		v.Symptoms = []string{}
	}
	if v.Recommendations == nil {
		v.Recommendations = []string{}
	}
	return v, nil
}

func (r *Resolver) observe(source SourceKind, outcome string, start time.Time) {
	if r.recorder != nil {
		r.recorder.ObserveLookup(source, outcome, time.Since(start))
	}
}

// FromRecord 將資料列轉換為判定結果
func FromRecord(rec FoodRecord, q Query) Verdict {
	details := rec.LongDescription
	if details == "" {
		details = rec.ShortAnswer
	}

	symptoms := append([]string{}, rec.Risks...)

	recs := make([]string, 0, len(rec.Benefits)+1)
	if rec.ServingTips != "" {
		recs = append(recs, rec.ServingTips)
	}
	recs = append(recs, rec.Benefits...)
	if len(recs) == 0 {
		recs = append(recs, PlaceholderRecommendation)
	}

	return Verdict{
		Food:            q.Food,
		PetType:         q.PetType,
		SafetyLevel:     rec.SafetyRating.Level(),
		Summary:         rec.ShortAnswer,
		Details:         details,
		Symptoms:        symptoms,
		Recommendations: recs,
		SourceKind:      SourceDatabase,
	}
}
