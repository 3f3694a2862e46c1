package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"pet-food-safety/internal/core/ai/provider"
	"pet-food-safety/internal/core/normalize"
	"pet-food-safety/internal/core/safety"
	"pet-food-safety/internal/pkg/common"
)

// Service AI 食物安全判定服務
type Service struct {
	provider    provider.Provider
	validate    *validator.Validate
	maxTokens   int
	temperature float64
}

var _ safety.Fallback = (*Service)(nil)

// aiVerdict AI 回應的固定結構，多出或缺少欄位皆視為錯誤
type aiVerdict struct {
	Food            string   `json:"food" validate:"required"`
	PetType         string   `json:"petType" validate:"required,oneof=dog cat"`
	SafetyLevel     string   `json:"safetyLevel" validate:"required,oneof=safe caution dangerous unknown"`
	Summary         string   `json:"summary" validate:"required"`
	Details         string   `json:"details" validate:"required"`
	Symptoms        []string `json:"symptoms" validate:"required"`
	Recommendations []string `json:"recommendations" validate:"required"`
}

// fencePattern 比對單一層 markdown 程式碼區塊
var fencePattern = regexp.MustCompile("(?s)^\\s*```[A-Za-z]*[ \\t]*\\r?\\n?(.*?)\\r?\\n?[ \\t]*```\\s*$")

// NewService 創建 AI 服務
func NewService(p provider.Provider) *Service {
	return &Service{
		provider:    p,
		validate:    validator.New(),
		maxTokens:   800,
		temperature: 0.2,
	}
}

// Assess 實現 safety.Fallback
func (s *Service) Assess(ctx context.Context, q safety.Query) (safety.Verdict, error) {
	req := &provider.Request{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: BuildSystemPrompt(q)},
			{Role: provider.RoleUser, Content: BuildUserPrompt(q)},
		},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		JSONMode:    true,
	}

	start := time.Now()
	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		return safety.Verdict{}, err
	}

	v, err := s.ParseVerdict(resp.Content)
	if err != nil {
		common.LogError("AI 回應格式錯誤",
			zap.String("model", resp.Model),
			zap.String("food", q.Food),
			zap.String("raw_response", common.Truncate(resp.Content, 2000)),
			zap.Error(err),
		)
		return safety.Verdict{}, err
	}

	common.LogDebug("AI 判定完成",
		zap.String("model", resp.Model),
		zap.String("food", q.Food),
		zap.String("safety_level", string(v.SafetyLevel)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return v, nil
}

// ParseVerdict 驗證 AI 回應，不符合結構時回傳 ErrParse
func (s *Service) ParseVerdict(raw string) (safety.Verdict, error) {
	payload := StripCodeFence(raw)

	var out aiVerdict
	if err := common.ParseJSONStrict(payload, &out); err != nil {
		return safety.Verdict{}, common.ErrParse.Wrap(fmt.Errorf("invalid JSON: %w", err))
	}
	if err := s.validate.Struct(out); err != nil {
		return safety.Verdict{}, common.ErrParse.Wrap(fmt.Errorf("schema mismatch: %w", err))
	}

	return safety.Verdict{
		Food:            out.Food,
		PetType:         safety.PetType(out.PetType),
		SafetyLevel:     safety.Level(out.SafetyLevel),
		Summary:         out.Summary,
		Details:         out.Details,
		Symptoms:        out.Symptoms,
		Recommendations: out.Recommendations,
		SourceKind:      safety.SourceAI,
	}, nil
}

// StripCodeFence 移除一層 markdown 程式碼區塊
func StripCodeFence(raw string) string {
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// BuildSystemPrompt 組出系統提示詞
func BuildSystemPrompt(q safety.Query) string {
	lang := normalize.LanguageName(q.Language)
	verb := normalize.ConsumeVerb(q.Food, "en")

	var b strings.Builder
	b.WriteString("You are a veterinary nutrition assistant that tells pet owners whether a food is safe for their pet.\n")
	b.WriteString("Rules:\n")
	b.WriteString("1. Always err on the side of caution. If evidence is mixed or the amount matters, answer \"caution\". If the food can cause serious harm, answer \"dangerous\".\n")
	fmt.Fprintf(&b, "2. Write summary, details, symptoms and recommendations in %s only. Do not translate the \"food\" field; return it exactly as given.\n", lang)
	b.WriteString("3. If the input is not a food or drink, set safetyLevel to \"unknown\" and explain briefly in summary.\n")
	fmt.Fprintf(&b, "4. Describe whether the pet can %s it.\n", verb)
	b.WriteString("5. Respond with a single JSON object and nothing else, using exactly these fields:\n")
	b.WriteString(`{"food": string, "petType": "dog" | "cat", "safetyLevel": "safe" | "caution" | "dangerous" | "unknown", "summary": string, "details": string, "symptoms": string[], "recommendations": string[]}`)
	b.WriteString("\n6. symptoms lists signs of poisoning or discomfort (empty array if none). recommendations lists practical advice.\n")
	return b.String()
}

// BuildUserPrompt 組出使用者提示詞
func BuildUserPrompt(q safety.Query) string {
	verb := normalize.ConsumeVerb(q.Food, "en")
	return fmt.Sprintf("Can a %s %s %q? Pet type: %s. Food: %s", q.PetType, verb, q.Food, q.PetType, q.Food)
}
