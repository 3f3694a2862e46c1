package safety

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"pet-food-safety/internal/core/normalize"
	"pet-food-safety/internal/pkg/common"
)

const (
	// MinFoodLength 食物名稱最短長度（字元）
	MinFoodLength = 2
	// MaxFoodLength 食物名稱最長長度（字元）
	MaxFoodLength = 100
)

// nonFoodPatterns 非食物問題的黑名單，屬於可調整的啟發式規則
var nonFoodPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*what\s+is\s+the\s+capital\s+of\b`),
	regexp.MustCompile(`(?i)^\s*capital\s+of\b`),
	regexp.MustCompile(`(?i)^\s*who\s+(is|was|are)\b`),
	regexp.MustCompile(`(?i)^\s*how\s+(do|can|should)\s+i\b`),
	regexp.MustCompile(`(?i)^\s*write\s+(a|an|me)\b`),
	regexp.MustCompile(`(?i)\btell\s+me\s+a\s+joke\b`),
	regexp.MustCompile(`(?i)^\s*translate\b`),
	regexp.MustCompile(`(?i)^\s*(what('s|\s+is)\s+the\s+)?weather\b`),
	regexp.MustCompile(`(?i)^\s*(calculate|solve)\b`),
	regexp.MustCompile(`^\s*[\d\s.]+[-+*/x^=][\d\s.+\-*/x^=()]+$`),
}

// IsNonFoodQuestion 判斷輸入是否符合非食物問題的黑名單
func IsNonFoodQuestion(food string) bool {
	for _, p := range nonFoodPatterns {
		if p.MatchString(food) {
			return true
		}
	}
	return false
}

// ValidateQuery 驗證判定請求，失敗時回傳 ErrValidation
func ValidateQuery(q Query) error {
	food := strings.TrimSpace(q.Food)
	if food == "" {
		return common.NewValidationError("Please enter a food name.")
	}

	n := utf8.RuneCountInString(food)
	if n < MinFoodLength {
		return common.NewValidationError("Food name is too short.")
	}
	if n > MaxFoodLength {
		return common.NewValidationError("Food name is too long (max 100 characters).")
	}

	if IsNonFoodQuestion(food) {
		return common.NewValidationError("That doesn't look like a food. Please enter a food name.")
	}

	if !q.PetType.Valid() {
		return common.NewValidationError("Pet type must be \"dog\" or \"cat\".")
	}

	return nil
}

// validateSanitized 清理後仍需至少兩個字元並包含字母
func validateSanitized(food string) error {
	if utf8.RuneCountInString(food) < MinFoodLength || !normalize.Validate(food) {
		return common.NewValidationError("Please enter a valid food name.")
	}
	return nil
}
