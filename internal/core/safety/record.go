package safety

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRecord 資料列未通過邊界驗證
var ErrInvalidRecord = errors.New("invalid food record")

// RecordError 描述哪一個欄位未通過驗證
type RecordError struct {
	Name  string
	Field string
	Msg   string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("invalid food record %q: %s: %s", e.Name, e.Field, e.Msg)
}

// Unwrap 讓 errors.Is(err, ErrInvalidRecord) 成立
func (e *RecordError) Unwrap() error {
	return ErrInvalidRecord
}

// RawFoodRecord 資料來源的原始欄位（資料庫列或種子檔），尚未驗證
//
// Risks 與 Benefits 為 JSON 陣列字串（資料庫）或已拆好的清單（種子檔），
// 兩者擇一。
type RawFoodRecord struct {
	ID              string    `yaml:"id"`
	Name            string    `yaml:"name"`
	Species         string    `yaml:"species"`
	SafetyRating    string    `yaml:"safety_rating"`
	ShortAnswer     string    `yaml:"short_answer"`
	LongDescription string    `yaml:"long_description"`
	RisksJSON       string    `yaml:"-"`
	BenefitsJSON    string    `yaml:"-"`
	Risks           []string  `yaml:"risks"`
	Benefits        []string  `yaml:"benefits"`
	ServingTips     string    `yaml:"serving_tips"`
	UpdatedAt       time.Time `yaml:"-"`
}

// ParseFoodRecord 驗證並轉換原始資料列
func ParseFoodRecord(raw RawFoodRecord) (FoodRecord, error) {
	name := strings.ToLower(strings.TrimSpace(raw.Name))
	if name == "" {
		return FoodRecord{}, &RecordError{Name: raw.Name, Field: "name", Msg: "must not be empty"}
	}

	species, ok := ParseSpecies(strings.ToLower(strings.TrimSpace(raw.Species)))
	if !ok {
		return FoodRecord{}, &RecordError{Name: name, Field: "species", Msg: fmt.Sprintf("unknown species %q", raw.Species)}
	}

	rating, err := ParseRating(raw.SafetyRating)
	if err != nil {
		return FoodRecord{}, &RecordError{Name: name, Field: "safety_rating", Msg: err.Error()}
	}

	shortAnswer := strings.TrimSpace(raw.ShortAnswer)
	if shortAnswer == "" {
		return FoodRecord{}, &RecordError{Name: name, Field: "short_answer", Msg: "must not be empty"}
	}

	risks, err := stringList(raw.Risks, raw.RisksJSON)
	if err != nil {
		return FoodRecord{}, &RecordError{Name: name, Field: "risks", Msg: err.Error()}
	}
	benefits, err := stringList(raw.Benefits, raw.BenefitsJSON)
	if err != nil {
		return FoodRecord{}, &RecordError{Name: name, Field: "benefits", Msg: err.Error()}
	}

	return FoodRecord{
		ID:              raw.ID,
		Name:            name,
		Species:         species,
		SafetyRating:    rating,
		ShortAnswer:     shortAnswer,
		LongDescription: strings.TrimSpace(raw.LongDescription),
		Risks:           risks,
		Benefits:        benefits,
		ServingTips:     strings.TrimSpace(raw.ServingTips),
		UpdatedAt:       raw.UpdatedAt,
	}, nil
}

// stringList 取得清單欄位；空字串與 null 視為空清單
func stringList(list []string, encoded string) ([]string, error) {
	if list == nil {
		encoded = strings.TrimSpace(encoded)
		if encoded != "" && encoded != "null" {
			if err := json.Unmarshal([]byte(encoded), &list); err != nil {
				return nil, fmt.Errorf("must be a JSON array of strings: %w", err)
			}
		}
	}

	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
