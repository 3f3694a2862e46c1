package safety

import (
	"time"
)

// PetType 寵物種類
type PetType string

const (
	PetDog PetType = "dog"
	PetCat PetType = "cat"
)

// Valid 檢查寵物種類
func (p PetType) Valid() bool {
	return p == PetDog || p == PetCat
}

// Species 資料庫中的適用物種（dog、cat 或 both）
type Species string

const (
	SpeciesDog  Species = "dog"
	SpeciesCat  Species = "cat"
	SpeciesBoth Species = "both"
)

// ParseSpecies 解析物種字串
func ParseSpecies(s string) (Species, bool) {
	switch Species(s) {
	case SpeciesDog, SpeciesCat, SpeciesBoth:
		return Species(s), true
	}
	return "", false
}

// Level 統一的安全等級
type Level string

const (
	LevelSafe      Level = "safe"
	LevelCaution   Level = "caution"
	LevelDangerous Level = "dangerous"
	LevelUnknown   Level = "unknown"
)

// Valid 檢查安全等級
func (l Level) Valid() bool {
	switch l {
	case LevelSafe, LevelCaution, LevelDangerous, LevelUnknown:
		return true
	}
	return false
}

// SourceKind 判定結果的資料來源（僅供診斷）
type SourceKind string

const (
	SourceDatabase SourceKind = "database"
	SourceAI       SourceKind = "ai"
)

// Verdict 食物安全判定結果，回傳後不可修改
type Verdict struct {
	Food            string     `json:"food"`
	PetType         PetType    `json:"petType"`
	SafetyLevel     Level      `json:"safetyLevel"`
	Summary         string     `json:"summary"`
	Details         string     `json:"details"`
	Symptoms        []string   `json:"symptoms"`
	Recommendations []string   `json:"recommendations"`
	SourceKind      SourceKind `json:"sourceKind"`
}

// FoodRecord 資料庫中的食物資料列（已通過邊界驗證）
type FoodRecord struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Species         Species   `json:"species"`
	SafetyRating    Rating    `json:"safetyRating"`
	ShortAnswer     string    `json:"shortAnswer"`
	LongDescription string    `json:"longDescription,omitempty"`
	Risks           []string  `json:"risks"`
	Benefits        []string  `json:"benefits"`
	ServingTips     string    `json:"servingTips,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Query 一次判定請求的輸入
type Query struct {
	Food     string
	PetType  PetType
	Language string
}
