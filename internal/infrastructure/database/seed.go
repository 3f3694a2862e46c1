package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"pet-food-safety/internal/core/safety"
	"pet-food-safety/internal/pkg/common"
)

//go:embed seed/foods.yaml
var defaultSeed []byte

// seedFile 種子檔結構
type seedFile struct {
	Foods []safety.RawFoodRecord `yaml:"foods"`
}

// ParseSeed 解析並驗證種子資料；任何一筆無效時整批拒絕
func ParseSeed(data []byte) ([]safety.FoodRecord, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	records := make([]safety.FoodRecord, 0, len(f.Foods))
	var errs []error
	for i, raw := range f.Foods {
		rec, err := safety.ParseFoodRecord(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("foods[%d]: %w", i, err))
			continue
		}
		records = append(records, rec)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return records, nil
}

// LoadSeedFile 讀取種子檔
func LoadSeedFile(path string) ([]safety.FoodRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// DefaultSeed 內建的食物清單
func DefaultSeed() ([]safety.FoodRecord, error) {
	return ParseSeed(defaultSeed)
}

// Seed 寫入資料列，回傳寫入數量
func Seed(ctx context.Context, repo *FoodRepository, records []safety.FoodRecord) (int, error) {
	n := 0
	for _, rec := range records {
		if _, err := repo.Upsert(ctx, rec); err != nil {
			return n, err
		}
		n++
	}

	common.LogInfo("食物資料已匯入", zap.Int("count", n))
	return n, nil
}
