package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"pet-food-safety/internal/core/safety"
)

const foodColumns = `id, name, species, safety_rating, short_answer, long_description, risks, benefits, serving_tips, updated_at`

// FoodRepository 食物資料表存取
type FoodRepository struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

var _ safety.FoodRepository = (*FoodRepository)(nil)

// NewFoodRepository 創建食物資料表存取
func NewFoodRepository(db *sql.DB, driver string) *FoodRepository {
	return &FoodRepository{db: db, driver: driver, now: time.Now}
}

// FindFood 實現 safety.FoodRepository；物種專屬的資料列優先於 both
func (r *FoodRepository) FindFood(ctx context.Context, name string, pet safety.PetType) (*safety.FoodRecord, error) {
	query := rebind(r.driver, `SELECT `+foodColumns+`
		FROM foods
		WHERE lower(name) = ? AND species IN (?, 'both')
		ORDER BY CASE WHEN species = 'both' THEN 1 ELSE 0 END
		LIMIT 1`)

	row := r.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(name)), string(pet))
	rec, err := scanFood(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Upsert 新增或更新資料列，以 (name, species) 為唯一鍵
func (r *FoodRepository) Upsert(ctx context.Context, rec safety.FoodRecord) (safety.FoodRecord, error) {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = r.now().UTC()
	}

	risks, err := json.Marshal(nonNil(rec.Risks))
	if err != nil {
		return rec, fmt.Errorf("marshal risks: %w", err)
	}
	benefits, err := json.Marshal(nonNil(rec.Benefits))
	if err != nil {
		return rec, fmt.Errorf("marshal benefits: %w", err)
	}

	query := rebind(r.driver, `INSERT INTO foods (`+foodColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name, species) DO UPDATE SET
			safety_rating = excluded.safety_rating,
			short_answer = excluded.short_answer,
			long_description = excluded.long_description,
			risks = excluded.risks,
			benefits = excluded.benefits,
			serving_tips = excluded.serving_tips,
			updated_at = excluded.updated_at`)

	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Name,
		string(rec.Species),
		rec.SafetyRating.String(),
		rec.ShortAnswer,
		rec.LongDescription,
		string(risks),
		string(benefits),
		rec.ServingTips,
		rec.UpdatedAt,
	)
	if err != nil {
		return rec, fmt.Errorf("upsert food %q: %w", rec.Name, err)
	}
	return rec, nil
}

// Count 資料列數量
func (r *FoodRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM foods`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count foods: %w", err)
	}
	return n, nil
}

// Ping 健康檢查
func (r *FoodRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

// scanFood 讀取資料列並通過邊界驗證
func scanFood(s scanner) (safety.FoodRecord, error) {
	var raw safety.RawFoodRecord
	err := s.Scan(
		&raw.ID,
		&raw.Name,
		&raw.Species,
		&raw.SafetyRating,
		&raw.ShortAnswer,
		&raw.LongDescription,
		&raw.RisksJSON,
		&raw.BenefitsJSON,
		&raw.ServingTips,
		&raw.UpdatedAt,
	)
	if err != nil {
		return safety.FoodRecord{}, err
	}
	return safety.ParseFoodRecord(raw)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
