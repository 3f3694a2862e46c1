package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pet-food-safety/internal/core/safety"
)

func setupTestRepo(t *testing.T) *FoodRepository {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "data", "foods.db"), 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(ctx, db, DriverSQLite); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	return NewFoodRepository(db, DriverSQLite)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	repo := setupTestRepo(t)
	if err := RunMigrations(context.Background(), repo.db, DriverSQLite); err != nil {
		t.Fatalf("second RunMigrations: %v", err)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x", 0); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM foods WHERE name = ? AND species IN (?, 'both')"
	if got := rebind(DriverSQLite, q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
	want := "SELECT * FROM foods WHERE name = $1 AND species IN ($2, 'both')"
	if got := rebind(DriverPostgres, q); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestFindFood_SpeciesPreference(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for _, rec := range []safety.FoodRecord{
		{Name: "carrots", Species: safety.SpeciesBoth, SafetyRating: safety.RatingCaution, ShortAnswer: "generic"},
		{Name: "carrots", Species: safety.SpeciesDog, SafetyRating: safety.RatingSafe, ShortAnswer: "dog specific"},
	} {
		if _, err := repo.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	dog, err := repo.FindFood(ctx, "Carrots", safety.PetDog)
	if err != nil || dog == nil {
		t.Fatalf("FindFood dog = %v, %v", dog, err)
	}
	if dog.ShortAnswer != "dog specific" || dog.SafetyRating != safety.RatingSafe {
		t.Errorf("dog record = %+v", dog)
	}

	cat, err := repo.FindFood(ctx, "carrots", safety.PetCat)
	if err != nil || cat == nil {
		t.Fatalf("FindFood cat = %v, %v", cat, err)
	}
	if cat.Species != safety.SpeciesBoth {
		t.Errorf("cat record species = %q, want both", cat.Species)
	}
}

func TestFindFood_Miss(t *testing.T) {
	repo := setupTestRepo(t)

	rec, err := repo.FindFood(context.Background(), "durian", safety.PetCat)
	if err != nil || rec != nil {
		t.Fatalf("FindFood = %v, %v, want nil, nil", rec, err)
	}
}

func TestUpsert_RoundTripAndOverwrite(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	updated := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := repo.Upsert(ctx, safety.FoodRecord{
		Name:         "grapes",
		Species:      safety.SpeciesBoth,
		SafetyRating: safety.RatingToxic,
		ShortAnswer:  "No.",
		Risks:        []string{"kidney failure"},
		UpdatedAt:    updated,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := repo.Upsert(ctx, safety.FoodRecord{
		Name:         "grapes",
		Species:      safety.SpeciesBoth,
		SafetyRating: safety.RatingToxic,
		ShortAnswer:  "Never.",
		Risks:        []string{"kidney failure", "vomiting"},
		Benefits:     nil,
		UpdatedAt:    updated,
	}); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	n, err := repo.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Count = %d, %v, want 1", n, err)
	}

	rec, err := repo.FindFood(ctx, "GRAPES", safety.PetDog)
	if err != nil || rec == nil {
		t.Fatalf("FindFood = %v, %v", rec, err)
	}
	if rec.ShortAnswer != "Never." || len(rec.Risks) != 2 || rec.Benefits == nil {
		t.Errorf("record = %+v", rec)
	}
	if rec.ID == "" {
		t.Error("expected generated ID")
	}
	if !rec.UpdatedAt.Equal(updated) {
		t.Errorf("UpdatedAt = %v, want %v", rec.UpdatedAt, updated)
	}
}

func TestFindFood_InvalidRowIsTypedError(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.db.ExecContext(ctx, `INSERT INTO foods (id, name, species, safety_rating, short_answer, updated_at)
		VALUES ('x', 'mystery', 'dog', 'deadly', 'hmm', ?)`, time.Now().UTC())
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err = repo.FindFood(ctx, "mystery", safety.PetDog)
	if !errors.Is(err, safety.ErrInvalidRecord) {
		t.Fatalf("err = %v, want ErrInvalidRecord", err)
	}
}

func TestResolverAgainstSQLite(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	records, err := DefaultSeed()
	if err != nil {
		t.Fatalf("DefaultSeed: %v", err)
	}
	if _, err := Seed(ctx, repo, records); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	r := safety.NewResolver(repo, nil)
	v, err := r.Resolve(ctx, safety.Query{Food: "Chocolate", PetType: safety.PetDog})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.SafetyLevel != safety.LevelDangerous || v.SourceKind != safety.SourceDatabase {
		t.Errorf("verdict = %+v", v)
	}

	v, err = r.Resolve(ctx, safety.Query{Food: "frozen blueberries", PetType: safety.PetCat})
	if err != nil {
		t.Fatalf("Resolve frozen: %v", err)
	}
	if v.SafetyLevel != safety.LevelSafe {
		t.Errorf("frozen blueberries = %+v", v)
	}
}

func TestParseSeed(t *testing.T) {
	records, err := DefaultSeed()
	if err != nil {
		t.Fatalf("DefaultSeed: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("default seed is empty")
	}

	bad := []byte(`foods:
  - name: apple
    species: dog
    safety_rating: safe
    short_answer: Yes.
  - name: rock
    species: dog
    safety_rating: crunchy
    short_answer: No.
`)
	if _, err := ParseSeed(bad); !errors.Is(err, safety.ErrInvalidRecord) {
		t.Errorf("err = %v, want ErrInvalidRecord", err)
	}
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foods.yaml")
	data := []byte("foods:\n  - name: Pumpkin\n    species: both\n    safety_rating: safe\n    short_answer: Yes, plain cooked pumpkin.\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	records, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile: %v", err)
	}
	if len(records) != 1 || records[0].Name != "pumpkin" {
		t.Errorf("records = %+v", records)
	}
}
