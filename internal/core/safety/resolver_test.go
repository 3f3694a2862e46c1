package safety

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"pet-food-safety/internal/pkg/common"
)

// mockRepo 以 name:species 為鍵的記憶體資料來源
type mockRepo struct {
	mu      sync.Mutex
	records map[string]FoodRecord
	err     error
	calls   []string
}

func (m *mockRepo) FindFood(ctx context.Context, name string, pet PetType) (*FoodRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, name)
	if m.err != nil {
		return nil, m.err
	}
	for _, sp := range []Species{Species(pet), SpeciesBoth} {
		if rec, ok := m.records[name+":"+string(sp)]; ok {
			return &rec, nil
		}
	}
	return nil, nil
}

type mockAI struct {
	mu      sync.Mutex
	verdict Verdict
	err     error
	delay   time.Duration
	calls   int
	lastQ   Query
}

func (m *mockAI) Assess(ctx context.Context, q Query) (Verdict, error) {
	m.mu.Lock()
	m.calls++
	m.lastQ = q
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return Verdict{}, ctx.Err()
		}
	}
	return m.verdict, m.err
}

type mockRecorder struct {
	lookups []string
	hits    int
	misses  int
}

func (m *mockRecorder) ObserveLookup(source SourceKind, outcome string, d time.Duration) {
	m.lookups = append(m.lookups, string(source)+":"+outcome)
}

func (m *mockRecorder) ObserveCache(hit bool) {
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func chocolateRepo() *mockRepo {
	return &mockRepo{records: map[string]FoodRecord{
		"chocolate:both": {
			Name:            "chocolate",
			Species:         SpeciesBoth,
			SafetyRating:    RatingToxic,
			ShortAnswer:     "No, chocolate is toxic.",
			LongDescription: "Chocolate contains theobromine and caffeine.",
			Risks:           []string{"vomiting", "seizures"},
		},
		"blueberries:dog": {
			Name:         "blueberries",
			Species:      SpeciesDog,
			SafetyRating: RatingSafe,
			ShortAnswer:  "Yes, in moderation.",
			Benefits:     []string{"antioxidants"},
			ServingTips:  "Serve a handful as a treat.",
		},
	}}
}

func TestResolve_DatabaseHitNeverCallsAI(t *testing.T) {
	repo := chocolateRepo()
	ai := &mockAI{}
	rec := &mockRecorder{}
	r := NewResolver(repo, ai, WithRecorder(rec))

	v, err := r.Resolve(context.Background(), Query{Food: "Chocolate", PetType: PetDog, Language: "en"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if v.SafetyLevel != LevelDangerous {
		t.Errorf("SafetyLevel = %q, want dangerous", v.SafetyLevel)
	}
	if v.SourceKind != SourceDatabase {
		t.Errorf("SourceKind = %q, want database", v.SourceKind)
	}
	if v.Food != "Chocolate" || v.PetType != PetDog {
		t.Errorf("Food/PetType = %q/%q", v.Food, v.PetType)
	}
	if ai.calls != 0 {
		t.Errorf("AI calls = %d, want 0", ai.calls)
	}
	if !reflect.DeepEqual(repo.calls, []string{"chocolate"}) {
		t.Errorf("repo calls = %v", repo.calls)
	}
	if !reflect.DeepEqual(rec.lookups, []string{"database:hit"}) {
		t.Errorf("recorded = %v", rec.lookups)
	}
}

func TestResolve_DatabaseMissCallsAIOnce(t *testing.T) {
	repo := chocolateRepo()
	ai := &mockAI{verdict: Verdict{
		Food:        "durian",
		SafetyLevel: LevelCaution,
		Summary:     "Durian flesh in small amounts only.",
	}}
	r := NewResolver(repo, ai)

	v, err := r.Resolve(context.Background(), Query{Food: "Durian", PetType: PetCat, Language: "fr-CA"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ai.calls != 1 {
		t.Fatalf("AI calls = %d, want 1", ai.calls)
	}
	if ai.lastQ.Language != "fr" {
		t.Errorf("language passed to AI = %q, want fr", ai.lastQ.Language)
	}
	if v.SourceKind != SourceAI || v.Food != "Durian" || v.PetType != PetCat {
		t.Errorf("verdict = %+v", v)
	}
	if v.Symptoms == nil || v.Recommendations == nil {
		t.Error("lists must be non-nil")
	}
}

func TestResolve_MalformedAIResponse(t *testing.T) {
	ai := &mockAI{err: common.ErrParse.Wrap(errors.New("invalid character 'S'"))}
	r := NewResolver(chocolateRepo(), ai)

	_, err := r.Resolve(context.Background(), Query{Food: "durian", PetType: PetCat})
	if !errors.Is(err, common.ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
	if ai.calls != 1 {
		t.Errorf("AI calls = %d, want 1", ai.calls)
	}
	if common.UserMessage(err) != common.GenericUpstreamMessage {
		t.Errorf("user message leaks details: %q", common.UserMessage(err))
	}
}

func TestResolve_ValidationRejectsBeforeIO(t *testing.T) {
	tests := []struct {
		name string
		q    Query
	}{
		{"empty", Query{Food: "", PetType: PetDog}},
		{"blank", Query{Food: "   ", PetType: PetDog}},
		{"too short", Query{Food: "a", PetType: PetDog}},
		{"too long", Query{Food: strings.Repeat("a", 101), PetType: PetDog}},
		{"capital question", Query{Food: "what is the capital of France", PetType: PetDog}},
		{"joke", Query{Food: "Tell me a joke", PetType: PetCat}},
		{"math", Query{Food: "2 + 2", PetType: PetCat}},
		{"no letters", Query{Food: "12345", PetType: PetCat}},
		{"markup only", Query{Food: "<b></b>", PetType: PetCat}},
		{"bad pet", Query{Food: "apple", PetType: "hamster"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := chocolateRepo()
			ai := &mockAI{}
			r := NewResolver(repo, ai)

			_, err := r.Resolve(context.Background(), tt.q)
			if !common.IsValidationError(err) {
				t.Fatalf("err = %v, want validation error", err)
			}
			if len(repo.calls) != 0 || ai.calls != 0 {
				t.Errorf("repo calls = %d, AI calls = %d, want none", len(repo.calls), ai.calls)
			}
		})
	}
}

func TestResolve_PreparationStateRetry(t *testing.T) {
	repo := chocolateRepo()
	ai := &mockAI{}
	r := NewResolver(repo, ai)

	v, err := r.Resolve(context.Background(), Query{Food: "Frozen Blueberries", PetType: PetDog})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.SourceKind != SourceDatabase || v.Food != "Frozen Blueberries" {
		t.Errorf("verdict = %+v", v)
	}
	if !reflect.DeepEqual(repo.calls, []string{"frozen blueberries", "blueberries"}) {
		t.Errorf("repo calls = %v", repo.calls)
	}
	if ai.calls != 0 {
		t.Errorf("AI calls = %d, want 0", ai.calls)
	}
}

func TestResolve_SpeciesSpecificRow(t *testing.T) {
	repo := chocolateRepo()
	ai := &mockAI{verdict: Verdict{SafetyLevel: LevelUnknown}}
	r := NewResolver(repo, ai)

	// blueberries 只有 dog 資料列
	v, err := r.Resolve(context.Background(), Query{Food: "blueberries", PetType: PetCat})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.SourceKind != SourceAI || ai.calls != 1 {
		t.Errorf("expected AI fallback, got %+v (calls %d)", v, ai.calls)
	}
}

func TestResolve_RepositoryErrorFallsThroughToAI(t *testing.T) {
	repo := &mockRepo{err: errors.New("connection refused")}
	ai := &mockAI{verdict: Verdict{SafetyLevel: LevelSafe, Summary: "ok"}}
	rec := &mockRecorder{}
	r := NewResolver(repo, ai, WithRecorder(rec))

	v, err := r.Resolve(context.Background(), Query{Food: "apple", PetType: PetDog})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.SourceKind != SourceAI {
		t.Errorf("SourceKind = %q", v.SourceKind)
	}
	if !reflect.DeepEqual(rec.lookups, []string{"database:error", "ai:ok"}) {
		t.Errorf("recorded = %v", rec.lookups)
	}
}

func TestResolve_BothTiersUnavailable(t *testing.T) {
	r := NewResolver(&mockRepo{err: errors.New("down")}, nil)

	_, err := r.Resolve(context.Background(), Query{Food: "apple", PetType: PetDog})
	if !errors.Is(err, common.ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
}

func TestResolve_AIErrorKindsPropagate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *common.CustomError
	}{
		{"rate limited", common.ErrRateLimited.Wrap(errors.New("429")), common.ErrRateLimited},
		{"quota", common.ErrQuotaExceeded.Wrap(errors.New("402")), common.ErrQuotaExceeded},
		{"plain error", errors.New("boom"), common.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(nil, &mockAI{err: tt.err})
			_, err := r.Resolve(context.Background(), Query{Food: "kiwi", PetType: PetCat})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %s", err, tt.want.Code)
			}
		})
	}
}

func TestResolve_AITimeout(t *testing.T) {
	ai := &mockAI{delay: time.Second}
	r := NewResolver(nil, ai, WithAITimeout(20*time.Millisecond))

	start := time.Now()
	_, err := r.Resolve(context.Background(), Query{Food: "mango", PetType: PetDog})
	if !errors.Is(err, common.ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("timeout was not enforced")
	}
}

func TestFromRecord(t *testing.T) {
	q := Query{Food: "Carrots", PetType: PetCat}

	t.Run("serving tips first", func(t *testing.T) {
		v := FromRecord(FoodRecord{
			SafetyRating: RatingSafe,
			ShortAnswer:  "Yes.",
			Benefits:     []string{"fiber", "vitamin A"},
			ServingTips:  "Cook and chop.",
		}, q)
		want := []string{"Cook and chop.", "fiber", "vitamin A"}
		if !reflect.DeepEqual(v.Recommendations, want) {
			t.Errorf("Recommendations = %v, want %v", v.Recommendations, want)
		}
		if v.Details != "Yes." {
			t.Errorf("Details = %q, want fallback to short answer", v.Details)
		}
	})

	t.Run("placeholder", func(t *testing.T) {
		v := FromRecord(FoodRecord{SafetyRating: RatingCaution, ShortAnswer: "Maybe."}, q)
		if !reflect.DeepEqual(v.Recommendations, []string{PlaceholderRecommendation}) {
			t.Errorf("Recommendations = %v", v.Recommendations)
		}
		if v.SafetyLevel != LevelCaution {
			t.Errorf("SafetyLevel = %q", v.SafetyLevel)
		}
		if v.Symptoms == nil || len(v.Symptoms) != 0 {
			t.Errorf("Symptoms = %#v, want empty non-nil", v.Symptoms)
		}
	})
}
