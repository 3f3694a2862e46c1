package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"pet-food-safety/internal/core/safety"
)

// executeCmd 執行子命令並擷取輸出，每次執行前重設旗標
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	apiURL = ""
	cacheFile = ""
	jsonOutput = false
	verbose = false
	checkPet = ""
	checkLang = "en"
	seedDriver = ""
	seedDSN = ""

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	rootCmd.SetArgs(nil)
	return out.String(), err
}

func newFakeAPI(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(safety.Verdict{
			Food:            req["food"],
			PetType:         safety.PetType(req["petType"]),
			SafetyLevel:     safety.LevelDangerous,
			Summary:         "No. Grapes can cause kidney failure.",
			Details:         "No. Grapes can cause kidney failure.",
			Symptoms:        []string{"Vomiting"},
			Recommendations: []string{"Call your veterinarian."},
			SourceKind:      safety.SourceDatabase,
		})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestCheckCommand_UsesCacheAndSavesPreferences(t *testing.T) {
	server, calls := newFakeAPI(t)
	cachePath := filepath.Join(t.TempDir(), "cache.json")

	out, err := executeCmd(t, "check", "grapes", "--pet", "cat", "--api", server.URL, "--cache-file", cachePath)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	for _, want := range []string{"Can cats eat grapes?", "DANGEROUS", "  - Vomiting"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	// 第二次查詢不指定 --pet，沿用上次的寵物種類並命中快取
	out, err = executeCmd(t, "check", "Grapes", "--api", server.URL, "--cache-file", cachePath)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if !strings.Contains(out, "cached") {
		t.Errorf("expected cached answer:\n%s", out)
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Errorf("api calls = %d, want 1", n)
	}

	out, err = executeCmd(t, "prefs", "--cache-file", cachePath)
	if err != nil {
		t.Fatalf("prefs: %v", err)
	}
	if !strings.Contains(out, "Pet type:  cat") || !strings.Contains(out, "Last food: Grapes") {
		t.Errorf("prefs output:\n%s", out)
	}

	out, err = executeCmd(t, "cache", "clear", "--cache-file", cachePath)
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if !strings.Contains(out, "Removed 1 cached answers.") {
		t.Errorf("cache clear output:\n%s", out)
	}

	out, _ = executeCmd(t, "prefs", "--cache-file", cachePath)
	if !strings.Contains(out, "Pet type:  cat") {
		t.Errorf("preferences should survive cache clear:\n%s", out)
	}
}

func TestCheckCommand_ValidationNeverCallsAPI(t *testing.T) {
	server, calls := newFakeAPI(t)

	_, err := executeCmd(t, "check", "tell", "me", "a", "joke", "--api", server.URL,
		"--cache-file", filepath.Join(t.TempDir(), "cache.json"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if n := atomic.LoadInt32(calls); n != 0 {
		t.Errorf("api calls = %d, want 0", n)
	}
}

func TestCheckCommand_JSON(t *testing.T) {
	server, _ := newFakeAPI(t)

	out, err := executeCmd(t, "check", "milk", "--pet", "dog", "--json", "--api", server.URL,
		"--cache-file", filepath.Join(t.TempDir(), "cache.json"))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	var got struct {
		Verdict safety.Verdict `json:"verdict"`
		Cached  bool           `json:"cached"`
		Verb    string         `json:"verb"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if got.Verb != "drink" || got.Cached || got.Verdict.PetType != safety.PetDog {
		t.Errorf("json output = %+v", got)
	}
}

func TestSeedCommand(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "foods.yaml")
	data := []byte(`foods:
  - name: Pumpkin
    species: both
    safety_rating: safe
    short_answer: Yes, plain cooked pumpkin.
  - name: Raisins
    species: both
    safety_rating: toxic
    short_answer: No.
`)
	if err := os.WriteFile(seedPath, data, 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := executeCmd(t, "seed", seedPath, "--driver", "sqlite", "--dsn", filepath.Join(dir, "foods.db"))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out, "Imported 2 food records.") {
		t.Errorf("output:\n%s", out)
	}
}

func TestSeedCommand_RejectsInvalidCatalog(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "foods.yaml")
	if err := os.WriteFile(seedPath, []byte("foods:\n  - name: rock\n    species: dog\n    safety_rating: crunchy\n    short_answer: No.\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := executeCmd(t, "seed", seedPath, "--driver", "sqlite", "--dsn", filepath.Join(dir, "foods.db")); err == nil {
		t.Fatal("expected error for invalid catalog")
	}
	if _, err := os.Stat(filepath.Join(dir, "foods.db")); !os.IsNotExist(err) {
		t.Error("database should not be created for an invalid catalog")
	}
}
