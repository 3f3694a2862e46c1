package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store 持久化快取內容的儲存
type Store interface {
	// Load 讀取快取內容，不存在時回傳 nil, nil
	Load(ctx context.Context) ([]byte, error)
	// Save 覆寫快取內容
	Save(ctx context.Context, data []byte) error
}

// FileStore 以單一 JSON 檔案保存快取（客戶端使用）
type FileStore struct {
	path string
}

// NewFileStore 創建檔案儲存
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFilePath 使用者快取目錄下的預設檔案位置
func DefaultFilePath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache dir: %w", err)
	}
	return filepath.Join(dir, "petsafe", "cache.json"), nil
}

// Path 檔案路徑
func (s *FileStore) Path() string {
	return s.path
}

// Load 實現 Store
func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	return data, nil
}

// Save 實現 Store，先寫入暫存檔再改名
func (s *FileStore) Save(ctx context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cache-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}
