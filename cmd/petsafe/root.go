package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pet-food-safety/internal/core/cache"
	"pet-food-safety/internal/infrastructure/config"
	"pet-food-safety/internal/pkg/common"
)

// cliCacheEntries 本機快取檔案的最大條目數
const cliCacheEntries = 500

var (
	apiURL     string
	cacheFile  string
	jsonOutput bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "petsafe",
	Short:         "Check whether a food is safe for your dog or cat",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (default from PETSAFE_API_URL)")
	rootCmd.PersistentFlags().StringVar(&cacheFile, "cache-file", "", "resolution cache file (default under the user cache dir)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(checkCmd, seedCmd, cacheCmd, prefsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errorMessage(err))
		os.Exit(1)
	}
}

// errorMessage 分類錯誤顯示使用者訊息，其餘錯誤原樣輸出
func errorMessage(err error) string {
	var ce *common.CustomError
	if errors.As(err, &ce) {
		return common.UserMessage(ce)
	}
	return err.Error()
}

// loadConfig 載入設定並依旗標覆寫
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.Client.BaseURL = apiURL
	}
	if cacheFile != "" {
		cfg.Client.CacheFile = cacheFile
	}
	if verbose {
		if err := common.InitLogger("debug", cfg.LogFile); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openCache 開啟本地快取檔
func openCache(cfg *config.Config) (*cache.Cache, error) {
	path := cfg.Client.CacheFile
	if path == "" {
		p, err := cache.DefaultFilePath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return cache.New(
		cache.WithStore(cache.NewFileStore(path)),
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithMaxSize(cliCacheEntries),
	), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
