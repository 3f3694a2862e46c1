package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"pet-food-safety/internal/core/normalize"
	"pet-food-safety/internal/core/safety"
	"pet-food-safety/internal/pkg/common"
)

// DefaultTTL 判定結果的存活時間
const DefaultTTL = 7 * 24 * time.Hour

// storeTimeout 單次讀寫持久化儲存的超時
const storeTimeout = 3 * time.Second

// DefaultMaxSize 預設最大條目數
const DefaultMaxSize = 10000

// Entry 快取條目，Timestamp 為 Unix 毫秒
type Entry struct {
	Data      safety.Verdict `json:"data"`
	Timestamp int64          `json:"timestamp"`

	// lastAccess 不持久化，載入時以 Timestamp 初始化
	lastAccess int64
}

// Preferences 使用者偏好
type Preferences struct {
	PetType  safety.PetType `json:"petType,omitempty"`
	LastFood string         `json:"lastFood,omitempty"`
}

// blob 持久化的 JSON 文件
type blob struct {
	Cache       map[string]Entry `json:"cache"`
	Preferences Preferences      `json:"preferences"`
}

// Stats 快取統計
type Stats struct {
	Size       int   `json:"size"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	MaxSize    int   `json:"maxSize"`
	Persistent bool  `json:"persistent"`
}

// snapshot 待寫入儲存的內容，seq 遞增
type snapshot struct {
	seq   uint64
	data  []byte
	store Store
}

// Cache 以 (食物, 寵物種類) 為鍵的 TTL 快取
//
// 所有方法都不回傳錯誤；持久化失敗時改為僅在記憶體中運作。
// 超過 maxSize 時先清理過期條目，再淘汰最久未存取的條目。
// 寫入儲存在 mu 之外進行，由 saveMu 串行化。
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	prefs   Preferences
	store   Store
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	stats   Stats
	seq     uint64

	saveMu   sync.Mutex
	savedSeq uint64

	cleanupInterval time.Duration
	stop            chan struct{}
	done            chan struct{}
	closeOnce       sync.Once
}

// Option 設定 Cache
type Option func(*Cache)

// WithStore 設定持久化儲存
func WithStore(s Store) Option {
	return func(c *Cache) { c.store = s }
}

// WithTTL 設定存活時間
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMaxSize 設定最大條目數，0 表示不限制
func WithMaxSize(n int) Option {
	return func(c *Cache) {
		if n >= 0 {
			c.maxSize = n
		}
	}
}

// WithClock 設定時鐘（測試用）
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithCleanupInterval 啟動背景清理，0 表示不啟動
func WithCleanupInterval(d time.Duration) Option {
	return func(c *Cache) { c.cleanupInterval = d }
}

// Key 快取鍵：正規化食物名稱 + ":" + 寵物種類
func Key(food string, pet safety.PetType) string {
	return normalize.Key(food) + ":" + string(pet)
}

// LocalizedKey 伺服器端使用，避免不同語言的 AI 回答互相覆蓋
func LocalizedKey(food string, pet safety.PetType, lang string) string {
	return Key(food, pet) + ":" + normalize.NormalizeLanguage(lang)
}

// New 創建快取並從儲存載入既有資料
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]Entry),
		ttl:     DefaultTTL,
		maxSize: DefaultMaxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.load()

	if c.cleanupInterval > 0 {
		c.stop = make(chan struct{})
		c.done = make(chan struct{})
		go c.startCleanup()
	}

	common.LogDebug("快取已初始化",
		zap.Int("條目數", len(c.entries)),
		zap.Duration("存活時間", c.ttl),
		zap.Int("最大容量", c.maxSize),
		zap.Bool("持久化", c.store != nil),
	)
	return c
}

// GetKey 取得判定結果，未命中或過期時回傳 false；鍵由 Key 或 LocalizedKey 組成
func (c *Cache) GetKey(key string) (safety.Verdict, bool) {
	c.mu.Lock()

	entry, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		c.mu.Unlock()
		common.LogCacheMiss("resolution", key)
		return safety.Verdict{}, false
	}

	now := c.now()
	if c.expired(entry, now) {
		delete(c.entries, key)
		c.stats.Evictions++
		c.stats.Misses++
		snap := c.snapshotLocked()
		c.mu.Unlock()

		common.LogDebug("快取已過期", zap.String("鍵", key))
		c.save(snap)
		return safety.Verdict{}, false
	}

	entry.lastAccess = now.UnixMilli()
	c.entries[key] = entry
	c.stats.Hits++
	c.mu.Unlock()

	common.LogCacheHit("resolution", key)
	return entry.Data, true
}

// SetKey 寫入判定結果並持久化
func (c *Cache) SetKey(key string, v safety.Verdict) {
	c.mu.Lock()
	now := c.now()
	ts := now.UnixMilli()
	c.entries[key] = Entry{Data: v, Timestamp: ts, lastAccess: ts}
	evicted := c.enforceMaxSizeLocked(now, key)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if evicted > 0 {
		common.LogDebug("快取已滿，淘汰最久未使用條目", zap.Int("count", evicted))
	}
	c.save(snap)
}

// Delete 移除單一條目
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	if _, ok := c.entries[key]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.entries, key)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.save(snap)
}

// Clear 清空所有條目（保留偏好設定）
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.save(snap)
}

// Preferences 取得使用者偏好
func (c *Cache) Preferences() Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefs
}

// SetPreferences 更新使用者偏好並持久化
func (c *Cache) SetPreferences(p Preferences) {
	c.mu.Lock()
	c.prefs = p
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.save(snap)
}

// Purge 清除所有過期條目，回傳清除數量
func (c *Cache) Purge() int {
	c.mu.Lock()
	n := c.purgeLocked(c.now())
	var snap *snapshot
	if n > 0 {
		snap = c.snapshotLocked()
	}
	c.mu.Unlock()

	c.save(snap)
	return n
}

// Stats 取得快取統計
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = len(c.entries)
	s.MaxSize = c.maxSize
	s.Persistent = c.store != nil
	return s
}

// Close 停止背景清理
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		if c.stop != nil {
			close(c.stop)
			<-c.done
		}
		s := c.Stats()
		common.LogDebug("快取已關閉",
			zap.Int64("命中次數", s.Hits),
			zap.Int64("未命中次數", s.Misses),
			zap.Int64("淘汰次數", s.Evictions),
		)
	})
	return nil
}

// expired 剛好等於 TTL 時仍有效
func (c *Cache) expired(e Entry, now time.Time) bool {
	return now.UnixMilli()-e.Timestamp > c.ttl.Milliseconds()
}

func (c *Cache) purgeLocked(now time.Time) int {
	n := 0
	for key, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, key)
			n++
		}
	}
	c.stats.Evictions += int64(n)
	return n
}

// enforceMaxSizeLocked 超過容量時淘汰條目，keep 不會被淘汰
func (c *Cache) enforceMaxSizeLocked(now time.Time, keep string) int {
	if c.maxSize <= 0 || len(c.entries) <= c.maxSize {
		return 0
	}

	n := c.purgeLocked(now)
	for len(c.entries) > c.maxSize {
		oldest := ""
		var oldestAccess int64
		for key, e := range c.entries {
			if key == keep {
				continue
			}
			if oldest == "" || e.lastAccess < oldestAccess {
				oldest, oldestAccess = key, e.lastAccess
			}
		}
		if oldest == "" {
			break
		}
		delete(c.entries, oldest)
		c.stats.Evictions++
		n++
	}
	return n
}

// startCleanup 定期清理過期條目
func (c *Cache) startCleanup() {
	defer close(c.done)

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.Purge(); n > 0 {
				common.LogDebug("已清理過期快取", zap.Int("count", n))
			}
		case <-c.stop:
			return
		}
	}
}

// load 從儲存載入；不存在或損毀時視為空
func (c *Cache) load() {
	if c.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	data, err := c.store.Load(ctx)
	if err != nil {
		common.LogWarn("讀取快取失敗，改為僅使用記憶體", zap.Error(err))
		c.store = nil
		return
	}
	if len(data) == 0 {
		return
	}

	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		common.LogWarn("快取內容損毀，視為空快取", zap.Error(err))
		return
	}

	for key, e := range b.Cache {
		e.lastAccess = e.Timestamp
		c.entries[key] = e
	}
	c.prefs = b.Preferences
	now := c.now()
	c.purgeLocked(now)
	c.enforceMaxSizeLocked(now, "")
}

// snapshotLocked 序列化目前內容，無儲存時回傳 nil
func (c *Cache) snapshotLocked() *snapshot {
	if c.store == nil {
		return nil
	}

	data, err := json.Marshal(blob{Cache: c.entries, Preferences: c.prefs})
	if err != nil {
		common.LogWarn("序列化快取失敗", zap.Error(err))
		return nil
	}

	c.seq++
	return &snapshot{seq: c.seq, data: data, store: c.store}
}

// save 寫入儲存；較舊的快照會被略過，失敗後不再嘗試
func (c *Cache) save(s *snapshot) {
	if s == nil {
		return
	}

	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	if s.seq <= c.savedSeq {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := s.store.Save(ctx, s.data); err != nil {
		common.LogWarn("寫入快取失敗，改為僅使用記憶體", zap.Error(err))
		c.mu.Lock()
		c.store = nil
		c.mu.Unlock()
		return
	}
	c.savedSeq = s.seq
}
