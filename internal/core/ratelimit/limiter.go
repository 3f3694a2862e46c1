package ratelimit

import (
	"sync"
	"time"
)

// Action 限流的動作類別
type Action string

const (
	ActionSearch    Action = "search"
	ActionAffiliate Action = "affiliate"
	ActionLog       Action = "log"
)

// Rule 固定視窗規則
type Rule struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultRules 預設規則
func DefaultRules() map[Action]Rule {
	return map[Action]Rule{
		ActionSearch:    {MaxRequests: 20, Window: time.Minute},
		ActionAffiliate: {MaxRequests: 10, Window: time.Minute},
		ActionLog:       {MaxRequests: 30, Window: time.Minute},
	}
}

type windowKey struct {
	action  Action
	subject string
}

// windowState 單一視窗的計數
type windowState struct {
	count     int
	resetTime time.Time
}

// Limiter 固定視窗限流器，狀態只存在於目前程序
//
// subject 用於區分呼叫者（伺服器端為客戶端 IP，客戶端為空字串）。
type Limiter struct {
	mu      sync.Mutex
	rules   map[Action]Rule
	windows map[windowKey]*windowState
	now     func() time.Time

	cleanupInterval time.Duration
	stop            chan struct{}
	done            chan struct{}
	closeOnce       sync.Once
}

// Option 設定 Limiter
type Option func(*Limiter)

// WithClock 設定時鐘（測試用）
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithCleanupInterval 定期移除已過期的視窗，0 表示不啟動
func WithCleanupInterval(d time.Duration) Option {
	return func(l *Limiter) { l.cleanupInterval = d }
}

// NewLimiter 創建限流器；rules 為 nil 時使用預設規則
func NewLimiter(rules map[Action]Rule, opts ...Option) *Limiter {
	if rules == nil {
		rules = DefaultRules()
	}
	l := &Limiter{
		rules:   make(map[Action]Rule, len(rules)),
		windows: make(map[windowKey]*windowState),
		now:     time.Now,
	}
	for a, r := range rules {
		l.rules[a] = r
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.cleanupInterval > 0 {
		l.stop = make(chan struct{})
		l.done = make(chan struct{})
		go l.startCleanup(l.cleanupInterval)
	}
	return l
}

// Rule 取得動作的規則
func (l *Limiter) Rule(action Action) (Rule, bool) {
	r, ok := l.rules[action]
	return r, ok
}

// ShouldBlock 記錄一次嘗試，超過上限時回傳 true
//
// 視窗過期後的第一次呼叫重設計數為 1，未設定規則的動作永遠放行。
func (l *Limiter) ShouldBlock(action Action, subject string) bool {
	rule, ok := l.rules[action]
	if !ok || rule.MaxRequests <= 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := windowKey{action, subject}
	st, ok := l.windows[key]
	if !ok || !now.Before(st.resetTime) {
		l.windows[key] = &windowState{count: 1, resetTime: now.Add(rule.Window)}
		return false
	}

	st.count++
	return st.count > rule.MaxRequests
}

// Remaining 目前視窗剩餘的次數
func (l *Limiter) Remaining(action Action, subject string) int {
	rule, ok := l.rules[action]
	if !ok {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.windows[windowKey{action, subject}]
	if !ok || !l.now().Before(st.resetTime) {
		return rule.MaxRequests
	}
	if st.count >= rule.MaxRequests {
		return 0
	}
	return rule.MaxRequests - st.count
}

// ResetIn 距離視窗重設的時間，沒有進行中的視窗時為 0
func (l *Limiter) ResetIn(action Action, subject string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.windows[windowKey{action, subject}]
	if !ok {
		return 0
	}
	if d := st.resetTime.Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

// Reset 清除狀態（測試與除錯用）
func (l *Limiter) Reset(action Action, subject string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, windowKey{action, subject})
}

// Len 目前保存的視窗數量
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Close 停止背景清理
func (l *Limiter) Close() error {
	l.closeOnce.Do(func() {
		if l.stop != nil {
			close(l.stop)
			<-l.done
		}
	})
	return nil
}

func (l *Limiter) startCleanup(interval time.Duration) {
	defer close(l.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.purge()
		case <-l.stop:
			return
		}
	}
}

// purge 移除已過期的視窗
func (l *Limiter) purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for key, st := range l.windows {
		if !now.Before(st.resetTime) {
			delete(l.windows, key)
			n++
		}
	}
	return n
}
