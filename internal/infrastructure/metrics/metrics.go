// Package metrics 提供 Prometheus 指標的收集與公開
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pet-food-safety/internal/core/safety"
)

// Collector Prometheus 指標
type Collector struct {
	lookups      *prometheus.CounterVec
	lookupTime   *prometheus.HistogramVec
	cacheResults *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec
}

var _ safety.Recorder = (*Collector)(nil)

// NewCollector 創建 Collector 並註冊到指定的 registry
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petsafe_lookups_total",
			Help: "各資料來源的查詢次數",
		}, []string{"source", "outcome"}),
		lookupTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "petsafe_lookup_duration_seconds",
			Help:    "各資料來源的查詢時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		cacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petsafe_cache_requests_total",
			Help: "判定結果快取的命中與未命中次數",
		}, []string{"result"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petsafe_rate_limited_total",
			Help: "被限流拒絕的請求數",
		}, []string{"action"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petsafe_http_responses_total",
			Help: "HTTP 狀態碼別的回應數",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.lookups,
		c.lookupTime,
		c.cacheResults,
		c.rateLimited,
		c.httpStatus,
	)

	return c
}

// ObserveLookup 實現 safety.Recorder
func (c *Collector) ObserveLookup(source safety.SourceKind, outcome string, d time.Duration) {
	c.lookups.WithLabelValues(string(source), outcome).Inc()
	c.lookupTime.WithLabelValues(string(source)).Observe(d.Seconds())
}

// ObserveCache 實現 safety.Recorder
func (c *Collector) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheResults.WithLabelValues(result).Inc()
}

// RecordRateLimited 記錄被限流的請求
func (c *Collector) RecordRateLimited(action string) {
	c.rateLimited.WithLabelValues(action).Inc()
}

// RecordHTTPStatus 記錄 HTTP 狀態碼
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler Prometheus 抓取用的 HTTP handler
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
