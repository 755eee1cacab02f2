// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusMetricsCollector はメトリクス収集のインターフェース。
// プレゼンスサービスとリフレッシュワーカーから利用する。
type StatusMetricsCollector interface {
	RecordResolutionSuccess(method string)
	RecordResolutionFailure()
	RecordResolutionLatency(duration time.Duration)
	RecordUpstreamStatus(statusCode int)
	RecordCacheHit()
	RecordCacheMiss()
	RecordRefreshCycle(accounts int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	resolutionSuccess *prometheus.CounterVec
	resolutionFail    prometheus.Counter
	resolutionLatency prometheus.Histogram
	upstreamStatus    *prometheus.CounterVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	refreshCycles     prometheus.Counter
	refreshAccounts   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		resolutionSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presenceman_resolution_success_total",
			Help: "プレゼンス解決成功の上流メソッド別合計数",
		}, []string{"method"}),
		resolutionFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presenceman_resolution_fail_total",
			Help: "全上流候補が尽きたプレゼンス解決失敗の合計数",
		}),
		resolutionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "presenceman_resolution_latency_seconds",
			Help:    "プレゼンス解決のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presenceman_upstream_status_total",
			Help: "上流HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presenceman_cache_hits_total",
			Help: "ステータスキャッシュヒットの合計数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presenceman_cache_misses_total",
			Help: "ステータスキャッシュミスの合計数",
		}),
		refreshCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presenceman_refresh_cycles_total",
			Help: "リフレッシュワーカーの実行サイクル合計数",
		}),
		refreshAccounts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presenceman_refresh_accounts_total",
			Help: "リフレッシュワーカーが処理したアカウントの合計数",
		}),
	}

	reg.MustRegister(
		c.resolutionSuccess,
		c.resolutionFail,
		c.resolutionLatency,
		c.upstreamStatus,
		c.cacheHits,
		c.cacheMisses,
		c.refreshCycles,
		c.refreshAccounts,
	)

	return c
}

// RecordResolutionSuccess はプレゼンス解決成功を上流メソッド別に記録する。
func (c *Collector) RecordResolutionSuccess(method string) {
	c.resolutionSuccess.WithLabelValues(method).Inc()
}

// RecordResolutionFailure はプレゼンス解決失敗を記録する。
func (c *Collector) RecordResolutionFailure() {
	c.resolutionFail.Inc()
}

// RecordResolutionLatency はプレゼンス解決のレイテンシを記録する。
func (c *Collector) RecordResolutionLatency(duration time.Duration) {
	c.resolutionLatency.Observe(duration.Seconds())
}

// RecordUpstreamStatus は上流HTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordRefreshCycle はリフレッシュサイクルの実行と処理アカウント数を記録する。
func (c *Collector) RecordRefreshCycle(accounts int) {
	c.refreshCycles.Inc()
	c.refreshAccounts.Add(float64(accounts))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// NopCollector は何も記録しないStatusMetricsCollector実装。テスト用。
type NopCollector struct{}

func (NopCollector) RecordResolutionSuccess(method string)          {}
func (NopCollector) RecordResolutionFailure()                       {}
func (NopCollector) RecordResolutionLatency(duration time.Duration) {}
func (NopCollector) RecordUpstreamStatus(statusCode int)            {}
func (NopCollector) RecordCacheHit()                                {}
func (NopCollector) RecordCacheMiss()                               {}
func (NopCollector) RecordRefreshCycle(accounts int)                {}
