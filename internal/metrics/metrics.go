// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordLinkSuccess(exchange, flow string)
	RecordLinkFailure(exchange, flow, stage string)
	RecordHTTPStatus(statusCode int)
	RecordUpstreamLatency(exchange, operation string, duration time.Duration)
	RecordNotification(outcome string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	linkSuccess     *prometheus.CounterVec
	linkFail        *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	notifications   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		linkSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exlink_link_success_total",
			Help: "取引所連携成功の合計数",
		}, []string{"exchange", "flow"}),
		linkFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exlink_link_fail_total",
			Help: "取引所連携失敗の合計数（失敗段階別）",
		}, []string{"exchange", "flow", "stage"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exlink_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exlink_upstream_latency_seconds",
			Help:    "取引所API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"exchange", "operation"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exlink_notifications_total",
			Help: "連携完了通知の配送結果別の合計数",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.linkSuccess,
		c.linkFail,
		c.httpStatus,
		c.upstreamLatency,
		c.notifications,
	)

	return c
}

// RecordLinkSuccess は連携成功を記録する。
func (c *Collector) RecordLinkSuccess(exchange, flow string) {
	c.linkSuccess.WithLabelValues(exchange, flow).Inc()
}

// RecordLinkFailure は連携失敗を失敗段階とともに記録する。
func (c *Collector) RecordLinkFailure(exchange, flow, stage string) {
	c.linkFail.WithLabelValues(exchange, flow, stage).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency は取引所API呼び出しのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(exchange, operation string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(exchange, operation).Observe(duration.Seconds())
}

// RecordNotification は通知の配送結果を記録する。
func (c *Collector) RecordNotification(outcome string) {
	c.notifications.WithLabelValues(outcome).Inc()
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
