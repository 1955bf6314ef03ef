// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook呼び出しの結果ラベル
const (
	OutcomeSuccess       = "success"
	OutcomeRemoteError   = "remote_error"
	OutcomeDeliveryError = "delivery_error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// Webhookディスパッチャ、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordWebhook(kind, outcome string, duration time.Duration)
	RecordMatching(outcome string)
	RecordSaga(flow, outcome string)
	RecordGuardRejection(kind string)
	RecordOrphansCompensated(count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	webhookCalls       *prometheus.CounterVec
	webhookLatency     *prometheus.HistogramVec
	matching           *prometheus.CounterVec
	sagas              *prometheus.CounterVec
	guardRejections    *prometheus.CounterVec
	orphansCompensated prometheus.Counter
	httpStatus         *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		webhookCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentwork_webhook_calls_total",
			Help: "Webhook呼び出しの種別・結果別の合計数",
		}, []string{"kind", "outcome"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mentwork_webhook_latency_seconds",
			Help:    "Webhook呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		matching: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentwork_matching_requests_total",
			Help: "マッチング要求の結果別の合計数",
		}, []string{"outcome"}),
		sagas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentwork_saga_runs_total",
			Help: "接続フローの結果別の合計数",
		}, []string{"flow", "outcome"}),
		guardRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentwork_registration_rejections_total",
			Help: "重複emailで拒否された登録の合計数",
		}, []string{"kind"}),
		orphansCompensated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mentwork_orphan_mentees_compensated_total",
			Help: "クリーンアップで削除された孤児メンティーの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentwork_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.webhookCalls,
		c.webhookLatency,
		c.matching,
		c.sagas,
		c.guardRejections,
		c.orphansCompensated,
		c.httpStatus,
	)

	return c
}

// RecordWebhook はWebhook呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordWebhook(kind, outcome string, duration time.Duration) {
	c.webhookCalls.WithLabelValues(kind, outcome).Inc()
	c.webhookLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordMatching はマッチング要求の結果を記録する。
func (c *Collector) RecordMatching(outcome string) {
	c.matching.WithLabelValues(outcome).Inc()
}

// RecordSaga は接続フローの結果を記録する。
func (c *Collector) RecordSaga(flow, outcome string) {
	c.sagas.WithLabelValues(flow, outcome).Inc()
}

// RecordGuardRejection は重複登録の拒否を記録する。
func (c *Collector) RecordGuardRejection(kind string) {
	c.guardRejections.WithLabelValues(kind).Inc()
}

// RecordOrphansCompensated は削除した孤児メンティー数を記録する。
func (c *Collector) RecordOrphansCompensated(count int) {
	c.orphansCompensated.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordWebhook(string, string, time.Duration) {}
func (Nop) RecordMatching(string)                       {}
func (Nop) RecordSaga(string, string)                   {}
func (Nop) RecordGuardRejection(string)                 {}
func (Nop) RecordOrphansCompensated(int)                {}
func (Nop) RecordHTTPStatus(int)                        {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
