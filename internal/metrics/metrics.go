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
// サービス層とバッチジョブから利用する。
type MetricsCollector interface {
	RecordClusteringRun(groupCount int)
	RecordAdvisoryFetch(success bool)
	RecordReportGenerated()
	RecordEventsFused(eventCount int)
	RecordEmailIngested(inserted, updated int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	clusteringRuns  prometheus.Counter
	duplicateGroups prometheus.Counter
	advisoryFetch   *prometheus.CounterVec
	reportsTotal    prometheus.Counter
	eventsFused     prometheus.Counter
	entriesInserted prometheus.Counter
	entriesUpdated  prometheus.Counter
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		clusteringRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "travelcheck_clustering_runs_total",
			Help: "重複クラスタリング実行の合計数",
		}),
		duplicateGroups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "travelcheck_duplicate_groups_total",
			Help: "検出された重複グループの合計数",
		}),
		advisoryFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelcheck_advisory_fetch_total",
			Help: "渡航情報フィード取得の結果別合計数",
		}, []string{"result"}),
		reportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "travelcheck_reports_generated_total",
			Help: "生成された滞在日数レポートの合計数",
		}),
		eventsFused: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "travelcheck_events_fused_total",
			Help: "統合タイムラインに取り込まれたイベントの合計数",
		}),
		entriesInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "travelcheck_entries_inserted_total",
			Help: "メール取り込みで新規作成された渡航記録の合計数",
		}),
		entriesUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "travelcheck_entries_updated_total",
			Help: "メール取り込みで更新された渡航記録の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelcheck_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "travelcheck_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.clusteringRuns,
		c.duplicateGroups,
		c.advisoryFetch,
		c.reportsTotal,
		c.eventsFused,
		c.entriesInserted,
		c.entriesUpdated,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordClusteringRun はクラスタリング実行と検出グループ数を記録する。
func (c *Collector) RecordClusteringRun(groupCount int) {
	c.clusteringRuns.Inc()
	c.duplicateGroups.Add(float64(groupCount))
}

// RecordAdvisoryFetch は渡航情報フィード取得の成否を記録する。
func (c *Collector) RecordAdvisoryFetch(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.advisoryFetch.WithLabelValues(result).Inc()
}

// RecordReportGenerated は滞在日数レポートの生成を記録する。
func (c *Collector) RecordReportGenerated() {
	c.reportsTotal.Inc()
}

// RecordEventsFused は統合タイムラインに取り込まれたイベント数を記録する。
func (c *Collector) RecordEventsFused(eventCount int) {
	c.eventsFused.Add(float64(eventCount))
}

// RecordEmailIngested はメール取り込みの新規・更新件数を記録する。
func (c *Collector) RecordEmailIngested(inserted, updated int) {
	c.entriesInserted.Add(float64(inserted))
	c.entriesUpdated.Add(float64(updated))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
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
