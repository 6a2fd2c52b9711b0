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
// サービス層、アップロードブローカー、掃除ワーカーから利用する。
type MetricsCollector interface {
	RecordUploadCommitted()
	RecordUploadFailed(reason string)
	RecordBlobCleanupFailure()
	RecordTxFailure(operation string)
	RecordGeocodeFailure()
	RecordOrphanSwept()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	uploadCommitted prometheus.Counter
	uploadFailed    *prometheus.CounterVec
	cleanupFail     prometheus.Counter
	txFail          *prometheus.CounterVec
	geocodeFail     prometheus.Counter
	orphansSwept    prometheus.Counter
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		uploadCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "placeman_upload_committed_total",
			Help: "リモートストアへの画像アップロード成功の合計数",
		}),
		uploadFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placeman_upload_failed_total",
			Help: "画像アップロード失敗の理由別合計数",
		}, []string{"reason"}),
		cleanupFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "placeman_blob_cleanup_fail_total",
			Help: "リモートBlob削除失敗の合計数",
		}),
		txFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placeman_tx_fail_total",
			Help: "データストアトランザクション失敗の操作別合計数",
		}, []string{"operation"}),
		geocodeFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "placeman_geocode_fail_total",
			Help: "ジオコーディング失敗の合計数",
		}),
		orphansSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "placeman_orphans_swept_total",
			Help: "掃除ワーカーが削除した孤児Blobの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placeman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "placeman_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.uploadCommitted,
		c.uploadFailed,
		c.cleanupFail,
		c.txFail,
		c.geocodeFail,
		c.orphansSwept,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordUploadCommitted はアップロード成功を記録する。
func (c *Collector) RecordUploadCommitted() {
	c.uploadCommitted.Inc()
}

// RecordUploadFailed はアップロード失敗を理由付きで記録する。
func (c *Collector) RecordUploadFailed(reason string) {
	c.uploadFailed.WithLabelValues(reason).Inc()
}

// RecordBlobCleanupFailure はリモートBlob削除失敗を記録する。
func (c *Collector) RecordBlobCleanupFailure() {
	c.cleanupFail.Inc()
}

// RecordTxFailure はトランザクション失敗を操作名付きで記録する。
func (c *Collector) RecordTxFailure(operation string) {
	c.txFail.WithLabelValues(operation).Inc()
}

// RecordGeocodeFailure はジオコーディング失敗を記録する。
func (c *Collector) RecordGeocodeFailure() {
	c.geocodeFail.Inc()
}

// RecordOrphanSwept は孤児Blobの削除を記録する。
func (c *Collector) RecordOrphanSwept() {
	c.orphansSwept.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
