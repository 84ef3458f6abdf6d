// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// スキャナ・ダウンロードワーカー・キャッシュビルダーから利用する。
type MetricsCollector interface {
	RecordScannedUsers(source string, count int)
	RecordScannedPosts(source string, count int)
	RecordScannedMedia(source string, count int)
	RecordScanDuration(source string, duration time.Duration)
	RecordJobProcessed()
	RecordJobRejected()
	RecordTriggerActivation(trigger string)
	RecordCacheRebuildDuration(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	scannedUsers  *prometheus.CounterVec
	scannedPosts  *prometheus.CounterVec
	scannedMedia  *prometheus.CounterVec
	scanDuration  *prometheus.HistogramVec
	jobsProcessed prometheus.Counter
	jobsRejected  prometheus.Counter
	triggers      *prometheus.CounterVec
	rebuildTime   prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scannedUsers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mytimeline_scanned_users_total",
			Help: "取り込んだユーザーのソース別合計数",
		}, []string{"source"}),
		scannedPosts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mytimeline_scanned_posts_total",
			Help: "取り込んだ投稿のソース別合計数",
		}, []string{"source"}),
		scannedMedia: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mytimeline_scanned_media_total",
			Help: "取り込んだメディアのソース別合計数",
		}, []string{"source"}),
		scanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mytimeline_scan_duration_seconds",
			Help:    "取り込みパスの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		jobsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mytimeline_jobs_processed_total",
			Help: "処理したダウンロードジョブの合計数",
		}),
		jobsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mytimeline_jobs_rejected_total",
			Help: "拒否したダウンロードジョブの合計数",
		}),
		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mytimeline_trigger_activations_total",
			Help: "ダウンローダ出力トリガーの発火回数",
		}, []string{"trigger"}),
		rebuildTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mytimeline_cache_rebuild_duration_seconds",
			Help:    "タイムラインキャッシュ再構築の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.scannedUsers,
		c.scannedPosts,
		c.scannedMedia,
		c.scanDuration,
		c.jobsProcessed,
		c.jobsRejected,
		c.triggers,
		c.rebuildTime,
	)

	return c
}

// RecordScannedUsers は取り込んだユーザー数を記録する。
func (c *Collector) RecordScannedUsers(source string, count int) {
	c.scannedUsers.WithLabelValues(source).Add(float64(count))
}

// RecordScannedPosts は取り込んだ投稿数を記録する。
func (c *Collector) RecordScannedPosts(source string, count int) {
	c.scannedPosts.WithLabelValues(source).Add(float64(count))
}

// RecordScannedMedia は取り込んだメディア数を記録する。
func (c *Collector) RecordScannedMedia(source string, count int) {
	c.scannedMedia.WithLabelValues(source).Add(float64(count))
}

// RecordScanDuration は取り込みパスの所要時間を記録する。
func (c *Collector) RecordScanDuration(source string, duration time.Duration) {
	c.scanDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordJobProcessed はダウンロードジョブの処理完了を記録する。
func (c *Collector) RecordJobProcessed() {
	c.jobsProcessed.Inc()
}

// RecordJobRejected はダウンロードジョブの拒否を記録する。
func (c *Collector) RecordJobRejected() {
	c.jobsRejected.Inc()
}

// RecordTriggerActivation は出力トリガーの発火を記録する。
func (c *Collector) RecordTriggerActivation(trigger string) {
	c.triggers.WithLabelValues(trigger).Inc()
}

// RecordCacheRebuildDuration はキャッシュ再構築の所要時間を記録する。
func (c *Collector) RecordCacheRebuildDuration(duration time.Duration) {
	c.rebuildTime.Observe(duration.Seconds())
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
