package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeInserted = "inserted"
	OutcomeUpdated  = "updated"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"

	DetailResultFound    = "found"
	DetailResultNotFound = "not_found"
	DetailResultError    = "error"

	RetryReasonHTTPStatus = "http_status"
	RetryReasonTransport  = "transport"

	RunSucceeded = "success"
	RunFailed    = "failure"
)

// PipelineMetrics captures extraction and transformation health signals.
type PipelineMetrics struct {
	pagesFetched    *prometheus.CounterVec
	fetchRetries    *prometheus.CounterVec
	fetchAborts     *prometheus.CounterVec
	recordsTotal    *prometheus.CounterVec
	detailLookups   *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	stageErrors     *prometheus.CounterVec
	runsTotal       *prometheus.CounterVec
	lastRunUnixTime prometheus.Gauge
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
	pipelineMetricsMu   sync.Mutex
)

// Pipeline returns the singleton pipeline metrics registry.
func Pipeline() *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest discards the singleton so tests can install a
// private registry.
func ResetPipelineMetricsForTest() {
	pipelineMetricsMu.Lock()
	defer pipelineMetricsMu.Unlock()
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

func newPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)
	return &PipelineMetrics{
		pagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blingsync_pages_fetched_total",
			Help: "Pages successfully retrieved from the upstream API.",
		}, []string{"collection"}),
		fetchRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blingsync_fetch_retries_total",
			Help: "Per-page fetch retries by failure reason.",
		}, []string{"collection", "reason"}),
		fetchAborts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blingsync_fetch_aborts_total",
			Help: "Extractions aborted after exhausting page retries.",
		}, []string{"collection"}),
		recordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blingsync_records_total",
			Help: "Reconciliation outcomes per collection.",
		}, []string{"collection", "outcome"}),
		detailLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blingsync_detail_lookups_total",
			Help: "Per-record detail lookups by result.",
		}, []string{"collection", "result"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blingsync_stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		stageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blingsync_stage_errors_total",
			Help: "Pipeline stage failures.",
		}, []string{"stage"}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blingsync_runs_total",
			Help: "Completed pipeline runs by result.",
		}, []string{"result"}),
		lastRunUnixTime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "blingsync_last_run_timestamp_seconds",
			Help: "Completion time of the most recent pipeline run.",
		}),
	}
}

func (m *PipelineMetrics) IncPageFetched(collection string) {
	m.pagesFetched.WithLabelValues(collection).Inc()
}

func (m *PipelineMetrics) IncFetchRetry(collection, reason string) {
	m.fetchRetries.WithLabelValues(collection, reason).Inc()
}

func (m *PipelineMetrics) IncFetchAbort(collection string) {
	m.fetchAborts.WithLabelValues(collection).Inc()
}

func (m *PipelineMetrics) AddRecords(collection, outcome string, n int) {
	if n <= 0 {
		return
	}
	m.recordsTotal.WithLabelValues(collection, outcome).Add(float64(n))
}

func (m *PipelineMetrics) IncDetailLookup(collection, result string) {
	m.detailLookups.WithLabelValues(collection, result).Inc()
}

func (m *PipelineMetrics) ObserveStageDuration(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *PipelineMetrics) IncStageError(stage string) {
	m.stageErrors.WithLabelValues(stage).Inc()
}

func (m *PipelineMetrics) IncRun(result string) {
	m.runsTotal.WithLabelValues(result).Inc()
	m.lastRunUnixTime.SetToCurrentTime()
}
