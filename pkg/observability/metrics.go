package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Webhook metrics
	WebhookDeliveriesTotal *prometheus.CounterVec
	WebhookReplaysTotal    prometheus.Counter

	// Sync metrics
	SyncJobsTotal     *prometheus.CounterVec
	GroupChangesTotal *prometheus.CounterVec
	QueuePendingJobs  prometheus.Gauge

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dog_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dog_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		WebhookDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dog_webhook_deliveries_total",
				Help: "Total number of inbound webhook deliveries by outcome",
			},
			[]string{"hook", "outcome"},
		),
		WebhookReplaysTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dog_webhook_replays_total",
				Help: "Total number of webhook deliveries rejected as replays",
			},
		),
		SyncJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dog_sync_jobs_total",
				Help: "Total number of queued member sync jobs by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		GroupChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dog_group_changes_total",
				Help: "Total number of forum group membership changes by type and outcome",
			},
			[]string{"change", "outcome"},
		),
		QueuePendingJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dog_queue_pending_jobs",
				Help: "Number of jobs currently pending in the action queue",
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dog_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dog_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.WebhookDeliveriesTotal,
		m.WebhookReplaysTotal,
		m.SyncJobsTotal,
		m.GroupChangesTotal,
		m.QueuePendingJobs,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
