package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for the mailer.
type Metrics struct {
	// Send counters
	EmailsSentTotal    *prometheus.CounterVec
	EmailsFailedTotal  *prometheus.CounterVec
	EmailsSkippedTotal prometheus.Counter
	EmailsDryRunTotal  prometheus.Counter

	// Rate limiting
	RateLimitExceededTotal *prometheus.CounterVec

	// Send timing
	SendDurationSeconds prometheus.Histogram

	// Quota gauges, refreshed from the governor
	HourlyRemaining prometheus.Gauge
	DailyRemaining  prometheus.Gauge

	// Bulk operations
	BulkOperationsTotal  *prometheus.CounterVec
	BulkOperationsActive prometheus.Gauge

	// API metrics
	APIRequestsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		EmailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coldmailer_emails_sent_total",
				Help: "Total number of successfully submitted emails",
			},
			[]string{"template"},
		),
		EmailsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coldmailer_emails_failed_total",
				Help: "Total number of failed send attempts",
			},
			[]string{"error_type"},
		),
		EmailsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "coldmailer_emails_skipped_total",
				Help: "Total number of sends skipped by rate limiting",
			},
		),
		EmailsDryRunTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "coldmailer_emails_dry_run_total",
				Help: "Total number of dry-run renders",
			},
		),

		RateLimitExceededTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coldmailer_ratelimit_exceeded_total",
				Help: "Total number of rate limit exceeded events",
			},
			[]string{"level"},
		),

		SendDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coldmailer_send_duration_seconds",
				Help:    "Time spent submitting one email",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),

		HourlyRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "coldmailer_hourly_remaining",
				Help: "Emails remaining in the current hourly window",
			},
		),
		DailyRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "coldmailer_daily_remaining",
				Help: "Emails remaining in the current calendar day",
			},
		),

		BulkOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coldmailer_bulk_operations_total",
				Help: "Total number of bulk send operations",
			},
			[]string{"status"},
		),
		BulkOperationsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "coldmailer_bulk_operations_active",
				Help: "Number of bulk operations currently running",
			},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coldmailer_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.EmailsSentTotal,
		m.EmailsFailedTotal,
		m.EmailsSkippedTotal,
		m.EmailsDryRunTotal,
		m.RateLimitExceededTotal,
		m.SendDurationSeconds,
		m.HourlyRemaining,
		m.DailyRemaining,
		m.BulkOperationsTotal,
		m.BulkOperationsActive,
		m.APIRequestsTotal,
	)

	return m
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance.
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance, or nil when metrics are
// not enabled.
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncEmailsSent increments the sent counter for a template.
func IncEmailsSent(templateName string) {
	if m := Global(); m != nil {
		m.EmailsSentTotal.WithLabelValues(templateName).Inc()
	}
}

// IncEmailsFailed increments the failed counter for an error type.
func IncEmailsFailed(errorType string) {
	if m := Global(); m != nil {
		m.EmailsFailedTotal.WithLabelValues(errorType).Inc()
	}
}

// IncEmailsSkipped increments the rate-limit skip counter.
func IncEmailsSkipped() {
	if m := Global(); m != nil {
		m.EmailsSkippedTotal.Inc()
	}
}

// IncEmailsDryRun increments the dry-run counter.
func IncEmailsDryRun() {
	if m := Global(); m != nil {
		m.EmailsDryRunTotal.Inc()
	}
}

// IncRateLimitExceeded increments the rate limit counter for a level
// (hourly or daily).
func IncRateLimitExceeded(level string) {
	if m := Global(); m != nil {
		m.RateLimitExceededTotal.WithLabelValues(level).Inc()
	}
}

// ObserveSendDuration records one send duration in seconds.
func ObserveSendDuration(seconds float64) {
	if m := Global(); m != nil {
		m.SendDurationSeconds.Observe(seconds)
	}
}

// SetQuotaRemaining updates the hourly and daily quota gauges.
func SetQuotaRemaining(hourly, daily int) {
	if m := Global(); m != nil {
		m.HourlyRemaining.Set(float64(hourly))
		m.DailyRemaining.Set(float64(daily))
	}
}

// IncBulkOperations increments the bulk operation counter for a final
// status (completed or error).
func IncBulkOperations(status string) {
	if m := Global(); m != nil {
		m.BulkOperationsTotal.WithLabelValues(status).Inc()
	}
}

// BulkOperationStarted marks a bulk operation as running.
func BulkOperationStarted() {
	if m := Global(); m != nil {
		m.BulkOperationsActive.Inc()
	}
}

// BulkOperationFinished marks a bulk operation as done.
func BulkOperationFinished() {
	if m := Global(); m != nil {
		m.BulkOperationsActive.Dec()
	}
}

// IncAPIRequests increments the API request counter.
func IncAPIRequests(method, path, status string) {
	if m := Global(); m != nil {
		m.APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	}
}
