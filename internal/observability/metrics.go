package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	batchesCreatedTotal prometheus.Counter
	emailsSentTotal     *prometheus.CounterVec
	emailsFailedTotal   *prometheus.CounterVec
	emailSendDuration   *prometheus.HistogramVec
	workerInflight      *prometheus.GaugeVec
	retryScheduledTotal *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mailblast",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mailblast",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		batchesCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "mailblast",
				Name:      "batches_created_total",
				Help:      "Total number of batches accepted for dispatch.",
			},
		),
		emailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mailblast",
				Name:      "emails_sent_total",
				Help:      "Total number of emails delivered successfully.",
			},
			[]string{"transport"},
		),
		emailsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mailblast",
				Name:      "emails_failed_total",
				Help:      "Total number of delivery records that ended in failed state.",
			},
			[]string{"transport", "reason"},
		),
		emailSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mailblast",
				Name:      "email_send_duration_seconds",
				Help:      "Mail transport send duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"transport"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "mailblast",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight delivery sends.",
			},
			[]string{"transport"},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mailblast",
				Name:      "retry_scheduled_total",
				Help:      "Total number of deliveries scheduled for retry.",
			},
			[]string{"transport"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.batchesCreatedTotal,
		m.emailsSentTotal,
		m.emailsFailedTotal,
		m.emailSendDuration,
		m.workerInflight,
		m.retryScheduledTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncBatchCreated() {
	if m == nil {
		return
	}
	m.batchesCreatedTotal.Inc()
}

func (m *Metrics) IncEmailSent(transport string) {
	if m == nil {
		return
	}
	m.emailsSentTotal.WithLabelValues(normalizeTransport(transport)).Inc()
}

func (m *Metrics) IncEmailFailed(transport string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.emailsFailedTotal.WithLabelValues(normalizeTransport(transport), reasonLabel).Inc()
}

func (m *Metrics) ObserveEmailSendDuration(transport string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.emailSendDuration.WithLabelValues(normalizeTransport(transport)).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight(transport string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeTransport(transport)).Inc()
}

func (m *Metrics) DecWorkerInFlight(transport string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeTransport(transport)).Dec()
}

func (m *Metrics) IncRetryScheduled(transport string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeTransport(transport)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeTransport(transport string) string {
	normalized := strings.ToLower(strings.TrimSpace(transport))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
