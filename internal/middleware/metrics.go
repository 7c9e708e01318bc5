package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all Prometheus metrics
type PrometheusMetrics struct {
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec
	HttpRequestSize     *prometheus.HistogramVec
	HttpResponseSize    *prometheus.HistogramVec

	// Scan lifecycle metrics
	ScansTotal   *prometheus.CounterVec
	ScanDuration *prometheus.HistogramVec
	ScanBatches  *prometheus.CounterVec
	ScanRows     *prometheus.CounterVec
	ScanErrors   *prometheus.CounterVec
	ActiveScans  prometheus.Gauge
	ForeignCalls *prometheus.CounterVec
}

var (
	metrics *PrometheusMetrics
)

// InitMetrics initializes all Prometheus metrics
func InitMetrics() {
	metrics = &PrometheusMetrics{
		// HTTP request metrics
		HttpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hudi_bridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HttpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hudi_bridge_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		HttpRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hudi_bridge_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "endpoint"},
		),
		HttpResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hudi_bridge_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "endpoint"},
		),

		// Scan lifecycle metrics
		ScansTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hudi_bridge_scans_total",
				Help: "Total number of scan ranges opened",
			},
			[]string{"reader", "status"},
		),
		ScanDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hudi_bridge_scan_duration_seconds",
				Help:    "Scan duration from open to close in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"reader"},
		),
		ScanBatches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hudi_bridge_scan_batches_total",
				Help: "Total number of batches pulled",
			},
			[]string{"reader"},
		),
		ScanRows: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hudi_bridge_scan_rows_total",
				Help: "Total number of rows returned",
			},
			[]string{"reader"},
		),
		ScanErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hudi_bridge_scan_errors_total",
				Help: "Total number of scan failures by lifecycle stage",
			},
			[]string{"reader", "stage"},
		),
		ActiveScans: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hudi_bridge_active_scans",
				Help: "Number of scan sessions currently open",
			},
		),
		ForeignCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hudi_bridge_foreign_calls_total",
				Help: "Total number of calls crossing the runtime boundary",
			},
			[]string{"method", "status"},
		),
	}
}

// GetMetrics returns the initialized metrics
func GetMetrics() *PrometheusMetrics {
	return metrics
}

// PrometheusMiddleware is a Gin middleware that records HTTP metrics
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		// Start timer
		start := time.Now()

		// Process request
		c.Next()

		// Calculate metrics
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		endpoint := c.FullPath()

		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		// Record metrics
		metrics.HttpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
		metrics.HttpRequestDuration.WithLabelValues(method, endpoint).Observe(duration)

		// Record request size if available
		if c.Request.ContentLength > 0 {
			metrics.HttpRequestSize.WithLabelValues(method, endpoint).Observe(float64(c.Request.ContentLength))
		}

		// Record response size if available
		if c.Writer.Size() > 0 {
			metrics.HttpResponseSize.WithLabelValues(method, endpoint).Observe(float64(c.Writer.Size()))
		}
	}
}

// RecordScanOpened records a scan session opening
func RecordScanOpened(reader string) {
	if metrics == nil {
		return
	}
	metrics.ActiveScans.Inc()
	metrics.ScansTotal.WithLabelValues(reader, "opened").Inc()
}

// RecordScanClosed records a scan session closing
func RecordScanClosed(reader, status string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.ActiveScans.Dec()
	metrics.ScansTotal.WithLabelValues(reader, status).Inc()
	metrics.ScanDuration.WithLabelValues(reader).Observe(duration.Seconds())
}

// RecordScanBatch records one pulled batch
func RecordScanBatch(reader string, rows int) {
	if metrics == nil {
		return
	}
	metrics.ScanBatches.WithLabelValues(reader).Inc()
	metrics.ScanRows.WithLabelValues(reader).Add(float64(rows))
}

// RecordScanError records a scan failure at a lifecycle stage
func RecordScanError(reader, stage string) {
	if metrics == nil {
		return
	}
	metrics.ScanErrors.WithLabelValues(reader, stage).Inc()
}

// RecordForeignCall records one call crossing the runtime boundary
func RecordForeignCall(method, status string) {
	if metrics == nil {
		return
	}
	metrics.ForeignCalls.WithLabelValues(method, status).Inc()
}
