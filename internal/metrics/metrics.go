// Package metrics holds the prometheus collectors of the web server.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatched routes share one label value
const unmatchedPath = "unmatched"

// Metrics is a set of collectors on its own registry
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPLatency     *prometheus.HistogramVec
	LoginAttempts   *prometheus.CounterVec
	CSRFRejections  prometheus.Counter
	MemosCreated    prometheus.Counter
	SessionsCleaned prometheus.Counter
}

// New creates and registers all collectors, plus the Go and process collectors
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "HTTP requests by path, method and status"},
			[]string{"path", "method", "status"},
		),
		HTTPLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request latency in seconds", Buckets: prometheus.DefBuckets},
			[]string{"path", "method"},
		),
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "goatweb_login_attempts_total", Help: "Login attempts by result"},
			[]string{"result"},
		),
		CSRFRejections:  prometheus.NewCounter(prometheus.CounterOpts{Name: "goatweb_csrf_rejections_total", Help: "Requests rejected for a missing or invalid CSRF token"}),
		MemosCreated:    prometheus.NewCounter(prometheus.CounterOpts{Name: "goatweb_memos_created_total", Help: "Memos created"}),
		SessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{Name: "goatweb_sessions_cleaned_total", Help: "Expired sessions removed"}),
	}
	m.Registry.MustRegister(
		m.HTTPRequests, m.HTTPLatency, m.LoginAttempts,
		m.CSRFRejections, m.MemosCreated, m.SessionsCleaned,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns middleware recording request count and latency
func (m *Metrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		dur := time.Since(start).Seconds()
		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		m.HTTPLatency.WithLabelValues(path, c.Request.Method).Observe(dur)
		m.HTTPRequests.WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Exposer returns the prometheus scrape handler for this registry
func (m *Metrics) Exposer() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}
