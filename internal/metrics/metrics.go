// Package metrics exposes Prometheus metrics for the API service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VVITTRC/Textbook-reading-club/internal/util"
)

// Recorder is what the app and server layers report to.
type Recorder interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(method string, d time.Duration)
	RecordNoteCreated(visibility string)
	RecordChatMessage()
	RecordDocumentUploaded(sizeBytes int64)
	RecordLoginFailure()
	RecordRateLimited(route string)
}

// Collector is the Prometheus backed Recorder.
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	notesCreated   *prometheus.CounterVec
	chatMessages   prometheus.Counter
	documents      prometheus.Counter
	documentBytes  prometheus.Counter
	loginFailures  prometheus.Counter
	rateLimited    *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readingclub_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "readingclub_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		notesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readingclub_notes_created_total",
			Help: "Notes created by visibility.",
		}, []string{"visibility"}),
		chatMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "readingclub_chat_messages_total",
			Help: "Chat messages posted.",
		}),
		documents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "readingclub_documents_uploaded_total",
			Help: "Cohort documents uploaded.",
		}),
		documentBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "readingclub_document_bytes_total",
			Help: "Bytes of uploaded cohort documents.",
		}),
		loginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "readingclub_login_failures_total",
			Help: "Rejected login attempts.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readingclub_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.notesCreated,
		c.chatMessages,
		c.documents,
		c.documentBytes,
		c.loginFailures,
		c.rateLimited,
	)
	return c
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func (c *Collector) RecordRequestLatency(method string, d time.Duration) {
	c.requestLatency.WithLabelValues(method).Observe(d.Seconds())
}

func (c *Collector) RecordNoteCreated(visibility string) {
	c.notesCreated.WithLabelValues(visibility).Inc()
}

func (c *Collector) RecordChatMessage() {
	c.chatMessages.Inc()
}

func (c *Collector) RecordDocumentUploaded(sizeBytes int64) {
	c.documents.Inc()
	if sizeBytes > 0 {
		c.documentBytes.Add(float64(sizeBytes))
	}
}

func (c *Collector) RecordLoginFailure() {
	c.loginFailures.Inc()
}

func (c *Collector) RecordRateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordHTTPStatus(int)                        {}
func (Nop) RecordRequestLatency(string, time.Duration) {}
func (Nop) RecordNoteCreated(string)                   {}
func (Nop) RecordChatMessage()                         {}
func (Nop) RecordDocumentUploaded(int64)               {}
func (Nop) RecordLoginFailure()                        {}
func (Nop) RecordRateLimited(string)                   {}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// WithHTTPMetrics records status and latency of every request.
func WithHTTPMetrics(rec Recorder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &util.StatusRecorder{ResponseWriter: w}
		next.ServeHTTP(sr, r)
		rec.RecordHTTPStatus(sr.StatusCode())
		rec.RecordRequestLatency(r.Method, time.Since(start))
	})
}
