// Package metrics exposes the queue-depth and publish-latency gauges
// spec.md's observability surface calls for, grounded on
// brutus-gr-STRATINT-ai's internal/metrics/metrics.go HTTPCollector —
// same registry-plus-promhttp.HandlerFor shape, same response-writer
// wrapper for capturing a status code, extended here with the
// publish-specific counters/histogram this domain needs beyond plain
// HTTP instrumentation.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// QueueDepthSource is the narrow view onto internal/queue this package
// needs to sample gauges at scrape time, without importing it directly.
type QueueDepthSource interface {
	QueueDepth(ctx context.Context, queueName string) (int64, error)
	DelayedDepth(ctx context.Context, queueName string) (int64, error)
	DLQDepth(ctx context.Context, queueName string) (int64, error)
}

// Collector holds every metric this repo exports.
type Collector struct {
	registry *prometheus.Registry

	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	publishAttemptsTotal *prometheus.CounterVec
	publishDuration      prometheus.Histogram

	queueDepth prometheus.GaugeFunc
}

// New constructs a Collector and registers every metric against a
// fresh registry. queueName identifies the queue instrumented by the
// QueueDepth gauge (this repo only ever runs one: post-publish).
func New(jobs QueueDepthSource, queueName string) (*Collector, error) {
	registry := prometheus.NewRegistry()

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "postqueue",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpRequestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "postqueue",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	publishAttemptsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "postqueue",
		Subsystem: "publisher",
		Name:      "attempts_total",
		Help:      "Total publish attempts by outcome (published, retrying, failed).",
	}, []string{"outcome"})

	publishDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "postqueue",
		Subsystem: "publisher",
		Name:      "duration_seconds",
		Help:      "Latency of one ProcessJob call, from dequeue to ack.",
		Buckets:   prometheus.DefBuckets,
	})

	queueDepth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "postqueue",
		Subsystem: "queue",
		Name:      "ready_depth",
		Help:      "Number of jobs ready for immediate dequeue.",
	}, func() float64 {
		n, err := jobs.QueueDepth(context.Background(), queueName)
		if err != nil {
			return -1
		}
		return float64(n)
	})

	delayedDepth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "postqueue",
		Subsystem: "queue",
		Name:      "delayed_depth",
		Help:      "Number of jobs waiting for their scheduled run time.",
	}, func() float64 {
		n, err := jobs.DelayedDepth(context.Background(), queueName)
		if err != nil {
			return -1
		}
		return float64(n)
	})

	dlqDepth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "postqueue",
		Subsystem: "queue",
		Name:      "dlq_depth",
		Help:      "Number of jobs parked in the dead-letter queue.",
	}, func() float64 {
		n, err := jobs.DLQDepth(context.Background(), queueName)
		if err != nil {
			return -1
		}
		return float64(n)
	})

	for _, c := range []prometheus.Collector{
		httpRequestDuration, httpRequestsTotal,
		publishAttemptsTotal, publishDuration,
		queueDepth, delayedDepth, dlqDepth,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:             registry,
		httpRequestDuration:  httpRequestDuration,
		httpRequestsTotal:    httpRequestsTotal,
		publishAttemptsTotal: publishAttemptsTotal,
		publishDuration:      publishDuration,
		queueDepth:           queueDepth,
	}, nil
}

// Handler serves the registered metrics in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHTTP wraps next, recording request count and latency.
func (c *Collector) InstrumentHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)

		c.httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		c.httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
	})
}

// ObservePublish records one ProcessJob call's outcome and latency.
// Call from internal/scheduler.Publisher after each job finishes.
func (c *Collector) ObservePublish(outcome string, duration time.Duration) {
	c.publishAttemptsTotal.WithLabelValues(outcome).Inc()
	c.publishDuration.Observe(duration.Seconds())
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
