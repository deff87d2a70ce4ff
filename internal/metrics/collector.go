// Package metrics provides internal Prometheus metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds every Prometheus metric the gateway exports: the HTTP
// surface, and the dispatch/selection/probe internals that are specific
// to routing chat completions across providers.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	dispatchRequestsTotal   *prometheus.CounterVec
	dispatchRequestDuration *prometheus.HistogramVec
	dispatchRetriesTotal    *prometheus.CounterVec
	dispatchTokensUsed      *prometheus.CounterVec

	selectionsTotal *prometheus.CounterVec

	providerHealthy *prometheus.GaugeVec
	probeDuration   *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector registers every metric under namespace and returns the
// Collector that records them.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.dispatchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_requests_total",
			Help:      "Total number of chat completion requests dispatched to a provider",
		},
		[]string{"provider", "model", "status"},
	)

	c.dispatchRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_request_duration_seconds",
			Help:      "Upstream provider round-trip duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.dispatchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_retries_total",
			Help:      "Total number of failover retries, labeled by the error kind that triggered them",
		},
		[]string{"route", "reason"},
	)

	c.dispatchTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_tokens_total",
			Help:      "Total tokens reported by providers, as declared, never recomputed",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	c.selectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Total number of Selector picks, by route and chosen provider",
		},
		[]string{"route", "provider"},
	)

	c.providerHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_healthy",
			Help:      "1 if the provider is currently eligible for selection, else 0",
		},
		[]string{"provider"},
	)

	c.probeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Health probe round-trip duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"provider", "status"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records one inbound request at the canonical endpoint.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordDispatch records one provider round trip, successful or not.
func (c *Collector) RecordDispatch(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.dispatchRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.dispatchRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.dispatchTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.dispatchTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// RecordRetry records one failover retry, labeled by the gwerrors.Kind
// string that triggered it.
func (c *Collector) RecordRetry(route, reason string) {
	c.dispatchRetriesTotal.WithLabelValues(route, reason).Inc()
}

// RecordSelection records one Selector pick.
func (c *Collector) RecordSelection(route, provider string) {
	c.selectionsTotal.WithLabelValues(route, provider).Inc()
}

// SetProviderHealthy reflects a provider's current eligibility.
func (c *Collector) SetProviderHealthy(provider string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	c.providerHealthy.WithLabelValues(provider).Set(v)
}

// RecordProbe records one health probe outcome.
func (c *Collector) RecordProbe(provider, status string, duration time.Duration) {
	c.probeDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
}

// statusClass buckets an HTTP status code into its class string.
func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
