// Package metrics exposes client-side Prometheus counters for API calls,
// the query cache and the pipeline WebSocket.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "novapress"

// Collector holds all Prometheus metrics for the client.
type Collector struct {
	registry *prometheus.Registry

	APIRequests  *prometheus.CounterVec
	APIDuration  *prometheus.HistogramVec
	CacheEvents  *prometheus.CounterVec
	WSReconnects prometheus.Counter
	WSMessages   *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry, so tests can build
// as many as they like without duplicate registration.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		APIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by operation and HTTP status (0 = no response).",
			},
			[]string{"operation", "status"},
		),
		APIDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		CacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_events_total",
				Help:      "Query cache events (hit, miss, retry, evict, error).",
			},
			[]string{"event"},
		),
		WSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_reconnects_total",
				Help:      "Pipeline WebSocket reconnect attempts.",
			},
		),
		WSMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_total",
				Help:      "Pipeline WebSocket messages received by type.",
			},
			[]string{"type"},
		),
	}

	registry.MustRegister(
		c.APIRequests,
		c.APIDuration,
		c.CacheEvents,
		c.WSReconnects,
		c.WSMessages,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRequest implements api.RequestObserver.
func (c *Collector) ObserveRequest(operation string, status int, elapsed time.Duration) {
	c.APIRequests.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	c.APIDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// CacheEvent implements querycache.Observer.
func (c *Collector) CacheEvent(event string) {
	c.CacheEvents.WithLabelValues(event).Inc()
}

// Reconnect implements pipeline.Observer.
func (c *Collector) Reconnect() { c.WSReconnects.Inc() }

// Message implements pipeline.Observer.
func (c *Collector) Message(msgType string) {
	c.WSMessages.WithLabelValues(msgType).Inc()
}
