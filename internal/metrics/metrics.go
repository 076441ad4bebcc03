// Package metrics exposes feed and HTTP counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so that several instances (one per test) never
// collide on registration. All methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	feedRefreshes   *prometheus.CounterVec
	feedEvents      prometheus.Gauge
	feedWarnings    prometheus.Gauge
	feedLastSuccess prometheus.Gauge
	feedDuration    prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		feedRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "syllabuscal_feed_refreshes_total",
			Help: "Feed rebuilds by result (ok, error).",
		}, []string{"result"}),
		feedEvents: f.NewGauge(prometheus.GaugeOpts{
			Name: "syllabuscal_feed_events",
			Help: "Events in the current feed snapshot, series counted once.",
		}),
		feedWarnings: f.NewGauge(prometheus.GaugeOpts{
			Name: "syllabuscal_feed_warnings",
			Help: "Warnings attached to the current feed snapshot.",
		}),
		feedLastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "syllabuscal_feed_last_success_timestamp_seconds",
			Help: "Unix time of the last successful feed rebuild.",
		}),
		feedDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "syllabuscal_feed_refresh_duration_seconds",
			Help:    "Wall time of a feed rebuild, fetch included.",
			Buckets: prometheus.DefBuckets,
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "syllabuscal_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "syllabuscal_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRefresh records one feed rebuild. events and warnings are only
// recorded on success.
func (m *Metrics) ObserveRefresh(took time.Duration, events, warnings int, at time.Time, err error) {
	if m == nil {
		return
	}
	m.feedDuration.Observe(took.Seconds())
	if err != nil {
		m.feedRefreshes.WithLabelValues("error").Inc()
		return
	}
	m.feedRefreshes.WithLabelValues("ok").Inc()
	m.feedEvents.Set(float64(events))
	m.feedWarnings.Set(float64(warnings))
	m.feedLastSuccess.Set(float64(at.Unix()))
}

// ObserveRequest records one served HTTP request. route should be the
// router pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(took.Seconds())
}
