// Package metrics defines the Prometheus collectors for the service and
// exposes an HTTP handler for scraping.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	AsksTotal            *prometheus.CounterVec
	SupersededTotal      prometheus.Counter
	PipelineDuration     *prometheus.HistogramVec
	SearchesTotal        *prometheus.CounterVec
	SearchLatency        prometheus.Histogram
	CredentialRefreshes  *prometheus.CounterVec
	CredentialAge        prometheus.Gauge
	IndexDocuments       prometheus.Gauge
	IndexBuildDuration   *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the global registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "productassist_http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "productassist_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "productassist_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		AsksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "productassist_asks_total",
				Help: "Questions submitted by outcome (answered, cancelled, credentials, error).",
			},
			[]string{"outcome"},
		),
		SupersededTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "productassist_superseded_total",
				Help: "In-flight answers cancelled because a newer question arrived for the same session.",
			},
		),
		PipelineDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "productassist_pipeline_stage_seconds",
				Help:    "Answer pipeline stage latency in seconds.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "productassist_searches_total",
				Help: "Catalog searches by path taken (exact, ann, error).",
			},
			[]string{"path"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "productassist_search_latency_seconds",
				Help:    "Catalog search latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		CredentialRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "productassist_credential_refreshes_total",
				Help: "Credential refresh attempts by status.",
			},
			[]string{"status"},
		),
		CredentialAge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "productassist_credential_last_refresh_timestamp_seconds",
				Help: "Unix time of the last successful credential refresh.",
			},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "productassist_index_documents",
				Help: "Number of catalog documents in the search index.",
			},
		),
		IndexBuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "productassist_index_build_seconds",
				Help:    "Time to make the index ready, by source (loaded, built).",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"source"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.AsksTotal,
		m.SupersededTotal,
		m.PipelineDuration,
		m.SearchesTotal,
		m.SearchLatency,
		m.CredentialRefreshes,
		m.CredentialAge,
		m.IndexDocuments,
		m.IndexBuildDuration,
	)
	return m
}

// Handler returns the scrape handler for the registry m was built with.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveAsk counts a finished question by outcome.
func (m *Metrics) ObserveAsk(outcome string) {
	if m == nil {
		return
	}
	m.AsksTotal.WithLabelValues(outcome).Inc()
}

// ObserveSuperseded counts one cancelled in-flight answer.
func (m *Metrics) ObserveSuperseded() {
	if m == nil {
		return
	}
	m.SupersededTotal.Inc()
}

// ObserveStage records the latency of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.PipelineDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveSearch counts a search by path and records its latency.
func (m *Metrics) ObserveSearch(path string, d time.Duration) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(path).Inc()
	m.SearchLatency.Observe(d.Seconds())
}

// ObserveRefresh counts a credential refresh attempt.
func (m *Metrics) ObserveRefresh(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.CredentialRefreshes.WithLabelValues("error").Inc()
		return
	}
	m.CredentialRefreshes.WithLabelValues("ok").Inc()
	m.CredentialAge.SetToCurrentTime()
}

// ObserveIndex records the document count and how the index became ready.
func (m *Metrics) ObserveIndex(source string, docs int, d time.Duration) {
	if m == nil {
		return
	}
	m.IndexDocuments.Set(float64(docs))
	m.IndexBuildDuration.WithLabelValues(source).Observe(d.Seconds())
}

// Middleware records request count, latency, and the in-flight gauge.
// route labels requests so that path parameters do not explode label
// cardinality; nil uses the raw path.
func (m *Metrics) Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			path := r.URL.Path
			if route != nil {
				if p := route(r); p != "" {
					path = p
				}
			}
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// Hijack is needed by the websocket upgrader.
func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	sw.status = http.StatusSwitchingProtocols
	sw.wroteHeader = true
	return h.Hijack()
}
