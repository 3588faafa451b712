// Package metrics holds the Prometheus collectors of the tutor service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tutor"

// Metrics is registered on its own registry, so every instance is independent.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	providerRequests *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	safetyBlocks     *prometheus.CounterVec
	tokens           *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		// Labels: route (chi pattern), method, status
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code",
		}, []string{"route", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"route", "method"}),
		// Labels: provider, status (success, error)
		providerRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Model provider calls by outcome",
		}, []string{"provider", "status"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      "Retries against the default provider after a failure",
		}, []string{"from", "to"}),
		// Labels: stage (input, response)
		safetyBlocks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "safety_blocks_total",
			Help:      "Messages rejected by the safety scorer",
		}, []string{"stage"}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens reported by providers",
		}, []string{"provider"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordProviderCall(provider string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.providerRequests.WithLabelValues(provider, status).Inc()
}

func (m *Metrics) RecordFallback(from, to string) {
	m.fallbacks.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordSafetyBlock(stage string) {
	m.safetyBlocks.WithLabelValues(stage).Inc()
}

func (m *Metrics) RecordTokens(provider string, tokens *int) {
	if tokens == nil || *tokens <= 0 {
		return
	}
	m.tokens.WithLabelValues(provider).Add(float64(*tokens))
}

// Middleware counts requests per chi route pattern. Unmatched paths are
// reported as "unmatched" to keep label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
