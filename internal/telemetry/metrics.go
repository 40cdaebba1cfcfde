package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "decoder_gateway"

// Refresh results recorded by ObserveRefresh.
const (
	RefreshOK     = "ok"
	RefreshFailed = "failed"
)

// Metrics holds the gateway's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	proxyRequests     *prometheus.CounterVec
	upstreamDuration  *prometheus.HistogramVec
	onboardingRefresh *prometheus.CounterVec
}

// NewMetrics registers the gateway collectors on registry. A nil registry
// gets a fresh one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		proxyRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proxy_requests_total",
				Help:      "Proxied requests by route, method and response status.",
			},
			[]string{"route", "method", "status"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_duration_seconds",
				Help:      "Latency of forwarded backend calls.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
			},
			[]string{"route"},
		),
		onboardingRefresh: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "onboarding_refresh_total",
				Help:      "Onboarding status fetches by result.",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(m.proxyRequests, m.upstreamDuration, m.onboardingRefresh)
	return m
}

// ObserveProxy records one proxied request and the status sent to the client.
func (m *Metrics) ObserveProxy(route, method string, status int) {
	if m == nil {
		return
	}
	m.proxyRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

// ObserveUpstream records the latency of one backend call.
func (m *Metrics) ObserveUpstream(route string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveRefresh records an onboarding status fetch result.
func (m *Metrics) ObserveRefresh(result string) {
	if m == nil {
		return
	}
	m.onboardingRefresh.WithLabelValues(result).Inc()
}

// Handler exposes the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
