package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's prometheus collectors on a registry of its own,
// so several servers can live in one process (tests) without colliding.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	mcpMessages      *prometheus.CounterVec
	sessionsOpened   *prometheus.CounterVec
	codesIssued      prometheus.Counter
	storeUnavailable prometheus.Counter
}

// NewMetrics builds the collectors. activeSessions is sampled at scrape time.
func NewMetrics(activeSessions func() float64) (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcpgw_http_requests_total",
			Help: "HTTP requests handled, by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mcpgw_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		mcpMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcpgw_mcp_messages_total",
			Help: "JSON-RPC messages dispatched, by outcome",
		}, []string{"outcome"}),
		sessionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcpgw_sessions_opened_total",
			Help: "MCP sessions opened, by how they were resolved",
		}, []string{"resolution"}),
		codesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcpgw_oauth_codes_issued_total",
			Help: "Authorization codes issued after a successful login",
		}),
		storeUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcpgw_store_unavailable_total",
			Help: "Requests answered 503 because the session store was unreachable",
		}),
	}

	toRegister := []prometheus.Collector{
		m.httpRequests,
		m.httpDuration,
		m.mcpMessages,
		m.sessionsOpened,
		m.codesIssued,
		m.storeUnavailable,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	if activeSessions != nil {
		toRegister = append(toRegister, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mcpgw_sessions_active",
			Help: "MCP sessions currently held in the registry",
		}, activeSessions))
	}

	for _, c := range toRegister {
		if err := m.registry.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one handled request. route is the mux pattern, which
// keeps tenant ids out of the label set.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) mcpMessage(outcome string) {
	m.mcpMessages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) sessionOpened(resolution string) {
	m.sessionsOpened.WithLabelValues(resolution).Inc()
}

func (m *Metrics) codeIssued() {
	m.codesIssued.Inc()
}

func (m *Metrics) storeDown() {
	m.storeUnavailable.Inc()
}
