// Package metrics instruments the runtime with Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricsNamespace          = "botway"
	MetricsSubsystemHTTP      = "http"
	MetricsSubsystemActivity  = "activity"
	MetricsSubsystemConnector = "connector"
)

// Metrics used to instrument the gateway and protocol clients.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestTime *prometheus.HistogramVec

	activitiesTotal *prometheus.CounterVec

	connectorCallTime *prometheus.HistogramVec
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
		Namespace: MetricsNamespace,
	}))
	m.registry.MustRegister(collectors.NewGoCollector())

	m.httpRequestTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystemHTTP,
			Name:      "request_seconds",
			Help:      "Time to serve an HTTP request.",
		},
		[]string{"route", "method", "status_code"},
	)
	m.registry.MustRegister(m.httpRequestTime)

	m.activitiesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemActivity,
		Name:      "dispatched_total",
		Help:      "The total number of dispatched activities.",
	}, []string{"type", "outcome"})
	m.registry.MustRegister(m.activitiesTotal)

	m.connectorCallTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystemConnector,
			Name:      "call_seconds",
			Help:      "Time spent on outbound protocol service calls.",
		},
		[]string{"operation", "status_code"},
	)
	m.registry.MustRegister(m.connectorCallTime)

	return m
}

// ObserveHTTPRequest records one served HTTP request.
func (m *Metrics) ObserveHTTPRequest(route, method string, statusCode int, elapsed time.Duration) {
	m.httpRequestTime.With(prometheus.Labels{
		"route":       route,
		"method":      method,
		"status_code": strconv.Itoa(statusCode),
	}).Observe(elapsed.Seconds())
}

// ObserveActivity records the outcome of one dispatched activity. It
// has the shape dispatch.WithObserver expects.
func (m *Metrics) ObserveActivity(activityType, outcome string) {
	m.activitiesTotal.With(prometheus.Labels{
		"type":    activityType,
		"outcome": outcome,
	}).Inc()
}

// ObserveConnectorCall records one outbound service call. It has the
// shape connector.WithObserver expects.
func (m *Metrics) ObserveConnectorCall(operation string, status int, elapsed time.Duration) {
	m.connectorCallTime.With(prometheus.Labels{
		"operation":   operation,
		"status_code": strconv.Itoa(status),
	}).Observe(elapsed.Seconds())
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
