package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	requestsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	pending          prometheus.Gauge
	visible          prometheus.Gauge
	locked           prometheus.Gauge
	closeAckDuration prometheus.Histogram
	scopePurgesTotal prometheus.Counter

	gatewayClients  prometheus.Gauge
	gatewayRequests *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			requestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "drawer_requests_total",
					Help: "Total drawer open requests by priority.",
				},
				[]string{"priority"},
			),
			transitionsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "drawer_transitions_total",
					Help: "Total drawer queue transitions by event type.",
				},
				[]string{"event"},
			),
			pending: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "drawer_pending",
					Help: "Current number of pending drawer requests.",
				},
			),
			visible: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "drawer_visible",
					Help: "1 when a drawer is current, 0 otherwise.",
				},
			),
			locked: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "drawer_locked",
					Help: "1 while the drawer lock gate is held.",
				},
			),
			closeAckDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "drawer_close_ack_seconds",
					Help:    "Time between a close request and its acknowledgment.",
					Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
				},
			),
			scopePurgesTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "drawer_scope_purges_total",
					Help: "Total drawer requests discarded because their scope exited.",
				},
			),
			gatewayClients: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "drawer_gateway_clients",
					Help: "Current connected gateway clients.",
				},
			),
			gatewayRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "drawer_gateway_requests_total",
					Help: "Total gateway RPC requests by method and status.",
				},
				[]string{"method", "status"},
			),
		}

		prometheus.MustRegister(
			m.requestsTotal,
			m.transitionsTotal,
			m.pending,
			m.visible,
			m.locked,
			m.closeAckDuration,
			m.scopePurgesTotal,
			m.gatewayClients,
			m.gatewayRequests,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordDrawerRequest(priority string) {
	getMetrics().requestsTotal.WithLabelValues(priority).Inc()
}

func RecordDrawerTransition(event string, pending int) {
	m := getMetrics()
	m.transitionsTotal.WithLabelValues(event).Inc()
	m.pending.Set(float64(pending))
}

func SetDrawerVisible(visible bool) {
	v := 0.0
	if visible {
		v = 1
	}
	getMetrics().visible.Set(v)
}

func SetDrawerLocked(locked bool) {
	v := 0.0
	if locked {
		v = 1
	}
	getMetrics().locked.Set(v)
}

func RecordCloseAck(duration time.Duration) {
	getMetrics().closeAckDuration.Observe(duration.Seconds())
}

func RecordScopePurge() {
	getMetrics().scopePurgesTotal.Inc()
}

func SetGatewayClients(count int) {
	getMetrics().gatewayClients.Set(float64(count))
}

func RecordGatewayRequest(method string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	getMetrics().gatewayRequests.WithLabelValues(method, status).Inc()
}
