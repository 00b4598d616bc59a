package main

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the load balancer
var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lb_requests_total",
			Help: "Total number of forwarded HTTP requests",
		},
		[]string{"method", "status", "backend"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lb_request_duration_seconds",
			Help:    "Duration of forwarded HTTP requests",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "backend"},
	)

	upstreamErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lb_upstream_errors_total",
			Help: "Total number of upstream failures",
		},
		[]string{"backend"},
	)

	backendHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lb_backend_healthy",
			Help: "Backend health status (1 = healthy, 0 = unhealthy)",
		},
		[]string{"backend"},
	)

	backendConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lb_backend_active_connections",
			Help: "Number of in-flight requests per backend",
		},
		[]string{"backend"},
	)

	poolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lb_backends",
			Help: "Number of registered backends",
		},
	)

	poolHealthy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lb_healthy_backends",
			Help: "Number of healthy backends",
		},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lb_active_sessions",
			Help: "Number of active sticky sessions",
		},
	)
)

// recordRequestMetrics records one forwarded request.
func recordRequestMetrics(method string, status int, backendKey string, seconds float64) {
	requestsTotal.WithLabelValues(method, strconv.Itoa(status), backendKey).Inc()
	requestDuration.WithLabelValues(method, backendKey).Observe(seconds)
}

// recordUpstreamError records one upstream failure.
func recordUpstreamError(backendKey string) {
	upstreamErrorsTotal.WithLabelValues(backendKey).Inc()
}

func setBackendHealthMetric(backendKey string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	backendHealthy.WithLabelValues(backendKey).Set(value)
}

// updatePoolMetrics refreshes the per-backend and pool-wide gauges from the
// registry. Called after probe rounds and pool mutations.
func updatePoolMetrics(registry *Registry) {
	for _, backend := range registry.All() {
		setBackendHealthMetric(backend.Key(), backend.IsHealthy())
		backendConnections.WithLabelValues(backend.Key()).Set(float64(backend.GetConnections()))
	}
	poolSize.Set(float64(registry.Len()))
	poolHealthy.Set(float64(registry.HealthyCount()))
}

// dropBackendMetrics forgets the label sets of a deregistered backend.
func dropBackendMetrics(backendKey string) {
	backendHealthy.DeleteLabelValues(backendKey)
	backendConnections.DeleteLabelValues(backendKey)
}
