package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"remote-screen-rpc/status"
)

const metricsNamespace = "remote_screen"

// Collector is a prometheus.Collector counting the calls passing through
// MetricsMiddleware.
type Collector struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
}

// NewMetricsCollector returns a new Collector. side labels the direction of
// the calls, "server" or "client".
func NewMetricsCollector(side string) *Collector {
	constLabels := prometheus.Labels{"side": side}
	return &Collector{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   metricsNamespace,
				Name:        "calls_total",
				Help:        "The number of calls by method and status code.",
				ConstLabels: constLabels,
			}, []string{"service", "method", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   metricsNamespace,
				Name:        "call_duration_seconds",
				Help:        "The time taken to complete a call.",
				ConstLabels: constLabels,
				Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			}, []string{"service", "method"},
		),
		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   metricsNamespace,
				Name:        "calls_in_flight",
				Help:        "The number of calls currently being processed.",
				ConstLabels: constLabels,
			}, []string{"service"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.calls.Describe(ch)
	c.duration.Describe(ch)
	c.inFlight.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.calls.Collect(ch)
	c.duration.Collect(ch)
	c.inFlight.Collect(ch)
}

// MetricsMiddleware records every call in c.
func MetricsMiddleware(c *Collector) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) status.Status {
			inFlight := c.inFlight.WithLabelValues(call.Service)
			inFlight.Inc()
			start := time.Now()

			st := next(ctx, call)

			inFlight.Dec()
			c.duration.WithLabelValues(call.Service, call.Method).Observe(time.Since(start).Seconds())
			c.calls.WithLabelValues(call.Service, call.Method, st.Code.String()).Inc()
			return st
		}
	}
}
