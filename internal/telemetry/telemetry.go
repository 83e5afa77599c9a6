// Package telemetry exposes the monitoring engine's own counters and gauges
// through a Prometheus registry, so the watcher can itself be watched.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Telemetry holds the engine's self-instrumentation. It is constructed
// explicitly and passed by reference, never a package-level singleton, so
// tests can use isolated registries.
type Telemetry struct {
	registry *prometheus.Registry

	TicksTotal        prometheus.Counter
	TickDuration      prometheus.Histogram
	AnomaliesDetected *prometheus.CounterVec
	AlertsFired       *prometheus.CounterVec
	ActiveAlerts      prometheus.Gauge
	HealthStatus      prometheus.Gauge
	ProbeFailures     *prometheus.CounterVec
	SinkErrors        *prometheus.CounterVec
}

// New creates the engine metric set on its own registry.
func New() *Telemetry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Telemetry{
		registry: reg,
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "vigil_ticks_total",
			Help: "Total number of collection ticks executed",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_tick_duration_seconds",
			Help:    "Collection tick duration in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),
		AnomaliesDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_anomalies_detected_total",
			Help: "Total anomalies detected by type",
		}, []string{"type"}),
		AlertsFired: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_alerts_fired_total",
			Help: "Total alerts fired by severity",
		}, []string{"severity"}),
		ActiveAlerts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_active_alerts",
			Help: "Number of currently active (unresolved) alerts",
		}),
		HealthStatus: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_health_status",
			Help: "Overall health verdict (0=healthy, 1=degraded, 2=unhealthy)",
		}),
		ProbeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_probe_failures_total",
			Help: "Total failed health probes by probe name",
		}, []string{"probe"}),
		SinkErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_sink_errors_total",
			Help: "Total alert sink emit failures by sink name",
		}, []string{"sink"}),
	}
}

// Registry returns the underlying registry for hosts that want to serve or
// push the engine's metrics.
func (t *Telemetry) Registry() *prometheus.Registry {
	return t.registry
}

// ObserveTick records one completed tick.
func (t *Telemetry) ObserveTick(d time.Duration) {
	t.TicksTotal.Inc()
	t.TickDuration.Observe(d.Seconds())
}

// SetHealthStatus maps a verdict string onto the status gauge.
func (t *Telemetry) SetHealthStatus(status string) {
	switch status {
	case "healthy":
		t.HealthStatus.Set(0)
	case "degraded":
		t.HealthStatus.Set(1)
	default:
		t.HealthStatus.Set(2)
	}
}
