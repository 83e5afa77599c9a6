// Package health turns active alerts, recent anomaly counts, and external
// service probes into a single health verdict for the monitored process.
package health

import (
	"github.com/vigilmon/vigil/internal/alerting"
)

// Status is the derived overall health verdict. It is never stored;
// it is recomputed on demand from the current active alerts and the
// trailing anomaly count.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Aggregate computes the overall verdict. The critical check runs first so
// a single critical alert always dominates, regardless of how many
// lower-severity signals exist: unhealthy if any active alert is critical;
// degraded if any active alert is high severity or any anomalies were
// detected in the trailing window; healthy otherwise.
func Aggregate(active []*alerting.Alert, recentAnomalies int) Status {
	for _, a := range active {
		if a.Severity == alerting.SeverityCritical {
			return StatusUnhealthy
		}
	}
	for _, a := range active {
		if a.Severity == alerting.SeverityHigh {
			return StatusDegraded
		}
	}
	if recentAnomalies > 0 {
		return StatusDegraded
	}
	return StatusHealthy
}
