package anomaly

import (
	"sync"
	"time"
)

// Type categorizes the kind of anomaly detected.
type Type string

const (
	TypePerformanceDegradation Type = "performance_degradation"
	TypeErrorRateSpike         Type = "error_rate_spike"
	TypeResourceOverload       Type = "resource_overload"
	TypeAgentUnresponsive      Type = "agent_unresponsive"
	TypeAgentHighFailureRate   Type = "agent_high_failure_rate"
)

// Severity indicates how critical an anomaly is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Result is the outcome of one detector axis for one tick. Results are
// transient: they feed the emitted events and the rolling counter the
// health aggregator reads, nothing is persisted.
type Result struct {
	// Detected indicates whether an anomaly was found
	Detected bool `json:"detected"`

	// Type categorizes the anomaly
	Type Type `json:"type,omitempty"`

	// Severity indicates urgency
	Severity Severity `json:"severity,omitempty"`

	// Confidence is the detector's confidence in this result (0.0-1.0)
	Confidence float64 `json:"confidence"`

	// Description summarizes what was detected
	Description string `json:"description"`

	// AffectedComponents lists the components involved (e.g. agent IDs)
	AffectedComponents []string `json:"affected_components,omitempty"`

	// RecommendedActions suggests operator responses
	RecommendedActions []string `json:"recommended_actions,omitempty"`

	// Metrics contains the values that contributed to detection
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// Timestamp is when the detection ran
	Timestamp time.Time `json:"timestamp"`
}

// Counter tracks anomaly detections over a trailing window. The health
// aggregator reads it to decide whether recent anomalies degrade the
// overall verdict.
type Counter struct {
	mu     sync.Mutex
	window time.Duration
	times  []time.Time
}

// NewCounter creates a rolling anomaly counter. A zero window defaults to
// one hour.
func NewCounter(window time.Duration) *Counter {
	if window <= 0 {
		window = time.Hour
	}
	return &Counter{window: window}
}

// Record notes one detection at time ts.
func (c *Counter) Record(ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.times = append(c.times, ts)
	c.pruneLocked(ts)
}

// Count returns the number of detections within the trailing window ending
// at now.
func (c *Counter) Count(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(now)
	return len(c.times)
}

func (c *Counter) pruneLocked(now time.Time) {
	cutoff := now.Add(-c.window)
	first := 0
	for first < len(c.times) && c.times[first].Before(cutoff) {
		first++
	}
	if first > 0 {
		c.times = append(c.times[:0], c.times[first:]...)
	}
}
