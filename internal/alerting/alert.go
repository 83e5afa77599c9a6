package alerting

import (
	"time"
)

// Alert is one firing of a rule. It is created by the engine and owned by
// the Manager for its lifetime: active until resolved, retained in the
// bounded history log afterwards. RuleID is a non-owning back-reference to
// the rule that existed at trigger time, even if that rule is later
// disabled.
type Alert struct {
	ID           string     `json:"id"`
	RuleID       string     `json:"rule_id"`
	Severity     Severity   `json:"severity"`
	Message      string     `json:"message"`
	MetricValue  float64    `json:"metric_value"`
	Threshold    float64    `json:"threshold"`
	Timestamp    time.Time  `json:"timestamp"`
	Acknowledged bool       `json:"acknowledged"`
	Resolved     bool       `json:"resolved"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// Clone returns a copy of the alert.
func (a *Alert) Clone() *Alert {
	out := *a
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		out.ResolvedAt = &t
	}
	return &out
}
