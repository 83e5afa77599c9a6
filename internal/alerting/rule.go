package alerting

import (
	"fmt"
	"time"

	"github.com/vigilmon/vigil/internal/metrics"
)

// Severity classifies how urgent an alert is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityRank orders severities for aggregation and display.
// low < medium < high < critical.
func severityRank(s Severity) int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// ParseSeverity normalizes a configured severity string. "error" is accepted
// as an alias of high for compatibility with older rule files.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high", "error":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return "", fmt.Errorf("invalid severity %q (must be low, medium, high, or critical)", s)
	}
}

// Condition is a comparison operator applied to a metric value.
type Condition string

const (
	ConditionGT  Condition = "gt"
	ConditionGTE Condition = "gte"
	ConditionLT  Condition = "lt"
	ConditionLTE Condition = "lte"
	ConditionEQ  Condition = "eq"
	ConditionNE  Condition = "ne"
)

// Compare applies the condition to (value, threshold). eq/ne compare floats
// exactly; rules wanting tolerance should use a gte/lte pair instead.
func (c Condition) Compare(value, threshold float64) (bool, error) {
	switch c {
	case ConditionGT:
		return value > threshold, nil
	case ConditionGTE:
		return value >= threshold, nil
	case ConditionLT:
		return value < threshold, nil
	case ConditionLTE:
		return value <= threshold, nil
	case ConditionEQ:
		return value == threshold, nil
	case ConditionNE:
		return value != threshold, nil
	default:
		return false, fmt.Errorf("unknown condition %q", c)
	}
}

// Rule is a declarative alert threshold. Rules are process-wide
// configuration: they are created at startup and never deleted during a
// run. Only lastTriggered mutates, and only from the engine's evaluation
// path.
type Rule struct {
	// ID uniquely identifies the rule
	ID string `yaml:"id"`
	// MetricPath is a dotted path into the snapshot, e.g. "application.errorRate"
	MetricPath string `yaml:"metric_path"`
	// Condition compares the resolved value against Threshold
	Condition Condition `yaml:"condition"`
	// Threshold is the comparison operand
	Threshold float64 `yaml:"threshold"`
	// Severity the fired alert carries
	Severity Severity `yaml:"severity"`
	// Enabled rules are evaluated; disabled rules are skipped but kept
	Enabled bool `yaml:"enabled"`
	// Cooldown is the minimum time between two firings of this rule
	Cooldown time.Duration `yaml:"cooldown"`

	lastTriggered time.Time
}

// Validate checks a rule against the snapshot schema so misconfiguration
// fails at startup rather than silently skipping every tick.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule has no id")
	}
	if _, err := r.Condition.Compare(0, 0); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	if severityRank(r.Severity) == 0 {
		return fmt.Errorf("rule %s: invalid severity %q", r.ID, r.Severity)
	}
	if r.Cooldown < 0 {
		return fmt.Errorf("rule %s: cooldown must not be negative", r.ID)
	}
	if err := metrics.ValidatePath(r.MetricPath); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	return nil
}

// LastTriggered returns when the rule last fired (zero if never).
func (r *Rule) LastTriggered() time.Time {
	return r.lastTriggered
}

// inCooldown reports whether the rule fired within its cooldown window.
func (r *Rule) inCooldown(now time.Time) bool {
	if r.lastTriggered.IsZero() || r.Cooldown <= 0 {
		return false
	}
	return now.Sub(r.lastTriggered) < r.Cooldown
}
