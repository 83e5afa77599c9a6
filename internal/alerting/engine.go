package alerting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vigilmon/vigil/internal/metrics"
)

// RuleEvaluationError reports a rule that could not be evaluated against a
// snapshot, most commonly a metric path that does not resolve (e.g. an
// agent-scoped path when that agent is absent). It is logged and the rule
// skipped; it never aborts the tick.
type RuleEvaluationError struct {
	RuleID string
	Err    error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.RuleID, e.Err)
}

func (e *RuleEvaluationError) Unwrap() error {
	return e.Err
}

// Engine evaluates a fixed set of declarative rules against snapshots.
// Rules are kept in declaration order and evaluated deterministically, which
// matters for exactly-once firing semantics under simultaneous breaches.
// Evaluate is only called from the collection-tick path, so rule cooldown
// state needs no locking of its own.
type Engine struct {
	rules []*Rule
}

// NewEngine creates a rule engine. Every rule is validated; a misconfigured
// rule fails construction rather than silently skipping every tick.
func NewEngine(rules []*Rule) (*Engine, error) {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = true
	}
	return &Engine{rules: rules}, nil
}

// Rules returns the rules in declaration order.
func (e *Engine) Rules() []*Rule {
	return e.rules
}

// Evaluate runs every enabled rule against the snapshot, honoring cooldown,
// and returns the newly fired alerts (an empty result is the common case).
// Evaluation problems are returned alongside as RuleEvaluationErrors for
// logging; they never prevent other rules from evaluating.
func (e *Engine) Evaluate(snap *metrics.Snapshot, now time.Time) ([]*Alert, []error) {
	if snap == nil {
		return nil, nil
	}

	resolver, err := metrics.NewPathResolver(snap)
	if err != nil {
		return nil, []error{fmt.Errorf("preparing snapshot for evaluation: %w", err)}
	}

	var fired []*Alert
	var errs []error
	for _, rule := range e.rules {
		if !rule.Enabled || rule.inCooldown(now) {
			continue
		}

		value, err := resolver.Resolve(rule.MetricPath)
		if err != nil {
			errs = append(errs, &RuleEvaluationError{RuleID: rule.ID, Err: err})
			continue
		}

		match, err := rule.Condition.Compare(value, rule.Threshold)
		if err != nil {
			errs = append(errs, &RuleEvaluationError{RuleID: rule.ID, Err: err})
			continue
		}
		if !match {
			continue
		}

		rule.lastTriggered = now
		fired = append(fired, &Alert{
			ID:       uuid.New().String(),
			RuleID:   rule.ID,
			Severity: rule.Severity,
			Message: fmt.Sprintf("%s: %s %s %g (current value %g)",
				rule.ID, rule.MetricPath, rule.Condition, rule.Threshold, value),
			MetricValue: value,
			Threshold:   rule.Threshold,
			Timestamp:   now,
		})
	}
	return fired, errs
}
