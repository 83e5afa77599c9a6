package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilmon/vigil/internal/alerting"
	"github.com/vigilmon/vigil/internal/health"
	"github.com/vigilmon/vigil/internal/metrics"
)

// stubSource returns canned snapshots with strictly increasing timestamps.
type stubSource struct {
	mu    sync.Mutex
	base  time.Time
	calls int
	next  func(snap *metrics.Snapshot)
	err   error
}

func (s *stubSource) Collect(ctx context.Context) (*metrics.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.calls++
	snap := &metrics.Snapshot{
		Timestamp: s.base.Add(time.Duration(s.calls) * 30 * time.Second),
		System: metrics.SystemStats{
			CPUUsagePercent:    20,
			LoadAverage:        []float64{0.5, 0.4, 0.3},
			MemoryUsagePercent: 40,
		},
		Application: metrics.ApplicationStats{
			RequestsTotal:     100,
			AvgResponseTimeMs: 200,
		},
	}
	if s.next != nil {
		s.next(snap)
	}
	return snap, nil
}

func (s *stubSource) collectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingSink struct {
	mu     sync.Mutex
	alerts []*alerting.Alert
	err    error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Emit(ctx context.Context, alert *alerting.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *recordingSink) received() []*alerting.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*alerting.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Interval = time.Hour // only the immediate tick fires in tests
	return cfg
}

func TestNewMonitorRequiresSource(t *testing.T) {
	_, err := NewMonitor(&Deps{})
	require.Error(t, err)

	_, err = NewMonitor(nil)
	require.Error(t, err)
}

func TestNewMonitorRejectsInvalidRule(t *testing.T) {
	cfg := testConfig()
	cfg.Rules = []*alerting.Rule{{
		ID:         "bad",
		MetricPath: "application.errorRate",
		Condition:  "between", // not a real operator
		Threshold:  0.5,
		Severity:   alerting.SeverityHigh,
		Enabled:    true,
	}}

	_, err := NewMonitor(&Deps{Source: &stubSource{base: time.Now()}, Config: cfg})
	require.Error(t, err)
}

func TestTickPipeline(t *testing.T) {
	src := &stubSource{
		base: time.Now(),
		next: func(snap *metrics.Snapshot) {
			snap.Application.ErrorRate = 0.12
		},
	}
	sink := &recordingSink{}

	cfg := testConfig()
	cfg.Rules = []*alerting.Rule{{
		ID:         "high-error-rate",
		MetricPath: "application.errorRate",
		Condition:  alerting.ConditionGTE,
		Threshold:  0.05,
		Severity:   alerting.SeverityCritical,
		Enabled:    true,
		Cooldown:   time.Hour,
	}}

	mon, err := NewMonitor(&Deps{Source: src, Sink: sink, Config: cfg})
	require.NoError(t, err)

	require.NoError(t, mon.Tick(context.Background()))

	// Snapshot landed in history.
	assert.Equal(t, 1, mon.History().Len())

	// Rule fired once, landed in the manager and the sink.
	active := mon.Alerts().Active()
	require.Len(t, active, 1)
	assert.Equal(t, "high-error-rate", active[0].RuleID)
	assert.InDelta(t, 0.12, active[0].MetricValue, 1e-9)

	received := sink.received()
	require.Len(t, received, 1)
	assert.Equal(t, active[0].ID, received[0].ID)

	// A critical active alert makes the verdict unhealthy.
	assert.Equal(t, health.StatusUnhealthy, mon.Health())

	// Cooldown holds on the next tick: no second alert.
	require.NoError(t, mon.Tick(context.Background()))
	assert.Len(t, mon.Alerts().Active(), 1)
	assert.Len(t, sink.received(), 1)
}

func TestTickCollectFailureAborts(t *testing.T) {
	src := &stubSource{base: time.Now(), err: fmt.Errorf("scrape refused")}
	mon, err := NewMonitor(&Deps{Source: src, Config: testConfig()})
	require.NoError(t, err)

	err = mon.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, mon.History().Len())
}

func TestTickSinkFailureIsNotFatal(t *testing.T) {
	src := &stubSource{
		base: time.Now(),
		next: func(snap *metrics.Snapshot) {
			snap.System.CPUUsagePercent = 99
		},
	}
	sink := &recordingSink{err: fmt.Errorf("webhook down")}

	cfg := testConfig()
	cfg.Rules = []*alerting.Rule{{
		ID:         "cpu-high",
		MetricPath: "system.cpuUsagePercent",
		Condition:  alerting.ConditionGT,
		Threshold:  90,
		Severity:   alerting.SeverityHigh,
		Enabled:    true,
	}}

	mon, err := NewMonitor(&Deps{Source: src, Sink: sink, Config: cfg})
	require.NoError(t, err)

	require.NoError(t, mon.Tick(context.Background()))

	// Alert is still recorded even though delivery failed.
	assert.Len(t, mon.Alerts().Active(), 1)
}

func TestAnomalyDegradesVerdict(t *testing.T) {
	base := time.Now()
	src := &stubSource{
		base: base,
		next: func(snap *metrics.Snapshot) {
			snap.Agents = map[string]metrics.AgentStats{
				"planner": {
					CompletedTasks: 10,
					Status:         metrics.AgentHealthy,
					LastActivity:   snap.Timestamp.Add(-10 * time.Minute),
				},
			}
		},
	}

	mon, err := NewMonitor(&Deps{Source: src, Config: testConfig()})
	require.NoError(t, err)

	require.NoError(t, mon.Tick(context.Background()))

	summary := mon.Summary()
	require.Len(t, summary.LastAnomalies, 1)
	assert.Equal(t, health.StatusDegraded, summary.Health)
}

func TestStartRunsImmediateTick(t *testing.T) {
	src := &stubSource{base: time.Now()}
	mon, err := NewMonitor(&Deps{Source: src, Config: testConfig()})
	require.NoError(t, err)

	require.NoError(t, mon.Start(context.Background()))
	defer mon.Stop()

	require.Eventually(t, func() bool {
		return src.collectCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, mon.Running())
	require.Error(t, mon.Start(context.Background()), "second Start must fail while running")
}

func TestStopIdempotent(t *testing.T) {
	src := &stubSource{base: time.Now()}
	mon, err := NewMonitor(&Deps{Source: src, Config: testConfig()})
	require.NoError(t, err)

	require.NoError(t, mon.Start(context.Background()))
	mon.Stop()
	mon.Stop() // second Stop is a no-op
	assert.False(t, mon.Running())
}

func TestDisabledMonitorDoesNotStart(t *testing.T) {
	src := &stubSource{base: time.Now()}
	cfg := testConfig()
	cfg.Enabled = false

	mon, err := NewMonitor(&Deps{Source: src, Config: cfg})
	require.NoError(t, err)

	require.NoError(t, mon.Start(context.Background()))
	assert.False(t, mon.Running())
	assert.Equal(t, 0, src.collectCount())
}

func TestSummarySnapshot(t *testing.T) {
	src := &stubSource{base: time.Now()}
	mon, err := NewMonitor(&Deps{Source: src, Config: testConfig()})
	require.NoError(t, err)

	require.NoError(t, mon.Tick(context.Background()))

	summary := mon.Summary()
	assert.False(t, summary.Running)
	assert.Equal(t, 1, summary.HistorySize)
	assert.Equal(t, health.StatusHealthy, summary.Health)
	assert.Equal(t, 0, summary.Alerts.Active)
	assert.False(t, summary.LastTick.IsZero())
}
