// Package monitor wires metric collection, anomaly detection, rule
// evaluation, health probes, and alert delivery into one periodic engine.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vigilmon/vigil/internal/alerting"
	"github.com/vigilmon/vigil/internal/anomaly"
	"github.com/vigilmon/vigil/internal/health"
	"github.com/vigilmon/vigil/internal/metrics"
	"github.com/vigilmon/vigil/internal/telemetry"
)

// Monitor orchestrates the collection pipeline. Each tick it collects a
// snapshot, appends it to history, runs the anomaly detectors, evaluates
// alert rules, records and emits new alerts, runs health probes, and
// updates the aggregate verdict.
type Monitor struct {
	mu sync.RWMutex

	// Core components
	source   metrics.Source
	history  *metrics.History
	detector *anomaly.Detector
	engine   *alerting.Engine
	alerts   *alerting.Manager
	sink     alerting.Sink
	probes   []health.Probe
	counter  *anomaly.Counter
	tel      *telemetry.Telemetry

	// Configuration
	config *Config

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// State
	running       bool
	lastTick      time.Time
	lastAnomalies []anomaly.Result
	lastProbes    []health.ProbeResult
}

// Deps holds dependencies for creating a Monitor.
type Deps struct {
	// Source collects metric snapshots. Required.
	Source metrics.Source

	// Sink receives fired alerts. Optional; alerts are still recorded
	// in the manager when nil.
	Sink alerting.Sink

	// Telemetry receives the engine's own counters. Optional.
	Telemetry *telemetry.Telemetry

	// Config tunes the engine. Nil means DefaultConfig.
	Config *Config
}

// NewMonitor creates a monitor instance with its internal components
// built from the configuration.
func NewMonitor(deps *Deps) (*Monitor, error) {
	if deps == nil || deps.Source == nil {
		return nil, fmt.Errorf("source is required")
	}

	config := deps.Config
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	engine, err := alerting.NewEngine(config.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule engine: %w", err)
	}

	return &Monitor{
		source:   deps.Source,
		history:  metrics.NewHistory(&config.History),
		detector: anomaly.NewDetector(&config.Detector),
		engine:   engine,
		alerts:   alerting.NewManager(&alerting.ManagerConfig{MaxHistory: config.MaxAlertHistory}),
		sink:     deps.Sink,
		probes:   config.Probes,
		counter:  anomaly.NewCounter(config.AnomalyWindow),
		tel:      deps.Telemetry,
		config:   config,
	}, nil
}

// Alerts exposes the alert manager for acknowledge/resolve operations.
func (m *Monitor) Alerts() *alerting.Manager {
	return m.alerts
}

// History exposes the snapshot buffer.
func (m *Monitor) History() *metrics.History {
	return m.history
}

// Start begins the monitoring loop. The first tick runs immediately so a
// fresh process has a snapshot and a verdict without waiting one interval.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("monitor already running")
	}

	if !m.config.Enabled {
		fmt.Println("Monitor: disabled by configuration, not starting")
		return nil
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running = true

	m.wg.Add(1)
	go m.loop()

	fmt.Printf("Monitor: started (interval=%v, rules=%d, probes=%d)\n",
		m.config.Interval, len(m.engine.Rules()), len(m.probes))
	return nil
}

// Stop gracefully stops the monitoring loop. Safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	fmt.Println("Monitor: stopping...")
	m.cancel()
	m.running = false
	// Release before waiting: an in-flight tick takes this lock to store
	// its results.
	m.mu.Unlock()

	m.wg.Wait()
	fmt.Println("Monitor: stopped")
}

// Running reports whether the loop is active.
func (m *Monitor) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	m.runTick()

	timer := time.NewTimer(m.config.Interval)
	defer timer.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-timer.C:
			m.runTick()
			timer.Reset(m.config.Interval)
		}
	}
}

func (m *Monitor) runTick() {
	tickCtx, cancel := context.WithTimeout(m.ctx, m.config.TickTimeout)
	defer cancel()

	if err := m.Tick(tickCtx); err != nil {
		fmt.Printf("Monitor: tick failed: %v\n", err)
	}
}

// Tick executes one full collection pass. A collection failure aborts the
// tick; later stages degrade instead (probe failures and sink errors are
// recorded, never fatal).
func (m *Monitor) Tick(ctx context.Context) error {
	started := time.Now()

	snap, err := m.source.Collect(ctx)
	if err != nil {
		return fmt.Errorf("metric collection failed: %w", err)
	}

	// History must include the current snapshot before detection so the
	// detectors' windows see what just happened.
	m.history.Append(snap)

	results := m.detector.Detect(snap, m.history)
	for _, r := range results {
		m.counter.Record(r.Timestamp)
		if m.tel != nil {
			m.tel.AnomaliesDetected.WithLabelValues(string(r.Type)).Inc()
		}
		fmt.Printf("Monitor: anomaly detected (type=%s severity=%s confidence=%.2f): %s\n",
			r.Type, r.Severity, r.Confidence, r.Description)
	}

	fired, evalErrs := m.engine.Evaluate(snap, snap.Timestamp)
	for _, err := range evalErrs {
		fmt.Printf("Monitor: rule evaluation error: %v\n", err)
	}
	for _, alert := range fired {
		m.alerts.Record(alert)
		if m.tel != nil {
			m.tel.AlertsFired.WithLabelValues(string(alert.Severity)).Inc()
		}
		m.emit(ctx, alert)
	}

	probeResults := m.runProbes(ctx)

	active := m.alerts.Active()
	verdict := health.Aggregate(active, m.counter.Count(snap.Timestamp))

	m.mu.Lock()
	m.lastTick = started
	m.lastAnomalies = results
	m.lastProbes = probeResults
	m.mu.Unlock()

	if m.tel != nil {
		m.tel.ActiveAlerts.Set(float64(len(active)))
		m.tel.SetHealthStatus(string(verdict))
		m.tel.ObserveTick(time.Since(started))
	}
	return nil
}

func (m *Monitor) emit(ctx context.Context, alert *alerting.Alert) {
	if m.sink == nil {
		return
	}
	if err := m.sink.Emit(ctx, alert); err != nil {
		if m.tel != nil {
			m.tel.SinkErrors.WithLabelValues(m.sink.Name()).Inc()
		}
		fmt.Printf("Monitor: sink %s failed: %v\n", m.sink.Name(), err)
	}
}

func (m *Monitor) runProbes(ctx context.Context) []health.ProbeResult {
	if len(m.probes) == 0 {
		return nil
	}
	results := health.RunProbes(ctx, m.probes, m.config.ProbeTimeout)
	for _, r := range results {
		if r.Status == health.StatusHealthy {
			continue
		}
		if m.tel != nil {
			m.tel.ProbeFailures.WithLabelValues(r.Name).Inc()
		}
		fmt.Printf("Monitor: probe %s %s (rt=%v err=%v)\n", r.Name, r.Status, r.ResponseTime.Round(time.Millisecond), r.Err)
	}
	return results
}

// Health returns the current aggregate verdict computed from the live
// alert set and the trailing anomaly counter.
func (m *Monitor) Health() health.Status {
	return health.Aggregate(m.alerts.Active(), m.counter.Count(time.Now()))
}

// Summary describes the engine's current state for status surfaces.
type Summary struct {
	Running       bool                 `json:"running"`
	Health        health.Status        `json:"health"`
	LastTick      time.Time            `json:"last_tick"`
	HistorySize   int                  `json:"history_size"`
	Alerts        alerting.Stats       `json:"alerts"`
	LastAnomalies []anomaly.Result     `json:"last_anomalies,omitempty"`
	Probes        []health.ProbeResult `json:"probes,omitempty"`
}

// Summary returns a copy of the engine's current state.
func (m *Monitor) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	anomalies := make([]anomaly.Result, len(m.lastAnomalies))
	copy(anomalies, m.lastAnomalies)
	probes := make([]health.ProbeResult, len(m.lastProbes))
	copy(probes, m.lastProbes)

	return Summary{
		Running:       m.running,
		Health:        health.Aggregate(m.alerts.Active(), m.counter.Count(time.Now())),
		LastTick:      m.lastTick,
		HistorySize:   m.history.Len(),
		Alerts:        m.alerts.Summary(),
		LastAnomalies: anomalies,
		Probes:        probes,
	}
}
