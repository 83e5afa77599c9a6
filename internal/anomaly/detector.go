package anomaly

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/vigilmon/vigil/internal/metrics"
)

// Config holds detector tuning. The ratios and absolute floors are
// empirically chosen defaults, not derived constants, so they are all
// exposed as configuration.
type Config struct {
	// LatencyWindow is the number of trailing snapshots used for the
	// latency z-score
	// Default: 20
	LatencyWindow int `yaml:"latency_window"`
	// LatencyMinSamples is the minimum history length before the latency
	// detector runs; between this and LatencyWindow the z-score is computed
	// over whatever is available
	// Default: 10
	LatencyMinSamples int `yaml:"latency_min_samples"`
	// ZScoreThreshold flags latency samples deviating beyond this z-score
	// Default: 2.5
	ZScoreThreshold float64 `yaml:"zscore_threshold"`
	// LatencyHighZScore escalates severity to high
	// Default: 3
	LatencyHighZScore float64 `yaml:"latency_high_zscore"`
	// LatencyCriticalZScore escalates severity to critical
	// Default: 4
	LatencyCriticalZScore float64 `yaml:"latency_critical_zscore"`

	// ErrorRateWindow is the trailing sample count for the error-rate mean
	// Default: 10
	ErrorRateWindow int `yaml:"error_rate_window"`
	// ErrorRateRatio is the multiple of the historical mean that flags the
	// current rate
	// Default: 3.0
	ErrorRateRatio float64 `yaml:"error_rate_ratio"`
	// ErrorRateFloor is the absolute minimum rate required to flag; it
	// prevents false positives when the historical rate is near zero
	// Default: 0.05
	ErrorRateFloor float64 `yaml:"error_rate_floor"`
	// ErrorRateHighLevel escalates severity to high
	// Default: 0.1
	ErrorRateHighLevel float64 `yaml:"error_rate_high_level"`
	// ErrorRateCriticalLevel escalates severity to critical
	// Default: 0.2
	ErrorRateCriticalLevel float64 `yaml:"error_rate_critical_level"`

	// ResourceWindow is the trailing sample count for resource means
	// Default: 5
	ResourceWindow int `yaml:"resource_window"`
	// ResourceRatio is the multiple of the mean that flags memory/CPU
	// Default: 1.5
	ResourceRatio float64 `yaml:"resource_ratio"`
	// MemoryFloorPercent is the absolute memory floor that must also hold
	// Default: 80
	MemoryFloorPercent float64 `yaml:"memory_floor_percent"`
	// CPUFloorPercent is the absolute CPU floor that must also hold
	// Default: 85
	CPUFloorPercent float64 `yaml:"cpu_floor_percent"`
	// ResourceCriticalPercent escalates severity to critical
	// Default: 95
	ResourceCriticalPercent float64 `yaml:"resource_critical_percent"`

	// AgentInactivityLimit flags agents with no activity for this long
	// Default: 5 minutes
	AgentInactivityLimit time.Duration `yaml:"agent_inactivity_limit"`
	// AgentFailureRatio flags agents whose failure ratio exceeds this
	// Default: 0.3
	AgentFailureRatio float64 `yaml:"agent_failure_ratio"`
	// AgentMinTasks is the minimum task count before the failure ratio is
	// meaningful; it avoids flagging agents with only a couple of samples
	// Default: 5
	AgentMinTasks int `yaml:"agent_min_tasks"`
	// AgentCriticalFailureRatio escalates severity to critical
	// Default: 0.5
	AgentCriticalFailureRatio float64 `yaml:"agent_critical_failure_ratio"`
}

// DefaultConfig returns detector tuning matching the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		LatencyWindow:             20,
		LatencyMinSamples:         10,
		ZScoreThreshold:           2.5,
		LatencyHighZScore:         3,
		LatencyCriticalZScore:     4,
		ErrorRateWindow:           10,
		ErrorRateRatio:            3.0,
		ErrorRateFloor:            0.05,
		ErrorRateHighLevel:        0.1,
		ErrorRateCriticalLevel:    0.2,
		ResourceWindow:            5,
		ResourceRatio:             1.5,
		MemoryFloorPercent:        80,
		CPUFloorPercent:           85,
		ResourceCriticalPercent:   95,
		AgentInactivityLimit:      5 * time.Minute,
		AgentFailureRatio:         0.3,
		AgentMinTasks:             5,
		AgentCriticalFailureRatio: 0.5,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.LatencyWindow <= 0 {
		c.LatencyWindow = d.LatencyWindow
	}
	if c.ZScoreThreshold <= 0 {
		c.ZScoreThreshold = d.ZScoreThreshold
	}
	if c.LatencyMinSamples <= 0 {
		c.LatencyMinSamples = d.LatencyMinSamples
	}
	if c.LatencyHighZScore <= 0 {
		c.LatencyHighZScore = d.LatencyHighZScore
	}
	if c.LatencyCriticalZScore <= 0 {
		c.LatencyCriticalZScore = d.LatencyCriticalZScore
	}
	if c.ErrorRateWindow <= 0 {
		c.ErrorRateWindow = d.ErrorRateWindow
	}
	if c.ErrorRateRatio <= 0 {
		c.ErrorRateRatio = d.ErrorRateRatio
	}
	if c.ErrorRateFloor <= 0 {
		c.ErrorRateFloor = d.ErrorRateFloor
	}
	if c.ErrorRateHighLevel <= 0 {
		c.ErrorRateHighLevel = d.ErrorRateHighLevel
	}
	if c.ErrorRateCriticalLevel <= 0 {
		c.ErrorRateCriticalLevel = d.ErrorRateCriticalLevel
	}
	if c.ResourceWindow <= 0 {
		c.ResourceWindow = d.ResourceWindow
	}
	if c.ResourceRatio <= 0 {
		c.ResourceRatio = d.ResourceRatio
	}
	if c.MemoryFloorPercent <= 0 {
		c.MemoryFloorPercent = d.MemoryFloorPercent
	}
	if c.CPUFloorPercent <= 0 {
		c.CPUFloorPercent = d.CPUFloorPercent
	}
	if c.ResourceCriticalPercent <= 0 {
		c.ResourceCriticalPercent = d.ResourceCriticalPercent
	}
	if c.AgentInactivityLimit <= 0 {
		c.AgentInactivityLimit = d.AgentInactivityLimit
	}
	if c.AgentFailureRatio <= 0 {
		c.AgentFailureRatio = d.AgentFailureRatio
	}
	if c.AgentMinTasks <= 0 {
		c.AgentMinTasks = d.AgentMinTasks
	}
	if c.AgentCriticalFailureRatio <= 0 {
		c.AgentCriticalFailureRatio = d.AgentCriticalFailureRatio
	}
}

// Detector flags statistically anomalous snapshots along four independent
// axes: latency, error rate, resource usage, and per-agent health. Each
// axis is a pure function of (current snapshot, recent history); the
// detector holds no mutable state of its own.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector with the given tuning. A nil config uses
// the defaults; zero fields are filled in from the defaults.
func NewDetector(cfg *Config) *Detector {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	c.applyDefaults()
	return &Detector{cfg: c}
}

// Config returns a copy of the effective detector tuning.
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect runs all four axes against the current snapshot and history,
// returning only positive results. An insufficient history on one axis
// skips that axis for the tick; it never fails the tick.
func (d *Detector) Detect(snap *metrics.Snapshot, history *metrics.History) []Result {
	if snap == nil || history == nil {
		return nil
	}

	var results []Result
	if r, ok := d.checkLatency(snap, history); ok {
		results = append(results, r)
	}
	if r, ok := d.checkErrorRate(snap, history); ok {
		results = append(results, r)
	}
	if r, ok := d.checkResources(snap, history); ok {
		results = append(results, r)
	}
	results = append(results, d.checkAgents(snap)...)
	return results
}

// checkLatency flags p95 latency samples whose z-score against the trailing
// window exceeds the threshold. The window is up to LatencyWindow samples
// but the detector runs as soon as LatencyMinSamples exist, so early spikes
// are not silently ignored. With zero variance no z-score exists, so no
// anomaly can be computed.
func (d *Detector) checkLatency(snap *metrics.Snapshot, history *metrics.History) (Result, bool) {
	window, err := history.Recent(d.cfg.LatencyWindow, d.cfg.LatencyMinSamples)
	if errors.Is(err, metrics.ErrInsufficientHistory) {
		return Result{}, false
	}

	values := make([]float64, len(window))
	for i, s := range window {
		values[i] = s.Application.LatencyP95
	}
	mean, stddev := meanStdDev(values)
	if stddev == 0 {
		return Result{}, false
	}

	current := snap.Application.LatencyP95
	z := math.Abs(current-mean) / stddev
	if z <= d.cfg.ZScoreThreshold {
		return Result{}, false
	}

	severity := SeverityMedium
	switch {
	case z > d.cfg.LatencyCriticalZScore:
		severity = SeverityCritical
	case z > d.cfg.LatencyHighZScore:
		severity = SeverityHigh
	}

	return Result{
		Detected:   true,
		Type:       TypePerformanceDegradation,
		Severity:   severity,
		Confidence: math.Min(z/d.cfg.LatencyHighZScore, 1),
		Description: fmt.Sprintf("p95 latency %.1fms deviates %.1f standard deviations from the %.1fms mean",
			current, z, mean),
		AffectedComponents: []string{"application"},
		RecommendedActions: []string{
			"inspect slow endpoints and recent deploys",
			"check downstream dependency latency",
		},
		Metrics: map[string]float64{
			"latency_p95_ms": current,
			"mean_ms":        mean,
			"stddev_ms":      stddev,
			"zscore":         z,
		},
		Timestamp: snap.Timestamp,
	}, true
}

// checkErrorRate flags the current error rate when it is both a multiple of
// the trailing mean and above an absolute floor.
func (d *Detector) checkErrorRate(snap *metrics.Snapshot, history *metrics.History) (Result, bool) {
	window, err := history.Recent(d.cfg.ErrorRateWindow, d.cfg.ErrorRateWindow)
	if errors.Is(err, metrics.ErrInsufficientHistory) {
		return Result{}, false
	}

	var sum float64
	for _, s := range window {
		sum += s.Application.ErrorRate
	}
	avg := sum / float64(len(window))

	current := snap.Application.ErrorRate
	if current <= avg*d.cfg.ErrorRateRatio || current <= d.cfg.ErrorRateFloor {
		return Result{}, false
	}

	severity := SeverityMedium
	switch {
	case current > d.cfg.ErrorRateCriticalLevel:
		severity = SeverityCritical
	case current > d.cfg.ErrorRateHighLevel:
		severity = SeverityHigh
	}

	return Result{
		Detected:   true,
		Type:       TypeErrorRateSpike,
		Severity:   severity,
		Confidence: math.Min(current/(avg*d.cfg.ErrorRateRatio+1e-9), 1),
		Description: fmt.Sprintf("error rate %.1f%% is %.1fx the recent average of %.1f%%",
			current*100, safeRatio(current, avg), avg*100),
		AffectedComponents: []string{"application"},
		RecommendedActions: []string{
			"review recent error logs",
			"check for failing downstream services",
		},
		Metrics: map[string]float64{
			"error_rate":      current,
			"average_rate":    avg,
			"ratio_threshold": d.cfg.ErrorRateRatio,
		},
		Timestamp: snap.Timestamp,
	}, true
}

// checkResources flags memory and CPU when both the relative and absolute
// thresholds hold. Pure relative comparisons are too noisy at low baselines.
func (d *Detector) checkResources(snap *metrics.Snapshot, history *metrics.History) (Result, bool) {
	window, err := history.Recent(d.cfg.ResourceWindow, d.cfg.ResourceWindow)
	if errors.Is(err, metrics.ErrInsufficientHistory) {
		return Result{}, false
	}

	var memSum, cpuSum float64
	for _, s := range window {
		memSum += s.System.MemoryUsagePercent
		cpuSum += s.System.CPUUsagePercent
	}
	memAvg := memSum / float64(len(window))
	cpuAvg := cpuSum / float64(len(window))

	mem := snap.System.MemoryUsagePercent
	cpu := snap.System.CPUUsagePercent

	memFlag := mem > memAvg*d.cfg.ResourceRatio && mem > d.cfg.MemoryFloorPercent
	cpuFlag := cpu > cpuAvg*d.cfg.ResourceRatio && cpu > d.cfg.CPUFloorPercent
	if !memFlag && !cpuFlag {
		return Result{}, false
	}

	severity := SeverityHigh
	if mem > d.cfg.ResourceCriticalPercent || cpu > d.cfg.ResourceCriticalPercent {
		severity = SeverityCritical
	}

	var components []string
	desc := ""
	if memFlag {
		components = append(components, "memory")
		desc = fmt.Sprintf("memory at %.1f%% (recent average %.1f%%)", mem, memAvg)
	}
	if cpuFlag {
		components = append(components, "cpu")
		if desc != "" {
			desc += "; "
		}
		desc += fmt.Sprintf("cpu at %.1f%% (recent average %.1f%%)", cpu, cpuAvg)
	}

	return Result{
		Detected:           true,
		Type:               TypeResourceOverload,
		Severity:           severity,
		Confidence:         math.Min(math.Max(mem, cpu)/100, 1),
		Description:        desc,
		AffectedComponents: components,
		RecommendedActions: []string{
			"identify processes with unusual resource growth",
			"consider scaling or shedding load",
		},
		Metrics: map[string]float64{
			"memory_percent":     mem,
			"memory_avg_percent": memAvg,
			"cpu_percent":        cpu,
			"cpu_avg_percent":    cpuAvg,
		},
		Timestamp: snap.Timestamp,
	}, true
}

// checkAgents flags unresponsive agents and agents with a high failure
// ratio. Unlike the other axes this can yield multiple results, one per
// degraded agent, and needs no history beyond the snapshot itself.
func (d *Detector) checkAgents(snap *metrics.Snapshot) []Result {
	if len(snap.Agents) == 0 {
		return nil
	}

	// Deterministic order for stable event emission and tests.
	ids := make([]string, 0, len(snap.Agents))
	for id := range snap.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var results []Result
	now := snap.Timestamp
	for _, id := range ids {
		agent := snap.Agents[id]

		if !agent.LastActivity.IsZero() {
			idle := now.Sub(agent.LastActivity)
			if idle > d.cfg.AgentInactivityLimit {
				results = append(results, Result{
					Detected:   true,
					Type:       TypeAgentUnresponsive,
					Severity:   SeverityHigh,
					Confidence: math.Min(idle.Minutes()/(2*d.cfg.AgentInactivityLimit.Minutes()), 1),
					Description: fmt.Sprintf("agent %s has been inactive for %s (limit %s)",
						id, idle.Round(time.Second), d.cfg.AgentInactivityLimit),
					AffectedComponents: []string{id},
					RecommendedActions: []string{"restart or reassign the agent"},
					Metrics: map[string]float64{
						"idle_seconds": idle.Seconds(),
					},
					Timestamp: now,
				})
			}
		}

		ratio := agent.FailureRatio()
		if agent.TotalTasks() > d.cfg.AgentMinTasks && ratio > d.cfg.AgentFailureRatio {
			severity := SeverityHigh
			if ratio > d.cfg.AgentCriticalFailureRatio {
				severity = SeverityCritical
			}
			results = append(results, Result{
				Detected:   true,
				Type:       TypeAgentHighFailureRate,
				Severity:   severity,
				Confidence: math.Min(ratio/(2*d.cfg.AgentFailureRatio), 1),
				Description: fmt.Sprintf("agent %s failing %.0f%% of tasks (%d of %d)",
					id, ratio*100, agent.FailedTasks, agent.TotalTasks()),
				AffectedComponents: []string{id},
				RecommendedActions: []string{
					"inspect recent task failures for this agent",
					"reduce task assignment until recovered",
				},
				Metrics: map[string]float64{
					"failure_ratio": ratio,
					"total_tasks":   float64(agent.TotalTasks()),
				},
				Timestamp: now,
			})
		}
	}
	return results
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func safeRatio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
