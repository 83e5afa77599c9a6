package monitor

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vigilmon/vigil/internal/alerting"
	"github.com/vigilmon/vigil/internal/anomaly"
	"github.com/vigilmon/vigil/internal/health"
	"github.com/vigilmon/vigil/internal/metrics"
)

// Config holds the complete monitoring engine configuration.
type Config struct {
	// Enabled controls whether the monitor starts its loop
	// Default: true
	Enabled bool

	// Interval is how often a collection tick runs
	// Default: 30 seconds
	Interval time.Duration

	// TickTimeout bounds one full tick (collect through emit)
	// Default: 30 seconds
	TickTimeout time.Duration

	// ProbeTimeout bounds each individual health probe
	// Default: 5 seconds
	ProbeTimeout time.Duration

	// AnomalyWindow is the trailing window for the anomaly count the
	// health aggregator consumes
	// Default: 1 hour
	AnomalyWindow time.Duration

	// History bounds the snapshot buffer
	History metrics.HistoryConfig

	// Detector tunes the anomaly detectors
	Detector anomaly.Config

	// MaxAlertHistory bounds the alert history log
	// Default: 500
	MaxAlertHistory int

	// Rules are the declarative alert rules, in declaration order
	Rules []*alerting.Rule

	// Probes are the external service checks run each tick
	Probes []health.Probe

	// Sinks configures alert delivery targets
	Sinks SinksConfig
}

// SinksConfig describes the delivery targets alerts fan out to.
type SinksConfig struct {
	Console ConsoleSinkConfig
	Webhook WebhookSinkConfig
	SQLite  SQLiteSinkConfig
}

// ConsoleSinkConfig controls operator-console delivery.
type ConsoleSinkConfig struct {
	// Enabled turns the console sink on. Default: true
	Enabled bool
	// MaxPerMinute caps console output during alert storms. Default: 30
	MaxPerMinute int
}

// WebhookSinkConfig controls HTTP delivery. A zero URL disables it.
type WebhookSinkConfig struct {
	URL     string
	Timeout time.Duration
}

// SQLiteSinkConfig controls the audit-log sink. A zero Path disables it.
type SQLiteSinkConfig struct {
	Path string
}

// DefaultConfig returns a configuration with documented defaults and no
// rules or probes.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		Interval:        30 * time.Second,
		TickTimeout:     30 * time.Second,
		ProbeTimeout:    5 * time.Second,
		AnomalyWindow:   time.Hour,
		History:         *metrics.DefaultHistoryConfig(),
		Detector:        *anomaly.DefaultConfig(),
		MaxAlertHistory: 500,
		Sinks: SinksConfig{
			Console: ConsoleSinkConfig{Enabled: true, MaxPerMinute: 30},
		},
	}
}

// Validate range-checks the configuration.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}
	if c.Interval < time.Second {
		return fmt.Errorf("interval too fast (minimum 1s), got %v", c.Interval)
	}
	if c.TickTimeout <= 0 {
		return fmt.Errorf("tick_timeout must be positive, got %v", c.TickTimeout)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive, got %v", c.ProbeTimeout)
	}
	if c.History.MaxSize <= 0 {
		return fmt.Errorf("history.max_size must be positive, got %d", c.History.MaxSize)
	}
	if c.History.Retention <= 0 {
		return fmt.Errorf("history.retention must be positive, got %v", c.History.Retention)
	}
	if c.MaxAlertHistory <= 0 {
		return fmt.Errorf("alerts.max_history must be positive, got %d", c.MaxAlertHistory)
	}
	for _, r := range c.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// fileConfig is the YAML representation of Config. Durations are strings
// ("30s", "5m") and rules carry string severities so "error" can alias
// high.
type fileConfig struct {
	Enabled       *bool  `yaml:"enabled,omitempty"`
	Interval      string `yaml:"interval,omitempty"`
	TickTimeout   string `yaml:"tick_timeout,omitempty"`
	ProbeTimeout  string `yaml:"probe_timeout,omitempty"`
	AnomalyWindow string `yaml:"anomaly_window,omitempty"`

	History struct {
		MaxSize   int    `yaml:"max_size,omitempty"`
		Retention string `yaml:"retention,omitempty"`
	} `yaml:"history,omitempty"`

	Detector detectorYAML `yaml:"detector,omitempty"`

	Alerts struct {
		MaxHistory int `yaml:"max_history,omitempty"`
	} `yaml:"alerts,omitempty"`

	Rules  []ruleYAML  `yaml:"rules,omitempty"`
	Probes []probeYAML `yaml:"probes,omitempty"`

	Sinks struct {
		Console struct {
			Enabled      *bool `yaml:"enabled,omitempty"`
			MaxPerMinute int   `yaml:"max_per_minute,omitempty"`
		} `yaml:"console,omitempty"`
		Webhook struct {
			URL     string `yaml:"url,omitempty"`
			Timeout string `yaml:"timeout,omitempty"`
		} `yaml:"webhook,omitempty"`
		SQLite struct {
			Path string `yaml:"path,omitempty"`
		} `yaml:"sqlite,omitempty"`
	} `yaml:"sinks,omitempty"`
}

type detectorYAML struct {
	LatencyWindow           int     `yaml:"latency_window,omitempty"`
	LatencyMinSamples       int     `yaml:"latency_min_samples,omitempty"`
	ZScoreThreshold         float64 `yaml:"zscore_threshold,omitempty"`
	LatencyHighZScore       float64 `yaml:"latency_high_zscore,omitempty"`
	LatencyCriticalZScore   float64 `yaml:"latency_critical_zscore,omitempty"`
	ErrorRateWindow         int     `yaml:"error_rate_window,omitempty"`
	ErrorRateRatio          float64 `yaml:"error_rate_ratio,omitempty"`
	ErrorRateFloor          float64 `yaml:"error_rate_floor,omitempty"`
	ErrorRateHighLevel      float64 `yaml:"error_rate_high_level,omitempty"`
	ErrorRateCriticalLevel  float64 `yaml:"error_rate_critical_level,omitempty"`
	ResourceWindow          int     `yaml:"resource_window,omitempty"`
	ResourceRatio           float64 `yaml:"resource_ratio,omitempty"`
	MemoryFloorPercent      float64 `yaml:"memory_floor_percent,omitempty"`
	CPUFloorPercent         float64 `yaml:"cpu_floor_percent,omitempty"`
	ResourceCriticalPercent float64 `yaml:"resource_critical_percent,omitempty"`

	AgentInactivityLimit      string  `yaml:"agent_inactivity_limit,omitempty"`
	AgentFailureRatio         float64 `yaml:"agent_failure_ratio,omitempty"`
	AgentMinTasks             int     `yaml:"agent_min_tasks,omitempty"`
	AgentCriticalFailureRatio float64 `yaml:"agent_critical_failure_ratio,omitempty"`
}

type ruleYAML struct {
	ID         string  `yaml:"id"`
	MetricPath string  `yaml:"metric_path"`
	Condition  string  `yaml:"condition"`
	Threshold  float64 `yaml:"threshold"`
	Severity   string  `yaml:"severity"`
	Enabled    *bool   `yaml:"enabled,omitempty"`
	Cooldown   string  `yaml:"cooldown,omitempty"`
}

type probeYAML struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"` // "http" or "command"
	URL     string   `yaml:"url,omitempty"`
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
}

// LoadConfig loads configuration from a YAML file, applies defaults for
// anything unset, then applies environment overrides. A missing file is not
// an error: defaults plus environment are used.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
		if err := fc.apply(cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	if fc.Enabled != nil {
		cfg.Enabled = *fc.Enabled
	}
	if err := setDuration(&cfg.Interval, fc.Interval, "interval"); err != nil {
		return err
	}
	if err := setDuration(&cfg.TickTimeout, fc.TickTimeout, "tick_timeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.ProbeTimeout, fc.ProbeTimeout, "probe_timeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.AnomalyWindow, fc.AnomalyWindow, "anomaly_window"); err != nil {
		return err
	}

	if fc.History.MaxSize > 0 {
		cfg.History.MaxSize = fc.History.MaxSize
	}
	if err := setDuration(&cfg.History.Retention, fc.History.Retention, "history.retention"); err != nil {
		return err
	}
	if fc.Alerts.MaxHistory > 0 {
		cfg.MaxAlertHistory = fc.Alerts.MaxHistory
	}

	if err := fc.Detector.apply(&cfg.Detector); err != nil {
		return err
	}

	for _, ry := range fc.Rules {
		rule, err := ry.toRule()
		if err != nil {
			return err
		}
		cfg.Rules = append(cfg.Rules, rule)
	}
	for _, py := range fc.Probes {
		probe, err := py.toProbe()
		if err != nil {
			return err
		}
		cfg.Probes = append(cfg.Probes, probe)
	}

	if fc.Sinks.Console.Enabled != nil {
		cfg.Sinks.Console.Enabled = *fc.Sinks.Console.Enabled
	}
	if fc.Sinks.Console.MaxPerMinute > 0 {
		cfg.Sinks.Console.MaxPerMinute = fc.Sinks.Console.MaxPerMinute
	}
	cfg.Sinks.Webhook.URL = fc.Sinks.Webhook.URL
	if err := setDuration(&cfg.Sinks.Webhook.Timeout, fc.Sinks.Webhook.Timeout, "sinks.webhook.timeout"); err != nil {
		return err
	}
	cfg.Sinks.SQLite.Path = fc.Sinks.SQLite.Path
	return nil
}

func (d *detectorYAML) apply(cfg *anomaly.Config) error {
	if d.LatencyWindow > 0 {
		cfg.LatencyWindow = d.LatencyWindow
	}
	if d.LatencyMinSamples > 0 {
		cfg.LatencyMinSamples = d.LatencyMinSamples
	}
	if d.ZScoreThreshold > 0 {
		cfg.ZScoreThreshold = d.ZScoreThreshold
	}
	if d.LatencyHighZScore > 0 {
		cfg.LatencyHighZScore = d.LatencyHighZScore
	}
	if d.LatencyCriticalZScore > 0 {
		cfg.LatencyCriticalZScore = d.LatencyCriticalZScore
	}
	if d.ErrorRateWindow > 0 {
		cfg.ErrorRateWindow = d.ErrorRateWindow
	}
	if d.ErrorRateRatio > 0 {
		cfg.ErrorRateRatio = d.ErrorRateRatio
	}
	if d.ErrorRateFloor > 0 {
		cfg.ErrorRateFloor = d.ErrorRateFloor
	}
	if d.ErrorRateHighLevel > 0 {
		cfg.ErrorRateHighLevel = d.ErrorRateHighLevel
	}
	if d.ErrorRateCriticalLevel > 0 {
		cfg.ErrorRateCriticalLevel = d.ErrorRateCriticalLevel
	}
	if d.ResourceWindow > 0 {
		cfg.ResourceWindow = d.ResourceWindow
	}
	if d.ResourceRatio > 0 {
		cfg.ResourceRatio = d.ResourceRatio
	}
	if d.MemoryFloorPercent > 0 {
		cfg.MemoryFloorPercent = d.MemoryFloorPercent
	}
	if d.CPUFloorPercent > 0 {
		cfg.CPUFloorPercent = d.CPUFloorPercent
	}
	if d.ResourceCriticalPercent > 0 {
		cfg.ResourceCriticalPercent = d.ResourceCriticalPercent
	}
	if err := setDuration(&cfg.AgentInactivityLimit, d.AgentInactivityLimit, "detector.agent_inactivity_limit"); err != nil {
		return err
	}
	if d.AgentFailureRatio > 0 {
		cfg.AgentFailureRatio = d.AgentFailureRatio
	}
	if d.AgentMinTasks > 0 {
		cfg.AgentMinTasks = d.AgentMinTasks
	}
	if d.AgentCriticalFailureRatio > 0 {
		cfg.AgentCriticalFailureRatio = d.AgentCriticalFailureRatio
	}
	return nil
}

func (r *ruleYAML) toRule() (*alerting.Rule, error) {
	severity, err := alerting.ParseSeverity(r.Severity)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", r.ID, err)
	}

	rule := &alerting.Rule{
		ID:         r.ID,
		MetricPath: r.MetricPath,
		Condition:  alerting.Condition(r.Condition),
		Threshold:  r.Threshold,
		Severity:   severity,
		Enabled:    true,
	}
	if r.Enabled != nil {
		rule.Enabled = *r.Enabled
	}
	if err := setDuration(&rule.Cooldown, r.Cooldown, "cooldown"); err != nil {
		return nil, fmt.Errorf("rule %s: %w", r.ID, err)
	}
	return rule, nil
}

func (p *probeYAML) toProbe() (health.Probe, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("probe has no name")
	}
	switch p.Type {
	case "http":
		if p.URL == "" {
			return nil, fmt.Errorf("probe %s: http probe needs a url", p.Name)
		}
		return &health.HTTPProbe{ProbeName: p.Name, URL: p.URL}, nil
	case "command":
		if p.Command == "" {
			return nil, fmt.Errorf("probe %s: command probe needs a command", p.Name)
		}
		return &health.CommandProbe{ProbeName: p.Name, Command: p.Command, Args: p.Args}, nil
	default:
		return nil, fmt.Errorf("probe %s: unknown type %q (must be http or command)", p.Name, p.Type)
	}
}

// applyEnv overrides configuration from VIGIL_* environment variables.
func applyEnv(cfg *Config) {
	if val := os.Getenv("VIGIL_ENABLED"); val != "" {
		cfg.Enabled = parseBool(val)
	}
	if val := os.Getenv("VIGIL_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Interval = d
		}
	}
	if val := os.Getenv("VIGIL_TICK_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.TickTimeout = d
		}
	}
	if val := os.Getenv("VIGIL_PROBE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.ProbeTimeout = d
		}
	}
	if val := os.Getenv("VIGIL_HISTORY_MAX_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.History.MaxSize = n
		}
	}
	if val := os.Getenv("VIGIL_HISTORY_RETENTION"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.History.Retention = d
		}
	}
	if val := os.Getenv("VIGIL_ALERT_HISTORY_MAX"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.MaxAlertHistory = n
		}
	}
}

func parseBool(val string) bool {
	switch val {
	case "false", "0", "no", "off":
		return false
	default:
		return true
	}
}

func setDuration(dst *time.Duration, raw, field string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	*dst = d
	return nil
}
