package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Timestamp: time.Now(),
		System: SystemStats{
			CPUUsagePercent:    42.5,
			LoadAverage:        []float64{1.2, 0.9, 0.7},
			MemoryUsagePercent: 61.0,
			DiskUsagePercent:   70.3,
		},
		Application: ApplicationStats{
			RequestsTotal: 1000,
			ErrorRate:     0.05,
			LatencyP95:    250,
		},
		Agents: map[string]AgentStats{
			"planner": {CompletedTasks: 10, FailedTasks: 2},
		},
	}
}

func TestResolvePath(t *testing.T) {
	snap := testSnapshot()

	tests := []struct {
		name    string
		path    string
		want    float64
		wantErr bool
	}{
		{"application error rate", "application.errorRate", 0.05, false},
		{"system cpu", "system.cpuUsagePercent", 42.5, false},
		{"system memory", "system.memoryUsagePercent", 61.0, false},
		{"latency p95", "application.latencyP95", 250, false},
		{"integer counter", "application.requestsTotal", 1000, false},
		{"load average element", "system.loadAverage.0", 1.2, false},
		{"agent counter", "agents.planner.failedTasks", 2, false},
		{"unknown path", "application.doesNotExist", 0, true},
		{"non-numeric path", "system", 0, true},
		{"empty path", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePath(snap, tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnknownMetricPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathResolver_ReusesEncoding(t *testing.T) {
	r, err := NewPathResolver(testSnapshot())
	require.NoError(t, err)

	v, err := r.Resolve("application.errorRate")
	require.NoError(t, err)
	assert.Equal(t, 0.05, v)

	v, err = r.Resolve("system.diskUsagePercent")
	require.NoError(t, err)
	assert.Equal(t, 70.3, v)

	_, err = r.Resolve("nope.nothing")
	assert.True(t, errors.Is(err, ErrUnknownMetricPath))
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"application.errorRate", false},
		{"application.latencyP99", false},
		{"system.cpuUsagePercent", false},
		{"system.network.bytesSent", false},
		{"agents.some-agent.failedTasks", false}, // agent IDs resolve at runtime
		{"application.typoRate", true},
		{"totally.bogus", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
