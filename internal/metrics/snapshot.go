package metrics

import (
	"time"
)

// AgentStatus classifies the health of a tracked agent.
type AgentStatus string

const (
	AgentHealthy   AgentStatus = "healthy"
	AgentDegraded  AgentStatus = "degraded"
	AgentUnhealthy AgentStatus = "unhealthy"
)

// NetworkStats holds cumulative network interface counters.
type NetworkStats struct {
	BytesSent   uint64 `json:"bytesSent"`
	BytesRecv   uint64 `json:"bytesRecv"`
	PacketsSent uint64 `json:"packetsSent"`
	PacketsRecv uint64 `json:"packetsRecv"`
}

// SystemStats holds host-level resource usage for one collection tick.
type SystemStats struct {
	// CPUUsagePercent is total CPU utilization across all cores (0-100)
	CPUUsagePercent float64 `json:"cpuUsagePercent"`
	// LoadAverage is the 1/5/15 minute load averages
	LoadAverage []float64 `json:"loadAverage"`
	// MemoryUsagePercent is used physical memory (0-100)
	MemoryUsagePercent float64 `json:"memoryUsagePercent"`
	// DiskUsagePercent is used space on the root filesystem (0-100)
	DiskUsagePercent float64 `json:"diskUsagePercent"`
	// Network holds cumulative interface counters
	Network NetworkStats `json:"network"`
}

// ApplicationStats holds application-level counters for one collection tick.
type ApplicationStats struct {
	RequestsTotal     int64   `json:"requestsTotal"`
	RequestsActive    int64   `json:"requestsActive"`
	RequestsFailed    int64   `json:"requestsFailed"`
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
	LatencyP50        float64 `json:"latencyP50"`
	LatencyP95        float64 `json:"latencyP95"`
	LatencyP99        float64 `json:"latencyP99"`
	// ErrorRate is failed/total for the current window (0.0-1.0)
	ErrorRate float64 `json:"errorRate"`
	// Throughput is requests per second over the current window
	Throughput float64 `json:"throughput"`
}

// AgentStats holds per-agent task counters.
type AgentStats struct {
	CompletedTasks int         `json:"completedTasks"`
	FailedTasks    int         `json:"failedTasks"`
	LastActivity   time.Time   `json:"lastActivity"`
	Status         AgentStatus `json:"status"`
}

// FailureRatio returns failed/(failed+completed), or 0 if no tasks ran.
func (a AgentStats) FailureRatio() float64 {
	total := a.CompletedTasks + a.FailedTasks
	if total == 0 {
		return 0
	}
	return float64(a.FailedTasks) / float64(total)
}

// TotalTasks returns the combined completed+failed task count.
func (a AgentStats) TotalTasks() int {
	return a.CompletedTasks + a.FailedTasks
}

// Snapshot is one timestamped capture of system and application metrics.
// It is immutable once appended to a History; consumers receive copies.
type Snapshot struct {
	Timestamp   time.Time             `json:"timestamp"`
	System      SystemStats           `json:"system"`
	Application ApplicationStats      `json:"application"`
	Agents      map[string]AgentStats `json:"agents,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	out.System.LoadAverage = append([]float64(nil), s.System.LoadAverage...)
	if s.Agents != nil {
		out.Agents = make(map[string]AgentStats, len(s.Agents))
		for id, st := range s.Agents {
			out.Agents[id] = st
		}
	}
	return &out
}
