package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	gopsnet "github.com/shirou/gopsutil/v3/net"
)

// SystemSource collects real host metrics via gopsutil and merges in
// application and agent counters from the registered providers.
type SystemSource struct {
	// DiskPath is the mount point sampled for disk usage
	// Default: "/"
	DiskPath string

	apps   AppStatsProvider
	agents AgentStatsProvider
}

// NewSystemSource creates a gopsutil-backed metric source.
func NewSystemSource() *SystemSource {
	return &SystemSource{DiskPath: "/"}
}

// SetAppStatsProvider registers the application counter provider.
func (s *SystemSource) SetAppStatsProvider(p AppStatsProvider) {
	s.apps = p
}

// SetAgentStatsProvider registers the per-agent counter provider.
func (s *SystemSource) SetAgentStatsProvider(p AgentStatsProvider) {
	s.agents = p
}

// Collect captures one snapshot. Individual gauge failures degrade to zero
// values rather than failing the whole collection: a tick with partial
// system metrics is still useful to the rule engine.
func (s *SystemSource) Collect(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collect cancelled: %w", err)
	}

	snap := &Snapshot{Timestamp: time.Now()}

	if pcts, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pcts) > 0 {
		snap.System.CPUUsagePercent = pcts[0]
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		snap.System.LoadAverage = []float64{avg.Load1, avg.Load5, avg.Load15}
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.System.MemoryUsagePercent = vm.UsedPercent
	}
	if du, err := disk.UsageWithContext(ctx, s.DiskPath); err == nil {
		snap.System.DiskUsagePercent = du.UsedPercent
	}
	if counters, err := gopsnet.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
		snap.System.Network = NetworkStats{
			BytesSent:   counters[0].BytesSent,
			BytesRecv:   counters[0].BytesRecv,
			PacketsSent: counters[0].PacketsSent,
			PacketsRecv: counters[0].PacketsRecv,
		}
	}

	if s.apps != nil {
		snap.Application = s.apps.AppStats()
	}
	if s.agents != nil {
		snap.Agents = s.agents.AgentStats()
	}

	return snap, nil
}
