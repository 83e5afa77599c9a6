package metrics

import (
	"context"
)

// Source produces a populated snapshot on demand. The monitoring engine does
// not know how the numbers are obtained; production uses SystemSource, tests
// inject deterministic snapshots.
type Source interface {
	Collect(ctx context.Context) (*Snapshot, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (*Snapshot, error)

// Collect implements Source.
func (f SourceFunc) Collect(ctx context.Context) (*Snapshot, error) {
	return f(ctx)
}

// AppStatsProvider supplies application-level counters for a tick. The host
// process registers one so request/latency metrics reflect its real state;
// without one those fields stay zero.
type AppStatsProvider interface {
	AppStats() ApplicationStats
}

// AgentStatsProvider supplies per-agent task counters for a tick.
type AgentStatsProvider interface {
	AgentStats() map[string]AgentStats
}
