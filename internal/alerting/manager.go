package alerting

import (
	"sort"
	"sync"
	"time"
)

// ManagerConfig bounds the alert history log.
type ManagerConfig struct {
	// MaxHistory is the maximum number of alerts kept in the history log.
	// History is a record of past events, so it is capped by count only,
	// not by a time window the way metrics are.
	// Default: 500
	MaxHistory int
}

// DefaultManagerConfig returns the default lifecycle bounds.
func DefaultManagerConfig() *ManagerConfig {
	return &ManagerConfig{MaxHistory: 500}
}

// Manager owns alert state transitions (triggered → acknowledged/resolved),
// the active set, and the bounded append-only history. An alert in the
// active set is never marked resolved and vice versa.
type Manager struct {
	mu sync.RWMutex

	active     map[string]*Alert
	history    []*Alert
	maxHistory int
}

// NewManager creates an alert lifecycle manager.
func NewManager(cfg *ManagerConfig) *Manager {
	if cfg == nil {
		cfg = DefaultManagerConfig()
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 500
	}
	return &Manager{
		active:     make(map[string]*Alert),
		maxHistory: cfg.MaxHistory,
	}
}

// Record adds a newly fired alert to the active set and the history log,
// evicting the oldest history entries beyond the cap.
func (m *Manager) Record(alert *Alert) {
	if alert == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.active[alert.ID] = alert
	m.history = append(m.history, alert)
	if over := len(m.history) - m.maxHistory; over > 0 {
		m.history = append(m.history[:0], m.history[over:]...)
	}
}

// Acknowledge marks an active alert as acknowledged. It returns false if no
// active alert has that ID; callers must check the result.
func (m *Manager) Acknowledge(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.active[id]
	if !ok {
		return false
	}
	alert.Acknowledged = true
	return true
}

// Resolve marks an alert resolved and removes it from the active set; it
// stays in history. Resolving an already-resolved alert is a no-op that
// returns false.
func (m *Manager) Resolve(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.active[id]
	if !ok {
		return false
	}
	now := time.Now()
	alert.Resolved = true
	alert.ResolvedAt = &now
	delete(m.active, id)
	return true
}

// ResolveByRule resolves every active alert fired by the given rule and
// returns how many were resolved.
func (m *Manager) ResolveByRule(ruleID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	now := time.Now()
	for id, alert := range m.active {
		if alert.RuleID == ruleID {
			alert.Resolved = true
			alert.ResolvedAt = &now
			delete(m.active, id)
			count++
		}
	}
	return count
}

// AcknowledgeAll acknowledges every active alert and returns the count.
func (m *Manager) AcknowledgeAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, alert := range m.active {
		alert.Acknowledged = true
	}
	return len(m.active)
}

// Active returns copies of all unresolved alerts, most severe first and
// newest first within a severity.
func (m *Manager) Active() []*Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Alert, 0, len(m.active))
	for _, alert := range m.active {
		out = append(out, alert.Clone())
	}
	sortAlerts(out)
	return out
}

// History returns up to limit alerts most-recent-first. A limit <= 0
// returns the full history.
func (m *Manager) History(limit int) []*Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Alert, n)
	for i := 0; i < n; i++ {
		out[i] = m.history[len(m.history)-1-i].Clone()
	}
	return out
}

// Stats summarizes the manager's current state.
type Stats struct {
	Active       int
	Acknowledged int
	HistorySize  int
	BySeverity   map[Severity]int
}

// Summary returns counts describing the active set and history.
func (m *Manager) Summary() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		Active:      len(m.active),
		HistorySize: len(m.history),
		BySeverity:  make(map[Severity]int),
	}
	for _, alert := range m.active {
		s.BySeverity[alert.Severity]++
		if alert.Acknowledged {
			s.Acknowledged++
		}
	}
	return s
}

func sortAlerts(alerts []*Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if ra, rb := severityRank(a.Severity), severityRank(b.Severity); ra != rb {
			return ra > rb
		}
		return a.Timestamp.After(b.Timestamp)
	})
}
