package metrics

import (
	"errors"
	"sync"
	"time"
)

// ErrInsufficientHistory signals that a statistical computation asked for
// more samples than the history currently holds. Detectors skip their check
// for the tick rather than producing misleading statistics.
var ErrInsufficientHistory = errors.New("insufficient metrics history")

// HistoryConfig bounds the in-memory snapshot buffer.
type HistoryConfig struct {
	// MaxSize is the maximum number of snapshots to keep
	// Default: 1000
	MaxSize int
	// Retention is how long snapshots are kept before head eviction
	// Default: 1 hour
	Retention time.Duration
}

// DefaultHistoryConfig returns the default history bounds.
func DefaultHistoryConfig() *HistoryConfig {
	return &HistoryConfig{
		MaxSize:   1000,
		Retention: time.Hour,
	}
}

// History is a bounded, time-ordered buffer of metrics snapshots.
// Snapshots are strictly increasing in timestamp; eviction always removes
// from the head (oldest first) when either the count or retention bound is
// exceeded. Appends happen only on the collection-tick path; reads return
// copies so external callers never see the live buffer.
type History struct {
	mu sync.RWMutex

	snapshots []*Snapshot
	maxSize   int
	retention time.Duration
}

// NewHistory creates a history buffer with the given bounds.
func NewHistory(cfg *HistoryConfig) *History {
	if cfg == nil {
		cfg = DefaultHistoryConfig()
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	return &History{
		snapshots: make([]*Snapshot, 0, cfg.MaxSize),
		maxSize:   cfg.MaxSize,
		retention: cfg.Retention,
	}
}

// Append adds a snapshot at the tail and evicts anything outside the
// configured bounds. Append never fails: a snapshot whose timestamp is not
// after the current tail is dropped to preserve timestamp ordering.
func (h *History) Append(snap *Snapshot) {
	if snap == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.snapshots); n > 0 && !snap.Timestamp.After(h.snapshots[n-1].Timestamp) {
		return
	}

	h.snapshots = append(h.snapshots, snap)
	h.evictLocked(snap.Timestamp)
}

// evictLocked enforces retention first, then the count cap.
// Must be called with h.mu held.
func (h *History) evictLocked(now time.Time) {
	cutoff := now.Add(-h.retention)
	first := 0
	for first < len(h.snapshots) && h.snapshots[first].Timestamp.Before(cutoff) {
		first++
	}
	if over := len(h.snapshots) - first - h.maxSize; over > 0 {
		first += over
	}
	if first > 0 {
		h.snapshots = append(h.snapshots[:0], h.snapshots[first:]...)
	}
}

// Len returns the number of snapshots currently held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.snapshots)
}

// Latest returns a copy of the most recent snapshot, or nil if empty.
func (h *History) Latest() *Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.snapshots) == 0 {
		return nil
	}
	return h.snapshots[len(h.snapshots)-1].Clone()
}

// Recent returns the last n snapshots in chronological order. If fewer than
// min snapshots exist it returns ErrInsufficientHistory; callers must handle
// that explicitly instead of receiving a partial, misleading sample.
func (h *History) Recent(n, min int) ([]*Snapshot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.snapshots) < min {
		return nil, ErrInsufficientHistory
	}
	start := len(h.snapshots) - n
	if start < 0 {
		start = 0
	}
	return copySnapshots(h.snapshots[start:]), nil
}

// Window returns all snapshots within the trailing duration d, in
// chronological order. An empty result is valid.
func (h *History) Window(d time.Duration) []*Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.snapshots) == 0 {
		return nil
	}
	cutoff := h.snapshots[len(h.snapshots)-1].Timestamp.Add(-d)
	first := 0
	for first < len(h.snapshots) && h.snapshots[first].Timestamp.Before(cutoff) {
		first++
	}
	return copySnapshots(h.snapshots[first:])
}

// Clear resets the history (useful for testing).
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshots = make([]*Snapshot, 0, h.maxSize)
}

func copySnapshots(in []*Snapshot) []*Snapshot {
	out := make([]*Snapshot, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
